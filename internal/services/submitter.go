package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/kelsos/securevault-tui/internal/contracts"
	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/validation"
	"github.com/kelsos/securevault-tui/internal/wallet"
)

var (
	// ErrBusy is returned when an action is already running for the same target.
	ErrBusy = errors.New("an action is already in progress for this transaction")
	// ErrNotConnected is returned when no account is connected.
	ErrNotConnected = errors.New("wallet not connected")
)

// Operation names a vault write.
type Operation string

const (
	OpPropose Operation = "propose"
	OpApprove Operation = "approve"
	OpRevoke  Operation = "revoke"
	OpQueue   Operation = "queue"
	OpExecute Operation = "execute"
	OpPause   Operation = "pause"
	OpUnpause Operation = "unpause"
)

// SubmitError is a failed write. Its text is the contract's revert reason
// when there is one and the raw error message otherwise.
type SubmitError struct {
	Op     Operation
	Reason string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.Err.Error()
}

func (e *SubmitError) Unwrap() error { return e.Err }

func newSubmitError(op Operation, err error) *SubmitError {
	reason, _ := contracts.RevertReason(err)
	return &SubmitError{Op: op, Reason: reason, Err: err}
}

// SubmitResult describes a confirmed write.
type SubmitResult struct {
	Op      Operation
	TxHash  common.Hash
	Receipt *types.Receipt
}

// Signer hands out transact options for the connected account.
type Signer interface {
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}

// AccountSource reports the connected account, if any.
type AccountSource interface {
	Session() models.Session
}

// Submitter sends vault writes, waits for them to be mined and then invokes
// the confirmation hook exactly once per confirmed write.
type Submitter struct {
	vault    VaultWriter
	signer   Signer
	accounts AccountSource
	receipts ReceiptWaiter

	mu          sync.Mutex
	busy        map[string]bool
	onConfirmed func(SubmitResult)
}

func NewSubmitter(vault VaultWriter, signer Signer, accounts AccountSource, receipts ReceiptWaiter) *Submitter {
	return &Submitter{
		vault:    vault,
		signer:   signer,
		accounts: accounts,
		receipts: receipts,
		busy:     make(map[string]bool),
	}
}

// OnConfirmed sets the hook run after every confirmed write.
func (s *Submitter) OnConfirmed(hook func(SubmitResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConfirmed = hook
}

// IsBusy reports whether an action for key is in flight.
func (s *Submitter) IsBusy(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[key]
}

// pauseKey serializes pause and unpause.
const pauseKey = "pause"

// ProposeKey is the busy key for proposals.
const ProposeKey = "propose"

// TxKey is the busy key for actions on transaction id.
func TxKey(id uint64) string {
	return fmt.Sprintf("tx:%d", id)
}

func (s *Submitter) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[key] {
		return false
	}
	s.busy[key] = true
	return true
}

func (s *Submitter) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, key)
}

// Propose validates the input before touching the network, then proposes a
// withdrawal of amount ETH to recipient.
func (s *Submitter) Propose(ctx context.Context, recipient, amount string) (SubmitResult, error) {
	if err := validation.ValidateAddress(recipient); err != nil {
		return SubmitResult{}, err
	}
	wei, err := validation.ValidateAmount(amount)
	if err != nil {
		return SubmitResult{}, err
	}

	to := common.HexToAddress(recipient)
	return s.submit(ctx, OpPropose, ProposeKey, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return s.vault.ProposeTransaction(opts, to, wei)
	})
}

func (s *Submitter) Approve(ctx context.Context, id uint64) (SubmitResult, error) {
	return s.submitForID(ctx, OpApprove, id, s.vault.ApproveTransaction)
}

func (s *Submitter) Revoke(ctx context.Context, id uint64) (SubmitResult, error) {
	return s.submitForID(ctx, OpRevoke, id, s.vault.RevokeApproval)
}

func (s *Submitter) Queue(ctx context.Context, id uint64) (SubmitResult, error) {
	return s.submitForID(ctx, OpQueue, id, s.vault.QueueTransaction)
}

func (s *Submitter) Execute(ctx context.Context, id uint64) (SubmitResult, error) {
	return s.submitForID(ctx, OpExecute, id, s.vault.ExecuteTransaction)
}

func (s *Submitter) Pause(ctx context.Context) (SubmitResult, error) {
	return s.submit(ctx, OpPause, pauseKey, s.vault.Pause)
}

func (s *Submitter) Unpause(ctx context.Context) (SubmitResult, error) {
	return s.submit(ctx, OpUnpause, pauseKey, s.vault.Unpause)
}

// Act runs the list action on record id.
func (s *Submitter) Act(ctx context.Context, action models.Action, id uint64) (SubmitResult, error) {
	switch action {
	case models.ActionApprove:
		return s.Approve(ctx, id)
	case models.ActionRevoke:
		return s.Revoke(ctx, id)
	case models.ActionQueue:
		return s.Queue(ctx, id)
	case models.ActionExecute:
		return s.Execute(ctx, id)
	default:
		return SubmitResult{}, fmt.Errorf("unknown action %q", action)
	}
}

func (s *Submitter) submitForID(ctx context.Context, op Operation, id uint64, call func(*bind.TransactOpts, *big.Int) (*types.Transaction, error)) (SubmitResult, error) {
	bigID := new(big.Int).SetUint64(id)
	return s.submit(ctx, op, TxKey(id), func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return call(opts, bigID)
	})
}

func (s *Submitter) submit(ctx context.Context, op Operation, key string, send func(*bind.TransactOpts) (*types.Transaction, error)) (SubmitResult, error) {
	session := s.accounts.Session()
	if session.Address == nil {
		return SubmitResult{}, ErrNotConnected
	}

	if s.signer == nil {
		return SubmitResult{}, wallet.ErrProviderMissing
	}

	if !s.acquire(key) {
		return SubmitResult{}, ErrBusy
	}
	defer s.release(key)

	opts, err := s.signer.Transactor(ctx, *session.Address)
	if err != nil {
		return SubmitResult{}, newSubmitError(op, err)
	}

	tx, err := send(opts)
	if err != nil {
		logger.Error("Error sending %s: %v", op, err)
		return SubmitResult{}, newSubmitError(op, err)
	}
	logger.Info("Submitted %s in %s", op, tx.Hash().Hex())

	receipt, err := s.receipts.Wait(ctx, tx)
	if err != nil {
		logger.Error("Error confirming %s: %v", op, err)
		return SubmitResult{}, newSubmitError(op, err)
	}

	result := SubmitResult{Op: op, TxHash: tx.Hash(), Receipt: receipt}
	logger.Info("Confirmed %s in block %s", op, receipt.BlockNumber)

	s.mu.Lock()
	hook := s.onConfirmed
	s.mu.Unlock()
	if hook != nil {
		hook(result)
	}
	return result, nil
}
