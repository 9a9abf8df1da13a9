package services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/kelsos/securevault-tui/internal/contracts"
	"github.com/kelsos/securevault-tui/internal/models"
)

// VaultState is the read side the vault reader polls.
type VaultState interface {
	Balance(ctx context.Context) (*big.Int, error)
	Owners(ctx context.Context) ([]common.Address, error)
	RequiredApprovals(ctx context.Context) (*big.Int, error)
	MinDelay(ctx context.Context) (*big.Int, error)
	TransactionCount(ctx context.Context) (*big.Int, error)
	Paused(ctx context.Context) (bool, error)
}

// TransactionSource is the per-record read side used by the transaction list.
type TransactionSource interface {
	Transaction(ctx context.Context, id *big.Int) (contracts.VaultTransaction, error)
	HasApproved(ctx context.Context, id *big.Int, owner common.Address) (bool, error)
	IsReadyForExecution(ctx context.Context, id *big.Int) (bool, error)
}

// VaultWriter is the write side used by the submitter.
type VaultWriter interface {
	ProposeTransaction(opts *bind.TransactOpts, recipient common.Address, amount *big.Int) (*types.Transaction, error)
	ApproveTransaction(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error)
	RevokeApproval(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error)
	QueueTransaction(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error)
	ExecuteTransaction(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error)
	Pause(opts *bind.TransactOpts) (*types.Transaction, error)
	Unpause(opts *bind.TransactOpts) (*types.Transaction, error)
}

// EventSource yields decoded vault events for a block range.
type EventSource interface {
	FilterEvents(ctx context.Context, from, to *big.Int) ([]models.VaultEvent, error)
}

// BlockNumberReader reports the chain head.
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// ReceiptWaiter blocks until a submitted transaction is mined.
type ReceiptWaiter interface {
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

var (
	_ VaultState        = (*contracts.Vault)(nil)
	_ TransactionSource = (*contracts.Vault)(nil)
	_ VaultWriter       = (*contracts.Vault)(nil)
	_ EventSource       = (*contracts.Vault)(nil)
)
