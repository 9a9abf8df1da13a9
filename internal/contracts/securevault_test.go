package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/securevault-tui/internal/models"
)

// fakeBackend answers eth_call by packing canned outputs for the selected method.
// Methods the tests never reach are left to the embedded nil interface.
type fakeBackend struct {
	bind.ContractBackend
	outputs map[string][]interface{}
	logs    []types.Log
	calls   []string
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	method, err := SecureVaultABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, method.Name)
	values, ok := f.outputs[method.Name]
	if !ok {
		return nil, fmt.Errorf("unexpected call to %s", method.Name)
	}
	return method.Outputs.Pack(values...)
}

func (f *fakeBackend) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]types.Log, error) {
	return f.logs, nil
}

var vaultAddress = common.HexToAddress("0x00000000000000000000000000000000000000fe")

func TestABIHasVaultInterface(t *testing.T) {
	for _, method := range []string{
		"getOwners", "requiredApprovals", "getBalance", "getMinDelay", "getTimelockAddress",
		"getTransaction", "transactionCount", "hasApproved", "isReadyForExecution", "paused",
		"proposeTransaction", "approveTransaction", "revokeApproval", "queueTransaction",
		"executeTransaction", "pause", "unpause",
	} {
		_, ok := SecureVaultABI.Methods[method]
		require.True(t, ok, method)
	}

	for _, kind := range []models.VaultEventKind{
		models.EventProposalCreated, models.EventApprovalReceived, models.EventApprovalRevoked,
		models.EventTransactionQueued, models.EventTransactionExecuted, models.EventVaultPaused,
		models.EventVaultUnpaused, models.EventDeposit,
	} {
		_, ok := SecureVaultABI.Events[string(kind)]
		require.True(t, ok, kind)
	}
}

func TestVaultReads(t *testing.T) {
	owners := []common.Address{common.HexToAddress("0xaa"), common.HexToAddress("0xbb")}
	backend := &fakeBackend{outputs: map[string][]interface{}{
		"getOwners":           {owners},
		"requiredApprovals":   {big.NewInt(2)},
		"getBalance":          {big.NewInt(1_000_000)},
		"getMinDelay":         {big.NewInt(3600)},
		"transactionCount":    {big.NewInt(3)},
		"paused":              {true},
		"hasApproved":         {true},
		"isReadyForExecution": {false},
		"getTransaction": {VaultTransaction{
			Recipient:     common.HexToAddress("0xcc"),
			Amount:        big.NewInt(42),
			ApprovalCount: big.NewInt(1),
			Queued:        true,
			QueuedAt:      big.NewInt(1_700_000_000),
			TimelockId:    [32]byte{1},
		}},
	}}
	vault := NewVault(vaultAddress, backend)
	ctx := context.Background()

	gotOwners, err := vault.Owners(ctx)
	require.NoError(t, err)
	require.Equal(t, owners, gotOwners)

	required, err := vault.RequiredApprovals(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), required.Int64())

	balance, err := vault.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000), balance.Int64())

	paused, err := vault.Paused(ctx)
	require.NoError(t, err)
	require.True(t, paused)

	approved, err := vault.HasApproved(ctx, big.NewInt(2), owners[0])
	require.NoError(t, err)
	require.True(t, approved)

	tx, err := vault.Transaction(ctx, big.NewInt(2))
	require.NoError(t, err)
	require.Equal(t, common.HexToAddress("0xcc"), tx.Recipient)
	require.Equal(t, int64(42), tx.Amount.Int64())
	require.True(t, tx.Queued)
	require.False(t, tx.Executed)
	require.Equal(t, [32]byte{1}, tx.TimelockId)
}

func TestVaultReadError(t *testing.T) {
	vault := NewVault(vaultAddress, &fakeBackend{outputs: map[string][]interface{}{}})

	_, err := vault.MinDelay(context.Background())
	require.ErrorContains(t, err, "getMinDelay call failed")
}

func TestDecodeEvent(t *testing.T) {
	event := SecureVaultABI.Events["ProposalCreated"]
	data, err := event.Inputs.NonIndexed().Pack(big.NewInt(5))
	require.NoError(t, err)

	proposer := common.HexToAddress("0xaa")
	recipient := common.HexToAddress("0xcc")
	log := types.Log{
		Address: vaultAddress,
		Topics: []common.Hash{
			event.ID,
			common.BigToHash(big.NewInt(7)),
			common.BytesToHash(proposer.Bytes()),
			common.BytesToHash(recipient.Bytes()),
		},
		Data:        data,
		BlockNumber: 100,
	}

	decoded, err := DecodeEvent(log)
	require.NoError(t, err)
	require.Equal(t, models.EventProposalCreated, decoded.Kind)
	require.Equal(t, int64(7), decoded.TransactionID.Int64())
	require.Equal(t, proposer, decoded.Account)
	require.Equal(t, recipient, decoded.Recipient)
	require.Equal(t, int64(5), decoded.Amount.Int64())
	require.Equal(t, uint64(100), decoded.BlockNumber)

	_, err = DecodeEvent(types.Log{Topics: []common.Hash{common.HexToHash("0x1234")}})
	require.ErrorIs(t, err, ErrUnknownEvent)
}

func TestFilterEventsSkipsForeignLogs(t *testing.T) {
	paused := SecureVaultABI.Events["VaultPaused"]
	by := common.HexToAddress("0xaa")
	backend := &fakeBackend{logs: []types.Log{
		{Topics: []common.Hash{common.HexToHash("0xdead")}},
		{Topics: []common.Hash{paused.ID, common.BytesToHash(by.Bytes())}, BlockNumber: 9},
	}}

	events, err := NewVault(vaultAddress, backend).FilterEvents(context.Background(), big.NewInt(0), nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.EventVaultPaused, events[0].Kind)
	require.Equal(t, by, events[0].Account)
}

type fakeDataError struct {
	message string
	data    interface{}
}

func (e *fakeDataError) Error() string          { return e.message }
func (e *fakeDataError) ErrorData() interface{} { return e.data }

func encodeRevert(t *testing.T, reason string) string {
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

func TestRevertReason(t *testing.T) {
	wrapped := fmt.Errorf("approveTransaction transaction failed: %w", &fakeDataError{
		message: "execution reverted",
		data:    encodeRevert(t, "Already approved"),
	})
	reason, ok := RevertReason(wrapped)
	require.True(t, ok)
	require.Equal(t, "Already approved", reason)

	reason, ok = RevertReason(errors.New("execution reverted: Not an owner"))
	require.True(t, ok)
	require.Equal(t, "Not an owner", reason)

	_, ok = RevertReason(errors.New("connection refused"))
	require.False(t, ok)

	_, ok = RevertReason(nil)
	require.False(t, ok)
}
