package async

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
)

// MockReceiptReader returns NotFound until a receipt is mined for a hash.
type MockReceiptReader struct {
	mu       sync.Mutex
	receipts map[common.Hash]*types.Receipt
	queries  int
}

func (m *MockReceiptReader) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if receipt, ok := m.receipts[hash]; ok {
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (m *MockReceiptReader) Mine(hash common.Hash, status uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[hash] = &types.Receipt{TxHash: hash, Status: status, BlockNumber: big.NewInt(1)}
}

func newTx(nonce uint64) *types.Transaction {
	return types.NewTx(&types.LegacyTx{Nonce: nonce, GasPrice: big.NewInt(1), Gas: 21000})
}

func TestWaitReturnsMinedReceipt(t *testing.T) {
	reader := &MockReceiptReader{receipts: map[common.Hash]*types.Receipt{}}
	manager := NewReceiptManager(reader, 5*time.Millisecond)
	defer manager.Stop()

	tx := newTx(1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		reader.Mine(tx.Hash(), types.ReceiptStatusSuccessful)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	receipt, err := manager.Wait(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, tx.Hash(), receipt.TxHash)
}

func TestWaitReportsRevert(t *testing.T) {
	reader := &MockReceiptReader{receipts: map[common.Hash]*types.Receipt{}}
	manager := NewReceiptManager(reader, 5*time.Millisecond)
	defer manager.Stop()

	tx := newTx(2)
	reader.Mine(tx.Hash(), types.ReceiptStatusFailed)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	receipt, err := manager.Wait(ctx, tx)
	require.ErrorIs(t, err, ErrReverted)
	require.NotNil(t, receipt)
}

func TestWaitHonoursContext(t *testing.T) {
	reader := &MockReceiptReader{receipts: map[common.Hash]*types.Receipt{}}
	manager := NewReceiptManager(reader, 5*time.Millisecond)
	defer manager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := manager.Wait(ctx, newTx(3))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, manager.pending())
}

func TestManagerServesSeveralTransactions(t *testing.T) {
	reader := &MockReceiptReader{receipts: map[common.Hash]*types.Receipt{}}
	manager := NewReceiptManager(reader, 5*time.Millisecond)
	defer manager.Stop()

	first, second := newTx(4), newTx(5)
	firstChan := manager.Register(first.Hash())
	secondChan := manager.Register(second.Hash())

	reader.Mine(second.Hash(), types.ReceiptStatusSuccessful)
	select {
	case result := <-secondChan:
		require.Equal(t, second.Hash(), result.Receipt.TxHash)
	case <-time.After(2 * time.Second):
		t.Fatal("second receipt was not delivered")
	}

	reader.Mine(first.Hash(), types.ReceiptStatusSuccessful)
	select {
	case result := <-firstChan:
		require.Equal(t, first.Hash(), result.Receipt.TxHash)
	case <-time.After(2 * time.Second):
		t.Fatal("first receipt was not delivered")
	}
}
