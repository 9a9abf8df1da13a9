package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/kelsos/securevault-tui/internal/logger"
)

// ReceiptReader is the slice of ethclient the manager polls.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ReceiptResult is delivered once per registered transaction.
type ReceiptResult struct {
	Receipt *types.Receipt
	Err     error
}

// ReceiptManager watches submitted transactions until they are mined. A
// single polling goroutine serves every registered hash and exits once
// nothing is left to watch.
type ReceiptManager struct {
	client         ReceiptReader
	activeTxs      map[common.Hash]chan<- ReceiptResult
	mu             sync.RWMutex
	pollInterval   time.Duration
	requestTimeout time.Duration
	stopPolling    chan struct{}
	pollingActive  bool
}

func NewReceiptManager(client ReceiptReader, pollInterval time.Duration) *ReceiptManager {
	return &ReceiptManager{
		client:         client,
		activeTxs:      make(map[common.Hash]chan<- ReceiptResult),
		pollInterval:   pollInterval,
		requestTimeout: 10 * time.Second,
		stopPolling:    make(chan struct{}),
	}
}

func (rm *ReceiptManager) Register(txHash common.Hash) <-chan ReceiptResult {
	resultChan := make(chan ReceiptResult, 1)

	rm.mu.Lock()
	if previous, exists := rm.activeTxs[txHash]; exists {
		close(previous)
	}
	rm.activeTxs[txHash] = resultChan

	if !rm.pollingActive {
		rm.pollingActive = true
		// Recreate stopPolling channel if it was closed from previous stop
		rm.stopPolling = make(chan struct{})
		go rm.pollReceipts(rm.stopPolling)
	}
	rm.mu.Unlock()

	logger.Debug("Registered transaction %s for receipt monitoring", txHash.Hex())
	return resultChan
}

// Forget stops watching txHash without delivering a result.
func (rm *ReceiptManager) Forget(txHash common.Hash) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.activeTxs, txHash)
}

func (rm *ReceiptManager) pollReceipts(stop <-chan struct{}) {
	ticker := time.NewTicker(rm.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rm.checkReceipts()
		}
	}
}

func (rm *ReceiptManager) pending() []common.Hash {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	hashes := make([]common.Hash, 0, len(rm.activeTxs))
	for hash := range rm.activeTxs {
		hashes = append(hashes, hash)
	}
	return hashes
}

func (rm *ReceiptManager) checkReceipts() {
	if rm.stopIfIdle() {
		return
	}

	for _, hash := range rm.pending() {
		ctx, cancel := context.WithTimeout(context.Background(), rm.requestTimeout)
		receipt, err := rm.client.TransactionReceipt(ctx, hash)
		cancel()

		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			logger.Warn("Failed to fetch receipt for %s: %v", hash.Hex(), err)
			continue
		}

		rm.deliver(hash, ReceiptResult{Receipt: receipt})
	}
}

func (rm *ReceiptManager) deliver(hash common.Hash, result ReceiptResult) {
	rm.mu.Lock()
	resultChan, exists := rm.activeTxs[hash]
	delete(rm.activeTxs, hash)
	rm.mu.Unlock()

	if !exists {
		return
	}

	resultChan <- result
	close(resultChan)

	logger.Debug("Transaction %s mined in block %v and removed from monitoring", hash.Hex(), result.Receipt.BlockNumber)
}

// stopIfIdle ends polling when nothing is registered. The check and the stop
// share the lock Register takes, so a concurrent registration is never orphaned.
func (rm *ReceiptManager) stopIfIdle() bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.activeTxs) > 0 {
		return false
	}
	if rm.pollingActive {
		close(rm.stopPolling)
		rm.pollingActive = false
	}
	return true
}

func (rm *ReceiptManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.pollingActive {
		close(rm.stopPolling)
		rm.pollingActive = false
	}
}
