package async

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
)

// Wait blocks until tx is mined or ctx ends. A receipt with a failed status is
// returned together with ErrReverted.
func (rm *ReceiptManager) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	resultChan := rm.Register(tx.Hash())

	select {
	case <-ctx.Done():
		rm.Forget(tx.Hash())
		return nil, fmt.Errorf("stopped waiting for %s: %w", tx.Hash().Hex(), ctx.Err())
	case result, ok := <-resultChan:
		if !ok {
			return nil, fmt.Errorf("monitoring of %s was superseded", tx.Hash().Hex())
		}
		if result.Err != nil {
			return nil, result.Err
		}
		if result.Receipt.Status != types.ReceiptStatusSuccessful {
			return result.Receipt, fmt.Errorf("transaction %s: %w", tx.Hash().Hex(), ErrReverted)
		}
		return result.Receipt, nil
	}
}
