package services

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
)

// maxRecordFetches bounds how many records are read at once.
const maxRecordFetches = 4

// TransactionService reads the most recent vault transactions.
type TransactionService struct {
	source TransactionSource
}

func NewTransactionService(source TransactionSource) *TransactionService {
	return &TransactionService{source: source}
}

// RecentIDs returns the ids shown for count transactions, newest first.
func RecentIDs(count uint64) []uint64 {
	if count == 0 {
		return nil
	}
	var lowest uint64
	if count > models.MaxRecentTransactions {
		lowest = count - models.MaxRecentTransactions
	}
	ids := make([]uint64, 0, count-lowest)
	for id := count; id > lowest; id-- {
		ids = append(ids, id-1)
	}
	return ids
}

// FetchRecent loads up to ten records, ids count-1 down to max(0, count-10),
// each with the approval flag for account and the timelock readiness.
func (s *TransactionService) FetchRecent(ctx context.Context, count uint64, account common.Address) ([]models.TransactionRecord, error) {
	ids := RecentIDs(count)
	if len(ids) == 0 {
		return []models.TransactionRecord{}, nil
	}

	records := make([]models.TransactionRecord, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxRecordFetches)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			record, err := s.FetchRecord(gctx, id, account)
			if err != nil {
				return err
			}
			records[i] = record
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Error fetching transactions: %v", err)
		return nil, err
	}

	logger.Debug("Fetched %d transactions", len(records))
	return records, nil
}

// FetchRecord reads one transaction and the two per-account flags.
func (s *TransactionService) FetchRecord(ctx context.Context, id uint64, account common.Address) (models.TransactionRecord, error) {
	bigID := new(big.Int).SetUint64(id)

	var record models.TransactionRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tx, err := s.source.Transaction(gctx, bigID)
		if err != nil {
			return fmt.Errorf("failed to read transaction %d: %w", id, err)
		}
		record.Recipient = tx.Recipient
		record.Amount = tx.Amount
		record.ApprovalCount = tx.ApprovalCount.Uint64()
		record.Executed = tx.Executed
		record.Queued = tx.Queued
		record.QueuedAt = tx.QueuedAt.Uint64()
		record.TimelockID = tx.TimelockId
		return nil
	})

	var approved, ready bool
	g.Go(func() (err error) {
		approved, err = s.source.HasApproved(gctx, bigID, account)
		if err != nil {
			return fmt.Errorf("failed to read approval for transaction %d: %w", id, err)
		}
		return nil
	})
	g.Go(func() (err error) {
		ready, err = s.source.IsReadyForExecution(gctx, bigID)
		if err != nil {
			return fmt.Errorf("failed to read readiness of transaction %d: %w", id, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.TransactionRecord{}, err
	}

	record.ID = id
	record.HasApproved = approved
	record.IsReady = ready
	return record, nil
}
