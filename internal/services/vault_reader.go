package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
)

// VaultReader keeps the latest vault snapshot. Every fetch is numbered and a
// response older than the last applied one is dropped.
type VaultReader struct {
	vault VaultState

	nextSeq atomic.Uint64

	mu        sync.Mutex
	snapshot  models.VaultSnapshot
	listeners []func(models.VaultSnapshot)
}

func NewVaultReader(vault VaultState) *VaultReader {
	return &VaultReader{
		vault:    vault,
		snapshot: models.NewLoadingSnapshot(),
	}
}

// OnUpdate registers a listener that receives each applied snapshot.
func (r *VaultReader) OnUpdate(listener func(models.VaultSnapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// Snapshot returns the last applied snapshot.
func (r *VaultReader) Snapshot() models.VaultSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

// Reset drops the current snapshot back to the loading state.
func (r *VaultReader) Reset() {
	seq := r.nextSeq.Add(1)
	r.apply(seq, func(models.VaultSnapshot) models.VaultSnapshot {
		snapshot := models.NewLoadingSnapshot()
		return snapshot
	})
}

// Fetch reads the six vault values concurrently. All of them must succeed;
// on failure the previous values are kept and the error is recorded.
func (r *VaultReader) Fetch(ctx context.Context) (models.VaultSnapshot, error) {
	seq := r.nextSeq.Add(1)

	var (
		balance, required, minDelay, count *big.Int
		owners                             []common.Address
		paused                             bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		balance, err = r.vault.Balance(gctx)
		return wrapRead("balance", err)
	})
	g.Go(func() (err error) {
		owners, err = r.vault.Owners(gctx)
		return wrapRead("owners", err)
	})
	g.Go(func() (err error) {
		required, err = r.vault.RequiredApprovals(gctx)
		return wrapRead("required approvals", err)
	})
	g.Go(func() (err error) {
		minDelay, err = r.vault.MinDelay(gctx)
		return wrapRead("min delay", err)
	})
	g.Go(func() (err error) {
		count, err = r.vault.TransactionCount(gctx)
		return wrapRead("transaction count", err)
	})
	g.Go(func() (err error) {
		paused, err = r.vault.Paused(gctx)
		return wrapRead("paused", err)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Error fetching vault info: %v", err)
		snapshot, _ := r.apply(seq, func(prev models.VaultSnapshot) models.VaultSnapshot {
			return prev.WithError(err)
		})
		return snapshot, err
	}

	snapshot, applied := r.apply(seq, func(models.VaultSnapshot) models.VaultSnapshot {
		return models.VaultSnapshot{
			Balance:           balance,
			Owners:            owners,
			RequiredApprovals: required.Uint64(),
			MinDelay:          minDelay.Uint64(),
			TransactionCount:  count.Uint64(),
			Paused:            paused,
			FetchedAt:         time.Now(),
		}
	})
	if !applied {
		logger.Debug("Discarded stale vault snapshot #%d", seq)
	}
	return snapshot, nil
}

// Refresh is an on-demand Fetch; failures are already recorded on the snapshot.
func (r *VaultReader) Refresh(ctx context.Context) {
	_, _ = r.Fetch(ctx)
}

// Run fetches immediately and then every interval until ctx ends. Fetch
// errors never stop the loop.
func (r *VaultReader) Run(ctx context.Context, interval time.Duration) {
	r.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// apply stores the snapshot built by build unless a newer fetch already
// landed. It returns the current snapshot and whether build was applied.
func (r *VaultReader) apply(seq uint64, build func(prev models.VaultSnapshot) models.VaultSnapshot) (models.VaultSnapshot, bool) {
	r.mu.Lock()
	if seq <= r.snapshot.Seq {
		current := r.snapshot
		r.mu.Unlock()
		return current, false
	}
	next := build(r.snapshot)
	next.Seq = seq
	r.snapshot = next
	listeners := append([]func(models.VaultSnapshot){}, r.listeners...)
	r.mu.Unlock()

	for _, listener := range listeners {
		listener(next)
	}
	return next, true
}

func wrapRead(what string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", what, err)
	}
	return nil
}
