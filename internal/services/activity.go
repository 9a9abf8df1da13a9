package services

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/utils"
)

const (
	// MaxActivityLines is how many formatted events the feed keeps.
	MaxActivityLines = 10
	// DefaultActivityLookback is how many blocks the first poll scans.
	DefaultActivityLookback = 5000
)

// ActivityService tails vault events. The block cursor lives in memory only.
type ActivityService struct {
	events   EventSource
	head     BlockNumberReader
	lookback uint64

	mu sync.Mutex
	// generation is bumped by Reset so polls started before it are dropped.
	generation uint64
	next       *big.Int
	recent    []models.VaultEvent
	listeners []func([]models.VaultEvent)
}

func NewActivityService(events EventSource, head BlockNumberReader, lookback uint64) *ActivityService {
	return &ActivityService{
		events:   events,
		head:     head,
		lookback: lookback,
	}
}

// OnUpdate registers a listener for the recent event list.
func (s *ActivityService) OnUpdate(listener func([]models.VaultEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Recent returns the newest events, newest first.
func (s *ActivityService) Recent() []models.VaultEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.VaultEvent{}, s.recent...)
}

// SetLookback changes how far back the first poll after a reset scans.
func (s *ActivityService) SetLookback(blocks uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookback = blocks
}

// Reset forgets the cursor and the collected events.
func (s *ActivityService) Reset() {
	s.mu.Lock()
	s.generation++
	s.next = nil
	s.recent = nil
	s.mu.Unlock()
}

// Poll fetches events from the cursor up to the current head and returns the
// ones that were new.
func (s *ActivityService) Poll(ctx context.Context) ([]models.VaultEvent, error) {
	head, err := s.head.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	s.mu.Lock()
	from := s.next
	lookback := s.lookback
	generation := s.generation
	s.mu.Unlock()

	if from == nil {
		start := uint64(0)
		if head > lookback {
			start = head - lookback
		}
		from = new(big.Int).SetUint64(start)
	}

	to := new(big.Int).SetUint64(head)
	if from.Cmp(to) > 0 {
		return nil, nil
	}

	fresh, err := s.events.FilterEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		logger.Debug("Discarding vault events polled before a reset")
		return nil, nil
	}
	s.next = new(big.Int).Add(to, big.NewInt(1))
	for _, event := range fresh {
		s.recent = append([]models.VaultEvent{event}, s.recent...)
	}
	if len(s.recent) > MaxActivityLines {
		s.recent = s.recent[:MaxActivityLines]
	}
	recent := append([]models.VaultEvent{}, s.recent...)
	listeners := append([]func([]models.VaultEvent){}, s.listeners...)
	s.mu.Unlock()

	if len(fresh) > 0 {
		logger.Debug("Found %d new vault events up to block %d", len(fresh), head)
		for _, listener := range listeners {
			listener(recent)
		}
	}
	return fresh, nil
}

// Run polls every interval until ctx ends.
func (s *ActivityService) Run(ctx context.Context, interval time.Duration) {
	poll := func() {
		if _, err := s.Poll(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Failed to poll vault events: %v", err)
		}
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}

// FormatEvent renders an event as a single activity line.
func FormatEvent(event models.VaultEvent) string {
	id := "#?"
	if event.TransactionID != nil {
		id = "#" + event.TransactionID.String()
	}
	who := utils.ShortAddress(event.Account)

	switch event.Kind {
	case models.EventProposalCreated:
		return fmt.Sprintf("%s proposed by %s: %s ETH to %s", id, who, utils.FormatEth(event.Amount), utils.ShortAddress(event.Recipient))
	case models.EventApprovalReceived:
		return fmt.Sprintf("%s approved by %s", id, who)
	case models.EventApprovalRevoked:
		return fmt.Sprintf("%s approval revoked by %s", id, who)
	case models.EventTransactionQueued:
		if event.ExecuteAfter != nil && event.ExecuteAfter.IsUint64() {
			at := time.Unix(int64(event.ExecuteAfter.Uint64()), 0).UTC().Format(time.DateTime)
			return fmt.Sprintf("%s queued, executable after %s UTC", id, at)
		}
		return fmt.Sprintf("%s queued", id)
	case models.EventTransactionExecuted:
		return fmt.Sprintf("%s executed: %s ETH to %s", id, utils.FormatEth(event.Amount), utils.ShortAddress(event.Recipient))
	case models.EventVaultPaused:
		return fmt.Sprintf("vault paused by %s", who)
	case models.EventVaultUnpaused:
		return fmt.Sprintf("vault unpaused by %s", who)
	case models.EventDeposit:
		return fmt.Sprintf("deposit of %s ETH from %s", utils.FormatEth(event.Amount), who)
	default:
		return string(event.Kind)
	}
}
