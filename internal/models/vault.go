package models

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VaultSnapshot is the most recently fetched copy of the vault's read state.
type VaultSnapshot struct {
	Balance           *big.Int
	Owners            []common.Address
	RequiredApprovals uint64
	MinDelay          uint64 // seconds
	TransactionCount  uint64
	Paused            bool

	Loading   bool
	Err       error
	FetchedAt time.Time
	Seq       uint64
}

// NewLoadingSnapshot returns the snapshot shown before the first fetch lands.
func NewLoadingSnapshot() VaultSnapshot {
	return VaultSnapshot{
		Balance: new(big.Int),
		Owners:  []common.Address{},
		Loading: true,
	}
}

// IsOwner reports whether addr is one of the vault owners.
func (s VaultSnapshot) IsOwner(addr *common.Address) bool {
	if addr == nil {
		return false
	}
	for _, owner := range s.Owners {
		if strings.EqualFold(owner.Hex(), addr.Hex()) {
			return true
		}
	}
	return false
}

// WithError keeps the previous fields and records a failed fetch.
func (s VaultSnapshot) WithError(err error) VaultSnapshot {
	s.Loading = false
	s.Err = err
	return s
}
