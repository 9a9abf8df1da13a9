package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxRecentTransactions is the size of the transaction list window.
const MaxRecentTransactions = 10

type TxStatus string

const (
	TxStatusPending  TxStatus = "pending"
	TxStatusQueued   TxStatus = "queued"
	TxStatusExecuted TxStatus = "executed"
)

// TransactionRecord is a vault withdrawal proposal as reported by the contract,
// plus two per-account flags fetched alongside it.
type TransactionRecord struct {
	ID            uint64
	Recipient     common.Address
	Amount        *big.Int
	ApprovalCount uint64
	Executed      bool
	Queued        bool
	QueuedAt      uint64
	TimelockID    [32]byte

	HasApproved bool
	IsReady     bool
}

func (r TransactionRecord) Status() TxStatus {
	switch {
	case r.Executed:
		return TxStatusExecuted
	case r.Queued:
		return TxStatusQueued
	default:
		return TxStatusPending
	}
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionRevoke  Action = "revoke"
	ActionQueue   Action = "queue"
	ActionExecute Action = "execute"
)

// RecordActions describes what the list view offers for a record. Queue
// eligibility only checks for a single approval; the contract enforces the
// real threshold when the queue call lands.
type RecordActions struct {
	Actions         []Action
	YouApproved     bool
	WaitingTimelock bool
}

func (a RecordActions) Has(action Action) bool {
	for _, candidate := range a.Actions {
		if candidate == action {
			return true
		}
	}
	return false
}

func AvailableActions(r TransactionRecord) RecordActions {
	var result RecordActions
	if r.Executed {
		return result
	}

	if !r.HasApproved && !r.Queued {
		result.Actions = append(result.Actions, ActionApprove)
	}

	if r.HasApproved {
		result.YouApproved = true
		if !r.Queued {
			result.Actions = append(result.Actions, ActionRevoke)
		}
	}

	if !r.Queued && r.ApprovalCount >= 1 {
		result.Actions = append(result.Actions, ActionQueue)
	}

	if r.Queued && r.IsReady {
		result.Actions = append(result.Actions, ActionExecute)
	}

	if r.Queued && !r.IsReady {
		result.WaitingTimelock = true
	}

	return result
}
