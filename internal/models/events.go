package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type VaultEventKind string

const (
	EventProposalCreated     VaultEventKind = "ProposalCreated"
	EventApprovalReceived    VaultEventKind = "ApprovalReceived"
	EventApprovalRevoked     VaultEventKind = "ApprovalRevoked"
	EventTransactionQueued   VaultEventKind = "TransactionQueued"
	EventTransactionExecuted VaultEventKind = "TransactionExecuted"
	EventVaultPaused         VaultEventKind = "VaultPaused"
	EventVaultUnpaused       VaultEventKind = "VaultUnpaused"
	EventDeposit             VaultEventKind = "Deposit"
)

// VaultEvent is a decoded contract log. Fields not carried by a given event
// kind are left zero.
type VaultEvent struct {
	Kind          VaultEventKind
	BlockNumber   uint64
	TxHash        common.Hash
	TransactionID *big.Int
	Account       common.Address // proposer, approver, revoker, pauser or depositor
	Recipient     common.Address
	Amount        *big.Int
	TimelockID    common.Hash
	ExecuteAfter  *big.Int
}
