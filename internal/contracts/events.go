package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/kelsos/securevault-tui/internal/models"
)

var ErrUnknownEvent = errors.New("log does not match a SecureVault event")

// FilterEvents returns the vault's decoded events in [from, to]. A nil to
// means up to the latest block.
func (v *Vault) FilterEvents(ctx context.Context, from, to *big.Int) ([]models.VaultEvent, error) {
	logs, err := v.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{v.address},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter vault logs: %w", err)
	}

	events := make([]models.VaultEvent, 0, len(logs))
	for _, log := range logs {
		event, err := DecodeEvent(log)
		if errors.Is(err, ErrUnknownEvent) {
			continue
		}
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// DecodeEvent turns a raw vault log into a VaultEvent
func DecodeEvent(log types.Log) (models.VaultEvent, error) {
	if len(log.Topics) == 0 {
		return models.VaultEvent{}, ErrUnknownEvent
	}

	eventABI, err := SecureVaultABI.EventByID(log.Topics[0])
	if err != nil {
		return models.VaultEvent{}, ErrUnknownEvent
	}

	fields := make(map[string]interface{})
	var indexed abi.Arguments
	for _, input := range eventABI.Inputs {
		if input.Indexed {
			indexed = append(indexed, input)
		}
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
		return models.VaultEvent{}, fmt.Errorf("failed to parse %s topics: %w", eventABI.Name, err)
	}
	if len(log.Data) > 0 {
		if err := SecureVaultABI.UnpackIntoMap(fields, eventABI.Name, log.Data); err != nil {
			return models.VaultEvent{}, fmt.Errorf("failed to unpack %s data: %w", eventABI.Name, err)
		}
	}

	event := models.VaultEvent{
		Kind:        models.VaultEventKind(eventABI.Name),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
	}

	if id, ok := fields["transactionId"].(*big.Int); ok {
		event.TransactionID = id
	}
	if amount, ok := fields["amount"].(*big.Int); ok {
		event.Amount = amount
	}
	if executeAfter, ok := fields["executeAfter"].(*big.Int); ok {
		event.ExecuteAfter = executeAfter
	}
	if timelockID, ok := fields["timelockId"].([32]byte); ok {
		event.TimelockID = common.Hash(timelockID)
	}
	if recipient, ok := fields["recipient"].(common.Address); ok {
		event.Recipient = recipient
	}
	for _, key := range []string{"proposer", "approver", "revoker", "by", "sender"} {
		if account, ok := fields[key].(common.Address); ok {
			event.Account = account
			break
		}
	}

	return event, nil
}
