// Package contracts binds the SecureVault multisig contract.
package contracts

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

//go:embed artifacts/SecureVault.abi.json
var secureVaultABIJSON []byte

// SecureVaultABI is the parsed contract interface.
var SecureVaultABI = mustParseABI(secureVaultABIJSON)

func mustParseABI(raw []byte) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// VaultTransaction mirrors the tuple returned by getTransaction. Field names
// follow the ABI component names so abi.ConvertType can map onto it.
type VaultTransaction struct {
	Recipient     common.Address
	Amount        *big.Int
	ApprovalCount *big.Int
	Executed      bool
	Queued        bool
	QueuedAt      *big.Int
	TimelockId    [32]byte
}

// Vault is a typed wrapper around a deployed SecureVault.
type Vault struct {
	address  common.Address
	contract *bind.BoundContract
	backend  bind.ContractBackend
}

// NewVault binds the vault at address using backend for calls, transactions and logs.
func NewVault(address common.Address, backend bind.ContractBackend) *Vault {
	return &Vault{
		address:  address,
		contract: bind.NewBoundContract(address, SecureVaultABI, backend, backend, backend),
		backend:  backend,
	}
}

func (v *Vault) Address() common.Address {
	return v.address
}

func (v *Vault) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := v.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}

func (v *Vault) callUint(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	out, err := v.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (v *Vault) callBool(ctx context.Context, method string, params ...interface{}) (bool, error) {
	out, err := v.call(ctx, method, params...)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Owners returns the vault owners in contract order
func (v *Vault) Owners(ctx context.Context) ([]common.Address, error) {
	out, err := v.call(ctx, "getOwners")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// RequiredApprovals returns the approval threshold
func (v *Vault) RequiredApprovals(ctx context.Context) (*big.Int, error) {
	return v.callUint(ctx, "requiredApprovals")
}

// Balance returns the vault balance in wei
func (v *Vault) Balance(ctx context.Context) (*big.Int, error) {
	return v.callUint(ctx, "getBalance")
}

// MinDelay returns the timelock delay in seconds
func (v *Vault) MinDelay(ctx context.Context) (*big.Int, error) {
	return v.callUint(ctx, "getMinDelay")
}

// TimelockAddress returns the timelock controller used by the vault
func (v *Vault) TimelockAddress(ctx context.Context) (common.Address, error) {
	out, err := v.call(ctx, "getTimelockAddress")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Transaction returns the proposal stored at id
func (v *Vault) Transaction(ctx context.Context, id *big.Int) (VaultTransaction, error) {
	out, err := v.call(ctx, "getTransaction", id)
	if err != nil {
		return VaultTransaction{}, err
	}
	return *abi.ConvertType(out[0], new(VaultTransaction)).(*VaultTransaction), nil
}

// TransactionCount returns the number of proposals ever created
func (v *Vault) TransactionCount(ctx context.Context) (*big.Int, error) {
	return v.callUint(ctx, "transactionCount")
}

// HasApproved reports whether owner approved proposal id
func (v *Vault) HasApproved(ctx context.Context, id *big.Int, owner common.Address) (bool, error) {
	return v.callBool(ctx, "hasApproved", id, owner)
}

// IsReadyForExecution reports whether proposal id is queued and past its timelock
func (v *Vault) IsReadyForExecution(ctx context.Context, id *big.Int) (bool, error) {
	return v.callBool(ctx, "isReadyForExecution", id)
}

// Paused reports whether the vault is paused
func (v *Vault) Paused(ctx context.Context) (bool, error) {
	return v.callBool(ctx, "paused")
}

func (v *Vault) transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	tx, err := v.contract.Transact(opts, method, params...)
	if err != nil {
		return nil, fmt.Errorf("%s transaction failed: %w", method, err)
	}
	return tx, nil
}

func (v *Vault) ProposeTransaction(opts *bind.TransactOpts, recipient common.Address, amount *big.Int) (*types.Transaction, error) {
	return v.transact(opts, "proposeTransaction", recipient, amount)
}

func (v *Vault) ApproveTransaction(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error) {
	return v.transact(opts, "approveTransaction", id)
}

func (v *Vault) RevokeApproval(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error) {
	return v.transact(opts, "revokeApproval", id)
}

func (v *Vault) QueueTransaction(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error) {
	return v.transact(opts, "queueTransaction", id)
}

func (v *Vault) ExecuteTransaction(opts *bind.TransactOpts, id *big.Int) (*types.Transaction, error) {
	return v.transact(opts, "executeTransaction", id)
}

func (v *Vault) Pause(opts *bind.TransactOpts) (*types.Transaction, error) {
	return v.transact(opts, "pause")
}

func (v *Vault) Unpause(opts *bind.TransactOpts) (*types.Transaction, error) {
	return v.transact(opts, "unpause")
}
