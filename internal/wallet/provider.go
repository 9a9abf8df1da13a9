// Package wallet provides the account source the dashboard signs with. It
// plays the role a browser extension plays for a web dapp: it hands out
// accounts on request, reports the chain it is connected to and notifies
// subscribers when either changes.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

const (
	CodeUserRejected   = 4001
	CodeRequestPending = -32002
)

// ErrProviderMissing means there is no wallet to talk to at all.
var ErrProviderMissing = errors.New("no wallet provider found: create or import a keystore account and set VAULT_KEYSTORE_DIR")

// ProviderError carries an EIP-1193 style error code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Is matches provider errors by code so wrapped instances compare equal to the sentinels.
func (e *ProviderError) Is(target error) bool {
	t, ok := target.(*ProviderError)
	return ok && t.Code == e.Code
}

var (
	ErrUserRejected   = &ProviderError{Code: CodeUserRejected, Message: "user rejected the request"}
	ErrRequestPending = &ProviderError{Code: CodeRequestPending, Message: "request of type 'eth_requestAccounts' already pending"}
)

// Provider is the wallet boundary used by the session manager and the submitter.
type Provider interface {
	// RequestAccounts asks the user to authorize an account. It may prompt.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// Accounts returns already authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SubscribeAccountsChanged(ch chan<- []common.Address) event.Subscription
	SubscribeChainChanged(ch chan<- *big.Int) event.Subscription
	Transactor(ctx context.Context, account common.Address) (*bind.TransactOpts, error)
}
