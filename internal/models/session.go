package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Session is the in-memory wallet connection state.
type Session struct {
	Address    *common.Address
	ChainID    *big.Int
	Connecting bool
	Err        error
}

func (s Session) IsConnected() bool {
	return s.Address != nil
}

type SessionEventKind string

const (
	SessionConnected    SessionEventKind = "connected"
	SessionDisconnected SessionEventKind = "disconnected"
	SessionConnecting   SessionEventKind = "connecting"
	SessionFailed       SessionEventKind = "failed"
	SessionAccount      SessionEventKind = "account-changed"
	SessionChainReset   SessionEventKind = "chain-changed"
)

// SessionEvent is published on every session state change.
type SessionEvent struct {
	Kind    SessionEventKind
	Session Session
}
