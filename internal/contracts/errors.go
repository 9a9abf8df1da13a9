package contracts

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

const revertedPrefix = "execution reverted: "

// RevertReason extracts the contract-provided Error(string) text from an RPC
// error, if there is one.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if encoded, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(encoded); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason, true
				}
			}
		}
	}

	message := err.Error()
	if idx := strings.LastIndex(message, revertedPrefix); idx >= 0 {
		reason := strings.TrimSpace(message[idx+len(revertedPrefix):])
		if reason != "" {
			return reason, true
		}
	}

	return "", false
}
