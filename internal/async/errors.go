package async

import "errors"

var ErrReverted = errors.New("transaction reverted on-chain")
