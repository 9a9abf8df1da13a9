package validation

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/kelsos/securevault-tui/internal/utils"
)

var (
	ErrInvalidAddress = errors.New("invalid Ethereum address format")
	ErrInvalidAmount  = errors.New("amount must be a positive number")
)

var ethereumRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidateAddress validates an Ethereum address format
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: address cannot be empty", ErrInvalidAddress)
	}
	if !ethereumRegex.MatchString(address) {
		return ErrInvalidAddress
	}
	return nil
}

// ValidateAmount parses a positive ETH amount and returns it in wei
func ValidateAmount(amount string) (*big.Int, error) {
	wei, err := utils.ParseEth(strings.TrimSpace(amount))
	if err != nil {
		return nil, errors.Join(ErrInvalidAmount, err)
	}
	if wei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return wei, nil
}
