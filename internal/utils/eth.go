package utils

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// plainDecimal matches amounts without an exponent.
var plainDecimal = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)$`)

// FormatAddress shortens an address to 0x1234...abcd for display
func FormatAddress(address string) string {
	if len(address) < 10 {
		return address
	}
	return fmt.Sprintf("%s...%s", address[:6], address[len(address)-4:])
}

// ShortAddress is FormatAddress for go-ethereum addresses
func ShortAddress(address common.Address) string {
	return FormatAddress(address.Hex())
}

// FormatEth renders a wei amount as an ETH decimal string
func FormatEth(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).String()
}

// ParseEth converts an ETH decimal string into wei
func ParseEth(eth string) (*big.Int, error) {
	eth = strings.TrimSpace(eth)
	if eth == "" {
		return nil, errors.New("amount cannot be empty")
	}

	if !plainDecimal.MatchString(eth) {
		return nil, fmt.Errorf("invalid amount %q: expected a plain decimal number", eth)
	}

	amount, err := decimal.NewFromString(eth)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", eth, err)
	}

	wei := amount.Shift(etherDecimals)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", eth, etherDecimals)
	}

	return wei.BigInt(), nil
}
