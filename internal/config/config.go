package config

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	SepoliaChainID     = 11155111
	DefaultNetworkName = "Sepolia testnet"
	DefaultExplorerURL = "https://sepolia.etherscan.io"
)

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Config holds all application configuration
type Config struct {
	// Contract settings
	ContractAddress string
	ChainID         int64
	NetworkName     string
	ExplorerURL     string

	// RPC settings
	RPCURL          string
	RPCTimeout      time.Duration
	RPCReadyRetries int

	// Wallet settings
	KeystoreDir string
	Password    string

	// Polling settings
	PollInterval    time.Duration
	ReceiptInterval time.Duration
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ChainID:         SepoliaChainID,
		NetworkName:     DefaultNetworkName,
		ExplorerURL:     DefaultExplorerURL,
		RPCTimeout:      30 * time.Second,
		RPCReadyRetries: 5,
		KeystoreDir:     "keystore",
		PollInterval:    10 * time.Second,
		ReceiptInterval: time.Second,
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	if address := os.Getenv("VAULT_CONTRACT_ADDRESS"); address != "" {
		c.ContractAddress = address
	}

	if chainID := os.Getenv("VAULT_CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			c.ChainID = id
		}
	}

	if name := os.Getenv("VAULT_NETWORK_NAME"); name != "" {
		c.NetworkName = name
	}

	if explorer := os.Getenv("VAULT_EXPLORER_URL"); explorer != "" {
		c.ExplorerURL = explorer
	}

	if rpcURL := os.Getenv("VAULT_RPC_URL"); rpcURL != "" {
		c.RPCURL = rpcURL
	}

	if timeout := os.Getenv("VAULT_RPC_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.RPCTimeout = time.Duration(t) * time.Second
		}
	}

	if retries := os.Getenv("VAULT_RPC_READY_ATTEMPTS"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			c.RPCReadyRetries = r
		}
	}

	if keystoreDir := os.Getenv("VAULT_KEYSTORE_DIR"); keystoreDir != "" {
		c.KeystoreDir = keystoreDir
	}

	if password, ok := os.LookupEnv("VAULT_PASSWORD"); ok {
		c.Password = password
	}

	if interval := os.Getenv("VAULT_POLL_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			c.PollInterval = time.Duration(i) * time.Second
		}
	}
}

// Contract returns the configured vault address
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}

// ExpectedChainID returns the chain id the wallet must be on
func (c *Config) ExpectedChainID() *big.Int {
	return big.NewInt(c.ChainID)
}

// ContractURL links the vault on the block explorer
func (c *Config) ContractURL() string {
	return fmt.Sprintf("%s/address/%s", c.ExplorerURL, c.ContractAddress)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !addressPattern.MatchString(c.ContractAddress) {
		return fmt.Errorf("contract address must be a 0x-prefixed 20 byte hex address, got: %q", c.ContractAddress)
	}

	if c.ChainID <= 0 {
		return fmt.Errorf("chain id must be positive, got: %d", c.ChainID)
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL cannot be empty")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %s", c.PollInterval)
	}

	if c.RPCReadyRetries <= 0 {
		return fmt.Errorf("RPC ready attempts must be positive, got: %d", c.RPCReadyRetries)
	}

	return nil
}
