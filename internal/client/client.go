package client

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/kelsos/securevault-tui/internal/config"
	"github.com/kelsos/securevault-tui/internal/logger"
)

// ChainIDReader is the minimal RPC surface needed to check readiness.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// RPCClient handles all JSON-RPC communication with the Ethereum node
type RPCClient struct {
	config *config.Config
	eth    *ethclient.Client
}

// Dial connects to the configured RPC endpoint
func Dial(ctx context.Context, cfg *config.Config) (*RPCClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	defer cancel()

	start := time.Now()
	logger.Debug("Dialing RPC endpoint %s", cfg.RPCURL)

	eth, err := ethclient.DialContext(dialCtx, cfg.RPCURL)
	if err != nil {
		logger.Error("Dial to %s failed after %v: %v", cfg.RPCURL, time.Since(start), err)
		return nil, fmt.Errorf("failed to dial RPC endpoint: %w", err)
	}

	logger.Debug("Connected to %s in %v", cfg.RPCURL, time.Since(start))
	return &RPCClient{config: cfg, eth: eth}, nil
}

// Eth exposes the underlying go-ethereum client
func (c *RPCClient) Eth() *ethclient.Client {
	return c.eth
}

// Ping checks if the node answers
func (c *RPCClient) Ping(ctx context.Context) error {
	return Ping(ctx, c.eth, c.config.RPCTimeout)
}

// WaitForRPCReady waits for the node to become ready
func (c *RPCClient) WaitForRPCReady(ctx context.Context) bool {
	return WaitForRPCReady(ctx, c.eth, c.config.RPCReadyRetries, time.Second, c.config.RPCTimeout)
}

// Close closes the underlying connection
func (c *RPCClient) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// Ping asks the node for its chain id within timeout
func Ping(ctx context.Context, reader ChainIDReader, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chainID, err := reader.ChainID(pingCtx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	logger.Debug("Node answered with chain id %s", chainID)
	return nil
}

// WaitForRPCReady pings the node until it answers or attempts run out
func WaitForRPCReady(ctx context.Context, reader ChainIDReader, attempts int, delay, timeout time.Duration) bool {
	logger.Info("Checking RPC readiness...")

	err := retry.Do(
		func() error {
			return Ping(ctx, reader, timeout)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("Checking RPC readiness (attempt %d/%d): %v", n+1, attempts, err)
		}),
	)
	if err != nil {
		logger.Error("RPC failed to become ready after %d attempts: %v", attempts, err)
		return false
	}

	logger.Info("RPC is ready!")
	return true
}
