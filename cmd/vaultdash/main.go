package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelsos/securevault-tui/internal/config"
	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/services"
	"github.com/kelsos/securevault-tui/internal/tui"
	"github.com/kelsos/securevault-tui/internal/utils"
	"github.com/kelsos/securevault-tui/internal/wallet"
)

type flagValues struct {
	contract     string
	rpcURL       string
	keystoreDir  string
	chainID      int64
	network      string
	pollInterval int
}

// loadConfig builds and validates the configuration.
func loadConfig(cmd *cobra.Command, flags *flagValues) (*config.Config, error) {
	cfg := buildConfig(cmd, flags)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// buildConfig layers the environment and any flags the user set explicitly
// over the defaults.
func buildConfig(cmd *cobra.Command, flags *flagValues) *config.Config {
	cfg := config.NewConfig()
	cfg.LoadFromEnvironment()

	pf := cmd.Flags()
	if pf.Changed("contract") {
		cfg.ContractAddress = flags.contract
	}
	if pf.Changed("rpc-url") {
		cfg.RPCURL = flags.rpcURL
	}
	if pf.Changed("keystore") {
		cfg.KeystoreDir = flags.keystoreDir
	}
	if pf.Changed("chain-id") {
		cfg.ChainID = flags.chainID
	}
	if pf.Changed("network") {
		cfg.NetworkName = flags.network
	}
	if pf.Changed("poll-interval") {
		cfg.PollInterval = time.Duration(flags.pollInterval) * time.Second
	}
	return cfg
}

// cliPrompt unlocks with VAULT_PASSWORD when set and asks on the terminal otherwise.
func cliPrompt(cfg *config.Config) wallet.PromptFunc {
	if cfg.Password != "" {
		return wallet.StaticPassword(cfg.Password)
	}
	return wallet.ReaderPrompt(os.Stdin, os.Stderr)
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	logFile, err := logger.InitFileOnly("logs")
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() {
		logger.Close()
		logger.Init()
	}()
	logger.Info("Logging to %s", logFile)

	broker := tui.NewPasswordBroker()
	prompt := broker.Prompt
	if cfg.Password != "" {
		prompt = wallet.StaticPassword(cfg.Password)
	}

	dashboard, err := services.NewDashboard(ctx, cfg, prompt)
	if err != nil {
		return err
	}
	defer dashboard.Cleanup()

	monitor := tui.NewMonitor(dashboard, broker)
	if err := monitor.Start(ctx); err != nil {
		return err
	}
	return monitor.Run(ctx)
}

func main() {
	utils.LoadEnvironment()
	logger.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := &flagValues{}

	rootCmd := &cobra.Command{
		Use:   "vaultdash",
		Short: "A terminal dashboard for a SecureVault multisig",
		Long: `vaultdash shows the state of a SecureVault multisig contract and lets its
owners propose, approve, queue and execute withdrawals from the terminal.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return runTUI(ctx, cfg)
		},
	}

	// Add flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.contract, "contract", "c", "", "SecureVault contract address (VAULT_CONTRACT_ADDRESS)")
	pf.StringVarP(&flags.rpcURL, "rpc-url", "r", "", "Ethereum JSON-RPC endpoint (VAULT_RPC_URL)")
	pf.StringVarP(&flags.keystoreDir, "keystore", "k", "", "Keystore directory holding owner keys (VAULT_KEYSTORE_DIR)")
	pf.Int64Var(&flags.chainID, "chain-id", config.SepoliaChainID, "Expected chain id (VAULT_CHAIN_ID)")
	pf.StringVar(&flags.network, "network", config.DefaultNetworkName, "Display name of the expected network (VAULT_NETWORK_NAME)")
	pf.IntVar(&flags.pollInterval, "poll-interval", 10, "Seconds between vault refreshes (VAULT_POLL_INTERVAL)")

	// Add subcommands
	rootCmd.AddCommand(
		newStatusCmd(ctx, flags),
		newTxsCmd(ctx, flags),
		newProposeCmd(ctx, flags),
		newActionCmd(ctx, flags, "approve", "Approve a proposed transaction"),
		newActionCmd(ctx, flags, "queue", "Queue an approved transaction in the timelock"),
		newActionCmd(ctx, flags, "execute", "Execute a queued transaction whose delay has elapsed"),
		newActionCmd(ctx, flags, "revoke", "Revoke your approval of a transaction"),
		newPauseCmd(ctx, flags, true),
		newPauseCmd(ctx, flags, false),
		newEventsCmd(ctx, flags),
		newDoctorCmd(ctx, flags),
		newAccountCmd(flags),
	)

	// Execute the root command
	if err := rootCmd.Execute(); err != nil {
		logger.Fatal("Failed to execute command: %v", err)
	}
}
