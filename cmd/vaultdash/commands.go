package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/kelsos/securevault-tui/internal/backup"
	"github.com/kelsos/securevault-tui/internal/client"
	"github.com/kelsos/securevault-tui/internal/config"
	"github.com/kelsos/securevault-tui/internal/logger"
	"github.com/kelsos/securevault-tui/internal/models"
	"github.com/kelsos/securevault-tui/internal/services"
	"github.com/kelsos/securevault-tui/internal/utils"
	"github.com/kelsos/securevault-tui/internal/validation"
	"github.com/kelsos/securevault-tui/internal/wallet"
)

// openDashboard loads the configuration and connects to the RPC endpoint.
func openDashboard(ctx context.Context, cmd *cobra.Command, flags *flagValues) (*services.Dashboard, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, err
	}

	dashboard, err := services.NewDashboard(ctx, cfg, cliPrompt(cfg))
	if err != nil {
		return nil, err
	}

	if !dashboard.WaitForRPCReady(ctx) {
		dashboard.Cleanup()
		return nil, fmt.Errorf("RPC endpoint %s is not responding", cfg.RPCURL)
	}
	return dashboard, nil
}

func printSnapshot(w io.Writer, cfg *config.Config, snapshot models.VaultSnapshot) {
	fmt.Fprintf(w, "Vault:              %s (%s)\n", cfg.Contract().Hex(), cfg.NetworkName)
	fmt.Fprintf(w, "Balance:            %s ETH\n", utils.FormatEth(snapshot.Balance))
	fmt.Fprintf(w, "Required approvals: %d of %d owners\n", snapshot.RequiredApprovals, len(snapshot.Owners))
	fmt.Fprintf(w, "Timelock delay:     %d seconds\n", snapshot.MinDelay)
	fmt.Fprintf(w, "Total transactions: %d\n", snapshot.TransactionCount)
	fmt.Fprintf(w, "Paused:             %t\n", snapshot.Paused)
	fmt.Fprintln(w, "Owners:")
	for _, owner := range snapshot.Owners {
		fmt.Fprintf(w, "  %s\n", owner.Hex())
	}
}

func newStatusCmd(ctx context.Context, flags *flagValues) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the vault balance, owners and settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			dashboard, err := openDashboard(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer dashboard.Cleanup()

			out := cmd.OutOrStdout()
			cfg := dashboard.GetConfig()

			if watch {
				dashboard.Reader.OnUpdate(func(snapshot models.VaultSnapshot) {
					if snapshot.Err != nil {
						fmt.Fprintf(out, "Error fetching vault info: %v\n", snapshot.Err)
						return
					}
					printSnapshot(out, cfg, snapshot)
					fmt.Fprintln(out)
				})
				dashboard.Reader.Run(ctx, cfg.PollInterval)
				return nil
			}

			snapshot, err := dashboard.Reader.Fetch(ctx)
			if err != nil {
				return err
			}
			printSnapshot(out, cfg, snapshot)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep polling and print every refresh")
	return cmd
}

func newTxsCmd(ctx context.Context, flags *flagValues) *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "txs",
		Short: "List the most recent vault transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner common.Address
			if account != "" {
				if err := validation.ValidateAddress(account); err != nil {
					return err
				}
				owner = common.HexToAddress(account)
			}

			dashboard, err := openDashboard(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer dashboard.Cleanup()

			snapshot, err := dashboard.Reader.Fetch(ctx)
			if err != nil {
				return err
			}

			records, err := dashboard.Transactions.FetchRecent(ctx, snapshot.TransactionCount, owner)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No transactions yet")
				return nil
			}
			for _, record := range records {
				actions := models.AvailableActions(record)
				var names []string
				for _, action := range actions.Actions {
					names = append(names, string(action))
				}
				line := fmt.Sprintf("#%-3d %-9s %s ETH -> %s approvals=%d",
					record.ID, record.Status(), utils.FormatEth(record.Amount), record.Recipient.Hex(), record.ApprovalCount)
				if actions.YouApproved {
					line += " (you approved)"
				}
				if actions.WaitingTimelock {
					line += " (waiting for timelock)"
				}
				if len(names) > 0 {
					line += " [" + strings.Join(names, ", ") + "]"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&account, "account", "a", "", "Owner address used for the approval column")
	return cmd
}

// connected opens the dashboard and unlocks the owner account.
func connected(ctx context.Context, cmd *cobra.Command, flags *flagValues) (*services.Dashboard, error) {
	dashboard, err := openDashboard(ctx, cmd, flags)
	if err != nil {
		return nil, err
	}

	address, err := dashboard.Session.Connect(ctx)
	if err != nil {
		dashboard.Cleanup()
		return nil, err
	}
	logger.Info("Using account %s", address.Hex())
	return dashboard, nil
}

func printResult(w io.Writer, result services.SubmitResult) {
	fmt.Fprintf(w, "%s confirmed in block %s: %s\n", result.Op, result.Receipt.BlockNumber, result.TxHash.Hex())
}

func newProposeCmd(ctx context.Context, flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "propose <recipient> <amount-eth>",
		Short: "Propose a withdrawal from the vault",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Reject bad input before asking for a password.
			if err := validation.ValidateAddress(args[0]); err != nil {
				return err
			}
			if _, err := validation.ValidateAmount(args[1]); err != nil {
				return err
			}

			dashboard, err := connected(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer dashboard.Cleanup()

			result, err := dashboard.Submitter.Propose(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newActionCmd(ctx context.Context, flags *flagValues, name, short string) *cobra.Command {
	action := models.Action(name)

	return &cobra.Command{
		Use:   name + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
			}

			dashboard, err := connected(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer dashboard.Cleanup()

			result, err := dashboard.Submitter.Act(ctx, action, id)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newPauseCmd(ctx context.Context, flags *flagValues, pause bool) *cobra.Command {
	use, short := "unpause", "Resume vault operations"
	if pause {
		use, short = "pause", "Pause all vault operations"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dashboard, err := connected(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer dashboard.Cleanup()

			var result services.SubmitResult
			if pause {
				result, err = dashboard.Submitter.Pause(ctx)
			} else {
				result, err = dashboard.Submitter.Unpause(ctx)
			}
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newEventsCmd(ctx context.Context, flags *flagValues) *cobra.Command {
	var (
		blocks uint64
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print recent vault events",
		RunE: func(cmd *cobra.Command, args []string) error {
			dashboard, err := openDashboard(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer dashboard.Cleanup()

			out := cmd.OutOrStdout()
			printEvents := func(events []models.VaultEvent) {
				for _, event := range events {
					fmt.Fprintf(out, "[block %d] %s\n", event.BlockNumber, services.FormatEvent(event))
				}
			}

			activity := dashboard.Activity
			activity.SetLookback(blocks)

			fresh, err := activity.Poll(ctx)
			if err != nil {
				return err
			}
			if len(fresh) == 0 {
				fmt.Fprintf(out, "No events in the last %d blocks\n", blocks)
			}
			printEvents(fresh)
			if !follow {
				return nil
			}

			ticker := time.NewTicker(dashboard.GetConfig().PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					fresh, err := activity.Poll(ctx)
					if err != nil {
						logger.Warn("Failed to poll vault events: %v", err)
						continue
					}
					printEvents(fresh)
				}
			}
		},
	}
	cmd.Flags().Uint64Var(&blocks, "blocks", services.DefaultActivityLookback, "How many blocks back to scan")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new events")
	return cmd
}

func check(w io.Writer, ok bool, format string, args ...interface{}) {
	mark := "✅"
	if !ok {
		mark = "❌"
	}
	fmt.Fprintf(w, "%s %s\n", mark, fmt.Sprintf(format, args...))
}

func newDoctorCmd(ctx context.Context, flags *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, keystore and RPC connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := buildConfig(cmd, flags)

			fmt.Fprintln(out, "Configuration")
			fmt.Fprintf(out, "  contract:      %s\n", cfg.ContractAddress)
			fmt.Fprintf(out, "  network:       %s (chain %d)\n", cfg.NetworkName, cfg.ChainID)
			fmt.Fprintf(out, "  rpc:           %s\n", cfg.RPCURL)
			fmt.Fprintf(out, "  keystore:      %s\n", cfg.KeystoreDir)
			fmt.Fprintf(out, "  password set:  %t\n", cfg.Password != "")
			fmt.Fprintf(out, "  poll interval: %s\n", cfg.PollInterval)
			fmt.Fprintf(out, "  explorer:      %s\n\n", cfg.ExplorerURL)

			var failed bool
			if err := cfg.Validate(); err != nil {
				check(out, false, "configuration: %v", err)
				return err
			}
			check(out, true, "configuration is valid")

			ks, err := wallet.OpenKeystore(cfg.KeystoreDir)
			if err != nil {
				check(out, false, "keystore: %v", err)
				failed = true
			} else {
				addresses := wallet.ListAccounts(ks)
				check(out, len(addresses) > 0, "keystore holds %d account(s)", len(addresses))
				for _, address := range addresses {
					fmt.Fprintf(out, "     %s\n", address.Hex())
				}
				failed = failed || len(addresses) == 0
			}

			rpc, err := client.Dial(ctx, cfg)
			if err != nil {
				check(out, false, "rpc: %v", err)
				return errors.New("doctor found problems")
			}
			defer rpc.Close()
			eth := rpc.Eth()

			chainID, err := eth.ChainID(ctx)
			if err != nil {
				check(out, false, "rpc chain id: %v", err)
				return errors.New("doctor found problems")
			}
			onChain := chainID.Cmp(cfg.ExpectedChainID()) == 0
			check(out, onChain, "rpc reports chain %s, expected %d", chainID, cfg.ChainID)
			failed = failed || !onChain

			if head, err := eth.BlockNumber(ctx); err != nil {
				check(out, false, "latest block: %v", err)
				failed = true
			} else {
				check(out, true, "latest block %d", head)
			}

			code, err := eth.CodeAt(ctx, cfg.Contract(), nil)
			hasCode := err == nil && len(code) > 0
			check(out, hasCode, "contract code present at %s (%d bytes)", cfg.Contract().Hex(), len(code))
			failed = failed || !hasCode

			if balance, err := eth.BalanceAt(ctx, cfg.Contract(), nil); err == nil {
				fmt.Fprintf(out, "     vault holds %s ETH\n", utils.FormatEth(balance))
			}

			if failed {
				return errors.New("doctor found problems")
			}
			return nil
		},
	}
}

func newAccountCmd(flags *flagValues) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Manage keystore accounts",
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a new encrypted account in the keystore directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(cmd, flags)

			password := cfg.Password
			if password == "" {
				var err error
				password, err = wallet.ReadNewPassword(os.Stdin, os.Stderr)
				if err != nil {
					return err
				}
			}

			account, err := wallet.NewAccount(cfg.KeystoreDir, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\nKey file: %s\n", account.Address.Hex(), account.URL.Path)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts in the keystore directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(cmd, flags)
			ks, err := wallet.OpenKeystore(cfg.KeystoreDir)
			if err != nil {
				return err
			}
			for _, address := range wallet.ListAccounts(ks) {
				fmt.Fprintln(cmd.OutOrStdout(), address.Hex())
			}
			return nil
		},
	}

	var backupDir string
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the keystore key files into a zip",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := buildConfig(cmd, flags)
			path, count, err := backup.CreateKeystoreBackup(cfg.KeystoreDir, backupDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d key(s) to %s\n", count, path)
			return nil
		},
	}
	backupCmd.Flags().StringVarP(&backupDir, "backup-dir", "", "", "Directory where the backup will be stored (default: ~/backups)")

	accountCmd.AddCommand(newCmd, listCmd, backupCmd)
	return accountCmd
}
