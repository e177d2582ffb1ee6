package main

import (
	"fmt"
	"io"
	"time"

	"github.com/shaneisley/collector/pkg/journal"
	"github.com/shaneisley/collector/pkg/window"
	"github.com/spf13/cobra"
)

// HistoryConfig holds the flags of the history subcommand
type HistoryConfig struct {
	Account string
	Limit   int
	Summary bool
}

// newAccountsCommand creates the accounts subcommand
func newAccountsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List configured accounts without revealing credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(cmd, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d account(s), API %s\n", len(cfg.Accounts), cfg.BaseURL)
			for _, account := range cfg.Accounts {
				fmt.Fprintf(out, "  %s\n", account)
			}
			return nil
		},
	}
}

// newHistoryCommand creates the history subcommand
func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var historyConfig HistoryConfig

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent claim events from the journal",
		Long: `Show recent claim events recorded in the SQLite journal, newest first.
The journal is written by the collector when journal is configured or
--journal is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(cmd, opts)
			if err != nil {
				return err
			}
			if cfg.Journal == "" {
				return fmt.Errorf("no journal configured; set journal in the config file or pass --journal")
			}

			j, err := journal.Open(cfg.Journal)
			if err != nil {
				return err
			}
			defer j.Close()

			if historyConfig.Summary {
				summaries, err := j.Summary(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to summarize journal: %w", err)
				}
				printSummary(cmd.OutOrStdout(), summaries)
				return nil
			}

			entries, err := j.Recent(cmd.Context(), historyConfig.Account, historyConfig.Limit)
			if err != nil {
				return fmt.Errorf("failed to read journal: %w", err)
			}
			printHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().StringVarP(&historyConfig.Account, "account", "a", "", "Only show events of this account")
	cmd.Flags().IntVarP(&historyConfig.Limit, "limit", "n", 20, "Maximum number of events to show")
	cmd.Flags().BoolVar(&historyConfig.Summary, "summary", false, "Show per-account totals instead of events")

	return cmd
}

func printHistory(out io.Writer, entries []*journal.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no claim events recorded")
		return
	}

	for _, e := range entries {
		when := e.OccurredAt.Local().Format(time.DateTime)
		switch e.Kind {
		case "claimed":
			fmt.Fprintf(out, "%s  %-12s claimed $%.2f  balance $%.2f  streak %d  next in %s\n",
				when, e.Account, e.RewardAmount, e.NewBalance, e.LoginStreak, window.FormatWait(e.NextWait))
		default:
			fmt.Fprintf(out, "%s  %-12s failed  %s during %s  retry in %s\n",
				when, e.Account, e.ErrorKind, e.Stage, window.FormatWait(e.NextWait))
		}
	}
}

func printSummary(out io.Writer, summaries []*journal.AccountSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "no claim events recorded")
		return
	}

	for _, s := range summaries {
		last := "never"
		if s.LastClaim != nil {
			last = s.LastClaim.Local().Format(time.DateTime)
		}
		fmt.Fprintf(out, "%-12s claims %d  failures %d  rewards $%.2f  last claim %s\n",
			s.Account, s.Claims, s.Failures, s.TotalRewards, last)
	}
}
