package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaneisley/collector/pkg/claim"
	"github.com/shaneisley/collector/pkg/config"
	"github.com/shaneisley/collector/pkg/journal"
	"github.com/shaneisley/collector/pkg/logging"
	"github.com/shaneisley/collector/pkg/orchestrator"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// journalBacklog bounds the events waiting to be written to the journal
const journalBacklog = 256

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configFile string
	flagConfig config.Config
}

// flagFields maps CLI flag names to config keys for explicit-flag tracking
var flagFields = map[string]string{
	"log-level":    "log_level",
	"log-format":   "log_format",
	"base-url":     "base_url",
	"http-timeout": "http_timeout",
	"journal":      "journal",
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Claim rewards for every configured account, forever",
		Long: `collector keeps one claim loop per configured account. Each loop checks
whether the reward can be claimed, waits for the claim window, claims it and
then waits for the next window reported by the server. Failures back off for
60 seconds and start over; accounts never affect one another.

Configuration precedence (highest to lowest):
1. CLI flags
2. Environment variables (COLLECTOR_*)
3. Configuration file
4. Default values

The tool looks for configuration files in the following order:
1. File specified by --config flag
2. tokens.toml, .collector.toml, collector.toml, .collector.yaml or
   collector.yaml in the current directory
3. The same names in the home directory

Environment variables:
- COLLECTOR_LOG_LEVEL: debug, info, warn or error
- COLLECTOR_LOG_FORMAT: auto, text or json
- COLLECTOR_BASE_URL: API base URL
- COLLECTOR_HTTP_TIMEOUT: Per-request timeout (e.g., "30s")
- COLLECTOR_JOURNAL: Path of the SQLite claim journal (empty disables it)

EXAMPLES:
  # Run every account in ./tokens.toml
  collector

  # Debug logging as JSON, recording claims to a journal
  collector --log-level debug --log-format json --journal ~/.collector/journal.db

  # Show the last claims of one account
  collector history --account main --limit 10`,
		Args:          cobra.NoArgs,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollector(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Configuration file path")
	flags.StringVar(&opts.flagConfig.LogLevel, "log-level", "", "Log level (default: info)\n                                 Options: debug, info, warn, error")
	flags.StringVar(&opts.flagConfig.LogFormat, "log-format", "", "Log format (default: auto = text on a terminal, JSON otherwise)")
	flags.StringVar(&opts.flagConfig.BaseURL, "base-url", "", "API base URL (default: "+claim.DefaultBaseURL+")")
	flags.DurationVar(&opts.flagConfig.HTTPTimeout, "http-timeout", 0, "Per-request timeout (default: 30s)")
	flags.StringVar(&opts.flagConfig.Journal, "journal", "", "SQLite claim journal path (default: disabled)")

	cmd.AddCommand(newAccountsCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))

	return cmd
}

// resolveConfigPath returns the explicit --config path or the first
// configuration file found in the working or home directory
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	cwd, _ := os.Getwd()
	if found := config.FindConfigFile(cwd); found != "" {
		return found
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return config.FindConfigFile(homeDir)
	}
	return ""
}

// loadConfiguration loads configuration with full precedence support
func loadConfiguration(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	var flagConfig *config.Config
	var explicitFields map[string]bool

	for flagName, field := range flagFields {
		if !cmd.Flags().Changed(flagName) {
			continue
		}
		if explicitFields == nil {
			explicitFields = make(map[string]bool)
			flagConfig = &opts.flagConfig
		}
		explicitFields[field] = true
	}

	return config.Load(resolveConfigPath(opts.configFile), flagConfig, explicitFields)
}

// newLogger builds the single process logger from validated configuration
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New("collector", logging.Options{
		Level:  level,
		Format: format,
		Output: cmd.ErrOrStderr(),
	}), nil
}

// newFacadeFactory builds one HTTP client per account
func newFacadeFactory(cfg *config.Config) orchestrator.FacadeFactory {
	return func(account config.Account) (claim.Facade, error) {
		clientOpts := []claim.ClientOption{
			claim.WithBaseURL(cfg.BaseURL),
			claim.WithTimeout(cfg.HTTPTimeout),
		}
		if account.HasCookie() {
			clientOpts = append(clientOpts, claim.WithCookie(account.Cookie))
		}

		client, err := claim.NewClient(account.APIKey, clientOpts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func runCollector(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfiguration(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	logger.LogStart(len(cfg.Accounts), version)

	orchestratorOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return err
		}
		defer j.Close()

		writer := j.Async(journalBacklog, func(err error) {
			logger.LogError("write journal", err)
		})
		defer writer.Close()

		orchestratorOpts = append(orchestratorOpts, orchestrator.WithRecorder(writer))
		logger.Info("recording claims", "journal", j.Path())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = orchestrator.New(cfg.Accounts, newFacadeFactory(cfg), orchestratorOpts...).Run(ctx)
	if err != nil && ctx.Err() != nil {
		logger.Info("shutting down")
		return nil
	}
	return err
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
