// Package cmd defines and implements the CLI commands for the elementcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/element-crawler/internal/config"
	"github.com/JakeFAU/element-crawler/internal/id/uuid"
	"github.com/JakeFAU/element-crawler/internal/logging"
)

// configKeyAnnotation ties a flag to the config key it overrides.
const configKeyAnnotation = "config_key"

// envKeyType is the key for storing the command environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is the loaded configuration and logger shared by every subcommand.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	runID  string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "elementcrawler",
		Short: "Harvests interactive page elements and annotated screenshots.",
		Long: `elementcrawler drives headless Chrome over large URL lists taken from CDX
indexes. For every page it records the geometry and label of clickable and
tooltip-bearing elements as JSON lines next to a screenshot of the page.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand's RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, boundFlags(cmd.Flags()))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			runID, err := uuid.New().NewID()
			if err != nil {
				return fmt.Errorf("generate run id: %w", err)
			}
			logger = logger.With(zap.String("run_id", runID))
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger, runID: runID}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, err := resolveEnv(cmd.Context()); err == nil {
				_ = e.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.PersistentFlags().String("log-level", "info", "minimum log level (debug, info, warn, error)")
	bindFlag(cmd.PersistentFlags(), "log-level", "logging.level")

	cmd.AddCommand(newCrawlCmd(), newVisitCmd(), newDedupeHostsCmd())
	return cmd
}

// bindFlag marks the flag name on fs as an override for key. Unknown flags are ignored.
func bindFlag(fs *pflag.FlagSet, name, key string) {
	if fs.Lookup(name) == nil {
		return
	}
	_ = fs.SetAnnotation(name, configKeyAnnotation, []string{key})
}

// boundFlags collects every annotated flag keyed by its config key.
func boundFlags(fs *pflag.FlagSet) map[string]*pflag.Flag {
	out := map[string]*pflag.Flag{}
	fs.VisitAll(func(f *pflag.Flag) {
		if keys, ok := f.Annotations[configKeyAnnotation]; ok && len(keys) == 1 {
			out[keys[0]] = f
		}
	})
	return out
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("command environment not initialized")
	}
	return e, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Command execution failed:", err)
		stop()
		os.Exit(1)
	}
}
