// Package cli implements the dealscope command-line tool.  Commands run the
// valuation and cap-table services in-process against a local SQLite history,
// or call a DealScope API server when --server is given.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/DealScope/internal/config"
	"github.com/turtacn/DealScope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DealScope/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
	HistoryDB    string
	NoHistory    bool
	OrgID        string
	UserID       string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Options      *RootOptions
	OutputFormat string
	Verbose      bool
	NoColor      bool

	backendOnce sync.Once
	backend     Backend
	backendErr  error
}

// Backend opens the local or remote backend on first use.
func (c *CLIContext) Backend() (Backend, error) {
	c.backendOnce.Do(func() {
		if c.Options.ServerAddr != "" {
			c.backend, c.backendErr = newRemoteBackend(c.Options, c.Logger)
			return
		}
		c.backend, c.backendErr = newLocalBackend(c.Config, c.Options, c.Logger)
	})
	return c.backend, c.backendErr
}

func (c *CLIContext) close() error {
	if c.backend != nil {
		return c.backend.Close()
	}
	return nil
}

// NewRootCommand creates the root command with every subcommand attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dealscope",
		Short: "DealScope CLI: startup valuation, cap-table and exit waterfall modelling",
		Long: "DealScope values early-stage companies with the Scorecard, VC, Comparables,\n" +
			"Berkus and Risk Factor Summation methods, simulates priced rounds with the\n" +
			"option-pool shuffle and distributes exits through a preference waterfall.\n\n" +
			"Commands run locally against a SQLite run history unless --server is set.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return nil
			}
			_ = cliCtx.Logger.Sync()
			return cliCtx.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./dealscope.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "table", "output format (table, json, yaml, text)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "global operation timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "DealScope API server address, e.g. http://localhost:8080")
	pf.StringVar(&opts.HistoryDB, "history-db", "", "local SQLite history path (default from config)")
	pf.BoolVar(&opts.NoHistory, "no-history", false, "do not record local runs")
	pf.StringVar(&opts.OrgID, "org", "", "organisation ID recorded with each run")
	pf.StringVar(&opts.UserID, "user", "", "user ID recorded with each run")

	cmd.AddCommand(
		NewValuateCmd(),
		NewMethodsCmd(),
		NewCapTableCmd(),
		NewWaterfallCmd(),
		NewHistoryCmd(),
		NewCompsCmd(),
		newVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "table", "json", "yaml", "text":
	default:
		return errors.InvalidParam("unsupported output format").WithDetailf("output=%q", opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}
	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		Options:      opts,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}

	searchPaths := []string{"./dealscope.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".dealscope", "config.yaml"))
	}
	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return config.Load(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger creates a console logger on stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext returns the command context bounded by --timeout.
func commandContext(cmd *cobra.Command, cliCtx *CLIContext) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if cliCtx.Options.Timeout > 0 {
		return context.WithTimeout(ctx, cliCtx.Options.Timeout)
	}
	return context.WithCancel(ctx)
}

// runBackend runs fn against the configured backend under --timeout and
// prints what it returns.
func runBackend(cmd *cobra.Command, fn func(ctx context.Context, b Backend) (interface{}, error)) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	backend, err := cliCtx.Backend()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, cliCtx)
	defer cancel()

	out, err := fn(ctx, backend)
	if err != nil {
		return err
	}
	return PrintResult(cmd, out)
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, versionInfo{Version: Version, Commit: GitCommit, BuildDate: BuildDate})
		},
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

func (v versionInfo) String() string {
	return fmt.Sprintf("dealscope %s (commit: %s, built: %s)", v.Version, v.Commit, v.BuildDate)
}
