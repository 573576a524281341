// Package cli wires the routekit commands onto cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"routekit/internal/config"
	"routekit/internal/logger"
	"routekit/internal/parser"
	"routekit/internal/types"
)

// Flags holds the global flag values
type Flags struct {
	ConfigFile string
	Spec       string
	BaseURL    string
	LogLevel   string
	Verbose    bool
	Quiet      bool
}

// App carries what every command needs once the root command has run its setup
type App struct {
	version string
	flags   Flags
	config  *config.Config
	log     *logger.Logger
}

// New creates the application
func New(version string) *App {
	return &App{version: version, log: logger.Nop()}
}

// Config returns the loaded configuration
func (a *App) Config() *config.Config {
	return a.config
}

// Execute runs the CLI with the given arguments. The logger is closed
// when the command returns, whether or not it failed.
func (a *App) Execute(ctx context.Context, args []string) (err error) {
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	root := a.Command()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Close releases the log file and falls back to a no-op logger
func (a *App) Close() error {
	err := a.log.Close()
	a.log = logger.Nop()
	return err
}

// Command builds the root command with all subcommands
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:     "routekit",
		Short:   "Exercise a REST API from its OpenAPI document",
		Version: a.version,
		Long: `routekit reads an OpenAPI document, builds an endpoint for every
operation, and sends each one with the params, body and form data of a
fixture file.

Generate a fixture template with "routekit template", fill it in by hand,
from a database ("routekit fill") or with a language model
("routekit suggest"), then run it with "routekit run".`,
		PersistentPreRunE: a.setup,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.flags.ConfigFile, "config", "", "config file (default is "+config.DefaultPath+")")
	flags.StringVar(&a.flags.Spec, "spec", "", "OpenAPI document path or URL (overrides spec.source)")
	flags.StringVar(&a.flags.BaseURL, "base-url", "", "API base URL (overrides target.base_url)")
	flags.StringVar(&a.flags.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	flags.BoolVarP(&a.flags.Quiet, "quiet", "q", false, "minimal output (shortcut for --log-level=warn)")

	root.SetVersionTemplate("routekit {{.Version}}\n")

	root.AddCommand(
		a.newInspectCommand(),
		a.newTemplateCommand(),
		a.newRunCommand(),
		a.newFillCommand(),
		a.newSuggestCommand(),
	)
	return root
}

// setup is called before any command runs.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.flags.ConfigFile)
	if err != nil {
		return err
	}
	if a.flags.Spec != "" {
		cfg.Spec.Source = a.flags.Spec
	}
	if a.flags.BaseURL != "" {
		cfg.Target.BaseURL = a.flags.BaseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	switch {
	case a.flags.LogLevel != "":
		cfg.Log.Level = a.flags.LogLevel
	case a.flags.Verbose:
		cfg.Log.Level = "debug"
	case a.flags.Quiet:
		cfg.Log.Level = "warn"
	}

	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.config, a.log = cfg, log
	cmd.SetContext(logger.WithContext(cmd.Context(), &log.Logger))
	return nil
}

// operations parses the configured OpenAPI document
func (a *App) operations(ctx context.Context) ([]types.Operation, error) {
	if a.config.Spec.Source == "" {
		return nil, errors.New("no OpenAPI document configured: set spec.source or pass --spec")
	}
	p := parser.NewSwaggerParser(a.config.Spec.Source, parser.WithLogger(a.log.Logger))
	ops, err := p.ParseOperations(ctx)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Int("operations", len(ops)).Str("source", a.config.Spec.Source).Msg("parsed document")
	return ops, nil
}

// ContextWithSignals creates a context that is cancelled on SIGINT or SIGTERM.
func ContextWithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
