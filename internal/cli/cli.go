// Package cli implements the itunes-scraper command-line interface.
//
// Every command is a thin wrapper around one operation of
// [itunes.Client]. Settings come from [config.Load]; per-command flags such
// as --country override them for a single run.
//
// # Commands
//
//   - search, collection, developer, similar: list app IDs
//   - details: full app records, one or many, to the terminal or an export
//   - ratings: star histogram summed over storefronts
//   - list: the country, collection and category tables
//   - serve: the HTTP API
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/digitalmethodsinitiative/itunes-app-scraper/internal/config"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/buildinfo"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/integrations/itunes"
	"github.com/digitalmethodsinitiative/itunes-app-scraper/pkg/sink"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = "itunes-scraper"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// progressOut receives spinner frames. Spinners are discarded unless
	// the logger writes to a terminal.
	progressOut io.Writer

	configPath string
	cfg        config.Config

	// clientOpts are appended to the options derived from the config.
	clientOpts []itunes.Option
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:      newLogger(w, level),
		progressOut: terminalOrDiscard(w),
		cfg:         config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "itunes-scraper collects app metadata from the App Store",
		Long:         `itunes-scraper searches the App Store, lists its charts and developers, and collects app details and star ratings across storefronts.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/itunes-scraper/config.toml)")

	// Register all subcommands
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.collectionCommand())
	root.AddCommand(c.developerCommand())
	root.AddCommand(c.similarCommand())
	root.AddCommand(c.detailsCommand())
	root.AddCommand(c.ratingsCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// terminalOrDiscard returns w if it is a terminal, otherwise io.Discard.
func terminalOrDiscard(w io.Writer) io.Writer {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return w
	}
	return io.Discard
}

// =============================================================================
// Client Factory
// =============================================================================

// newClient builds a storefront client from the loaded config. The returned
// func releases the error sink and must be called when the command is done.
func (c *CLI) newClient(ctx context.Context) (*itunes.Client, func(), error) {
	s, closeSink, err := c.newSink(ctx)
	if err != nil {
		return nil, nil, err
	}

	opts := []itunes.Option{
		itunes.WithLogger(c.Logger),
		itunes.WithSink(s),
		itunes.WithHTTPClient(integrations.NewHTTPClient()),
		itunes.WithTimeout(c.cfg.Timeout.Duration),
		itunes.WithCountry(c.cfg.Country),
		itunes.WithLang(c.cfg.Lang),
		itunes.WithRetryDelay(c.cfg.RetryDelay.Duration),
		itunes.WithBatchDelay(c.cfg.BatchDelay.Duration),
		itunes.WithRatingsDelay(c.cfg.RatingsDelay.Duration),
	}
	client, err := itunes.NewClient(append(opts, c.clientOpts...)...)
	if err != nil {
		closeSink()
		return nil, nil, err
	}
	return client, closeSink, nil
}

// newSink opens the error sink named by the config.
func (c *CLI) newSink(ctx context.Context) (sink.Sink, func(), error) {
	switch strings.ToLower(c.cfg.Sink.Backend) {
	case config.SinkNone:
		return sink.Null, func() {}, nil
	case config.SinkRedis:
		s, err := sink.DialRedis(ctx, c.cfg.Sink.RedisAddr, c.cfg.Sink.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis sink: %w", err)
		}
		return s, func() { c.closeQuietly("redis sink", s) }, nil
	default:
		s := sink.NewFileSink(c.cfg.Sink.Dir, c.cfg.Sink.MaxSizeMB)
		return s, func() { c.closeQuietly("file sink", s) }, nil
	}
}

func (c *CLI) closeQuietly(what string, cl io.Closer) {
	if err := cl.Close(); err != nil {
		c.Logger.Warn("close failed", "what", what, "err", err)
	}
}

// =============================================================================
// Input Helpers
// =============================================================================

// readIDs returns args, or the whitespace-separated words of r when args is
// the single argument "-".
func readIDs(args []string, r io.Reader) ([]string, error) {
	if len(args) != 1 || args[0] != "-" {
		return args, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read IDs: %w", err)
	}
	return strings.Fields(string(data)), nil
}

// openOutput returns stdout for "" and "-", otherwise a created file.
func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
