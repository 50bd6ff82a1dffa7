// Package cli implements the docnav command line, which works directly
// against a local document store.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/config"
	"github.com/dgallion1/docnav/internal/service"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	dbPath     string
	backend    string
	verbose    bool
}

// NewRootCmd builds a fresh command tree. version is reported by the
// version subcommand and the MCP server.
func NewRootCmd(version string) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "docnav",
		Short: "Navigate, chunk and edit legal documents",
		Long: `docnav imports documents into a local store, reads them as outlines,
chunks or anchored ranges, and applies text-anchored edit batches.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML config file (default $DOCNAV_CONFIG)")
	pf.StringVar(&g.dbPath, "db", "", "SQLite database path (overrides SQLITE_PATH)")
	pf.StringVar(&g.backend, "store", "", "store backend: sqlite, memory or remote")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		newImportCmd(g),
		newListCmd(g),
		newOutlineCmd(g),
		newChunkCmd(g),
		newRangeCmd(g),
		newEditCmd(g),
		newMCPCmd(g, version),
		newVersionCmd(version),
	)
	return root
}

// env is what a command needs once the store is open.
type env struct {
	cfg   config.Config
	store collab.Backend
	nav   *service.Navigator
	log   *slog.Logger
}

func (e *env) Close() error { return e.store.Close() }

func (g *globalFlags) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig applies the command line overrides on top of config.Load.
func (g *globalFlags) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}
	if g.backend != "" {
		cfg.StoreBackend = g.backend
	}
	if g.dbPath != "" {
		cfg.SQLitePath = g.dbPath
	}
	if err := cfg.ValidateStore(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// open loads configuration and opens the store. Callers must Close the env.
func (g *globalFlags) open(cmd *cobra.Command) (*env, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	log := g.logger(cmd)
	store, err := collab.Open(cfg.StoreBackend, cfg.SQLitePath, cfg.StoreURL, cfg.StoreAPIKey)
	if err != nil {
		return nil, err
	}
	nav := service.New(store, store, service.OptionsFromConfig(cfg), log)
	return &env{cfg: cfg, store: store, nav: nav, log: log}, nil
}

// withEnv runs fn against an open store and closes it afterwards.
func (g *globalFlags) withEnv(cmd *cobra.Command, fn func(*env) error) error {
	e, err := g.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			e.log.Warn("close store", "error", err)
		}
	}()
	return fn(e)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
