package main

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/voicefit/voicefit/internal/config"
	"github.com/voicefit/voicefit/internal/rest"
	"github.com/voicefit/voicefit/internal/session"
	"github.com/voicefit/voicefit/internal/store"
	syncengine "github.com/voicefit/voicefit/internal/sync"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// httpClientTimeout bounds every remote request so a hung connection cannot
// stall a sync cycle indefinitely.
const httpClientTimeout = 30 * time.Second

// newRootCmd builds the fully-assembled root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "voicefit",
		Short:   "Offline-first fitness record sync",
		Long:    "Local-first storage and background cloud synchronization for voicefit workout records.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogCmd())

	return cmd
}

// appContext bundles the assembled stack for a command invocation.
type appContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Store    *store.Store
	Session  *session.Provider
	Orch     *syncengine.Orchestrator
	Interval time.Duration
}

// Close releases the stack's resources.
func (a *appContext) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("store close error", slog.String("error", err.Error()))
	}
}

// buildApp loads config and assembles store, session, remote client, engine,
// and orchestrator.
func buildApp() (*appContext, error) {
	bootstrapLogger := buildLogger(nil)

	cfg, err := config.Load(flagConfigPath, bootstrapLogger)
	if err != nil {
		return nil, err
	}

	logger := buildLogger(cfg)

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}

	provider := session.NewProvider(config.SessionPath(), cfg.Remote.AuthURL, logger)

	remote := rest.NewClient(
		cfg.Remote.BaseURL,
		cfg.Remote.APIKey,
		&http.Client{Timeout: httpClientTimeout},
		provider,
		logger,
	)

	engine := syncengine.NewEngine(&syncengine.EngineConfig{
		Store:           st,
		Remote:          remote,
		Tables:          cfg.Sync.Tables,
		WatermarkColumn: cfg.Sync.WatermarkColumn,
		Logger:          logger,
	})

	interval, err := cfg.Sync.TickDuration()
	if err != nil {
		st.Close()
		return nil, err
	}

	return &appContext{
		Cfg:      cfg,
		Logger:   logger,
		Store:    st,
		Session:  provider,
		Orch:     syncengine.NewOrchestrator(engine, interval, logger),
		Interval: interval,
	}, nil
}

// buildLogger creates an slog.Logger from config and CLI flags. Pass nil for
// the pre-config bootstrap. Config provides the baseline level and format;
// --verbose, --debug, and --quiet override it because CLI flags always win.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	format := "text"

	var out io.Writer = os.Stderr

	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}

		format = cfg.Logging.Format

		if cfg.Logging.File != "" {
			out = &lumberjack.Logger{
				Filename:   cfg.Logging.File,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
			}
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}

	return slog.New(slog.NewTextHandler(out, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
