package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/OpsCopilot/internal/api"
	"github.com/BTreeMap/OpsCopilot/internal/console"
	"github.com/BTreeMap/OpsCopilot/internal/flow"
	"github.com/BTreeMap/OpsCopilot/internal/genai"
	"github.com/BTreeMap/OpsCopilot/internal/lockfile"
	"github.com/BTreeMap/OpsCopilot/internal/preferences"
	"github.com/BTreeMap/OpsCopilot/internal/recovery"
	"github.com/BTreeMap/OpsCopilot/internal/store"
	"github.com/BTreeMap/OpsCopilot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for OpsCopilot state data
	DefaultStateDir = "/var/lib/opscopilot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "opscopilot.db"
	// shutdownTimeout bounds graceful API shutdown
	shutdownTimeout = 10 * time.Second
)

func main() {
	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(config, os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Console mode keeps stdout for the conversation
	logOut := io.Writer(os.Stdout)
	if flags.console {
		logOut = os.Stderr
	}
	initializeLogger(logOut, flags.debug)

	if err := run(flags); err != nil {
		slog.Error("OpsCopilot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("OpsCopilot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir    string
	DatabaseURL string
	OpenAIKey   string
	OpenAIModel string
	APIAddr     string
	DelayScale  float64
	Debug       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir    string
	dbDSN       string
	openaiKey   string
	openaiModel string
	apiAddr     string
	delayScale  float64
	debug       bool
	console     bool
}

// initializeLogger installs a text handler as the default logger
func initializeLogger(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:    util.GetEnvDefault("OPSCOPILOT_STATE_DIR", DefaultStateDir),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: util.GetEnvDefault("OPENAI_MODEL", genai.DefaultModel),
		APIAddr:     util.GetEnvDefault("API_ADDR", api.DefaultAddr),
		DelayScale:  util.ParseFloatEnv("OPSCOPILOT_DELAY_SCALE", 1),
		Debug:       util.ParseBoolEnv("OPSCOPILOT_DEBUG", false),
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"OPSCOPILOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"OPSCOPILOT_DELAY_SCALE", config.DelayScale,
		"OPSCOPILOT_DEBUG", config.Debug)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config, args []string) (Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("OpsCopilot", flag.ContinueOnError)
	fs.StringVar(&flags.stateDir, "state-dir", config.StateDir, "state directory for OpsCopilot data (overrides $OPSCOPILOT_STATE_DIR)")
	fs.StringVar(&flags.dbDSN, "db-dsn", config.DatabaseURL, "database DSN, a SQLite path or PostgreSQL URL; empty keeps everything in memory (overrides $DATABASE_URL)")
	fs.StringVar(&flags.openaiKey, "openai-api-key", config.OpenAIKey, "OpenAI API key for fallback replies (overrides $OPENAI_API_KEY)")
	fs.StringVar(&flags.openaiModel, "openai-model", config.OpenAIModel, "OpenAI model (overrides $OPENAI_MODEL)")
	fs.StringVar(&flags.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.Float64Var(&flags.delayScale, "delay-scale", config.DelayScale, "multiplier for scripted flow delays (overrides $OPSCOPILOT_DELAY_SCALE)")
	fs.BoolVar(&flags.debug, "debug", config.Debug, "debug logging and OpenAI call dumps (overrides $OPSCOPILOT_DEBUG)")
	fs.BoolVar(&flags.console, "console", false, "run one interactive session on the terminal instead of the API server")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// Follow a moved state directory when the DSN is the default SQLite path
	defaultDSN := filepath.Join(config.StateDir, DefaultDBFileName)
	if flags.dbDSN == defaultDSN && flags.stateDir != config.StateDir {
		flags.dbDSN = filepath.Join(flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", flags.stateDir,
		"dbDSN_set", flags.dbDSN != "",
		"openaiKeySet", flags.openaiKey != "",
		"openaiModel", flags.openaiModel,
		"apiAddr", flags.apiAddr,
		"delayScale", flags.delayScale,
		"debug", flags.debug,
		"console", flags.console)
	return flags, nil
}

// ensureDirectoriesExist creates the state directory and the SQLite database directory
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{flags.stateDir}
	if flags.dbDSN != "" && store.DetectDSNType(flags.dbDSN) == "sqlite" {
		dirs = append(dirs, filepath.Dir(flags.dbDSN))
	}
	for _, dir := range dirs {
		slog.Debug("Creating state directory", "dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return nil
	}
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		storeOpts = append(storeOpts, store.WithPostgresDSN(flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(flags.dbDSN))
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(flags.openaiKey))
	}
	if flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(flags.openaiModel))
	}
	if flags.debug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, flags.stateDir))
	}
	return genaiOpts
}

// buildFlowOptions constructs the options shared by every session
func buildFlowOptions(flags Flags, responder flow.Responder) []flow.Option {
	delays := flow.DefaultDelays()
	delays.Scale = flags.delayScale
	flowOpts := []flow.Option{flow.WithDelays(delays)}
	if responder != nil {
		flowOpts = append(flowOpts, flow.WithResponder(responder))
	}
	return flowOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, st store.Store, theme *preferences.Theme, flowOpts []flow.Option) []api.Option {
	apiOpts := []api.Option{
		api.WithStore(st),
		api.WithTheme(theme),
		api.WithFlowOptions(flowOpts...),
	}
	if flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(flags.apiAddr))
	}
	return apiOpts
}

// newResponder returns an OpenAI responder when a key is configured, or nil for canned replies
func newResponder(flags Flags) flow.Responder {
	if flags.openaiKey == "" {
		slog.Info("No OpenAI API key configured, fallback replies are canned")
		return nil
	}
	client, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		slog.Warn("Failed to create GenAI client, fallback replies are canned", "error", err)
		return nil
	}
	return client
}

// run wires the modules together and blocks until the console exits or the server stops
func run(flags Flags) error {
	if err := ensureDirectoriesExist(flags); err != nil {
		return err
	}

	mode := "api"
	if flags.console {
		mode = "console"
	}
	lock, err := lockfile.AcquireLock(flags.stateDir, mode)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release state directory lock", "error", err)
		}
	}()

	slog.Info("Bootstrapping OpsCopilot", "mode", mode, "state_dir", flags.stateDir)
	st, err := store.New(buildStoreOptions(flags)...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Flow state persisted by a previous process has no live session behind it
	rm := recovery.NewRecoveryManager(st)
	rm.RegisterRecoverable(&recovery.FlowStateSweeper{})
	if err := rm.RecoverAll(ctx); err != nil {
		slog.Warn("Recovery finished with errors", "error", err)
	}

	theme, err := preferences.Load(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}
	flowOpts := buildFlowOptions(flags, newResponder(flags))

	if flags.console {
		return runConsole(ctx, st, theme, flowOpts)
	}
	return runServer(ctx, buildAPIOptions(flags, st, theme, flowOpts))
}

// runConsole runs one terminal session backed by the store
func runConsole(ctx context.Context, st store.Store, theme *preferences.Theme, flowOpts []flow.Option) error {
	opts := append([]flow.Option{
		flow.WithArchive(st),
		flow.WithStateManager(flow.NewStoreBasedStateManager(st)),
	}, flowOpts...)
	ctrl := flow.NewController(opts...)
	defer ctrl.Close()
	return console.New(ctrl, theme, os.Stdin, os.Stdout).Run(ctx)
}

// runServer serves the API until ctx is cancelled
func runServer(ctx context.Context, apiOpts []api.Option) error {
	srv, err := api.NewServer(apiOpts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown failed: %w", err)
	}
	return nil
}
