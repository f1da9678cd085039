package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bakeassist/bakeassist/internal/agent"
	"github.com/bakeassist/bakeassist/internal/agent/tools"
	"github.com/bakeassist/bakeassist/internal/config"
	"github.com/bakeassist/bakeassist/internal/security"
	"github.com/bakeassist/bakeassist/internal/store"
	syslogger "github.com/bakeassist/bakeassist/internal/system/logger"
	"github.com/bakeassist/bakeassist/internal/system/metrics"
	"github.com/bakeassist/bakeassist/internal/system/tasklog"
)

var configFile string

// loadConfig loads --config or the default config file.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFile(configFile)
	}
	return config.Load()
}

// mustLoadConfig falls back to defaults with a warning.
func mustLoadConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", styleWarn.Render("config:"), err)
		return config.Default()
	}
	return cfg
}

// overrideFlags are shared by commands that talk to the model and database.
type overrideFlags struct {
	port     int
	bind     string
	model    string
	provider string
	db       string
	verbose  bool
}

func (o *overrideFlags) register(cmd *cobra.Command, withServer bool) {
	if withServer {
		cmd.Flags().IntVarP(&o.port, "port", "p", 5000, "HTTP listen port")
		cmd.Flags().StringVar(&o.bind, "bind", "127.0.0.1", "HTTP bind address")
	}
	cmd.Flags().StringVar(&o.model, "model", "", "Model name (e.g. deepseek-r1)")
	cmd.Flags().StringVar(&o.provider, "provider", "", "Model provider: ollama, openai, openrouter, groq, deepseek, together, mistral")
	cmd.Flags().StringVar(&o.db, "db", "", "Postgres connection URL")
	cmd.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging")
}

func (o *overrideFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = o.port
	}
	if flags.Changed("bind") {
		cfg.Server.Bind = o.bind
	}
	if flags.Changed("model") {
		cfg.Model.Name = o.model
	}
	if flags.Changed("provider") {
		cfg.Model.Provider = strings.ToLower(o.provider)
	}
	if flags.Changed("db") {
		cfg.Database.URL = o.db
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	return cfg.Validate()
}

// setupLogging returns the process logger. The file manager is nil when the
// log directory cannot be used; logging then goes to stderr only.
func setupLogging(cfg config.LogConfig) (*slog.Logger, *syslogger.Manager) {
	mgr, err := syslogger.New(cfg)
	if err != nil {
		level, _ := syslogger.ParseLevel(cfg.Level)
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		logger.Warn("file logging unavailable", "error", err)
		slog.SetDefault(logger)
		return logger, nil
	}
	logger := mgr.NewLogger()
	if removed, err := mgr.Cleanup(); err == nil && removed > 0 {
		logger.Info("removed expired log files", "count", removed)
	}
	slog.SetDefault(logger)
	return logger, mgr
}

// app holds the wired runtime shared by serve and chat.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *store.Postgres
	models  *agent.ModelManager
	runner  *agent.Runner
	metrics *metrics.Metrics
	limiter security.Limiter
	audit   *tasklog.Store
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	db, err := store.Open(ctx, cfg.Database.URL, cfg.Database.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() error { db.Close(); return nil })

	models, err := agent.NewModelManager(cfg.Model, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("model provider: %w", err)
	}
	a.models = models

	registry, err := agent.NewToolRegistry(tools.Builtin(db, logger)...)
	if err != nil {
		a.Close()
		return nil, err
	}

	limiter, closeLimiter, err := security.NewLimiter(cfg.RateLimit)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.limiter = limiter
	a.closers = append(a.closers, closeLimiter)

	opts := []agent.RunnerOption{
		agent.WithMetrics(a.metrics),
		agent.WithModelName(models.Model()),
	}
	if cfg.TaskLog.Enabled {
		audit, err := tasklog.NewStore(cfg.TaskLog.Path)
		if err != nil {
			logger.Warn("task log unavailable, turns will not be audited", "error", err)
		} else {
			a.audit = audit
			a.closers = append(a.closers, audit.Close)
			if n, err := audit.Cleanup(cfg.TaskLog.MaxAgeDays, cfg.TaskLog.MaxRecords); err == nil && n > 0 {
				logger.Info("pruned task log", "removed", n)
			}
			opts = append(opts, agent.WithAuditLog(audit))
		}
	}

	a.runner = agent.NewRunner(cfg, models, registry, logger, opts...)
	logger.Info("tools registered", "count", len(registry.Specs()), "model", models.Model())
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
