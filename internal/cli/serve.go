package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bakeassist/bakeassist/internal/infra"
	"github.com/bakeassist/bakeassist/internal/interfaces/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Bake Assist HTTP server",
	Long: `Start the chat API.

Endpoints:
  GET  /                      welcome text
  GET  /health                liveness
  GET  /api/customers         customer list
  POST /api/chat              one chat turn (?customer_number=)
  GET  /api/chat/ws           chat over WebSocket (?customer_number=)
  GET  /metrics               Prometheus metrics

Default: http://127.0.0.1:5000`,
	RunE: runServe,
}

var serveFlags overrideFlags

func init() {
	serveFlags.register(serveCmd, true)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	if err := serveFlags.apply(cmd, cfg); err != nil {
		return err
	}

	if !infra.IsTruthyEnv("BAKEASSIST_NO_BANNER") {
		infra.PrintBanner(version)
	}

	logger, logMgr := setupLogging(cfg.Log)
	if logMgr != nil {
		defer logMgr.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []http.Option{http.WithMetrics(a.metrics)}
	if a.limiter != nil {
		opts = append(opts, http.WithLimiter(a.limiter))
	}
	srv := http.NewServer(cfg, a.runner, a.db, logger, opts...)

	logger.Info("starting Bake Assist",
		"version", version,
		"addr", cfg.ListenAddr(),
		"model", a.models.Model(),
		"rate_limit", cfg.RateLimit.Enabled,
		"task_log", a.audit != nil,
	)
	fmt.Println(styleSuccess.Render("Bake Assist ready") + " " + styleMuted.Render(fmt.Sprintf("http://%s", cfg.ListenAddr())))

	if err := srv.Start(ctx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
