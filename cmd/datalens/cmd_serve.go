package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/server"
	"github.com/golovatskygroup/data-lens/internal/session"
)

var (
	serveAddr       string
	sessionIdleTime time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web interface",
	Long: `Start the HTTP server with the upload page, the quick report actions,
questions and charts.

Examples:
  datalens serve
  datalens serve --addr :8080 --config datalens.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().DurationVar(&sessionIdleTime, "session-idle", 2*time.Hour, "drop sessions idle for longer than this (0 keeps them)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	if serveAddr != "" {
		a.cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions := session.NewManager()
	if sessionIdleTime > 0 {
		go expireSessions(ctx, a, sessions, sessionIdleTime)
	}

	srv := server.New(a.cfg.Server, a.asst, sessions, server.Options{
		Artifacts: a.artifacts,
		Audit:     a.audit,
	}, a.log.Named("http"))
	return srv.Start(ctx)
}

func expireSessions(ctx context.Context, a *app, sessions *session.Manager, idle time.Duration) {
	t := time.NewTicker(idle / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			for _, id := range sessions.Expire(now.Add(-idle)) {
				n := a.artifacts.DeleteSession(id)
				a.log.Info("session expired", zap.String("session", id), zap.Int("artifacts", n))
			}
		}
	}
}
