package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/application/metric"
	"github.com/avolkov/farview/internal/relay"
	"github.com/avolkov/farview/internal/relay/handlers"
	"github.com/avolkov/farview/internal/relay/postgres"
	"github.com/avolkov/farview/internal/relay/postgres/repository"
	"github.com/avolkov/farview/internal/relay/server"
	"github.com/avolkov/farview/internal/relay/usecase"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay server",
	Run: func(cmd *cobra.Command, args []string) {
		runRelay()
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

func runRelay() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := mustConfig()

	dbConn, err := postgres.NewPostgres(ctx, cfg.Relay.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	hostRepo := repository.NewHostRepo(dbConn)
	hostUsecase := usecase.NewHostUsecase([]byte(cfg.Relay.JWTSecret), hostRepo)

	hub := relay.NewHub(slog.Default())

	echoSrv := server.New(cfg,
		handlers.NewHostHandler(hostUsecase),
		handlers.NewWebSocketHandler(cfg, hub),
	)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Relay.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.Relay.MetricsPort)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down servers")
	case err := <-echoSrvCh:
		slog.Error("HTTP server failed", slog.Any(constant.Error, err))
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error("metrics server failed", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("shutdown metrics server", slog.Any(constant.Error, err))
	}
}
