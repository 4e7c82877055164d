package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/avolkov/farview/internal/app"
	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/capture"
	"github.com/avolkov/farview/internal/codec"
	"github.com/avolkov/farview/internal/identity"
	"github.com/avolkov/farview/internal/inject"
	"github.com/avolkov/farview/internal/session"
	"github.com/avolkov/farview/internal/transport"
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the host agent: share this machine's screen and input",
	Run: func(cmd *cobra.Command, args []string) {
		runHost()
	},
}

func init() {
	rootCmd.AddCommand(hostCmd)
}

func runHost() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := mustConfig()

	store, err := identity.NewStore()
	if err != nil {
		slog.Error("open identity store", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	src, err := capture.NewSystemSource()
	if err != nil {
		slog.Error("init screen capture", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	inj, err := inject.NewSystemInjector()
	if err != nil {
		slog.Error("init input injection", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	host := app.NewHost(app.HostDeps{
		Config:     cfg,
		Identity:   store,
		Source:     src,
		Injector:   inj,
		NewEncoder: func() (codec.Encoder, error) { return codec.NewRaw(), nil },
		NewEngine: func() (transport.Engine, error) {
			return transport.NewPion(transport.PionConfig{
				ICEServers: cfg.ICEServers(),
				Mode:       transport.ModeSendVideo,
			})
		},
		OnState: func(state session.State) {
			slog.Info("session state", slog.String(constant.State, string(state)))
		},
	})

	if err := host.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("host stopped", slog.Any(constant.Error, err))
		os.Exit(1)
	}
}
