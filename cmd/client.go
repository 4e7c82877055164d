package cmd

import (
	"context"
	"image"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/avolkov/farview/internal/app"
	"github.com/avolkov/farview/internal/application/constant"
	"github.com/avolkov/farview/internal/codec"
	"github.com/avolkov/farview/internal/domain"
	"github.com/avolkov/farview/internal/session"
	"github.com/avolkov/farview/internal/transport"
)

var clientRoom string

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Connect to a remote host and receive its screen",
	Run: func(cmd *cobra.Command, args []string) {
		runClient()
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientRoom, "room", "", "9-digit host identity to connect to")
	_ = clientCmd.MarkFlagRequired("room")

	rootCmd.AddCommand(clientCmd)
}

// runClient запускает headless-клиент: кадры и экраны уходят в лог,
// слой UI подключается через app.ClientDeps callbacks.
func runClient() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := mustConfig()

	client := app.NewClient(app.ClientDeps{
		Config:  cfg,
		Decoder: codec.NewRaw(),
		NewEngine: func() (transport.Engine, error) {
			return transport.NewPion(transport.PionConfig{
				ICEServers: cfg.ICEServers(),
				Mode:       transport.ModeRecvVideo,
			})
		},
		OnFrame: func(img *image.RGBA) {
			slog.Debug("frame received",
				slog.String("size", img.Bounds().Size().String()),
			)
		},
		OnScreens: func(screens []domain.ScreenDescriptor) {
			for _, s := range screens {
				slog.Info("host screen",
					slog.Int(constant.Screen, s.Index),
					slog.String("label", s.Label),
					slog.String("size", image.Pt(s.Width, s.Height).String()),
				)
			}
		},
		OnState: func(state session.State) {
			slog.Info("session state", slog.String(constant.State, string(state)))
		},
	})
	defer client.Close()

	if err := client.Connect(ctx, clientRoom); err != nil {
		slog.Error("connect", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	slog.Info("connected", slog.String(constant.RoomID, clientRoom))

	<-ctx.Done()
}
