package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/avolkov/farview/internal/application/config"
	"github.com/avolkov/farview/internal/application/constant"
)

var rootCmd = &cobra.Command{
	Use:   "farview",
	Short: "FarView is a peer-to-peer remote desktop application.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// mustConfig настраивает глобальный slog и читает конфигурацию.
func mustConfig() *config.Config {
	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	return cfg
}
