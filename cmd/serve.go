package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/wxbridge/internal/bus"
	"github.com/nextlevelbuilder/wxbridge/internal/channels"
	"github.com/nextlevelbuilder/wxbridge/internal/channels/wechat"
	"github.com/nextlevelbuilder/wxbridge/internal/config"
	"github.com/nextlevelbuilder/wxbridge/internal/store/sqlite"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.Channels.WeChat.Enabled {
		slog.Error("wechat channel is not enabled; set channels.wechat.enabled or WXBRIDGE_SERVER_URL")
		os.Exit(1)
	}

	pairing, err := sqlite.Open(cfg.PairingDBPath(), cfg.Pairing.TTLDays)
	if err != nil {
		slog.Error("failed to open pairing store", "error", err)
		os.Exit(1)
	}
	defer pairing.Close()

	msgBus := bus.NewMessageBus(0)
	manager := channels.NewManager(msgBus)
	manager.RegisterChannel("wechat", wechat.New(&cfg.Channels.WeChat, cfg.Bridge, msgBus, pairing))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		os.Exit(1)
	}

	slog.Info("wxbridge running", "version", Version)
	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := manager.StopAll(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "error", err)
	}
}
