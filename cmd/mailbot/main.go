// main.go: mailbot binary entry point
//
// Copyright (C) 2026 Stormy-RPG
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	mailbot "github.com/stormy-rpg/telegram-mail-bot"
	_ "github.com/stormy-rpg/telegram-mail-bot/cogs"
)

var version = "1.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mailbot",
		Short:        "Telegram mail-forwarding bot with hot-reloadable extensions",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}

	cmd.Flags().String("mode", "", "operation mode: production or development")
	cmd.Flags().String("config", "", "path to the YAML configuration file")
	cmd.Flags().Bool("watch", false, "enable filesystem-driven extension hot reload")

	viper.BindPFlag("mode", cmd.Flags().Lookup("mode"))
	viper.BindPFlag("config", cmd.Flags().Lookup("config"))
	viper.BindPFlag("watch", cmd.Flags().Lookup("watch"))
	viper.SetEnvPrefix("MAILBOT")
	viper.AutomaticEnv()

	return cmd
}

func run(ctx context.Context) error {
	cfgPath := viper.GetString("config")

	cfg := mailbot.DefaultHostConfig()
	if cfgPath != "" {
		loaded, err := mailbot.LoadHostConfig(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if mode := viper.GetString("mode"); mode != "" {
		cfg.Mode = mode
	}
	if viper.GetBool("watch") {
		cfg.Watch = true
	}
	cfg.Version = version
	if err := cfg.Validate(); err != nil {
		return err
	}

	token, err := lookupToken(cfg.Mode)
	if err != nil {
		return err
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	printBanner(cfg)

	client := mailbot.NewBotClient(token, mailbot.WithBotLogger(logger))
	host, err := mailbot.NewHost(cfg,
		mailbot.WithLogger(logger),
		mailbot.WithMessenger(client),
	)
	if err != nil {
		return err
	}

	host.OnStartup(func(ctx context.Context) error {
		me, err := client.GetMe(ctx)
		if err != nil {
			return err
		}
		logger.Info("Authorized with the Bot API", "username", me.Username, "mode", cfg.Mode)
		return host.LoadAll()
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := host.Start(ctx); err != nil {
		return err
	}
	defer host.Stop()

	var cfgWatcher *mailbot.ConfigWatcher
	if cfgPath != "" {
		cfgWatcher = mailbot.NewConfigWatcher(host, cfgPath)
		if err := cfgWatcher.Start(); err != nil {
			logger.Warn("Configuration watching unavailable", "error", err)
			cfgWatcher = nil
		} else {
			defer cfgWatcher.Stop()
		}
	}

	if engine := host.HTTP(); engine != nil {
		srv := &http.Server{Addr: cfg.HTTPAddr, Handler: engine}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	poller := mailbot.NewPoller(client, host)
	logger.Info("Update polling started")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("Shutting down")
	return nil
}

// lookupToken reads the bot token for the given mode from the environment.
func lookupToken(mode string) (string, error) {
	name := strings.ToUpper(mode) + "_TELEGRAM_API_TOKEN"
	token := os.Getenv(name)
	if token == "" {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return token, nil
}

// buildLogger assembles the slog-backed host logger: console always, plus the
// configured log file when set.
func buildLogger(cfg mailbot.HostConfig) (mailbot.Logger, func(), error) {
	level := parseLevel(cfg.LogLevel)

	var w io.Writer = os.Stdout
	closeLog := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closeLog = func() { f.Close() }
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return mailbot.NewSlogAdapter(slog.New(handler)), closeLog, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printBanner(cfg mailbot.HostConfig) {
	fmt.Printf("mailbot %s (%s mode)\n", cfg.Version, cfg.Mode)
	fmt.Printf("extension root: %s  watch: %v\n\n", cfg.ExtensionRoot, cfg.Watch)
}
