package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"radioscribe/config"
	"radioscribe/internal/application"
	"radioscribe/internal/infra/gemini"
	"radioscribe/internal/infra/googlestt"
	"radioscribe/internal/infra/media"
	"radioscribe/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Local development keeps secrets in .env; hosted deployments
	// inject them as environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	credentials, err := cfg.CredentialsJSON()
	if err != nil {
		logger.Error("loading Google credentials", "error", err)
		os.Exit(1)
	}

	sttClient, err := googlestt.NewClient(ctx, credentials, googlestt.Options{
		Language:     cfg.Google.Language,
		Model:        cfg.Google.Model,
		SampleRate:   cfg.Google.SampleRate,
		PhraseHints:  cfg.Google.PhraseHints,
		PhraseBoost:  cfg.Google.PhraseBoost,
		ChunkSeconds: cfg.Google.ChunkSeconds,
		MaxInlineMB:  cfg.Google.MaxInlineMB,
	}, logger)
	if err != nil {
		logger.Error("creating Speech-to-Text client", "error", err)
		os.Exit(1)
	}
	defer sttClient.Close()

	geminiClient := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.MaxInlineMB)

	processor := application.NewProcessor(media.NewFFmpeg(), sttClient, geminiClient, logger)

	server := web.NewServer(web.Config{
		Addr:        cfg.Server.Addr,
		AuthToken:   cfg.Server.AuthToken,
		MaxUploadMB: cfg.Server.MaxUploadMB,
		TempDir:     cfg.Server.TempDir,
	}, processor, logger)

	if err := server.Start(ctx); err != nil {
		logger.Error("starting server", "error", err)
		os.Exit(1)
	}

	logger.Info("radioscribe ready",
		"addr", cfg.Server.Addr,
		"stt_model", cfg.Google.Model,
		"gemini_model", cfg.Gemini.Model,
	)

	<-ctx.Done()

	if err := server.Stop(); err != nil {
		logger.Error("stopping server", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.Log) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
