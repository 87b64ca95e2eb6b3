package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finledger/recon-backend/internal/api"
	"github.com/finledger/recon-backend/internal/application/recon"
	"github.com/finledger/recon-backend/internal/domain/matcher"
	"github.com/finledger/recon-backend/internal/infrastructure/config"
	"github.com/finledger/recon-backend/internal/infrastructure/logging"
	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "", "Configuration file path (default: config.yaml, env fallback)")
	flag.Parse()

	// .env is optional; real environments set variables directly
	_ = godotenv.Load()

	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "api")

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	service := recon.NewService(store, recon.Config{
		AcceptThreshold: cfg.Matching.AcceptThreshold,
		Workers:         cfg.Matching.Workers,
		Matcher: matcher.Config{
			DateWindowDays: cfg.Matching.FuzzyDateWindowDays,
			Confidence:     cfg.Matching.FuzzyConfidence,
		},
	}, logging.NewLoggerWithSystem(cfg.Observability.Logging, "recon"))

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, service, logger)

	// Serve until interrupted, then drain in-flight requests
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("received signal", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("shutdown error", "error", err)
			os.Exit(1)
		}
	}
}
