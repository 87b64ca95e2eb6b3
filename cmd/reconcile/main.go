package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/finledger/recon-backend/internal/application/recon"
	"github.com/finledger/recon-backend/internal/domain/matcher"
	"github.com/finledger/recon-backend/internal/infrastructure/config"
	"github.com/finledger/recon-backend/internal/infrastructure/logging"
	"github.com/finledger/recon-backend/internal/infrastructure/storage"
)

// reconcile runs automatic matching over a statement and prints the
// resulting summary. Useful for one-off runs and local debugging
// without standing up the API server.
func main() {
	var (
		configFile    = flag.String("config", "", "Configuration file path (default: config.yaml, env fallback)")
		businessID    = flag.String("business", "", "Business id (required)")
		bankAccountID = flag.String("account", "", "Bank account id (required)")
		statementID   = flag.String("statement", "", "Statement id (required)")
		skipSummary   = flag.Bool("skip-summary", false, "Run matching only, do not build the summary")
		clearFirst    = flag.Bool("clear-variances", false, "Delete the statement's prior variances before the run")
	)
	flag.Parse()

	if *businessID == "" || *bankAccountID == "" || *statementID == "" {
		fmt.Fprintln(os.Stderr, "usage: reconcile -business <id> -account <id> -statement <id>")
		os.Exit(2)
	}

	_ = godotenv.Load()

	var cfg *config.Config
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "failed to load config:", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrEnv()
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "reconcile")

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
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *clearFirst {
		if err := store.DeleteVariancesByStatement(ctx, *statementID); err != nil {
			logger.Error("failed to clear variances", "error", err)
			os.Exit(1)
		}
	}

	matches, err := service.AutoMatch(ctx, *businessID, *statementID)
	if err != nil {
		logger.Error("auto-match failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("accepted %d match(es)\n", len(matches))
	for _, m := range matches {
		fmt.Printf("  line %-4d -> %s  %-10s confidence=%.2f  %s\n",
			m.LineIndex, m.TransactionID, m.MatchType, m.Confidence, m.Notes)
	}

	if *skipSummary {
		return
	}

	summary, err := service.BuildSummary(ctx, *businessID, *bankAccountID, *statementID)
	if err != nil {
		logger.Error("summary failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nstatement %s\n", summary.StatementID)
	fmt.Printf("  lines:     %d total, %d matched, %d unmatched (%.1f%%)\n",
		summary.TotalStatementLines, summary.MatchedLines, summary.UnmatchedLines, summary.MatchPercentage)
	fmt.Printf("  amounts:   %s total, %s matched, %s unmatched\n",
		summary.TotalStatementAmount, summary.MatchedAmount, summary.UnmatchedAmount)
	fmt.Printf("  variances: %d\n", len(summary.Variances))
	for _, v := range summary.Variances {
		fmt.Printf("    %s  %s  %s\n", v.VarianceType, v.Amount, v.Description)
	}
}
