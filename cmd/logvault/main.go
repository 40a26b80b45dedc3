// Package main implements the unified logvault binary.
// It runs the archival daemon and admin API as a long-lived service, or
// performs one-shot operations (archive a day, import a backfill file,
// print retention reports) and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/logvault/logvault/internal/app"
	"github.com/logvault/logvault/internal/config"
	"github.com/logvault/logvault/internal/ingest"
	"github.com/logvault/logvault/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		mode        string
		httpAddr    string
		archiveDate string
		importFile  string
		summary     bool
		expiring    int
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&mode, "mode", "", "Service mode: all, archiver, api")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the admin API")
	flag.StringVar(&archiveDate, "archive-date", "", "Archive one day (YYYY-MM-DD) and exit")
	flag.StringVar(&importFile, "import-file", "", "Import a JSON-lines file into the hot store and exit")
	flag.BoolVar(&summary, "summary", false, "Print the archive inventory summary and exit")
	flag.IntVar(&expiring, "expiring", 0, "Scan for blobs expiring within N days and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "logvault - Log Archival & Retention Engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: logvault [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  logvault --data-dir /data/logvault\n")
		fmt.Fprintf(os.Stderr, "  logvault --archive-date 2025-01-15\n")
		fmt.Fprintf(os.Stderr, "  logvault --import-file backfill.jsonl\n")
		fmt.Fprintf(os.Stderr, "  logvault --config /etc/logvault/config.yaml --mode api\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  LOGVAULT_MODE              Service mode (all, archiver, api)\n")
		fmt.Fprintf(os.Stderr, "  LOGVAULT_DATA_DIR          Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  LOGVAULT_COLDSTORE_TYPE    Cold store type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  LOGVAULT_S3_BUCKET         S3 bucket for cold storage\n")
		fmt.Fprintf(os.Stderr, "  LOGVAULT_ARCHIVE_RETENTION_YEARS  Retention horizon in years\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("logvault version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Load .env before reading LOGVAULT_* variables
	_ = godotenv.Load()

	cfg, err := loadConfig(configFile, dataDir, mode, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// One-shot operations run and exit without starting services.
	switch {
	case archiveDate != "":
		runArchive(ctx, application, archiveDate)
		return
	case importFile != "":
		runImport(ctx, application, importFile)
		return
	case summary:
		runSummary(ctx, application)
		return
	case expiring > 0:
		runExpiring(ctx, application, expiring)
		return
	}

	printBanner(cfg)

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// runArchive performs a one-shot archival run for a single day.
func runArchive(ctx context.Context, application *app.App, rawDate string) {
	defer application.Stop(ctx)

	date, err := types.ParseDate(rawDate)
	if err != nil {
		log.Fatalf("Invalid archive date: %v", err)
	}

	result, err := application.Job().ArchiveDay(ctx, date)
	if err != nil {
		log.Fatalf("Archival run aborted: %v", err)
	}

	for _, tr := range result.Archived {
		log.Printf("  %-15s count=%d size=%d skipped=%v", tr.Type, tr.Count, tr.SizeBytes, tr.Skipped)
	}
	if !result.Success {
		log.Fatalf("Archival run finished with errors: %v", result.Errors)
	}
	log.Printf("Archived %s", date)
}

// runImport loads a JSON-lines backfill file into the hot store.
func runImport(ctx context.Context, application *app.App, path string) {
	defer application.Stop(ctx)

	loader := ingest.NewLoader(application.HotStore(), 0)
	n, err := loader.LoadFile(ctx, path)
	if err != nil {
		log.Fatalf("Import failed after %d records: %v", n, err)
	}
	log.Printf("Imported %d records from %s", n, path)
}

// runSummary prints the archive inventory summary.
func runSummary(ctx context.Context, application *app.App) {
	defer application.Stop(ctx)

	s, err := application.Monitor().Compute(ctx)
	if err != nil {
		log.Fatalf("Summary failed: %v", err)
	}
	log.Printf("Archive summary: %s", s)
}

// runExpiring scans for blobs approaching retention expiry.
func runExpiring(ctx context.Context, application *app.App, windowDays int) {
	defer application.Stop(ctx)

	count, err := application.Monitor().ScanApproachingExpiry(ctx, windowDays)
	if err != nil {
		log.Fatalf("Expiry scan failed: %v", err)
	}
	log.Printf("%d blobs expire within %d days", count, windowDays)
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, mode, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("logvault %s - Log Archival & Retention Engine", version)
	log.Printf("Configuration:")
	log.Printf("  Mode:        %s", cfg.Mode)
	log.Printf("  Data Dir:    %s", cfg.DataDir)
	log.Printf("  Cold Store:  %s", cfg.ColdStore.Type)
	log.Printf("  Compression: %s", cfg.Archive.Compression)
	log.Printf("  Retention:   %d years", cfg.Archive.RetentionYears)

	if cfg.ShouldRunArchiver() {
		log.Printf("Archival daemon: every %v", cfg.Archive.RunInterval)
	}
	if cfg.ShouldRunAPI() {
		log.Printf("Admin API: %s", cfg.HTTP.Addr)
	}
}
