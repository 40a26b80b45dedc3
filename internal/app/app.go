// Package app wires the logvault services together and manages their lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/logvault/logvault/internal/archive"
	"github.com/logvault/logvault/internal/codec"
	"github.com/logvault/logvault/internal/coldstore"
	"github.com/logvault/logvault/internal/config"
	"github.com/logvault/logvault/internal/hotstore"
	"github.com/logvault/logvault/internal/retention"
	"github.com/logvault/logvault/internal/retrieval"

	apihttp "github.com/logvault/logvault/internal/api/http"
)

// App holds all engine components and running services.
type App struct {
	config *config.Config

	hot     hotstore.Store
	cold    coldstore.BlobStore
	codec   *codec.Codec
	job     *archive.Job
	service *retrieval.Service
	monitor *retention.Monitor
	daemon  *archive.Daemon

	httpServer *http.Server
}

// New creates the application with all dependencies injected from config.
// Configuration errors are fatal here; the engine must not come up half-wired.
func New(cfg *config.Config) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	a := &App{config: cfg}

	algorithm, err := codec.ParseAlgorithm(cfg.Archive.Compression)
	if err != nil {
		return nil, err
	}
	a.codec, err = codec.New(algorithm)
	if err != nil {
		return nil, err
	}

	a.hot, err = hotstore.NewSQLiteStore(cfg.HotStore.Path)
	if err != nil {
		return nil, err
	}

	a.cold, err = newColdStore(cfg)
	if err != nil {
		a.hot.Close()
		return nil, err
	}

	a.job = archive.NewJob(a.hot, a.cold, a.codec, archive.NewLocker(), archive.Config{
		RetentionYears: cfg.Archive.RetentionYears,
		StepTimeout:    cfg.Archive.StepTimeout,
		LockTTL:        cfg.Archive.LockTTL,
	})
	a.service = retrieval.NewService(a.cold, a.codec, 0)
	a.monitor = retention.NewMonitor(a.cold, cfg.Retention.WindowDays)
	a.daemon = archive.NewDaemon(a.job, a.monitor,
		cfg.Archive.RunInterval, cfg.Retention.ScanInterval, cfg.Retention.WindowDays)

	return a, nil
}

// newColdStore builds the configured blob store backend.
func newColdStore(cfg *config.Config) (coldstore.BlobStore, error) {
	switch cfg.ColdStore.Type {
	case "s3":
		class, err := coldstore.ParseStorageClass(cfg.ColdStore.ArchiveTier)
		if err != nil {
			return nil, err
		}
		s3cfg := coldstore.DefaultS3Config()
		s3cfg.Region = cfg.ColdStore.S3.Region
		s3cfg.Endpoint = cfg.ColdStore.S3.Endpoint
		s3cfg.UsePathStyle = cfg.ColdStore.S3.UsePathStyle
		s3cfg.ArchiveStorageClass = class
		return coldstore.NewS3Store(context.Background(), cfg.ColdStore.S3.Bucket, s3cfg)
	case "local":
		return coldstore.NewLocalStore(cfg.ColdStore.Path)
	default:
		return nil, fmt.Errorf("app: unknown cold store type %q", cfg.ColdStore.Type)
	}
}

// Job returns the archival job for one-shot invocations.
func (a *App) Job() *archive.Job {
	return a.job
}

// HotStore returns the live store gateway.
func (a *App) HotStore() hotstore.Store {
	return a.hot
}

// Retrieval returns the retrieval service.
func (a *App) Retrieval() *retrieval.Service {
	return a.service
}

// Monitor returns the retention monitor.
func (a *App) Monitor() *retention.Monitor {
	return a.monitor
}

// Start brings up the configured services.
func (a *App) Start(ctx context.Context) error {
	if a.config.ShouldRunArchiver() {
		if err := a.daemon.Start(ctx); err != nil {
			return err
		}
		log.Printf("app: archival daemon started (interval %v)", a.config.Archive.RunInterval)
	}

	if a.config.ShouldRunAPI() {
		a.httpServer = a.buildHTTPServer()
		go func() {
			log.Printf("app: admin API listening on %s", a.config.HTTP.Addr)
			if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("app: HTTP server error: %v", err)
			}
		}()
	}

	return nil
}

// buildHTTPServer assembles the admin/compliance API routes.
func (a *App) buildHTTPServer() *http.Server {
	mw := apihttp.DefaultMiddleware()
	retentionHandler := apihttp.NewRetentionHandler(a.monitor, a.config.Retention.WindowDays)

	mux := http.NewServeMux()
	mux.Handle("/v1/archive", mw(apihttp.NewArchiveHandler(a.job)))
	mux.Handle("/v1/logs", mw(apihttp.NewLogsHandler(a.service)))
	mux.Handle("/v1/retention/summary", mw(http.HandlerFunc(retentionHandler.Summary)))
	mux.Handle("/v1/retention/expiring", mw(http.HandlerFunc(retentionHandler.Expiring)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})

	return &http.Server{
		Addr:         a.config.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.config.HTTP.ReadTimeout,
		WriteTimeout: a.config.HTTP.WriteTimeout,
		IdleTimeout:  a.config.HTTP.IdleTimeout,
	}
}

// Stop shuts down services gracefully: daemon first so no run starts while
// the stores are closing, then the HTTP server, then the hot store.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error

	if a.daemon != nil {
		if err := a.daemon.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if a.hot != nil {
		if err := a.hot.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
