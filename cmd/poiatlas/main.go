package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"poiatlas/internal/api"
	"poiatlas/internal/app"
	"poiatlas/pkg/config"
	"poiatlas/pkg/db/maintenance"
	"poiatlas/pkg/logging"
	"poiatlas/pkg/probe"
	"poiatlas/pkg/resolver"
	"poiatlas/pkg/version"
)

var (
	configPath     = flag.String("config", "configs/poiatlas.yaml", "Path to config file")
	initConfig     = flag.Bool("init-config", false, "Generate default config file and exit")
	checkProviders = flag.Bool("check-providers", false, "Probe provider reachability at startup")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()
	logging.EnableTrace = strings.EqualFold(cfg.Log.Server.Level, "TRACE")

	slog.Info("poiatlas started", "version", version.Version, "cache_backend", cfg.Cache.Backend)

	svcs, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer svcs.Close()

	if err := maintenance.Run(ctx, svcs.Store, svcs.DB, app.MaintenanceMaxAge); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	// Startup Probes
	probes := svcs.Probes()
	if *checkProviders {
		probes = append(probes, app.ProviderProbes(cfg)...)
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	ctrl := resolver.New(svcs.Enricher, svcs.Records, resolver.OptionsFrom(cfg.Cache))
	defer ctrl.Close()
	go ctrl.StartPruning(ctx, 10*time.Minute)

	return runServer(ctx, cfg, svcs, ctrl)
}

func runServer(ctx context.Context, cfg *config.Config, svcs *app.Services, ctrl *resolver.Controller) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	lang := "pt"
	if len(cfg.Enrich.Languages) > 0 {
		lang = cfg.Enrich.Languages[0]
	}

	srv := api.NewServer(cfg.Server.Address,
		api.NewPOIHandler(ctrl),
		api.NewGalleryHandler(svcs.Enricher, lang),
		api.NewStatsHandler(svcs.Tracker, ctrl),
		shutdownFunc,
	)
	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.RequestLogger.Info("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
