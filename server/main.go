package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stackfire/internal/sim"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", envOr("STACKFIRE_ADDR", ":8080"), "HTTP listen address")
	dbPath := flag.String("db", envOr("STACKFIRE_DB", "stackfire.db"), "SQLite database path (empty disables accounts)")
	clientDir := flag.String("client", envOr("STACKFIRE_CLIENT", ""), "Path to client directory (default: ../client)")
	stagesDir := flag.String("stages", envOr("STACKFIRE_STAGES", "stages"), "Directory of stage YAML files")
	publicURL := flag.String("public-url", envOr("STACKFIRE_PUBLIC_URL", ""), "Base URL encoded in join QR codes")
	dev := flag.Bool("dev", envOr("STACKFIRE_DEV", "") != "", "Development logging")
	flag.Parse()

	log, err := newLogger(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log, *addr, *dbPath, resolveClientDir(*clientDir), *stagesDir, *publicURL); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// resolveClientDir falls back to the client next to the binary, then ../client
func resolveClientDir(dir string) string {
	if dir != "" {
		return dir
	}
	exe, _ := os.Executable()
	dir = filepath.Join(filepath.Dir(exe), "..", "client")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		dir = "../client"
	}
	return dir
}

func run(log *zap.Logger, addr, dbPath, clientDir, stagesDir, publicURL string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stages, err := sim.LoadStages(stagesDir)
	if err != nil {
		log.Warn("using built-in stage", zap.String("dir", stagesDir), zap.Error(err))
	}

	var db *DB
	if dbPath != "" {
		db, err = OpenDB(dbPath, log.Named("db"))
		if err != nil {
			return err
		}
		defer db.Close()
	}
	analytics := NewAnalytics(db, log.Named("analytics"))
	defer analytics.Stop()

	hub := NewHub(HubConfig{
		DB:        db,
		Analytics: analytics,
		Stages:    stages,
		PublicURL: publicURL,
		Log:       log,
	})
	server := &http.Server{Addr: addr, Handler: SetupRoutes(hub, clientDir)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return hub.Run(ctx)
	})
	g.Go(func() error {
		log.Info("server starting",
			zap.String("addr", addr),
			zap.String("client", clientDir),
			zap.Int("stages", len(hub.sessions.Stages())),
			zap.Bool("accounts", db != nil),
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})
	return g.Wait()
}
