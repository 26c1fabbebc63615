package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/gridview/internal/config"
	"github.com/JonMunkholm/gridview/internal/logging"
	"github.com/JonMunkholm/gridview/internal/store"
	"github.com/JonMunkholm/gridview/internal/web"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("configuration loaded", "config", cfg.String())

	coll, err := store.LoadCollection(cfg.Collection.File)
	if err != nil {
		logger.Error("failed to load collection", "error", err)
		os.Exit(1)
	}

	st, err := openStore(context.Background(), cfg, coll, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	server := web.NewServer(st, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
		return
	}
	logger.Info("server stopped")
}

// openStore serves the collection from PostgreSQL when a database URL is
// configured and from the collection file's rows otherwise.
func openStore(ctx context.Context, cfg *config.Config, coll *store.Collection, logger *slog.Logger) (store.Store, error) {
	if cfg.Database.URL == "" {
		logger.Info("serving collection from memory",
			"collection", cfg.Collection.Name,
			"rows", len(coll.Rows),
			"columns", len(coll.Columns),
		)
		return store.NewMemory(coll, cfg.LocaleTag(), logger), nil
	}

	pg, err := store.OpenPostgres(ctx, store.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}, cfg.TableName(), coll.Columns, logger)
	if err != nil {
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		logger.Info("connected to database",
			"name", strings.TrimPrefix(u.Path, "/"),
			"table", cfg.TableName(),
		)
	} else {
		logger.Info("connected to database", "table", cfg.TableName())
	}
	return pg, nil
}
