// Package api parses API command flags and launches the HTTP server.
package api

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	apihttp "github.com/atelierhq/atelier/internal/api/http"
	"github.com/atelierhq/atelier/internal/contract/service"
	entrypoint "github.com/atelierhq/atelier/internal/platform/cmd"
	"github.com/atelierhq/atelier/internal/storage/sqlite"
)

// shutdownTimeout caps the drain window for in-flight requests.
const shutdownTimeout = 10 * time.Second

// Config holds API command configuration.
type Config struct {
	Addr      string `env:"ATELIER_API_ADDR" envDefault:":8080"`
	DBPath    string `env:"ATELIER_API_DB_PATH" envDefault:"data/atelier.db"`
	JWTSecret string `env:"ATELIER_API_JWT_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "The bearer token HMAC secret")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the API server and blocks until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAPI, func(ctx context.Context) error {
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("close database: %v", err)
			}
		}()

		verifier, err := apihttp.NewTokenVerifier(cfg.JWTSecret)
		if err != nil {
			return err
		}
		handler := apihttp.NewHandler(service.New(db))

		server := &http.Server{
			Addr:    cfg.Addr,
			Handler: apihttp.NewRouter(handler, verifier),
		}
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.ListenAndServe()
		}()
		log.Printf("listening on %s", cfg.Addr)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	})
}
