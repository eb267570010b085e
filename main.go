package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdusco/shorty/internal/auth"
	"github.com/abdusco/shorty/internal/db"
	"github.com/abdusco/shorty/internal/logger"
	"github.com/abdusco/shorty/internal/repo"
	"github.com/abdusco/shorty/internal/server"
	"github.com/abdusco/shorty/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const (
	storageMemory = "memory"
	storageSQLite = "sqlite"
)

type Config struct {
	Host      string
	Port      string
	BaseURL   string
	Storage   string
	DBPath    string
	JWTSecret string `json:"-"`
	LogLevel  string
	Debug     bool
}

func newConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:      os.Getenv("HOST"),
		Port:      cmp.Or(os.Getenv("PORT"), "3001"),
		BaseURL:   os.Getenv("BASE_URL"),
		Storage:   cmp.Or(os.Getenv("STORAGE"), storageMemory),
		DBPath:    cmp.Or(os.Getenv("DB_PATH"), "shorty.db"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		LogLevel:  cmp.Or(os.Getenv("LOG_LEVEL"), "info"),
		Debug:     os.Getenv("DEBUG") == "1",
	}

	if cfg.Storage != storageMemory && cfg.Storage != storageSQLite {
		return Config{}, fmt.Errorf("unknown STORAGE %q, want %q or %q", cfg.Storage, storageMemory, storageSQLite)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-me"
		log.Warn().Msg("using default JWT secret - set JWT_SECRET for production")
	}

	return cfg, nil
}

func main() {
	cfg, err := newConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration from environment")
	}

	if err := logger.Setup(cfg.LogLevel, cfg.Debug); err != nil {
		log.Fatal().Err(err).Msg("failed to configure logging")
	}

	log.Info().
		Interface("config", cfg).
		Msg("current configuration")

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(ctx context.Context, cfg Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Msg("starting application")

	users, links, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	authenticator := auth.NewAuthenticator(cfg.JWTSecret, auth.TokenExpiry, time.Now)
	authService := service.NewAuthService(users, auth.BcryptHasher{Cost: auth.DefaultCost}, authenticator)
	linkService := service.NewLinkService(links, time.Now)

	e := server.New(server.Options{
		Auth:          authService,
		Links:         linkService,
		Authenticator: authenticator,
		BaseURL:       cfg.BaseURL,
	})
	defer e.Close()

	addr := cfg.Host + ":" + cfg.Port
	log.Info().Str("address", addr).Str("storage", cfg.Storage).Msg("server starting")

	return runServer(ctx, e, addr)
}

func openStore(ctx context.Context, cfg Config) (repo.UserRepo, repo.LinkRepo, func(), error) {
	if cfg.Storage == storageMemory {
		log.Warn().Msg("using in-memory storage - all data is lost on restart")
		return repo.NewMemoryUsersRepo(time.Now), repo.NewMemoryLinksRepo(time.Now), func() {}, nil
	}

	conn, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	closeFn := func() {
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
	return repo.NewUsersRepo(conn, time.Now), repo.NewLinksRepo(conn, time.Now), closeFn, nil
}

func runServer(ctx context.Context, e *echo.Echo, addr string) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(addr)
	}()

	// Wait for context cancellation (Ctrl+C or SIGTERM) or a failed start
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	log.Info().Msg("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
	return nil
}
