package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"meterease/internal/config"
	"meterease/internal/logger"
	"meterease/internal/metrics"
	"meterease/internal/repository/sqlite"
	"meterease/internal/route"
	"meterease/internal/service"
	"meterease/internal/service/ai"
	"meterease/internal/service/auth"
	"meterease/internal/service/billing"
	"meterease/internal/service/publish"
	"meterease/internal/service/storage"
	"meterease/internal/service/websocket"
	"meterease/internal/view"
)

const shutdownTimeout = 10 * time.Second

// App is the meter reading service.
type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	authDB     *sqlite.DB
	hubService *websocket.HubService
	publisher  *publish.Publisher
	handler    http.Handler
}

// NewApp wires the meter service from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.setup(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) setup() error {
	cfg := a.config

	db, err := OpenDB(cfg.DatabasePath, sqlite.MeterSchema)
	if err != nil {
		return err
	}
	a.db = db

	store, err := storage.NewImageStore(cfg, a.logger)
	if err != nil {
		return err
	}

	tariff, err := billing.LoadTariff(cfg.TariffFile)
	if err != nil {
		return err
	}

	renderer, err := view.New()
	if err != nil {
		return err
	}

	m, err := metrics.New()
	if err != nil {
		return err
	}

	if cfg.DetectionAPIKey == "" {
		a.logger.Warning("DETECTION_API_KEY is not set, predictions will fail")
	}
	detector := ai.NewHostedDetector(cfg, a.logger)

	meter := service.NewMeterService(detector, store,
		sqlite.NewReadingRepository(db), sqlite.NewConsumptionRepository(db), m, a.logger)

	a.hubService = websocket.NewHubService(a.logger)
	meter.AddListener(a.hubService)

	if cfg.MQTTEnabled {
		pub, err := publish.New(cfg)
		if err != nil {
			return err
		}
		a.publisher = pub
		meter.AddListener(pub)
		a.logger.Info("Publishing readings to %s on %s", pub.Topic(), cfg.MQTTBroker)
	}

	deps := route.MeterDeps{
		Config:   cfg,
		Logger:   a.logger,
		Meter:    meter,
		Store:    store,
		Renderer: renderer,
		Tariff:   tariff,
		Hub:      a.hubService,
		Metrics:  m,
	}

	if cfg.RequireAuth {
		authDB, err := OpenDB(cfg.AuthDatabasePath, sqlite.AuthSchema)
		if err != nil {
			return err
		}
		a.authDB = authDB
		users := sqlite.NewUserRepository(authDB)
		deps.Verifier = auth.NewService(cfg, users, users, nil, a.logger)
	}

	a.handler = route.SetupMeterRoutes(deps)
	return nil
}

// Run serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.hubService.Run(ctx)

	a.logger.Info("MeterEase meter service on http://localhost:%d", a.config.Port)
	a.logger.Info("Images: %s", a.config.ImageDirectory)
	a.logger.Info("Detection model: %s", a.config.DetectionModel)

	return serve(ctx, a.logger, a.config.Port, a.handler)
}

func (a *App) close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	for _, db := range []*sqlite.DB{a.db, a.authDB} {
		if db != nil {
			if err := db.Close(); err != nil {
				a.logger.Warning("Failed to close database: %v", err)
			}
		}
	}
	a.logger.Close()
}

// AuthApp is the signup and login service.
type AuthApp struct {
	config  *config.Config
	logger  *logger.Logger
	db      *sqlite.DB
	handler http.Handler
}

// NewAuthApp wires the auth service from cfg.
func NewAuthApp(cfg *config.Config) (*AuthApp, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(cfg.AuthDatabasePath, sqlite.AuthSchema)
	if err != nil {
		log.Close()
		return nil, err
	}

	m, err := metrics.New()
	if err != nil {
		db.Close()
		log.Close()
		return nil, err
	}

	users := sqlite.NewUserRepository(db)
	authService := auth.NewService(cfg, users, users, m, log)

	return &AuthApp{
		config:  cfg,
		logger:  log,
		db:      db,
		handler: route.SetupAuthRoutes(cfg, log, authService, m),
	}, nil
}

// Run serves until ctx is cancelled.
func (a *AuthApp) Run(ctx context.Context) error {
	defer func() {
		if err := a.db.Close(); err != nil {
			a.logger.Warning("Failed to close database: %v", err)
		}
		a.logger.Close()
	}()

	a.logger.Info("MeterEase auth service on http://localhost:%d", a.config.AuthPort)
	return serve(ctx, a.logger, a.config.AuthPort, a.handler)
}

// OpenDB creates the parent directory of path and opens the database with
// the given schemas applied.
func OpenDB(path string, schemas ...string) (*sqlite.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return sqlite.New(path, schemas...)
}

func serve(ctx context.Context, log *logger.Logger, port int, h http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}
