package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/orms/orms/internal/config"
	"github.com/orms/orms/internal/domain/billing"
	"github.com/orms/orms/internal/domain/clinical"
	"github.com/orms/orms/internal/domain/frontdesk"
	"github.com/orms/orms/internal/domain/identity"
	"github.com/orms/orms/internal/domain/reference"
	"github.com/orms/orms/internal/domain/visit"
	"github.com/orms/orms/internal/importer"
	"github.com/orms/orms/internal/platform/cache"
	"github.com/orms/orms/internal/platform/db"
	"github.com/orms/orms/internal/platform/middleware"
	"github.com/orms/orms/internal/platform/websocket"
)

// app holds what every subcommand needs once config and the pool are open.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	svc    *services
	closer io.Closer
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.IsDev())

	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, err
	}
	logger.Info().Msg("connected to database")

	a := &app{cfg: cfg, logger: logger, pool: pool}

	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL, "orms:")
		if err != nil {
			pool.Close()
			logger.Error().Err(err).Msg("failed to connect to redis")
			return nil, err
		}
		store = rs
		a.closer = rs
		logger.Info().Msg("catalog cache backed by redis")
	}

	a.svc = newServices(pool, cache.NewCatalog(store, cfg.CatalogCacheTTL, logger), websocket.NewHub(logger), cfg)
	return a, nil
}

func (a *app) Close() {
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close cache")
		}
	}
	a.pool.Close()
}

// newLogger writes JSON, or console output in development. An unknown level
// falls back to info.
func newLogger(w io.Writer, level string, dev bool) zerolog.Logger {
	if dev {
		w = zerolog.ConsoleWriter{Out: w}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

type services struct {
	hub       *websocket.Hub
	reference *reference.Service
	identity  *identity.Service
	visits    *visit.Service
	clinical  *clinical.Service
	billing   *billing.Service
	frontdesk *frontdesk.Service
}

// newServices builds the domain services and wires the cross-domain
// callbacks used by the restrict and cascade rules.
func newServices(pool *pgxpool.Pool, catalog *cache.Catalog, hub *websocket.Hub, cfg *config.Config) *services {
	tx := db.NewTxRunner(pool)

	refSvc := reference.NewService(reference.NewRepo(pool), tx, catalog)
	identitySvc := identity.NewService(identity.NewPatientRepo(pool), identity.NewDoctorRepo(pool),
		identity.NewUserRepo(pool), tx, refSvc, cfg.BcryptCost)
	visitSvc := visit.NewService(visit.NewRepo(pool), tx, identitySvc)
	clinicalSvc := clinical.NewService(clinical.NewDiagnosisRepo(pool), clinical.NewPrescriptionRepo(pool),
		tx, visitSvc, refSvc)
	billingSvc := billing.NewService(billing.NewBillRepo(pool), billing.NewBillServiceRepo(pool),
		tx, visitSvc, identitySvc, billing.Config{TaxRate: cfg.TaxRate, Tolerance: cfg.ReconcileTolerance})

	identitySvc.SetVisitCounter(visitSvc)
	refSvc.SetDoctorCounter(identitySvc)
	refSvc.SetPrescriptionCounter(clinicalSvc)
	visitSvc.SetClinicalPurger(clinicalSvc)
	visitSvc.SetBillCounter(billingSvc)
	visitSvc.SetPublisher(hub)

	return &services{
		hub:       hub,
		reference: refSvc,
		identity:  identitySvc,
		visits:    visitSvc,
		clinical:  clinicalSvc,
		billing:   billingSvc,
		frontdesk: frontdesk.NewService(identitySvc, visitSvc, billingSvc, refSvc, tx),
	}
}

func (s *services) importTargets() importer.Targets {
	return importer.Targets{
		Reference: s.reference,
		Identity:  s.identity,
		Visits:    s.visits,
		Clinical:  s.clinical,
		Billing:   s.billing,
	}
}

func newRouter(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, svc *services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pool, cfg.MigrationsDir, logger))
	websocket.NewHandler(svc.hub, cfg.CORSOrigins).RegisterRoutes(e)

	api := e.Group("/api/v1")
	reference.NewHandler(svc.reference).RegisterRoutes(api)
	identity.NewHandler(svc.identity).RegisterRoutes(api)
	visit.NewHandler(svc.visits).RegisterRoutes(api)
	clinical.NewHandler(svc.clinical).RegisterRoutes(api)
	billing.NewHandler(svc.billing).RegisterRoutes(api)
	frontdesk.NewHandler(svc.frontdesk).RegisterRoutes(api)

	return e
}
