package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// SchemaState summarises the migration table against the files on disk.
type SchemaState struct {
	Version int `json:"version"`
	Applied int `json:"applied"`
	Pending int `json:"pending"`
}

func schemaState(statuses []MigrationStatus) SchemaState {
	var st SchemaState
	for _, s := range statuses {
		if !s.Applied {
			st.Pending++
			continue
		}
		st.Applied++
		if s.Version > st.Version {
			st.Version = s.Version
		}
	}
	return st
}

// HealthReport is the body of /health/db.
type HealthReport struct {
	Status string       `json:"status"`
	Pool   *PoolStats   `json:"pool,omitempty"`
	Schema *SchemaState `json:"schema,omitempty"`
}

type healthProbe struct {
	ping   func(context.Context) error
	stats  func() *PoolStats
	schema func(context.Context) ([]MigrationStatus, error)
}

// HealthHandler pings the database and compares the applied migrations with
// those in migrationsDir. Pending migrations report "degraded"; both that
// and a failed ping answer 503.
func HealthHandler(pool *pgxpool.Pool, migrationsDir string, logger zerolog.Logger) echo.HandlerFunc {
	m := NewMigrator(pool, migrationsDir)
	return healthHandler(healthProbe{
		ping:   func(ctx context.Context) error { return pool.Ping(ctx) },
		stats:  func() *PoolStats { return GetPoolStats(pool) },
		schema: m.Status,
	}, logger)
}

func healthHandler(p healthProbe, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		rep := HealthReport{Status: "healthy", Pool: p.stats()}
		if err := p.ping(ctx); err != nil {
			logger.Warn().Err(err).Msg("database health check failed")
			rep.Status = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, rep)
		}

		statuses, err := p.schema(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("read migration status")
			rep.Status = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, rep)
		}
		st := schemaState(statuses)
		rep.Schema = &st
		if st.Pending > 0 {
			rep.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, rep)
		}
		return c.JSON(http.StatusOK, rep)
	}
}
