// Package postgres provides PostgreSQL persistence using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/chronicle/internal/config"
)

// ApplicationName tags narrator connections in pg_stat_activity.
const ApplicationName = "chronicle-narrator"

// Pool wraps a pgx connection pool with health-check and lifecycle methods.
type Pool struct {
	pool *pgxpool.Pool
}

// Status is a point-in-time view of the database as the narrator sees it.
type Status struct {
	// Campaigns is the number of stored campaigns.
	Campaigns int64
	// TotalConns and IdleConns describe the pool.
	TotalConns int32
	IdleConns  int32
}

// NewPool creates a new PostgreSQL connection pool from the given configuration.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a connected Pool or a non-nil error. The pool is ready
// for queries upon successful return.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s/%s: %w", cfg.Host, cfg.Name, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %s/%s: %w", cfg.Host, cfg.Name, err)
	}

	return &Pool{pool: pool}, nil
}

// Health checks that the campaigns table is readable within timeout and reports
// how many campaigns it holds.
//
// Precondition: The pool must not be closed; migrations must have been applied.
// Postcondition: Returns the current Status, or a non-nil error when the query
// fails or the timeout expires.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var st Status
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM campaigns`).Scan(&st.Campaigns); err != nil {
		return Status{}, fmt.Errorf("counting campaigns: %w", err)
	}
	stat := p.pool.Stat()
	st.TotalConns = stat.TotalConns()
	st.IdleConns = stat.IdleConns()
	return st, nil
}

// Close releases all pool resources.
//
// Postcondition: The pool is no longer usable after calling Close.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for use by repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
