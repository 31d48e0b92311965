// Package dbmanager manages the PostgreSQL connection pool and the session scopes set
// on each connection.
package dbmanager

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type postgresConn struct {
	conn             *sql.Conn
	cancel           context.CancelFunc
	scopes           map[string]string
	configuredScopes []string
	pool             *postgresPool
}

type postgresPool struct {
	configuredScopes []string
	sessionParams    map[string]string
	connRequests     uint64
	connReturns      uint64
	db               *sql.DB
}

// Scope names must be dotted identifiers, the form PostgreSQL accepts for custom
// settings.
var validScopeNameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*$`)

// NewPostgresqlDb opens the pool and waits for the server to answer, retrying with
// backoff so the service can start alongside its database.
func NewPostgresqlDb(ctx context.Context, opts Options, configuredScopes []string) (ScopedDb, error) {
	for _, scope := range configuredScopes {
		if !validScopeNameRegex.MatchString(scope) {
			return nil, fmt.Errorf("invalid scope name: %s", scope)
		}
	}
	opts.setDefaults()

	sqlDB, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to open db")
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)

	err = retry.Do(
		func() error {
			return sqlDB.PingContext(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(opts.PingAttempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Msg("database not reachable, retrying")
		}),
	)
	if err != nil {
		sqlDB.Close()
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping db")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	timeout := fmt.Sprintf("%dms", opts.StatementTimeout.Milliseconds())
	return &postgresPool{
		configuredScopes: configuredScopes,
		sessionParams: map[string]string{
			"lock_timeout":                        timeout,
			"statement_timeout":                   timeout,
			"idle_in_transaction_session_timeout": timeout,
		},
		db: sqlDB,
	}, nil
}

func (p *postgresPool) Conn(ctx context.Context) (ScopedConn, error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := p.db.Conn(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		cancel()
		return nil, fmt.Errorf("failed to obtain database connection: %w", err)
	}

	for param, value := range p.sessionParams {
		query := fmt.Sprintf("SET %s = %s", pq.QuoteIdentifier(param), pq.QuoteLiteral(value))
		if _, err = conn.ExecContext(ctx, query); err != nil {
			cancel()
			conn.Close()
			return nil, fmt.Errorf("failed to set %s: %w", param, err)
		}
	}

	h := &postgresConn{
		configuredScopes: p.configuredScopes,
		scopes:           make(map[string]string),
		cancel:           cancel,
		pool:             p,
		conn:             conn,
	}
	if err := h.DropScopes(ctx, p.configuredScopes); err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("failed to initialize scopes: %w", err)
	}

	atomic.AddUint64(&p.connRequests, 1)
	return h, nil
}

func (p *postgresPool) Stats() (requests, returns uint64) {
	return atomic.LoadUint64(&p.connRequests), atomic.LoadUint64(&p.connReturns)
}

func (p *postgresPool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *postgresPool) Close() error {
	return p.db.Close()
}

// Close resets the scopes and returns the connection to the pool. If the scopes
// cannot be reset the connection is discarded instead of being reused.
func (h *postgresConn) Close(ctx context.Context) {
	if h.conn == nil {
		return
	}
	if err := h.DropAllScopes(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to drop all scopes during connection close")
		_ = h.conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	h.conn.Close()
	h.conn = nil
	if h.cancel != nil {
		h.cancel()
	}
	atomic.AddUint64(&h.pool.connReturns, 1)
}

func (h *postgresConn) isConfiguredScope(scope string) bool {
	for _, s := range h.configuredScopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AddScopes sets several scopes atomically. Scopes that were not configured for the
// pool are ignored.
func (h *postgresConn) AddScopes(ctx context.Context, scopes map[string]string) error {
	if h.conn == nil {
		return fmt.Errorf("no active connection")
	}
	for scope := range scopes {
		if !validScopeNameRegex.MatchString(scope) {
			return fmt.Errorf("invalid scope name: %s", scope)
		}
	}

	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for setting scopes: %w", err)
	}
	defer tx.Rollback()

	set := make(map[string]string, len(scopes))
	for scope, value := range scopes {
		if !h.isConfiguredScope(scope) {
			continue
		}
		query := fmt.Sprintf("SET %s = %s", pq.QuoteIdentifier(scope), pq.QuoteLiteral(value))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to set scope %q: %w", scope, err)
		}
		set[scope] = value
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scope changes: %w", err)
	}
	for k, v := range set {
		h.scopes[k] = v
	}
	return nil
}

func (h *postgresConn) AddScope(ctx context.Context, scope, value string) error {
	return h.AddScopes(ctx, map[string]string{scope: value})
}

func (h *postgresConn) DropScopes(ctx context.Context, scopes []string) error {
	if h.conn == nil || len(scopes) == 0 {
		return nil
	}
	for _, scope := range scopes {
		if !validScopeNameRegex.MatchString(scope) {
			return fmt.Errorf("invalid scope name: %s", scope)
		}
	}

	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for dropping scopes: %w", err)
	}
	defer tx.Rollback()

	for _, scope := range scopes {
		if _, err := tx.ExecContext(ctx, "RESET "+pq.QuoteIdentifier(scope)); err != nil {
			return fmt.Errorf("failed to reset scope %q: %w", scope, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scope changes: %w", err)
	}
	for _, scope := range scopes {
		delete(h.scopes, scope)
	}
	return nil
}

func (h *postgresConn) DropScope(ctx context.Context, scope string) error {
	return h.DropScopes(ctx, []string{scope})
}

func (h *postgresConn) DropAllScopes(ctx context.Context) error {
	return h.DropScopes(ctx, h.configuredScopes)
}

// Scopes returns a copy of the scopes currently set.
func (h *postgresConn) Scopes() map[string]string {
	sc := make(map[string]string, len(h.scopes))
	for k, v := range h.scopes {
		sc[k] = v
	}
	return sc
}

func (h *postgresConn) Conn() *sql.Conn {
	return h.conn
}
