package dbmanager

import (
	"context"
	"database/sql"
	"time"
)

// ScopedDb hands out connections whose session carries request scoped settings.
type ScopedDb interface {
	Conn(ctx context.Context) (ScopedConn, error)
	// Stats returns the number of connections handed out and returned.
	Stats() (requests, returns uint64)
	Ping(ctx context.Context) error
	Close() error
}

// ScopedConn is a single pooled connection. It is not safe for concurrent use; the
// service uses one per request.
type ScopedConn interface {
	AddScopes(ctx context.Context, scopes map[string]string) error
	DropScopes(ctx context.Context, scopes []string) error
	AddScope(ctx context.Context, scope, value string) error
	DropScope(ctx context.Context, scope string) error
	DropAllScopes(ctx context.Context) error
	// Conn returns the underlying connection. Release it with Close, never directly.
	Conn() *sql.Conn
	// Close resets all scopes and returns the connection to the pool.
	Close(ctx context.Context)
}

// Options configures the pool and the session of every connection.
type Options struct {
	DSN              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	StatementTimeout time.Duration // also applied as lock and idle-in-transaction timeout
	PingAttempts     uint
}

func (o *Options) setDefaults() {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 50
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 10
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.ConnMaxIdleTime <= 0 {
		o.ConnMaxIdleTime = 5 * time.Minute
	}
	if o.StatementTimeout <= 0 {
		o.StatementTimeout = 5 * time.Second
	}
	if o.PingAttempts == 0 {
		o.PingAttempts = 5
	}
}
