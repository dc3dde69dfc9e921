package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresList persists revocations in the revoked_tokens table. Used when
// Redis is not configured.
type PostgresList struct {
	db     *sql.DB
	prefix string
	clock  Clock
}

// PostgresListOption configures a PostgresList.
type PostgresListOption func(*PostgresList)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) PostgresListOption {
	return func(l *PostgresList) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithPrefix namespaces keys in the shared table.
func WithPrefix(prefix string) PostgresListOption {
	return func(l *PostgresList) {
		l.prefix = prefix
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresListOption) *PostgresList {
	l := &PostgresList{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

func (l *PostgresList) Revoke(ctx context.Context, key string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	query := `
		INSERT INTO revoked_tokens (key, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`
	if _, err := l.db.ExecContext(ctx, query, l.prefix+key, l.clock().Add(ttl)); err != nil {
		return fmt.Errorf("revoke key: %w", err)
	}
	return nil
}

// RevokeMany inserts every key in one statement using unnest.
func (l *PostgresList) RevokeMany(ctx context.Context, keys []string, ttl time.Duration) error {
	if len(keys) == 0 {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			prefixed = append(prefixed, l.prefix+k)
		}
	}
	if len(prefixed) == 0 {
		return nil
	}
	query := `
		INSERT INTO revoked_tokens (key, expires_at)
		SELECT unnest($1::text[]), $2
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`
	if _, err := l.db.ExecContext(ctx, query, pq.Array(prefixed), l.clock().Add(ttl)); err != nil {
		return fmt.Errorf("revoke keys batch: %w", err)
	}
	return nil
}

func (l *PostgresList) IsRevoked(ctx context.Context, key string) (bool, error) {
	var expiresAt time.Time
	err := l.db.QueryRowContext(ctx, `SELECT expires_at FROM revoked_tokens WHERE key = $1`, l.prefix+key).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return l.clock().Before(expiresAt), nil
}

// DeleteExpired prunes rows whose TTL has passed.
func (l *PostgresList) DeleteExpired(ctx context.Context) (int, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, l.clock())
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	return int(n), nil
}
