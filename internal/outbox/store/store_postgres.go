package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"signature-service/internal/outbox/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
	txcontext "signature-service/pkg/platform/tx"
)

// PostgresStore implements the transactional outbox on the outbox table.
// Append joins the caller's transaction so the event commits with the state change.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const eventColumns = `id, aggregate_type, aggregate_id, event_type, payload, status, attempts,
	next_attempt_at, lease_owner, lease_expires_at, last_error, created_at, dispatched_at`

func (s *PostgresStore) Append(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(event.ID),
		event.AggregateType,
		event.AggregateID,
		event.EventType,
		[]byte(event.Payload),
		string(event.Status),
		event.Attempts,
		event.NextAttemptAt,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Lease claims due rows with SKIP LOCKED so concurrent relays never share a row.
// Rows whose lease lapsed (a relay died mid-flush) become due again.
func (s *PostgresStore) Lease(ctx context.Context, owner string, limit int, now time.Time, ttl time.Duration) ([]*models.Event, error) {
	query := `
		UPDATE outbox
		SET lease_owner = $1, lease_expires_at = $2
		WHERE id IN (
			SELECT id FROM outbox
			WHERE status = 'pending'
			  AND next_attempt_at <= $3
			  AND (lease_expires_at IS NULL OR lease_expires_at <= $3)
			ORDER BY next_attempt_at, created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + eventColumns
	rows, err := s.db.QueryContext(ctx, query, owner, now.Add(ttl), now, limit)
	if err != nil {
		return nil, fmt.Errorf("lease outbox entries: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	sortByDue(events)
	return events, nil
}

// MarkDispatched only touches rows still leased by owner, and strips the
// secret payload fields on the way.
func (s *PostgresStore) MarkDispatched(ctx context.Context, owner string, ids []id.OutboxEventID, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE outbox
		SET status = 'dispatched',
		    dispatched_at = $2,
		    payload = payload - $4::text[],
		    lease_owner = '',
		    lease_expires_at = NULL,
		    last_error = ''
		WHERE id = ANY($1::uuid[]) AND lease_owner = $3
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query, pq.Array(idStrings(ids)), now, owner, pq.Array(models.SecretPayloadKeys)); err != nil {
		return fmt.Errorf("mark outbox dispatched: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, owner string, failures []models.Failure) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    next_attempt_at = $3,
		    status = CASE WHEN $4::boolean THEN 'dead' ELSE status END,
		    lease_owner = '',
		    lease_expires_at = NULL
		WHERE id = $1 AND lease_owner = $5
	`
	for _, f := range failures {
		if _, err := s.execer(ctx).ExecContext(ctx, query, uuid.UUID(f.EventID), f.Error, f.NextAttemptAt, f.Dead, owner); err != nil {
			return fmt.Errorf("mark outbox failed: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, eventID id.OutboxEventID) (*models.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT `+eventColumns+` FROM outbox WHERE id = $1`, uuid.UUID(eventID))
	if err != nil {
		return nil, fmt.Errorf("get outbox entry: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("outbox event not found: %w", sentinel.ErrNotFound)
	}
	return events[0], nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Event, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+eventColumns+` FROM outbox WHERE status = $1 ORDER BY created_at LIMIT $2`,
		string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox entries: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) Requeue(ctx context.Context, eventID id.OutboxEventID, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE outbox
		SET status = 'pending', attempts = 0, next_attempt_at = $2
		WHERE id = $1 AND status = 'dead'`, uuid.UUID(eventID), now)
	if err != nil {
		return fmt.Errorf("requeue outbox entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("requeue outbox entry: %w", err)
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, eventID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("outbox event is not dead: %w", sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM outbox WHERE status = 'dispatched' AND dispatched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune outbox: %w", err)
	}
	return int(n), nil
}

func scanEvents(rows *sql.Rows) ([]*models.Event, error) {
	var events []*models.Event
	for rows.Next() {
		var (
			ev             models.Event
			eventID        uuid.UUID
			payload        []byte
			status         string
			leaseExpiresAt sql.NullTime
			dispatchedAt   sql.NullTime
		)
		if err := rows.Scan(
			&eventID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &payload, &status, &ev.Attempts,
			&ev.NextAttemptAt, &ev.LeaseOwner, &leaseExpiresAt, &ev.LastError, &ev.CreatedAt, &dispatchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		ev.ID = id.OutboxEventID(eventID)
		ev.Payload = payload
		ev.Status = models.Status(status)
		if leaseExpiresAt.Valid {
			t := leaseExpiresAt.Time
			ev.LeaseExpiresAt = &t
		}
		if dispatchedAt.Valid {
			t := dispatchedAt.Time
			ev.DispatchedAt = &t
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return events, nil
}

func idStrings(ids []id.OutboxEventID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

// RETURNING does not preserve the subquery order.
func sortByDue(events []*models.Event) {
	slices.SortStableFunc(events, func(a, b *models.Event) int {
		if c := a.NextAttemptAt.Compare(b.NextAttemptAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
