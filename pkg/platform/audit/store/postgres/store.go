package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "signature-service/pkg/domain"
	audit "signature-service/pkg/platform/audit"
	txcontext "signature-service/pkg/platform/tx"
)

// Store persists audit trails in the audit_events table. Appends join the
// caller's transaction so an entry exists exactly when its change commits.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, tenant_id, envelope_id, signer_id,
			action, actor_id, reason, ip_address, user_agent, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var signerID *uuid.UUID
	if event.SignerID != nil {
		sid := uuid.UUID(*event.SignerID)
		signerID = &sid
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		uuid.UUID(event.TenantID),
		uuid.UUID(event.EnvelopeID),
		signerID,
		event.Action,
		event.ActorID,
		event.Reason,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByEnvelope returns the trail oldest first.
func (s *Store) ListByEnvelope(ctx context.Context, envelopeID id.EnvelopeID) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, tenant_id, envelope_id, signer_id,
			   action, actor_id, reason, ip_address, user_agent, request_id
		FROM audit_events
		WHERE envelope_id = $1
		ORDER BY occurred_at, seq
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(envelopeID))
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event      audit.Event
			category   string
			tenantID   uuid.UUID
			envelope   uuid.UUID
			signerNull *uuid.UUID
		)
		if err := rows.Scan(
			&category,
			&event.Timestamp,
			&tenantID,
			&envelope,
			&signerNull,
			&event.Action,
			&event.ActorID,
			&event.Reason,
			&event.IPAddress,
			&event.UserAgent,
			&event.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		event.TenantID = id.TenantID(tenantID)
		event.EnvelopeID = id.EnvelopeID(envelope)
		if signerNull != nil {
			sid := id.SignerID(*signerNull)
			event.SignerID = &sid
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
