package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"signature-service/internal/envelope/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
	txcontext "signature-service/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists envelopes across envelopes, envelope_signers and
// envelope_documents. Child rows are rewritten on every update.
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

// inTx runs fn in the context transaction, or in a new one.
func (s *PostgresStore) inTx(ctx context.Context, fn func(dbExecutor) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

const envelopeColumns = `id, tenant_id, owner_id, title, description, status, signing_order,
	expires_at, sent_at, completed_at, cancelled_at, cancel_reason, declined_at,
	declined_by_signer_id, decline_reason, expired_at, version, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, e *models.Envelope) error {
	return s.inTx(ctx, func(q dbExecutor) error {
		_, err := q.ExecContext(ctx, `
			INSERT INTO envelopes (`+envelopeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`, envelopeArgs(e)...)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("insert envelope: %w", sentinel.ErrConflict)
			}
			return fmt.Errorf("insert envelope: %w", err)
		}
		return writeChildren(ctx, q, e)
	})
}

func envelopeArgs(e *models.Envelope) []any {
	var declinedBy *uuid.UUID
	if e.DeclinedBySignerID != nil {
		u := uuid.UUID(*e.DeclinedBySignerID)
		declinedBy = &u
	}
	return []any{
		uuid.UUID(e.ID),
		uuid.UUID(e.TenantID),
		uuid.UUID(e.OwnerID),
		e.Title,
		e.Description,
		string(e.Status),
		string(e.SigningOrder),
		e.ExpiresAt,
		e.SentAt,
		e.CompletedAt,
		e.CancelledAt,
		e.CancelReason,
		e.DeclinedAt,
		declinedBy,
		e.DeclineReason,
		e.ExpiredAt,
		e.Version,
		e.CreatedAt,
		e.UpdatedAt,
	}
}

// Update writes e when the stored version equals e.Version, then bumps it.
func (s *PostgresStore) Update(ctx context.Context, e *models.Envelope) error {
	return s.inTx(ctx, func(q dbExecutor) error {
		res, err := q.ExecContext(ctx, `
			UPDATE envelopes SET
				title = $2, description = $3, status = $4, signing_order = $5,
				expires_at = $6, sent_at = $7, completed_at = $8, cancelled_at = $9,
				cancel_reason = $10, declined_at = $11, declined_by_signer_id = $12,
				decline_reason = $13, expired_at = $14, updated_at = $15,
				version = version + 1
			WHERE id = $1 AND version = $16
		`,
			uuid.UUID(e.ID), e.Title, e.Description, string(e.Status), string(e.SigningOrder),
			e.ExpiresAt, e.SentAt, e.CompletedAt, e.CancelledAt,
			e.CancelReason, e.DeclinedAt, nullableSignerID(e.DeclinedBySignerID),
			e.DeclineReason, e.ExpiredAt, e.UpdatedAt,
			e.Version,
		)
		if err != nil {
			return fmt.Errorf("update envelope: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update envelope rows: %w", err)
		}
		if n == 0 {
			var exists bool
			if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM envelopes WHERE id = $1)`, uuid.UUID(e.ID)).Scan(&exists); err != nil {
				return fmt.Errorf("check envelope: %w", err)
			}
			if !exists {
				return fmt.Errorf("envelope %s: %w", e.ID, sentinel.ErrNotFound)
			}
			return fmt.Errorf("envelope %s version %d: %w", e.ID, e.Version, sentinel.ErrConflict)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM envelope_signers WHERE envelope_id = $1`, uuid.UUID(e.ID)); err != nil {
			return fmt.Errorf("clear signers: %w", err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM envelope_documents WHERE envelope_id = $1`, uuid.UUID(e.ID)); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		if err := writeChildren(ctx, q, e); err != nil {
			return err
		}
		e.Version++
		return nil
	})
}

func nullableSignerID(signerID *id.SignerID) *uuid.UUID {
	if signerID == nil {
		return nil
	}
	u := uuid.UUID(*signerID)
	return &u
}

func writeChildren(ctx context.Context, q dbExecutor, e *models.Envelope) error {
	for _, sg := range e.Signers {
		var userID *uuid.UUID
		if sg.UserID != nil {
			u := uuid.UUID(*sg.UserID)
			userID = &u
		}
		var evidence []byte
		if sg.Evidence != nil {
			raw, err := json.Marshal(sg.Evidence)
			if err != nil {
				return fmt.Errorf("marshal evidence: %w", err)
			}
			evidence = raw
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO envelope_signers (id, envelope_id, email, full_name, user_id, is_external,
				signing_order, status, signed_at, declined_at, decline_reason, evidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			uuid.UUID(sg.ID), uuid.UUID(e.ID), sg.Email, sg.FullName, userID, sg.IsExternal,
			sg.Order, string(sg.Status), sg.SignedAt, sg.DeclinedAt, sg.DeclineReason, evidence,
		)
		if err != nil {
			return fmt.Errorf("insert signer: %w", err)
		}
	}
	for _, d := range e.Documents {
		_, err := q.ExecContext(ctx, `
			INSERT INTO envelope_documents (id, envelope_id, name, content_type, storage_key, sha256, size_bytes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			uuid.UUID(d.ID), uuid.UUID(e.ID), d.Name, d.ContentType, d.StorageKey, d.SHA256, d.SizeBytes, d.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, envelopeID id.EnvelopeID) (*models.Envelope, error) {
	q := s.execer(ctx)
	row := q.QueryRowContext(ctx, `SELECT `+envelopeColumns+` FROM envelopes WHERE id = $1`, uuid.UUID(envelopeID))
	e, err := scanEnvelope(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, q, []*models.Envelope{e}); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, tenantID id.TenantID, ownerID id.UserID, filter models.ListFilter) ([]*models.Envelope, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var status *string
	if filter.Status != nil {
		st := string(*filter.Status)
		status = &st
	}
	q := s.execer(ctx)
	rows, err := q.QueryContext(ctx, `
		SELECT `+envelopeColumns+` FROM envelopes
		WHERE tenant_id = $1 AND owner_id = $2 AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, uuid.UUID(tenantID), uuid.UUID(ownerID), status, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	defer rows.Close()

	out := []*models.Envelope{}
	for rows.Next() {
		e, err := scanEnvelope(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate envelopes: %w", err)
	}
	if err := s.loadChildren(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]id.EnvelopeID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id FROM envelopes
		WHERE status = 'READY_FOR_SIGNATURE' AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue envelopes: %w", err)
	}
	defer rows.Close()
	var ids []id.EnvelopeID
	for rows.Next() {
		var u uuid.UUID
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan overdue envelope: %w", err)
		}
		ids = append(ids, id.EnvelopeID(u))
	}
	return ids, rows.Err()
}

func (s *PostgresStore) loadChildren(ctx context.Context, q dbExecutor, envelopes []*models.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}
	byID := make(map[id.EnvelopeID]*models.Envelope, len(envelopes))
	keys := make([]string, 0, len(envelopes))
	for _, e := range envelopes {
		byID[e.ID] = e
		keys = append(keys, e.ID.String())
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, envelope_id, email, full_name, user_id, is_external, signing_order, status,
			signed_at, declined_at, decline_reason, evidence
		FROM envelope_signers WHERE envelope_id = ANY($1::uuid[])
		ORDER BY envelope_id, signing_order
	`, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("load signers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			sg         models.Signer
			signerID   uuid.UUID
			envelopeID uuid.UUID
			userID     uuid.NullUUID
			status     string
			signedAt   sql.NullTime
			declinedAt sql.NullTime
			evidence   []byte
		)
		if err := rows.Scan(&signerID, &envelopeID, &sg.Email, &sg.FullName, &userID, &sg.IsExternal,
			&sg.Order, &status, &signedAt, &declinedAt, &sg.DeclineReason, &evidence); err != nil {
			return fmt.Errorf("scan signer: %w", err)
		}
		sg.ID = id.SignerID(signerID)
		sg.EnvelopeID = id.EnvelopeID(envelopeID)
		sg.Status = models.SignerStatus(status)
		if userID.Valid {
			u := id.UserID(userID.UUID)
			sg.UserID = &u
		}
		sg.SignedAt = timePtr(signedAt)
		sg.DeclinedAt = timePtr(declinedAt)
		if len(evidence) > 0 {
			var ev models.SignatureEvidence
			if err := json.Unmarshal(evidence, &ev); err != nil {
				return fmt.Errorf("decode evidence: %w", err)
			}
			sg.Evidence = &ev
		}
		if e, ok := byID[sg.EnvelopeID]; ok {
			e.Signers = append(e.Signers, &sg)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate signers: %w", err)
	}

	docRows, err := q.QueryContext(ctx, `
		SELECT id, envelope_id, name, content_type, storage_key, sha256, size_bytes, created_at
		FROM envelope_documents WHERE envelope_id = ANY($1::uuid[])
		ORDER BY envelope_id, created_at
	`, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	defer docRows.Close()
	for docRows.Next() {
		var (
			d          models.Document
			documentID uuid.UUID
			envelopeID uuid.UUID
		)
		if err := docRows.Scan(&documentID, &envelopeID, &d.Name, &d.ContentType, &d.StorageKey,
			&d.SHA256, &d.SizeBytes, &d.CreatedAt); err != nil {
			return fmt.Errorf("scan document: %w", err)
		}
		d.ID = id.DocumentID(documentID)
		d.EnvelopeID = id.EnvelopeID(envelopeID)
		if e, ok := byID[d.EnvelopeID]; ok {
			e.Documents = append(e.Documents, &d)
		}
	}
	return docRows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEnvelope(row scanner) (*models.Envelope, error) {
	var (
		e                             models.Envelope
		envelopeID, tenantID, ownerID uuid.UUID
		status, order                 string
		expiresAt, sentAt             sql.NullTime
		completedAt, cancelledAt      sql.NullTime
		declinedAt, expiredAt         sql.NullTime
		declinedBy                    uuid.NullUUID
	)
	err := row.Scan(&envelopeID, &tenantID, &ownerID, &e.Title, &e.Description, &status, &order,
		&expiresAt, &sentAt, &completedAt, &cancelledAt, &e.CancelReason, &declinedAt,
		&declinedBy, &e.DeclineReason, &expiredAt, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("envelope: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan envelope: %w", err)
	}
	e.ID = id.EnvelopeID(envelopeID)
	e.TenantID = id.TenantID(tenantID)
	e.OwnerID = id.UserID(ownerID)
	e.Status = models.Status(status)
	e.SigningOrder = models.SigningOrder(order)
	e.ExpiresAt = timePtr(expiresAt)
	e.SentAt = timePtr(sentAt)
	e.CompletedAt = timePtr(completedAt)
	e.CancelledAt = timePtr(cancelledAt)
	e.DeclinedAt = timePtr(declinedAt)
	e.ExpiredAt = timePtr(expiredAt)
	if declinedBy.Valid {
		sid := id.SignerID(declinedBy.UUID)
		e.DeclinedBySignerID = &sid
	}
	e.Signers = []*models.Signer{}
	e.Documents = []*models.Document{}
	return &e, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
