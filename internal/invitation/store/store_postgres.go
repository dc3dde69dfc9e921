package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"signature-service/internal/invitation/models"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/sentinel"
	txcontext "signature-service/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists invitation tokens in the invitation_tokens table.
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

const tokenColumns = `id, envelope_id, signer_id, token_hash, status, expires_at, sent_at,
	last_viewed_at, view_count, used_at, revoked_at, revoked_reason, created_at`

func (s *PostgresStore) Create(ctx context.Context, t *models.Token) error {
	query := `
		INSERT INTO invitation_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID),
		uuid.UUID(t.EnvelopeID),
		uuid.UUID(t.SignerID),
		t.TokenHash,
		string(t.Status),
		t.ExpiresAt,
		t.SentAt,
		t.LastViewedAt,
		t.ViewCount,
		t.UsedAt,
		t.RevokedAt,
		t.RevokedReason,
		t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert invitation: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert invitation: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*models.Token, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM invitation_tokens WHERE token_hash = $1`, hash)
	return scanToken(row)
}

func (s *PostgresStore) FindLiveBySigner(ctx context.Context, signerID id.SignerID) (*models.Token, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM invitation_tokens
		 WHERE signer_id = $1 AND status IN ('ACTIVE', 'VIEWED')`, uuid.UUID(signerID))
	return scanToken(row)
}

// RecordView locks the row, validates it, then counts the view.
func (s *PostgresStore) RecordView(ctx context.Context, hash string, now time.Time) (*models.Token, error) {
	return s.transition(ctx, hash, now, func(t *models.Token) { t.MarkViewed(now) })
}

// Consume performs the single-use ACTIVE|VIEWED -> SIGNED transition under a row lock.
func (s *PostgresStore) Consume(ctx context.Context, hash string, now time.Time) (*models.Token, error) {
	return s.transition(ctx, hash, now, func(t *models.Token) { t.MarkUsed(now) })
}

func (s *PostgresStore) transition(ctx context.Context, hash string, now time.Time, apply func(*models.Token)) (*models.Token, error) {
	run := func(ctx context.Context, exec dbExecutor) (*models.Token, error) {
		row := exec.QueryRowContext(ctx,
			`SELECT `+tokenColumns+` FROM invitation_tokens WHERE token_hash = $1 FOR UPDATE`, hash)
		t, err := scanToken(row)
		if err != nil {
			return nil, err
		}
		if err := t.ValidateForUse(now); err != nil {
			return t, translateTokenError(err)
		}
		apply(t)
		_, err = exec.ExecContext(ctx, `
			UPDATE invitation_tokens
			SET status = $2, last_viewed_at = $3, view_count = $4, used_at = $5
			WHERE id = $1`,
			uuid.UUID(t.ID), string(t.Status), t.LastViewedAt, t.ViewCount, t.UsedAt)
		if err != nil {
			return nil, fmt.Errorf("update invitation: %w", err)
		}
		return t, nil
	}

	if tx, ok := txcontext.From(ctx); ok {
		return run(ctx, tx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin invitation tx: %w", err)
	}
	t, err := run(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invitation tx: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) RevokeLiveForSigner(ctx context.Context, signerID id.SignerID, reason string, now time.Time) ([]*models.Token, error) {
	return s.revoke(ctx, `signer_id = $3`, uuid.UUID(signerID), reason, now)
}

func (s *PostgresStore) RevokeForEnvelope(ctx context.Context, envelopeID id.EnvelopeID, reason string, now time.Time) ([]*models.Token, error) {
	return s.revoke(ctx, `envelope_id = $3`, uuid.UUID(envelopeID), reason, now)
}

func (s *PostgresStore) revoke(ctx context.Context, where string, key uuid.UUID, reason string, now time.Time) ([]*models.Token, error) {
	query := `
		UPDATE invitation_tokens
		SET status = 'REVOKED', revoked_at = $1, revoked_reason = $2
		WHERE ` + where + ` AND status IN ('ACTIVE', 'VIEWED')
		RETURNING ` + tokenColumns
	rows, err := s.execer(ctx).QueryContext(ctx, query, now, reason, key)
	if err != nil {
		return nil, fmt.Errorf("revoke invitations: %w", err)
	}
	defer rows.Close()

	var revoked []*models.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		revoked = append(revoked, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked invitations: %w", err)
	}
	return revoked, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx,
		`DELETE FROM invitation_tokens WHERE expires_at <= $1 AND status <> 'SIGNED'`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired invitations: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (*models.Token, error) {
	var (
		t                               models.Token
		tokenID, envelopeID, signerID   uuid.UUID
		status                          string
		lastViewedAt, usedAt, revokedAt sql.NullTime
	)
	err := row.Scan(
		&tokenID, &envelopeID, &signerID, &t.TokenHash, &status, &t.ExpiresAt, &t.SentAt,
		&lastViewedAt, &t.ViewCount, &usedAt, &revokedAt, &t.RevokedReason, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invitation not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	t.ID = id.InvitationTokenID(tokenID)
	t.EnvelopeID = id.EnvelopeID(envelopeID)
	t.SignerID = id.SignerID(signerID)
	t.Status = models.Status(status)
	t.LastViewedAt = nullTime(lastViewedAt)
	t.UsedAt = nullTime(usedAt)
	t.RevokedAt = nullTime(revokedAt)
	return &t, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
