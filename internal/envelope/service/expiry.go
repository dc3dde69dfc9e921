package service

import (
	"context"
	"time"

	"signature-service/internal/envelope/models"
	invitationModels "signature-service/internal/invitation/models"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
)

const defaultSweepLimit = 100

// ExpireOverdue moves READY envelopes past their expiration to EXPIRED and
// revokes their invitations. Each envelope commits on its own so one
// conflict does not hold back the rest. Returns how many expired.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time, limit int) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "envelope.expire_overdue", id.EnvelopeID{})
	defer func() { endSpan(span, err) }()

	if limit <= 0 {
		limit = defaultSweepLimit
	}
	overdue, err := s.store.ListOverdue(ctx, now, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list overdue envelopes")
	}

	expired := 0
	for _, envelopeID := range overdue {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if err := s.expireOne(ctx, envelopeID, now); err != nil {
			if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				s.logger.InfoContext(ctx, "skipping envelope changed during expiry sweep",
					"envelope_id", envelopeID.String(),
					"error", err,
				)
				continue
			}
			return expired, err
		}
		expired++
		s.logAudit(ctx, "envelope_expired", "envelope_id", envelopeID.String())
		if s.metrics != nil {
			s.metrics.ExpirySweepFound.Inc()
			s.metrics.IncrementFinished(string(models.StatusExpired))
		}
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, envelopeID id.EnvelopeID, now time.Time) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		e, err := s.store.FindByID(ctx, envelopeID)
		if err != nil {
			return translateStore(err, "load envelope")
		}
		if err := e.Expire(now); err != nil {
			return err
		}
		if err := s.save(ctx, e); err != nil {
			return err
		}
		if _, err := s.invitations.RevokeForEnvelope(ctx, e.ID, invitationModels.ReasonEnvelopeExpired, now); err != nil {
			return err
		}
		return s.emitLifecycle(ctx, e, models.EventEnvelopeExpired, "", nil, now)
	})
}
