package handler

import (
	"strings"
	"time"

	"signature-service/internal/envelope/models"
	"signature-service/internal/envelope/service"
	id "signature-service/pkg/domain"
	"signature-service/pkg/platform/audit"
)

// CreateEnvelopeRequest is the body of POST /envelopes.
type CreateEnvelopeRequest struct {
	Title        string     `json:"title" validate:"required,max=255"`
	Description  string     `json:"description" validate:"max=2000"`
	SigningOrder string     `json:"signing_order" validate:"omitempty,oneof=OWNER_FIRST INVITEES_FIRST"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

func (r *CreateEnvelopeRequest) toInput() service.CreateInput {
	return service.CreateInput{
		Title:        strings.TrimSpace(r.Title),
		Description:  r.Description,
		SigningOrder: models.SigningOrder(r.SigningOrder),
		ExpiresAt:    r.ExpiresAt,
	}
}

// UpdateEnvelopeRequest is the body of PATCH /envelopes/{id}. Omitted
// fields stay unchanged.
type UpdateEnvelopeRequest struct {
	Title        *string    `json:"title" validate:"omitempty,max=255"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	SigningOrder *string    `json:"signing_order" validate:"omitempty,oneof=OWNER_FIRST INVITEES_FIRST"`
	ExpiresAt    *time.Time `json:"expires_at"`
	ClearExpiry  bool       `json:"clear_expiry" validate:"excluded_with=ExpiresAt"`
}

func (r *UpdateEnvelopeRequest) toPatch() models.Patch {
	patch := models.Patch{
		Title:       r.Title,
		Description: r.Description,
		ExpiresAt:   r.ExpiresAt,
		ClearExpiry: r.ClearExpiry,
	}
	if r.SigningOrder != nil {
		order := models.SigningOrder(*r.SigningOrder)
		patch.SigningOrder = &order
	}
	return patch
}

// AddSignerRequest is the body of POST /envelopes/{id}/signers. SignAsOwner
// adds the caller as an internal signer; everyone else is invited by email.
type AddSignerRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	FullName    string `json:"full_name" validate:"required,max=200"`
	Order       int    `json:"order" validate:"gte=0,lte=50"`
	SignAsOwner bool   `json:"sign_as_owner"`
}

func (r *AddSignerRequest) toInput(owner service.Owner) service.SignerInput {
	in := service.SignerInput{
		Email:    r.Email,
		FullName: r.FullName,
		Order:    r.Order,
	}
	if r.SignAsOwner {
		userID := owner.UserID
		in.UserID = &userID
	}
	return in
}

// ReasonRequest is the optional body of cancel and decline.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// ListQuery holds the parsed query of GET /envelopes.
type ListQuery struct {
	Status *models.Status
	Limit  int `validate:"gte=0,lte=100"`
	Offset int `validate:"gte=0"`
}

func (q ListQuery) toFilter() models.ListFilter {
	return models.ListFilter{Status: q.Status, Limit: q.Limit, Offset: q.Offset}
}

type envelopeResponse struct {
	ID                 id.EnvelopeID       `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	Status             models.Status       `json:"status"`
	SigningOrder       models.SigningOrder `json:"signing_order"`
	Signers            []signerResponse    `json:"signers"`
	Documents          []documentResponse  `json:"documents"`
	ExpiresAt          *time.Time          `json:"expires_at,omitempty"`
	SentAt             *time.Time          `json:"sent_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason       string              `json:"cancel_reason,omitempty"`
	DeclinedAt         *time.Time          `json:"declined_at,omitempty"`
	DeclinedBySignerID *id.SignerID        `json:"declined_by_signer_id,omitempty"`
	DeclineReason      string              `json:"decline_reason,omitempty"`
	ExpiredAt          *time.Time          `json:"expired_at,omitempty"`
	Version            int                 `json:"version"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

type signerResponse struct {
	ID         id.SignerID         `json:"id"`
	Email      string              `json:"email"`
	FullName   string              `json:"full_name"`
	IsExternal bool                `json:"is_external"`
	Order      int                 `json:"order"`
	Status     models.SignerStatus `json:"status"`
	SignedAt   *time.Time          `json:"signed_at,omitempty"`
	DeclinedAt *time.Time          `json:"declined_at,omitempty"`
	Evidence   *evidenceResponse   `json:"evidence,omitempty"`
}

type evidenceResponse struct {
	IPAddress     string `json:"ip_address"`
	Browser       string `json:"browser,omitempty"`
	OS            string `json:"os,omitempty"`
	Device        string `json:"device,omitempty"`
	SignedDigest  string `json:"signed_digest"`
	Seal          string `json:"seal"`
	SealKeyID     string `json:"seal_key_id"`
	SealAlgorithm string `json:"seal_algorithm"`
}

type documentResponse struct {
	ID          id.DocumentID `json:"id"`
	Name        string        `json:"name"`
	ContentType string        `json:"content_type"`
	SHA256      string        `json:"sha256"`
	SizeBytes   int64         `json:"size_bytes"`
	CreatedAt   time.Time     `json:"created_at"`
	URL         string        `json:"url,omitempty"`
	URLExpires  *time.Time    `json:"url_expires_at,omitempty"`
}

type documentURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type inviteeResponse struct {
	EnvelopeID  id.EnvelopeID      `json:"envelope_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      models.Status      `json:"status"`
	ExpiresAt   *time.Time         `json:"expires_at,omitempty"`
	Signer      signerResponse     `json:"signer"`
	Documents   []documentResponse `json:"documents"`
}

type auditEventResponse struct {
	Action     string       `json:"action"`
	Category   string       `json:"category"`
	OccurredAt time.Time    `json:"occurred_at"`
	SignerID   *id.SignerID `json:"signer_id,omitempty"`
	ActorID    string       `json:"actor_id"`
	Reason     string       `json:"reason,omitempty"`
	IPAddress  string       `json:"ip_address,omitempty"`
	UserAgent  string       `json:"user_agent,omitempty"`
	RequestID  string       `json:"request_id,omitempty"`
}

// inviteeEnvelopeResponse is what an invitee gets back after acting. It
// omits the other signers.
type inviteeEnvelopeResponse struct {
	EnvelopeID id.EnvelopeID `json:"envelope_id"`
	Status     models.Status `json:"status"`
}

func toEnvelopeResponse(e *models.Envelope) envelopeResponse {
	resp := envelopeResponse{
		ID:                 e.ID,
		Title:              e.Title,
		Description:        e.Description,
		Status:             e.Status,
		SigningOrder:       e.SigningOrder,
		Signers:            make([]signerResponse, 0, len(e.Signers)),
		Documents:          make([]documentResponse, 0, len(e.Documents)),
		ExpiresAt:          e.ExpiresAt,
		SentAt:             e.SentAt,
		CompletedAt:        e.CompletedAt,
		CancelledAt:        e.CancelledAt,
		CancelReason:       e.CancelReason,
		DeclinedAt:         e.DeclinedAt,
		DeclinedBySignerID: e.DeclinedBySignerID,
		DeclineReason:      e.DeclineReason,
		ExpiredAt:          e.ExpiredAt,
		Version:            e.Version,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	for _, s := range e.Signers {
		resp.Signers = append(resp.Signers, toSignerResponse(s))
	}
	for _, d := range e.Documents {
		resp.Documents = append(resp.Documents, toDocumentResponse(d))
	}
	return resp
}

func toSignerResponse(s *models.Signer) signerResponse {
	resp := signerResponse{
		ID:         s.ID,
		Email:      s.Email,
		FullName:   s.FullName,
		IsExternal: s.IsExternal,
		Order:      s.Order,
		Status:     s.Status,
		SignedAt:   s.SignedAt,
		DeclinedAt: s.DeclinedAt,
	}
	if ev := s.Evidence; ev != nil {
		resp.Evidence = &evidenceResponse{
			IPAddress:     ev.IPAddress,
			Browser:       ev.Browser,
			Device:        ev.Device,
			OS:            ev.OS,
			SignedDigest:  ev.SignedDigest,
			Seal:          ev.Seal,
			SealKeyID:     ev.SealKeyID,
			SealAlgorithm: ev.SealAlgorithm,
		}
	}
	return resp
}

func toDocumentResponse(d *models.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		Name:        d.Name,
		ContentType: d.ContentType,
		SHA256:      d.SHA256,
		SizeBytes:   d.SizeBytes,
		CreatedAt:   d.CreatedAt,
	}
}

func toInviteeResponse(v *service.InviteeView) inviteeResponse {
	resp := inviteeResponse{
		EnvelopeID:  v.Envelope.ID,
		Title:       v.Envelope.Title,
		Description: v.Envelope.Description,
		Status:      v.Envelope.Status,
		ExpiresAt:   v.Envelope.ExpiresAt,
		Signer:      toSignerResponse(v.Signer),
		Documents:   make([]documentResponse, 0, len(v.Documents)),
	}
	for _, link := range v.Documents {
		doc := toDocumentResponse(link.Document)
		doc.URL = link.URL
		expires := link.ExpiresAt
		doc.URLExpires = &expires
		resp.Documents = append(resp.Documents, doc)
	}
	return resp
}

func toAuditEventResponse(ev audit.Event) auditEventResponse {
	return auditEventResponse{
		Action:     ev.Action,
		Category:   string(ev.Category),
		OccurredAt: ev.Timestamp,
		SignerID:   ev.SignerID,
		ActorID:    ev.ActorID,
		Reason:     ev.Reason,
		IPAddress:  ev.IPAddress,
		UserAgent:  ev.UserAgent,
		RequestID:  ev.RequestID,
	}
}
