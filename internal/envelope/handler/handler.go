package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"signature-service/internal/document"
	"signature-service/internal/envelope/models"
	"signature-service/internal/envelope/service"
	id "signature-service/pkg/domain"
	dErrors "signature-service/pkg/domain-errors"
	"signature-service/pkg/platform/audit"
	"signature-service/pkg/platform/httputil"
	request "signature-service/pkg/platform/middleware/request"
	"signature-service/pkg/requestcontext"
)

// InvitationHeader carries the invitee's plaintext token.
const InvitationHeader = "X-Invitation-Token"

const (
	multipartMemory = 8 << 20
	multipartSlack  = 1 << 20
)

// Service is the envelope surface the HTTP layer drives.
type Service interface {
	Create(ctx context.Context, owner service.Owner, in service.CreateInput) (*models.Envelope, error)
	Get(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID) (*models.Envelope, error)
	List(ctx context.Context, owner service.Owner, filter models.ListFilter) ([]*models.Envelope, error)
	Update(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, patch models.Patch) (*models.Envelope, error)
	AddSigner(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, in service.SignerInput) (*models.Signer, error)
	RemoveSigner(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, signerID id.SignerID) (*models.Envelope, error)
	UploadDocument(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, name, contentType string, body io.Reader) (*models.Document, error)
	DocumentURL(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, documentID id.DocumentID) (string, time.Time, error)
	Send(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID) (*models.Envelope, error)
	SignAsOwner(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, client service.ClientInfo) (*models.Envelope, error)
	Cancel(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, reason string) (*models.Envelope, error)
	Reinvite(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID, signerID id.SignerID) error
	AuditTrail(ctx context.Context, owner service.Owner, envelopeID id.EnvelopeID) ([]audit.Event, error)
	ViewAsInvitee(ctx context.Context, plaintext string) (*service.InviteeView, error)
	SignAsInvitee(ctx context.Context, plaintext string, client service.ClientInfo) (*models.Envelope, error)
	DeclineAsInvitee(ctx context.Context, plaintext, reason string) (*models.Envelope, error)
}

// Handler wires envelope endpoints to the envelope service.
type Handler struct {
	svc          Service
	logger       *slog.Logger
	requireAuth  func(http.Handler) http.Handler
	inviteeGuard []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithInviteeMiddleware adds middleware in front of the invitee routes,
// which carry no session and are guarded only by their token.
func WithInviteeMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.inviteeGuard = append(h.inviteeGuard, mw...)
	}
}

// New builds the handler. requireAuth guards the owner routes.
func New(svc Service, requireAuth func(http.Handler) http.Handler, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{svc: svc, requireAuth: requireAuth, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts owner routes under /envelopes and invitee routes under /invitations.
func (h *Handler) Register(r chi.Router) {
	r.Route("/envelopes", func(er chi.Router) {
		er.Use(h.requireAuth)
		er.Post("/", h.handleCreate)
		er.Get("/", h.handleList)
		er.Route("/{id}", func(ir chi.Router) {
			ir.Get("/", h.handleGet)
			ir.Patch("/", h.handleUpdate)
			ir.Post("/signers", h.handleAddSigner)
			ir.Delete("/signers/{signerID}", h.handleRemoveSigner)
			ir.Post("/signers/{signerID}/reinvite", h.handleReinvite)
			ir.Post("/documents", h.handleUpload)
			ir.Get("/documents/{documentID}/url", h.handleDocumentURL)
			ir.Post("/send", h.handleSend)
			ir.Post("/sign", h.handleSignAsOwner)
			ir.Post("/cancel", h.handleCancel)
			ir.Get("/audit", h.handleAuditTrail)
		})
	})
	r.Route("/invitations", func(ir chi.Router) {
		ir.Use(h.inviteeGuard...)
		ir.Get("/envelope", h.handleInviteeView)
		ir.Post("/sign", h.handleInviteeSign)
		ir.Post("/decline", h.handleInviteeDecline)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	var req CreateEnvelopeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid create envelope request", err)
		return
	}
	e, err := h.svc.Create(r.Context(), owner, req.toInput())
	if err != nil {
		h.fail(w, r, "create envelope failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toEnvelopeResponse(e))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}
	query, err := parseListQuery(r)
	if err != nil {
		h.fail(w, r, "invalid list query", err)
		return
	}
	envelopes, err := h.svc.List(r.Context(), owner, query.toFilter())
	if err != nil {
		h.fail(w, r, "list envelopes failed", err)
		return
	}
	out := make([]envelopeResponse, 0, len(envelopes))
	for _, e := range envelopes {
		out = append(out, toEnvelopeResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"envelopes": out})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Get(r.Context(), owner, envelopeID)
	if err != nil {
		h.fail(w, r, "get envelope failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnvelopeResponse(e))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	var req UpdateEnvelopeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid update envelope request", err)
		return
	}
	e, err := h.svc.Update(r.Context(), owner, envelopeID, req.toPatch())
	if err != nil {
		h.fail(w, r, "update envelope failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnvelopeResponse(e))
}

func (h *Handler) handleAddSigner(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	var req AddSignerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "invalid add signer request", err)
		return
	}
	signer, err := h.svc.AddSigner(r.Context(), owner, envelopeID, req.toInput(owner))
	if err != nil {
		h.fail(w, r, "add signer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toSignerResponse(signer))
}

func (h *Handler) handleRemoveSigner(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	signerID, err := id.ParseSignerID(chi.URLParam(r, "signerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.svc.RemoveSigner(r.Context(), owner, envelopeID, signerID)
	if err != nil {
		h.fail(w, r, "remove signer failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnvelopeResponse(e))
}

func (h *Handler) handleReinvite(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	signerID, err := id.ParseSignerID(chi.URLParam(r, "signerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.Reinvite(r.Context(), owner, envelopeID, signerID); err != nil {
		h.fail(w, r, "reinvite signer failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	events, err := h.svc.AuditTrail(r.Context(), owner, envelopeID)
	if err != nil {
		h.fail(w, r, "load audit trail failed", err)
		return
	}
	out := make([]auditEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toAuditEventResponse(ev))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, document.MaxSizeBytes+multipartSlack)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, "document upload too large", dErrors.New(dErrors.CodeValidation, "document exceeds 25MB"))
			return
		}
		h.fail(w, r, "invalid multipart upload", dErrors.New(dErrors.CodeBadRequest, "expected multipart form with a file field"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, "missing upload file", dErrors.New(dErrors.CodeBadRequest, "file field is required"))
		return
	}
	defer file.Close()

	doc, err := h.svc.UploadDocument(r.Context(), owner, envelopeID, uploadName(r, header), header.Header.Get("Content-Type"), file)
	if err != nil {
		h.fail(w, r, "upload document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDocumentResponse(doc))
}

// uploadName prefers an explicit name field over the client's filename.
func uploadName(r *http.Request, header *multipart.FileHeader) string {
	if name := r.FormValue("name"); name != "" {
		return name
	}
	return header.Filename
}

func (h *Handler) handleDocumentURL(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	documentID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	url, expiresAt, err := h.svc.DocumentURL(r.Context(), owner, envelopeID, documentID)
	if err != nil {
		h.fail(w, r, "document url failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, documentURLResponse{URL: url, ExpiresAt: expiresAt})
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	e, err := h.svc.Send(r.Context(), owner, envelopeID)
	if err != nil {
		h.fail(w, r, "send envelope failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnvelopeResponse(e))
}

func (h *Handler) handleSignAsOwner(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	e, err := h.svc.SignAsOwner(r.Context(), owner, envelopeID, clientInfo(r.Context()))
	if err != nil {
		h.fail(w, r, "owner signature failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnvelopeResponse(e))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	owner, envelopeID, ok := h.ownerAndEnvelope(w, r)
	if !ok {
		return
	}
	req, err := decodeReason(r)
	if err != nil {
		h.fail(w, r, "invalid cancel request", err)
		return
	}
	e, err := h.svc.Cancel(r.Context(), owner, envelopeID, req.Reason)
	if err != nil {
		h.fail(w, r, "cancel envelope failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toEnvelopeResponse(e))
}

func (h *Handler) handleInviteeView(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.ViewAsInvitee(r.Context(), invitationToken(r))
	if err != nil {
		h.fail(w, r, "invitee view failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toInviteeResponse(view))
}

func (h *Handler) handleInviteeSign(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.SignAsInvitee(r.Context(), invitationToken(r), clientInfo(r.Context()))
	if err != nil {
		h.fail(w, r, "invitee signature failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inviteeEnvelopeResponse{EnvelopeID: e.ID, Status: e.Status})
}

func (h *Handler) handleInviteeDecline(w http.ResponseWriter, r *http.Request) {
	req, err := decodeReason(r)
	if err != nil {
		h.fail(w, r, "invalid decline request", err)
		return
	}
	e, err := h.svc.DeclineAsInvitee(r.Context(), invitationToken(r), req.Reason)
	if err != nil {
		h.fail(w, r, "invitee decline failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inviteeEnvelopeResponse{EnvelopeID: e.ID, Status: e.Status})
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (service.Owner, bool) {
	ctx := r.Context()
	owner := service.Owner{TenantID: requestcontext.TenantID(ctx), UserID: requestcontext.UserID(ctx)}
	if owner.UserID.IsNil() || owner.TenantID.IsNil() {
		h.logger.ErrorContext(ctx, "owner missing from context despite auth middleware",
			"request_id", request.GetRequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return service.Owner{}, false
	}
	return owner, true
}

func (h *Handler) ownerAndEnvelope(w http.ResponseWriter, r *http.Request) (service.Owner, id.EnvelopeID, bool) {
	owner, ok := h.owner(w, r)
	if !ok {
		return service.Owner{}, id.EnvelopeID{}, false
	}
	envelopeID, err := id.ParseEnvelopeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return service.Owner{}, id.EnvelopeID{}, false
	}
	return owner, envelopeID, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", request.GetRequestID(ctx),
		"error", err.Error(),
	)
	httputil.WriteError(w, err)
}

func invitationToken(r *http.Request) string {
	return r.Header.Get(InvitationHeader)
}

func clientInfo(ctx context.Context) service.ClientInfo {
	return service.ClientInfo{
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
}

// decodeReason accepts an empty body.
func decodeReason(r *http.Request) (ReasonRequest, error) {
	var req ReasonRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}
	err := httputil.DecodeJSON(r, &req)
	return req, err
}

func parseListQuery(r *http.Request) (ListQuery, error) {
	var q ListQuery
	values := r.URL.Query()
	if raw := values.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Status = &status
	}
	for key, dst := range map[string]*int{"limit": &q.Limit, "offset": &q.Offset} {
		raw := values.Get(key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, dErrors.New(dErrors.CodeBadRequest, key+" must be an integer")
		}
		*dst = n
	}
	return q, httputil.ValidateStruct(q)
}
