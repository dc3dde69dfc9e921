package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"signature-service/internal/document"
	envelopeHandler "signature-service/internal/envelope/handler"
	outboxHandler "signature-service/internal/outbox/handler"
	ratelimitModels "signature-service/internal/ratelimit/models"
	"signature-service/internal/platform/config"
	"signature-service/pkg/platform/httputil"
	authmw "signature-service/pkg/platform/middleware/auth"
	"signature-service/pkg/platform/middleware/metadata"
	request "signature-service/pkg/platform/middleware/request"
	"signature-service/pkg/platform/middleware/requesttime"
	"signature-service/pkg/platform/sentinel"
)

const healthTimeout = 2 * time.Second

func newRouter(cfg config.Config, a *app, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(cfg.Server.TrustProxyHeaders))
	r.Use(request.Latency(a.httpMetrics))

	r.Get("/health", healthHandler(a, log))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.Server.RequestTimeout))
		requireAuth := authmw.RequireAuth(a.jwt, a.revocations, log)
		envelopeHandler.New(a.envelopes, requireAuth, log,
			envelopeHandler.WithInviteeMiddleware(a.rateLimit.RateLimit(ratelimitModels.ClassInvitation)),
		).Register(r)
		outboxHandler.New(a.outbox, cfg.Server.AdminToken, log).Register(r)
	})

	if a.localBlobs != nil {
		r.Get("/blobs/*", blobHandler(a.localBlobs))
	}
	return r
}

func healthHandler(a *app, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := a.health(ctx); err != nil {
			log.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// blobHandler serves in-memory documents behind the signed URLs the local
// store hands out, so presigned links work without S3. Local development only.
func blobHandler(store *document.InMemoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		body, contentType, err := store.Open(chi.URLParam(r, "*"), q.Get("expires"), q.Get("signature"))
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			http.Error(w, "link expired", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(body)
	}
}
