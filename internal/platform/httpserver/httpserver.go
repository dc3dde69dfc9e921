package httpserver

import (
	"net/http"
	"time"

	"signature-service/internal/platform/config"
)

// writeSlack leaves the timeout middleware room to answer before the
// server cuts the connection.
const writeSlack = 5 * time.Second

// New builds the HTTP server. Read and write deadlines follow the request
// timeout so slow document uploads fail with a response, not a reset.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + writeSlack,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 16,
	}
}
