package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"signature-service/internal/platform/config"
)

func TestNewFollowsRequestTimeout(t *testing.T) {
	srv := New(config.Server{Addr: ":9090", RequestTimeout: 20 * time.Second}, http.NotFoundHandler())

	assert.Equal(t, ":9090", srv.Addr)
	assert.Equal(t, 20*time.Second, srv.ReadTimeout)
	assert.Equal(t, 25*time.Second, srv.WriteTimeout)
	assert.Equal(t, 1<<16, srv.MaxHeaderBytes)
}
