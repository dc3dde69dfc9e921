//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"signature-service/pkg/testutil/containers"
)

func TestPostgresStoreContract(t *testing.T) {
	pg := containers.NewPostgres(t)
	runContract(t, func(t *testing.T) outboxStore {
		require.NoError(t, pg.Truncate(context.Background(), "outbox"))
		return NewPostgres(pg.DB)
	})
}
