package archive

import (
	"context"
	"os"
	"testing"

	"github.com/HerbHall/coldguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWriter(t *testing.T) *PostgresWriter {
	t.Helper()
	dsn := os.Getenv("CG_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skipping integration test: CG_TEST_POSTGRES_DSN not set")
	}
	cfg := DefaultConfig()
	cfg.DSN = dsn
	w, err := OpenPostgres(context.Background(), cfg)
	if err != nil {
		t.Skipf("skipping integration test (DB not available): %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestPostgresWriter_WriteIsIdempotent(t *testing.T) {
	w := testWriter(t)
	ctx := context.Background()

	before, err := w.Count(ctx)
	require.NoError(t, err)

	ev := testutil.NewEvaluatedEvent(1, testutil.NewResult(testutil.Breaching()))
	require.NoError(t, w.Write(ctx, ev))
	require.NoError(t, w.Write(ctx, ev), "redelivery must not fail")

	after, err := w.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, after)
}

func TestPostgresWriter_SchemaIsReentrant(t *testing.T) {
	w := testWriter(t)
	_, err := w.db.ExecContext(context.Background(), schema)
	assert.NoError(t, err)
}
