package context

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "abc")

	_, id := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc", id)
}

func TestEnsureCorrelationIDMintsULID(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())

	_, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, CorrelationIDFromContext(ctx))
}

func TestRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  ")
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}
