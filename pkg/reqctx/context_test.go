package reqctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = SetRequestID(ctx, "req-1")
	ctx = SetSource(ctx, "kafka")
	ctx = SetFormKind(ctx, "fact_find")
	ctx = SetRoute(ctx, "/ff")
	ctx = SetRemoteIP(ctx, "10.0.0.7")
	ctx = SetOperator(ctx, "adviser@clover.nz")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "kafka", GetSource(ctx))
	assert.Equal(t, "fact_find", GetFormKind(ctx))
	assert.Equal(t, "/ff", GetRoute(ctx))
	assert.Equal(t, "10.0.0.7", GetRemoteIP(ctx))
	assert.Equal(t, "adviser@clover.nz", GetOperator(ctx))
	assert.Empty(t, GetReferer(ctx))
}
