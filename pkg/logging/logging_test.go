package logging

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/pkg/reqctx"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "debug", want: "debug"},
		{in: "INFO", want: "info"},
		{in: "", want: "info"},
		{in: "warning", want: "warn"},
		{in: "error", want: "error"},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lvl, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, lvl.String())
		})
	}
}

func TestNew(t *testing.T) {
	logger, zl, err := New("debug", true)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.True(t, zl.Core().Enabled(zap.DebugLevel))

	_, zl, err = New("warn", false)
	require.NoError(t, err)
	assert.False(t, zl.Core().Enabled(zap.InfoLevel))

	_, _, err = New("loud", false)
	assert.Error(t, err)
}

func TestWithRequestFields(t *testing.T) {
	ctx := reqctx.SetRequestID(context.Background(), "req-1")
	ctx = reqctx.SetSource(ctx, "gravity-forms")

	msg := WithRequestFields(ectologger.EctoLogMessage{
		Ctx:    ctx,
		Fields: map[string]any{"identity_key": "a@x.nz", "request_id": "explicit"},
	})
	assert.Equal(t, map[string]any{"identity_key": "a@x.nz", "request_id": "explicit", "source": "gravity-forms"}, msg.Fields)

	bare := ectologger.EctoLogMessage{Ctx: context.Background(), Fields: map[string]any{"a": 1}}
	assert.Equal(t, bare.Fields, WithRequestFields(bare).Fields)

	assert.Nil(t, WithRequestFields(ectologger.EctoLogMessage{}).Fields)
}
