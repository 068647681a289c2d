package logging

import (
	"fmt"
	"strings"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/clover/pkg/reqctx"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// New builds a zap backed logger. Pretty selects the console encoder used in local development.
func New(level string, pretty bool) (ectologger.Logger, *zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	config := zap.NewProductionConfig()
	if pretty {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	zl, err := config.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	return zapadapter.NewZapEctoLogger(zl, WithRequestFields), zl, nil
}

func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel, nil
	case "", "info":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// WithRequestFields copies the request id, form source and trace id from the log context
// onto the message.
func WithRequestFields(msg ectologger.EctoLogMessage) ectologger.EctoLogMessage {
	if msg.Ctx == nil {
		return msg
	}

	extra := map[string]any{}
	if id := reqctx.GetRequestID(msg.Ctx); id != "" {
		extra["request_id"] = id
	}
	if source := reqctx.GetSource(msg.Ctx); source != "" {
		extra["source"] = source
	}
	if traceID := tracing.GetTraceID(msg.Ctx); traceID != "" {
		extra["trace_id"] = traceID
	}
	if len(extra) == 0 {
		return msg
	}

	msg.Fields = ectolinq.Merge(extra, msg.Fields)
	return msg
}
