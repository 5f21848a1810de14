package logging

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/turtacn/DealScope/pkg/errors"
)

func newTestLogger(t *testing.T) (Logger, *zaptest.Buffer) {
	t.Helper()
	buf := &zaptest.Buffer{}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), buf, level)
	return &zapLogger{z: zap.New(core), level: level}, buf
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: LevelInfo, Format: format})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_EmptyOutputPaths(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestNewDefaultAndDevelopmentLoggers(t *testing.T) {
	assert.NotNil(t, NewDefaultLogger())
	assert.NotNil(t, NewDevelopmentLogger())
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("msg")
	l.Info("msg")
	l.Warn("msg")
	l.Error("msg")
	l.SetLevel(LevelError)

	assert.Equal(t, l, l.With(String("k", "v")))
	assert.Equal(t, l, l.Named("x"))
	assert.Equal(t, l, l.WithContext(context.Background()))
	assert.Equal(t, l, l.WithError(stderrors.New("boom")))
	assert.NoError(t, l.Sync())
}

func TestZapLogger_Levels(t *testing.T) {
	l, buf := newTestLogger(t)
	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		assert.Contains(t, out, `"level":"`+lvl+`"`)
		assert.Contains(t, out, lvl+" msg")
	}
}

func TestZapLogger_SetLevelAffectsChildren(t *testing.T) {
	l, buf := newTestLogger(t)
	child := l.Named("valuation").With(String("method", "berkus"))

	l.SetLevel(LevelWarn)
	child.Info("hidden")
	child.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), `"logger":"valuation"`)
}

func TestZapLogger_WithAddsFields(t *testing.T) {
	l, buf := newTestLogger(t)
	l.With(String("foo", "bar"), Float64("base", 2.5e6)).Info("msg")
	assert.Contains(t, buf.String(), `"foo":"bar"`)
	assert.Contains(t, buf.String(), `"base":2500000`)
}

func TestZapLogger_WithContext(t *testing.T) {
	l, buf := newTestLogger(t)
	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithScope(ctx, "org-1", "", "pitch-9")

	l.WithContext(ctx).Info("msg")

	out := buf.String()
	assert.Contains(t, out, `"request_id":"req-123"`)
	assert.Contains(t, out, `"org_id":"org-1"`)
	assert.Contains(t, out, `"pitch_id":"pitch-9"`)
	assert.NotContains(t, out, `"user_id"`)
	assert.Equal(t, "req-123", RequestIDFrom(ctx))
}

func TestZapLogger_WithContextWithoutValuesReturnsSelf(t *testing.T) {
	l, _ := newTestLogger(t)
	assert.Same(t, l, l.WithContext(context.Background()))
}

func TestZapLogger_WithError_AppError(t *testing.T) {
	l, buf := newTestLogger(t)
	appErr := errors.InsufficientData("comparables need at least 2 multiples").WithDetail("sample_size=1")

	l.WithError(appErr).Error("valuation failed")

	out := buf.String()
	assert.Contains(t, out, `"error_code":"CALC_002"`)
	assert.Contains(t, out, `"error_detail":"sample_size=1"`)
	assert.Contains(t, out, `"error":"[CALC_002] comparables need at least 2 multiples: sample_size=1"`)
}

func TestZapLogger_WithError_StandardAndNil(t *testing.T) {
	l, buf := newTestLogger(t)
	l.WithError(stderrors.New("std error")).Error("msg")
	assert.Contains(t, buf.String(), `"error":"std error"`)
	assert.NotContains(t, buf.String(), "error_code")

	buf.Reset()
	l.WithError(nil).Info("msg")
	assert.NotContains(t, buf.String(), `"error"`)
}

func TestDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	l := NewNopLogger()
	SetDefault(l)
	assert.Equal(t, l, Default())

	SetDefault(nil)
	assert.Equal(t, l, Default())
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)
	assert.Equal(t, "debug", lvl.String())

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogOperationDuration(t *testing.T) {
	l, buf := newTestLogger(t)
	LogOperationDuration(l, "simulate", time.Now())
	assert.Contains(t, buf.String(), "operation completed")
	assert.Contains(t, buf.String(), `"operation":"simulate"`)
	assert.Contains(t, buf.String(), "duration_ms")

	buf.Reset()
	LogOperationDuration(l, "slow", time.Now().Add(-SlowOperationThreshold))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestLogDatabaseQuery(t *testing.T) {
	l, buf := newTestLogger(t)
	LogDatabaseQuery(l, "insert valuation_runs", time.Millisecond, 1, nil)
	assert.Contains(t, buf.String(), "database query completed")
	assert.Contains(t, buf.String(), `"query":"insert valuation_runs"`)

	buf.Reset()
	LogDatabaseQuery(l, "select", time.Millisecond, 0, stderrors.New("db error"))
	assert.Contains(t, buf.String(), "database query failed")
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, zapcore.StringType, String("k", "v").Type)
	assert.Equal(t, zapcore.Int64Type, Int64("k", 1).Type)
	assert.Equal(t, zapcore.SkipType, Err(nil).Type)
	assert.Equal(t, "request_id", FieldRequestID)
}
