package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: ComponentHTTP,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithModel("daily:all:lags=14", "daily").
		WithTarget("income", "linear", 1.5, 2).
		WithError(errors.New("boom")).
		With(FieldRunID, "r1")

	assert.Equal(t, "daily:all:lags=14", f[FieldModelName])
	assert.Equal(t, "linear", f[FieldAlgo])
	assert.Equal(t, "boom", f[FieldError])
	assert.Equal(t, "r1", f[FieldRunID])
	assert.Len(t, f.ToSlice(), 2*len(f))
}

func TestRequestIDAndAccessMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf)

	var seen *Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	h := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req_1" })(
		AccessMiddleware(NewStructuredLogger(logger))(inner)))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/forecast/daily?horizon=3", nil))

	require.NotNil(t, seen)
	seen.Info("inside handler")
	out := buf.String()
	assert.Contains(t, out, "request_id=req_1")
	assert.Contains(t, out, "status_code=418")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/forecast/daily")
}

func TestFromContextWithoutLogger(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.NotNil(t, FromContext(r.Context()))
}

func TestLogTrainingCompleted(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(bufferLogger(&buf))

	sl.LogTrainingCompleted(context.Background(), "monthly:all:lags=6", "monthly", "run-9", "")
	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), "run_id=run-9")

	buf.Reset()
	sl.LogTrainingCompleted(context.Background(), "monthly:all:lags=6", "monthly", "run-9", "no monthly history")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `warning="no monthly history"`)
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: ParseFormat(" JSON "), Component: ComponentWorker, Output: &buf})

	logger.Info("dropped")
	logger.Warn("retrain skipped", FieldModelName, "daily:all:lags=14")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"retrain skipped"`)
	assert.Contains(t, out, `"component":"worker"`)
	assert.Equal(t, FormatText, ParseFormat("logfmt"))
}
