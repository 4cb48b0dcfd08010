package logger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	obscontext "github.com/smallbiznis/utilitybilling/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithCorrelationID(ctx, "corr-9")
	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "corr-9", fields["correlation_id"])
}

func TestNewWritesToRotatingFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "service.log")

	log, err := New(nil, Config{Level: "debug", File: file})
	require.NoError(t, err)
	log.Info("written")
	require.NoError(t, log.Sync())

	assert.FileExists(t, file)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gl := NewGormLogger(zap.New(core), DefaultGormLoggerConfig())

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT * FROM invoices", 0
	}, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	gl.Trace(context.Background(), time.Now().Add(-time.Second), func() (string, int64) {
		return "UPDATE invoices SET version = 2", 1
	}, nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "UPDATE", logs.All()[0].ContextMap()["operation"])
}
