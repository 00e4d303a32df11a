package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var _ gormlogger.Interface = (*GormLogger)(nil)

func sqlFn(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestGormLogger_Trace(t *testing.T) {
	t.Run("logs errors", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), sqlFn("UPDATE invoices SET status = ?"), errors.New("deadlock"))

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "SQL Error", entries[0].Message)
	})

	t.Run("ignores record not found", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT * FROM payments"), gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("warns on slow queries", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn, WithSlowThreshold(time.Millisecond))

		gl.Trace(context.Background(), time.Now().Add(-time.Second), sqlFn("SELECT 1"), nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "Slow SQL", entries[0].Message)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	})

	t.Run("debug logs queries at info level with request id", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Info, WithSlowThreshold(0))
		ctx := WithRequestID(context.Background(), "req-sql")

		gl.Trace(ctx, time.Now(), sqlFn("SELECT 1"), nil)

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "req-sql", entries[0].ContextMap()["request_id"])
	})

	t.Run("retryable conflicts are warnings", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		conflict := errors.New("could not serialize access")
		gl := NewGormLogger(zap.New(core), gormlogger.Warn,
			WithRetryableErrors(func(err error) bool { return errors.Is(err, conflict) }))
		ctx := WithCompanyID(context.Background(), "company-7")

		gl.Trace(ctx, time.Now(), sqlFn("SELECT * FROM invoices FOR UPDATE"), conflict)
		gl.Trace(ctx, time.Now(), sqlFn("INSERT INTO payments"), errors.New("constraint"))

		entries := recorded.All()
		require.Len(t, entries, 2)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "SQL conflict, transaction will be retried", entries[0].Message)
		assert.Equal(t, "company-7", entries[0].ContextMap()["company_id"])
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	})

	t.Run("fast successful queries are skipped below info", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Warn)

		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1"), nil)
		assert.Empty(t, recorded.All())
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		gl := NewGormLogger(zap.New(core), gormlogger.Silent)

		gl.Trace(context.Background(), time.Now(), sqlFn("SELECT 1"), errors.New("x"))
		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_LogMode(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), gormlogger.Silent)

	loud := gl.LogMode(gormlogger.Info)
	loud.Info(context.Background(), "migrated %d tables", 4)
	gl.Info(context.Background(), "quiet")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "migrated 4 tables", entries[0].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("other"))
}
