package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sppg-platform/budget-engine/pkg/logger"
)

func traceLine(t *testing.T, level string, run func(gormlogger.Interface)) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Level: level, Output: &buf, Format: "json"})
	run(newQueryLogger(logg, 50*time.Millisecond))
	if buf.Len() == 0 {
		return nil
	}
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	return line
}

func statement() (string, int64) {
	return `SELECT * FROM "budget_allocations" WHERE id = 'a'`, 1
}

func TestQueryLoggerWarnsOnSlowStatements(t *testing.T) {
	line := traceLine(t, "info", func(q gormlogger.Interface) {
		q.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)
	})
	require.NotNil(t, line)
	assert.Equal(t, "db.slow_query", line["message"])
	assert.Equal(t, "warn", line["level"])
	assert.EqualValues(t, 1, line["rows"])
	assert.EqualValues(t, 50, line["slow_threshold_ms"])
}

func TestQueryLoggerWarnsOnFailure(t *testing.T) {
	line := traceLine(t, "info", func(q gormlogger.Interface) {
		q.Trace(context.Background(), time.Now(), statement, errors.New("relation missing"))
	})
	require.NotNil(t, line)
	assert.Equal(t, "db.query_failed", line["message"])
	assert.Equal(t, "relation missing", line["db_error"])
}

func TestQueryLoggerKeepsFastAndNotFoundAtDebug(t *testing.T) {
	assert.Nil(t, traceLine(t, "info", func(q gormlogger.Interface) {
		q.Trace(context.Background(), time.Now(), statement, gorm.ErrRecordNotFound)
	}))

	line := traceLine(t, "debug", func(q gormlogger.Interface) {
		q.Trace(context.Background(), time.Now(), statement, nil)
	})
	require.NotNil(t, line)
	assert.Equal(t, "db.query", line["message"])
	assert.Contains(t, line["sql"], "budget_allocations")
}

func TestQueryLoggerSilentMode(t *testing.T) {
	assert.Nil(t, traceLine(t, "debug", func(q gormlogger.Interface) {
		q.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now().Add(-time.Second), statement, errors.New("x"))
	}))
}

func TestQueryLoggerWithoutLogger(t *testing.T) {
	assert.Equal(t, gormlogger.Discard, newQueryLogger(nil, 0))
}
