package gorm_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	adapter "github.com/agromano/identity-gate/internal/logger/adapter/gorm"
)

func TestTrace(t *testing.T) {
	fc := func() (string, int64) { return "SELECT 1", 1 }

	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		begin   time.Time
		err     error
		want    string
		wantOut bool
	}{
		{"silent", gormlogger.Silent, time.Now(), errors.New("boom"), "", false},
		{"error", gormlogger.Error, time.Now(), errors.New("boom"), "query failed", true},
		{"record not found is quiet", gormlogger.Error, time.Now(), gorm.ErrRecordNotFound, "", false},
		{"slow query", gormlogger.Warn, time.Now().Add(-time.Second), nil, "slow query", true},
		{"info query", gormlogger.Info, time.Now(), nil, "query", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			zl := zerolog.New(&buf).Level(zerolog.DebugLevel)
			ctx := zl.WithContext(context.Background())

			l := adapter.New(gormlogger.Silent, 100*time.Millisecond).LogMode(tt.level)
			l.Trace(ctx, tt.begin, fc, tt.err)

			if !tt.wantOut {
				assert.Empty(t, buf.String())
				return
			}

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "SELECT 1")
		})
	}
}

func TestInfoWarnError(t *testing.T) {
	var buf bytes.Buffer

	zl := zerolog.New(&buf)
	ctx := zl.WithContext(context.Background())

	l := adapter.New(gormlogger.Warn, 0)
	l.Info(ctx, "hidden %d", 1)
	l.Warn(ctx, "shown %d", 2)
	l.Error(ctx, "shown %d", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), "shown 3")
}
