package database

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "sqlite", cfg: Config{Driver: DriverSQLite, DSN: ":memory:"}},
		{name: "postgres", cfg: Config{Driver: DriverPostgres, DSN: "host=localhost dbname=catalog"}},
		{name: "unknown driver", cfg: Config{Driver: "mysql", DSN: "x"}, wantErr: true},
		{name: "missing dsn", cfg: Config{Driver: DriverSQLite}, wantErr: true},
		{name: "negative pool", cfg: Config{Driver: DriverSQLite, DSN: "x", MaxOpenConns: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConnect_InMemorySingleConnection(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, DSN: ":memory:", MaxOpenConns: 10}, nil)
	require.NoError(t, err)

	stats, err := GetPoolStats(db)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)

	// Concurrent queries share the single connection and see the same schema.
	require.NoError(t, db.Exec("CREATE TABLE probe (id INTEGER)").Error)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var count int64
			assert.NoError(t, db.Raw("SELECT COUNT(*) FROM probe").Scan(&count).Error)
		}()
	}
	wg.Wait()
}

func TestConnect_PoolDefaults(t *testing.T) {
	dsn := t.TempDir() + "/catalog.db"
	db, err := Connect(Config{Driver: DriverSQLite, DSN: dsn}, hclog.NewNullLogger())
	require.NoError(t, err)

	stats, err := GetPoolStats(db)
	require.NoError(t, err)
	assert.Equal(t, 25, stats.MaxOpenConnections)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestConnect_Invalid(t *testing.T) {
	_, err := Connect(Config{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid database config")
}

func TestGormLogger(t *testing.T) {
	var buf bytes.Buffer
	log := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Trace})
	gl := NewGormLogger(log)

	gl.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, errors.New("no such table"))
	assert.Contains(t, buf.String(), "database query failed")
	assert.Contains(t, buf.String(), "no such table")

	buf.Reset()
	gl.LogMode(logger.Silent).Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	assert.Empty(t, buf.String())
}
