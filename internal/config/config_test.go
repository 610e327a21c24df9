package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "invoice-bookkeeping", cfg.App.Name)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8600"}, cfg.HTTP.CORSAllowOrigins)
	assert.Equal(t, int64(10<<20), cfg.HTTP.MaxUploadBytes)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 50, cfg.Query.DefaultPageSize)
	assert.Equal(t, 200, cfg.Query.MaxPageSize)
	assert.True(t, cfg.Stats.DriftTolerance.IsZero())
	assert.Equal(t, "100000000.00", cfg.Repair.LargeTotalThreshold.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BOOKKEEPING_APP_PORT", "9000")
	t.Setenv("BOOKKEEPING_DATABASE_DRIVER", "SQLite")
	t.Setenv("BOOKKEEPING_DATABASE_PATH", "/tmp/x.db")
	t.Setenv("BOOKKEEPING_HTTP_ADMIN_TOKEN", "secret")
	t.Setenv("BOOKKEEPING_QUERY_MAX_PAGE_SIZE", "500")
	t.Setenv("BOOKKEEPING_REPAIR_LARGE_TOTAL_THRESHOLD", "1.000.000.000")
	t.Setenv("BOOKKEEPING_IDEMPOTENCY_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "secret", cfg.HTTP.AdminToken)
	assert.Equal(t, 500, cfg.Query.MaxPageSize)
	assert.Equal(t, "1000000000.00", cfg.Repair.LargeTotalThreshold.String())
	assert.Equal(t, time.Hour, cfg.Idempotency.TTL)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("BOOKKEEPING_DATABASE_DRIVER", "mysql")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("idle exceeds open", func(t *testing.T) {
		t.Setenv("BOOKKEEPING_DATABASE_MAX_OPEN_CONNS", "2")
		t.Setenv("BOOKKEEPING_DATABASE_MAX_IDLE_CONNS", "5")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("production needs secrets", func(t *testing.T) {
		t.Setenv("BOOKKEEPING_APP_ENV", "production")
		t.Setenv("BOOKKEEPING_DATABASE_PASSWORD", "pw")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "admin_token")

		t.Setenv("BOOKKEEPING_HTTP_ADMIN_TOKEN", "tok")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})

	t.Run("bad threshold", func(t *testing.T) {
		t.Setenv("BOOKKEEPING_REPAIR_LARGE_TOTAL_THRESHOLD", "lots")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "books", SSLMode: "require"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=books sslmode=require", d.DSN())
	assert.Equal(t, "postgres://u:p@db:5433/books?sslmode=require", d.URL())
}

func TestInitDB_SQLite(t *testing.T) {
	cfg := DatabaseConfig{
		Driver:   "sqlite",
		Path:     filepath.Join(t.TempDir(), "books.db"),
		LogLevel: "silent",
	}
	db, err := InitDB(cfg, zap.NewNop())
	require.NoError(t, err)
	defer CloseDB(db)

	var one int
	require.NoError(t, db.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}
