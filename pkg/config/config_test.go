package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-pos-api/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "dev", cfg.IRP.Env)
	assert.Equal(t, 20*time.Second, cfg.IRP.Timeout)
	assert.Equal(t, "INV", cfg.Sales.InvoicePrefix)
	assert.Equal(t, 2, cfg.Sales.MaxConflictRetries)
	assert.True(t, cfg.Sales.RoundToRupee)
	assert.Equal(t, "500", cfg.Compliance.Threshold.String())
	assert.Equal(t, 24*time.Hour, cfg.Compliance.CancelWindow)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("SALES_UNKNOWN_BUYER_STATE", "Reject")
	t.Setenv("SALES_ROUND_TO_RUPEE", "false")
	t.Setenv("EINVOICE_THRESHOLD", "0")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, "reject", cfg.Sales.UnknownBuyerState)
	assert.False(t, cfg.Sales.RoundToRupee)
	assert.True(t, cfg.Compliance.Threshold.IsZero())
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoad_Rejects(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("IRP_ENV", "prod")
	_, err := config.Load()
	assert.Error(t, err, "prod needs a base URL")

	t.Setenv("IRP_ENV", "dev")
	t.Setenv("EINVOICE_THRESHOLD", "lots")
	_, err = config.Load()
	assert.Error(t, err)
}

func TestDSN_EscapesPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "pos", Password: "p@ss:word", DBName: "agro", SSLMode: "disable"}
	assert.Equal(t, "postgres://pos:p%40ss%3Aword@db:5432/agro?sslmode=disable", c.DSN())
	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}
