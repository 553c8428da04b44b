package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_HOST", "localhost")
	t.Setenv("DATABASE_PORT", "5432")
	t.Setenv("DATABASE_USER", "postgres")
	t.Setenv("DATABASE_PASSWORD", "secret")
	t.Setenv("DATABASE_NAME", "notevault")
}

func TestNewConfig_FromEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := NewConfig("nonexistent.env")
	require.NoError(t, err)

	require.Equal(t, "localhost", cfg.Database.Host)
	require.Equal(t, "notevault", cfg.Database.Name)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, "2525", cfg.Server.Port)

	// Политика версионирования по умолчанию
	require.Equal(t, 5*time.Minute, cfg.Versioning.AutosaveInterval)
	require.Equal(t, 50, cfg.Versioning.MaxAutosaveVersions)
	require.Equal(t, 90, cfg.Versioning.RetentionDays)
	require.Equal(t, time.Hour, cfg.Versioning.SweepInterval)
}

func TestNewConfig_VersioningOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("AUTOSAVE_INTERVAL", "2m")
	t.Setenv("MAX_AUTOSAVE_VERSIONS", "10")
	t.Setenv("RETENTION_DAYS", "30")

	cfg, err := NewConfig("nonexistent.env")
	require.NoError(t, err)

	require.Equal(t, 2*time.Minute, cfg.Versioning.AutosaveInterval)
	require.Equal(t, 10, cfg.Versioning.MaxAutosaveVersions)
	require.Equal(t, 30, cfg.Versioning.RetentionDays)
}

func TestNewConfig_IncompleteDatabase(t *testing.T) {
	t.Setenv("DATABASE_HOST", "localhost")
	t.Setenv("DATABASE_PORT", "")
	t.Setenv("DATABASE_USER", "")
	t.Setenv("DATABASE_PASSWORD", "")
	t.Setenv("DATABASE_NAME", "")

	_, err := NewConfig("nonexistent.env")
	require.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "postgres",
		Password: "secret",
		Name:     "notevault",
		SSLMode:  "disable",
	}

	require.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=notevault sslmode=disable",
		db.GetDSN(),
	)
}
