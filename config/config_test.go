package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "flat", cfg.HierarchyMode)
	assert.Equal(t, "mongo", cfg.StoreBackend)
	assert.Equal(t, int64(104857600), cfg.MaxFileSize)
	assert.Equal(t, 24*time.Hour, cfg.URLTTL)
	assert.Zero(t, cfg.SweepInterval)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Development())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sql")
	t.Setenv("SQL_DRIVER", "pgx")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("TRANSFORM_TIMEOUT", "45s")
	t.Setenv("SWEEP_INTERVAL", "1h")
	t.Setenv("B2_KEY_ID", "legacy-key-id")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sql", cfg.StoreBackend)
	assert.Equal(t, "pgx", cfg.SQLDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 45*time.Second, cfg.TransformTimeout)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, "legacy-key-id", cfg.B2ApplicationKeyID)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "lots")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			JWTSecret:    "secret",
			StoreBackend: "memory",
			BlobBackend:  "memory",
			TransformRPS: 1,
		}
	}
	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.JWTSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg = valid()
	cfg.BlobBackend = "b2"
	cfg.B2ApplicationKeyID = "id"
	assert.ErrorContains(t, cfg.Validate(), "B2_APPLICATION_KEY, B2_BUCKET_NAME")

	cfg = valid()
	cfg.BlobBackend = "s3"
	cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket = "a", "b", "c"
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.StoreBackend = "sql"
	cfg.SQLDSN = "file::memory:"
	cfg.SQLDriver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "SQL_DRIVER")

	cfg = valid()
	cfg.StoreBackend = "redis"
	assert.ErrorContains(t, cfg.Validate(), "STORE_BACKEND")

	cfg = valid()
	cfg.TransformEndpoint = "https://gen.example"
	cfg.TransformRPS = 0
	assert.ErrorContains(t, cfg.Validate(), "TRANSFORM_RPS")
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "[NOT SET]", maskSecret(""))
	assert.Equal(t, "[HIDDEN]", maskSecret("short"))
	assert.Equal(t, "abcd***wxyz", maskSecret("abcdefghijklmnopqrstuvwxyz"))

	assert.Equal(t, "[CREDENTIALS_HIDDEN]@db.example:27017/app", maskConnectionString("mongodb://user:pw@db.example:27017/app"))
	assert.Equal(t, "mongodb://localhost:27017", maskConnectionString("mongodb://localhost:27017"))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NANODRIVE_TEST_VALUE=from-dotenv\n"), 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("NANODRIVE_TEST_VALUE")
	})

	LoadEnvFile(zap.NewNop())
	assert.Equal(t, "from-dotenv", os.Getenv("NANODRIVE_TEST_VALUE"))
}
