package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  endpoint: localhost:9000
  bucket_name: orders
kafka:
  brokers: ["localhost:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:9000", cfg.Storage.Endpoint)
	assert.Equal(t, 7*24*time.Hour, cfg.Storage.SignExpiry)
	assert.False(t, cfg.Storage.DeterministicPaths)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "orders.created", cfg.Kafka.Topic)
	assert.Equal(t, "auto", cfg.Matting.Size)
	assert.Equal(t, 96, cfg.Thumbnail.Width)
	assert.Equal(t, 96, cfg.Thumbnail.Height)
	assert.Equal(t, 3, cfg.Retry.Attempts)
}

func TestLoadEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, `
matting:
  api_key: from-file
`)
	t.Setenv("MATTING_API_KEY", "from-env")
	t.Setenv("DB_HOST", "db.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Matting.APIKey)
	assert.Equal(t, "db.internal", cfg.Database.Master.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	n := DatabaseNode{Host: "h", Port: "5432", User: "u", Pass: "p", Name: "orders", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/orders?sslmode=disable", n.DSN())
}
