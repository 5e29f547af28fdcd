package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  env: test
database:
  host: db.internal
  port: 3306
  user: app
  password: secret
  name: abroadly
jwt:
  secret: file-secret
  expires_in: 12h
`)

	t.Setenv("JWT_SECRET", "")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, Duration(12*time.Hour), cfg.JWT.ExpiresIn)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: file-secret
`)

	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DB_HOST", "override.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "override.internal", cfg.Database.Host)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
`)

	t.Setenv("JWT_SECRET", "")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	db := DatabaseConfig{Host: "localhost", Port: 3306, User: "u", Password: "p", Name: "d"}
	assert.Equal(t, "u:p@tcp(localhost:3306)/d?charset=utf8mb4&parseTime=True&loc=Local", db.DSN())
}
