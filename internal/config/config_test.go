package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "8080", c.Server.Port)
	require.Equal(t, "sqlite", c.Store.Driver)
	require.Equal(t, "local", c.Identity.Driver)
	require.Equal(t, "memory", c.Cache.Driver)
	require.Equal(t, "http://localhost:8080/auth/action", c.Identity.ActionBaseURL)
	require.Equal(t, time.Hour, c.Identity.SessionTTL)
	require.Zero(t, c.Reconcile.Interval)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  public_base_url: https://sis.example.edu
store:
  driver: postgres
  postgres_dsn: postgres://localhost/sis
identity:
  session_ttl: 30m
reconcile:
  interval: 15m
`), 0o600))
	t.Setenv("PORT", "9100")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "9100", c.Server.Port)
	require.Equal(t, "postgres", c.Store.Driver)
	require.Equal(t, 30*time.Minute, c.Identity.SessionTTL)
	require.Equal(t, 15*time.Minute, c.Reconcile.Interval)
	require.Equal(t, "https://sis.example.edu", c.Identity.Issuer)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.CORSAllowedOrigins)
}

func TestValidateRejectsIncompleteDrivers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("CACHE_DRIVER", "redis")
	_, err := Load("")
	require.ErrorContains(t, err, "postgres_dsn required")
	require.ErrorContains(t, err, "addr required for redis")

	t.Setenv("STORE_DRIVER", "mongo")
	_, err = Load("")
	require.ErrorContains(t, err, `unknown driver "mongo"`)
}
