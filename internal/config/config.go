// Package config loads server settings from an optional YAML file, a .env
// file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/quipper/poc/sis/be/pkg/common/cache"
	"github.com/quipper/poc/sis/be/pkg/common/mailer"
)

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Port               string        `yaml:"port"`
		PublicBaseURL      string        `yaml:"public_base_url"`
		MaxBodySize        int64         `yaml:"max_body_size"`
		ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
		CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	Store struct {
		// sqlite | postgres | firestore
		Driver          string `yaml:"driver"`
		SQLitePath      string `yaml:"sqlite_path"`
		PostgresDSN     string `yaml:"postgres_dsn"`
		ProjectID       string `yaml:"project_id"`
		CredentialsFile string `yaml:"credentials_file"`
	} `yaml:"store"`

	Identity struct {
		// local | firebase
		Driver        string        `yaml:"driver"`
		SQLitePath    string        `yaml:"sqlite_path"`
		Issuer        string        `yaml:"issuer"`
		SessionTTL    time.Duration `yaml:"session_ttl"`
		ActionTTL     time.Duration `yaml:"action_ttl"`
		ActionSecret  string        `yaml:"action_secret"`
		ActionBaseURL string        `yaml:"action_base_url"`
		KeyID         string        `yaml:"key_id"`
		PrivateKeyPEM string        `yaml:"private_key_pem"`
		PrivateKeyB64 string        `yaml:"private_key_b64"`
		// Firebase only.
		ProjectID       string `yaml:"project_id"`
		CredentialsFile string `yaml:"credentials_file"`
		APIKey          string `yaml:"api_key"`
	} `yaml:"identity"`

	Revocation struct {
		SQLitePath    string        `yaml:"sqlite_path"`
		PurgeInterval time.Duration `yaml:"purge_interval"`
	} `yaml:"revocation"`

	Cache        cache.Config  `yaml:"cache"`
	SessionCache time.Duration `yaml:"session_cache_ttl"`

	SMTP mailer.Config `yaml:"smtp"`

	Reconcile struct {
		// Zero disables the in-process schedule.
		Interval    time.Duration `yaml:"interval"`
		Concurrency int           `yaml:"concurrency"`
	} `yaml:"reconcile"`
}

// Load reads path when non-empty, then .env, then the process environment.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	// a missing .env is fine
	_ = godotenv.Load()

	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "debug"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://localhost:" + c.Server.Port
	}
	if c.Server.MaxBodySize == 0 {
		c.Server.MaxBodySize = 2_100_000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "sqlite"
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = "./sis.db"
	}
	if c.Identity.Driver == "" {
		c.Identity.Driver = "local"
	}
	if c.Identity.SQLitePath == "" {
		c.Identity.SQLitePath = "./identity.db"
	}
	if c.Identity.Issuer == "" {
		c.Identity.Issuer = c.Server.PublicBaseURL
	}
	if c.Identity.SessionTTL == 0 {
		c.Identity.SessionTTL = time.Hour
	}
	if c.Identity.ActionTTL == 0 {
		c.Identity.ActionTTL = time.Hour
	}
	if c.Identity.ActionBaseURL == "" {
		c.Identity.ActionBaseURL = strings.TrimRight(c.Server.PublicBaseURL, "/") + "/auth/action"
	}
	if c.Identity.ProjectID == "" {
		c.Identity.ProjectID = c.Store.ProjectID
	}
	if c.Identity.CredentialsFile == "" {
		c.Identity.CredentialsFile = c.Store.CredentialsFile
	}
	if c.Revocation.SQLitePath == "" {
		c.Revocation.SQLitePath = "./revocation.db"
	}
	if c.Revocation.PurgeInterval == 0 {
		c.Revocation.PurgeInterval = time.Hour
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "sis"
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 2 * time.Minute
	}
	if c.SessionCache == 0 {
		c.SessionCache = 5 * time.Minute
	}
	if c.Reconcile.Concurrency == 0 {
		c.Reconcile.Concurrency = 4
	}
}

func (c *Config) applyEnvOverrides() {
	setStr(&c.App.Env, "APP_ENV")
	setStr(&c.App.LogLevel, "LOG_LEVEL")

	setStr(&c.Server.Port, "PORT")
	setStr(&c.Server.PublicBaseURL, "PUBLIC_BASE_URL")
	if v, ok := getEnvInt("MAX_BODY_SIZE"); ok {
		c.Server.MaxBodySize = int64(v)
	}
	setDur(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	if v, ok := getEnvCSV("CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}

	setStr(&c.Store.Driver, "STORE_DRIVER")
	setStr(&c.Store.SQLitePath, "SQLITE_PATH")
	setStr(&c.Store.PostgresDSN, "POSTGRES_DSN")
	setStr(&c.Store.ProjectID, "FIRESTORE_PROJECT_ID")
	setStr(&c.Store.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")

	setStr(&c.Identity.Driver, "IDENTITY_DRIVER")
	setStr(&c.Identity.SQLitePath, "IDENTITY_SQLITE_PATH")
	setStr(&c.Identity.Issuer, "PLATFORM_ISSUER")
	setDur(&c.Identity.SessionTTL, "SESSION_TTL")
	setDur(&c.Identity.ActionTTL, "ACTION_TTL")
	setStr(&c.Identity.ActionSecret, "ACTION_SECRET")
	setStr(&c.Identity.ActionBaseURL, "ACTION_BASE_URL")
	setStr(&c.Identity.KeyID, "PLATFORM_KID")
	setStr(&c.Identity.PrivateKeyPEM, "PLATFORM_PRIVATE_KEY_PEM")
	setStr(&c.Identity.PrivateKeyB64, "PLATFORM_PRIVATE_KEY_B64")
	setStr(&c.Identity.ProjectID, "FIREBASE_PROJECT_ID")
	setStr(&c.Identity.APIKey, "FIREBASE_API_KEY")

	setStr(&c.Revocation.SQLitePath, "REVOCATION_SQLITE_PATH")
	setDur(&c.Revocation.PurgeInterval, "REVOCATION_PURGE_INTERVAL")

	setStr(&c.Cache.Driver, "CACHE_DRIVER")
	setStr(&c.Cache.Addr, "REDIS_ADDR")
	setStr(&c.Cache.Password, "REDIS_PASSWORD")
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.DB = v
	}
	setDur(&c.SessionCache, "SESSION_CACHE_TTL")

	setStr(&c.SMTP.Host, "SMTP_HOST")
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	setStr(&c.SMTP.From, "SMTP_FROM")
	setStr(&c.SMTP.User, "SMTP_USER")
	setStr(&c.SMTP.Pass, "SMTP_PASS")
	setStr(&c.SMTP.TLSMode, "SMTP_TLS")
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	setDur(&c.Reconcile.Interval, "RECONCILE_INTERVAL")
	if v, ok := getEnvInt("RECONCILE_CONCURRENCY"); ok {
		c.Reconcile.Concurrency = v
	}
}

// Validate rejects unknown drivers and missing driver settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "sqlite":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store: postgres_dsn required"))
		}
	case "firestore":
		if c.Store.ProjectID == "" {
			errs = append(errs, errors.New("store: project_id required"))
		}
	default:
		errs = append(errs, fmt.Errorf("store: unknown driver %q", c.Store.Driver))
	}
	switch c.Identity.Driver {
	case "local":
		if c.Identity.ActionSecret == "" && c.App.Env == "prod" {
			errs = append(errs, errors.New("identity: action_secret required in prod"))
		}
	case "firebase":
		if c.Identity.APIKey == "" {
			errs = append(errs, errors.New("identity: api_key required"))
		}
	default:
		errs = append(errs, fmt.Errorf("identity: unknown driver %q", c.Identity.Driver))
	}
	switch c.Cache.Driver {
	case "memory":
	case "redis":
		if c.Cache.Addr == "" {
			errs = append(errs, errors.New("cache: addr required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache: unknown driver %q", c.Cache.Driver))
	}
	return errors.Join(errs...)
}

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

func setStr(dst *string, key string) {
	if v, ok := getEnvStr(key); ok {
		*dst = v
	}
}

func setDur(dst *time.Duration, key string) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			*dst = d
		}
	}
}
