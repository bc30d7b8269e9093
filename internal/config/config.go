package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Auth modes.
const (
	AuthLocal  = "local"
	AuthJWT    = "jwt"
	AuthRemote = "remote"
)

type Config struct {
	Env             string        `env:"APP_ENV" envDefault:"development"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	Addr            string        `env:"HTTP_ADDR" envDefault:":8088"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	DBType       string `env:"STORAGE_BACKEND" envDefault:"file"`
	DBDSN        string `env:"POSTGRES_DSN"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"data/focus.db"`
	FileSessions string `env:"SESSIONS_FILE" envDefault:"data/sessions.json"`
	FileEvents   string `env:"EVENTS_FILE" envDefault:"data/events.json"`
	FileUsers    string `env:"USERS_FILE" envDefault:"data/users.json"`

	AuthMode       string `env:"AUTH_MODE" envDefault:"local"`
	AuthToken      string `env:"AUTH_TOKEN" envDefault:"MOCK-TOKEN"`
	AuthUserID     string `env:"AUTH_USER_ID" envDefault:"u1"`
	JWTSecret      string `env:"JWT_SECRET"`
	AuthServiceURL string `env:"AUTH_SERVICE_URL"`
}

var (
	cfg  *Config
	once sync.Once
)

// Load reads .env and the environment once. It panics on invalid config and
// is meant for process bootstrap; use Parse where an error is preferable.
func Load() *Config {
	once.Do(func() {
		c, err := LoadFile(".env")
		if err != nil {
			panic("Invalid config: " + err.Error())
		}
		cfg = c
	})
	return cfg
}

// LoadFile applies the optional .env file at path, then parses the environment.
func LoadFile(path string) (*Config, error) {
	if err := loadDotEnv(path); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse()
}

// Parse builds a Config from the current environment and validates it.
func Parse() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return errors.New("APP_ENV must be one of: development, staging, production")
	}
	switch c.DBType {
	case BackendFile:
		if c.FileSessions == "" || c.FileEvents == "" || c.FileUsers == "" {
			return errors.New("file storage requires SESSIONS_FILE, EVENTS_FILE and USERS_FILE to be set")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
		}
	case BackendPostgres:
		if c.DBDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
		}
	default:
		return errors.New("STORAGE_BACKEND must be one of: file, sqlite, postgres")
	}
	switch c.AuthMode {
	case AuthLocal:
		if c.AuthToken == "" || c.AuthUserID == "" {
			return errors.New("AUTH_TOKEN and AUTH_USER_ID are required when AUTH_MODE=local")
		}
		if c.Env == "production" {
			return errors.New("AUTH_MODE=local is not allowed in production")
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case AuthRemote:
		if c.AuthServiceURL == "" {
			return errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote")
		}
	default:
		return errors.New("AUTH_MODE must be one of: local, jwt, remote")
	}
	return nil
}

// loadDotEnv sets KEY=VALUE pairs from path. Variables already present in
// the environment win.
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}
