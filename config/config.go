package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	AuthRemote = "remote"
	AuthLocal  = "local"

	StatsRemote     = "remote"
	StatsClickHouse = "clickhouse"
)

type ClickHouse struct {
	Host       string
	NativePort int
	Database   string
	Username   string
	Password   string
}

type Config struct {
	AppEnv         string
	Port           string
	GinMode        string
	FEOrigin       string
	JWTSecret      string
	SessionTTL     time.Duration
	OperatorRole   string
	AuthProvider   string
	StatsSource    string
	BackendURL     string
	BackendTimeout time.Duration
	StatsTimeout   time.Duration
	DatabaseURL    string
	IngestAPIKey   string
	ClickHouse     ClickHouse
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("FE_ORIGIN", "http://localhost:3000")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("OPERATOR_ROLE", "USER")
	v.SetDefault("AUTH_PROVIDER", AuthRemote)
	v.SetDefault("STATS_SOURCE", StatsRemote)
	v.SetDefault("BACKEND_URL", "http://localhost:8081/api/v1")
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("STATS_TIMEOUT", "15s")
	v.SetDefault("CLICKHOUSE_NATIVE_PORT", 9000)
}

// Load reads an optional .env file, then the environment. envFile may be
// empty to use ".env" in the working directory.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// DatabaseURL reads only DATABASE_URL, for commands that do not serve.
func DatabaseURL(envFile string) (string, error) {
	if envFile == "" {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFile); err != nil {
		return "", fmt.Errorf("load env file %s: %w", envFile, err)
	}
	v := viper.New()
	v.AutomaticEnv()
	url := v.GetString("DATABASE_URL")
	if url == "" {
		return "", errors.New("DATABASE_URL is required")
	}
	return url, nil
}

// FromViper builds and validates a Config from an already populated viper.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		GinMode:        v.GetString("GIN_MODE"),
		FEOrigin:       v.GetString("FE_ORIGIN"),
		JWTSecret:      v.GetString("JWT_SECRET_KEY"),
		SessionTTL:     v.GetDuration("SESSION_TTL"),
		OperatorRole:   v.GetString("OPERATOR_ROLE"),
		AuthProvider:   strings.ToLower(v.GetString("AUTH_PROVIDER")),
		StatsSource:    strings.ToLower(v.GetString("STATS_SOURCE")),
		BackendURL:     strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
		BackendTimeout: v.GetDuration("BACKEND_TIMEOUT"),
		StatsTimeout:   v.GetDuration("STATS_TIMEOUT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		IngestAPIKey:   v.GetString("AUTH_DEFAULT"),
		ClickHouse: ClickHouse{
			Host:       v.GetString("CLICKHOUSE_HOST"),
			NativePort: v.GetInt("CLICKHOUSE_NATIVE_PORT"),
			Database:   v.GetString("CLICKHOUSE_DB_NAME"),
			Username:   v.GetString("CLICKHOUSE_USERNAME"),
			Password:   v.GetString("CLICKHOUSE_PASSWORD"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	if c.OperatorRole == "" {
		errs = append(errs, errors.New("OPERATOR_ROLE must not be empty"))
	}

	switch c.AuthProvider {
	case AuthRemote:
		if c.BackendURL == "" {
			errs = append(errs, errors.New("BACKEND_URL is required for remote auth"))
		}
	case AuthLocal:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for local auth"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_PROVIDER %q is not one of remote, local", c.AuthProvider))
	}

	switch c.StatsSource {
	case StatsRemote:
		if c.BackendURL == "" {
			errs = append(errs, errors.New("BACKEND_URL is required for remote statistics"))
		}
	case StatsClickHouse:
		if c.ClickHouse.Host == "" || c.ClickHouse.NativePort == 0 || c.ClickHouse.Database == "" {
			errs = append(errs, errors.New("CLICKHOUSE_HOST, CLICKHOUSE_NATIVE_PORT and CLICKHOUSE_DB_NAME are required for clickhouse statistics"))
		}
	default:
		errs = append(errs, fmt.Errorf("STATS_SOURCE %q is not one of remote, clickhouse", c.StatsSource))
	}

	return errors.Join(errs...)
}

// ClickHouseEnabled reports whether event ingestion has somewhere to go.
func (c *Config) ClickHouseEnabled() bool {
	return c.ClickHouse.Host != "" && c.ClickHouse.Database != ""
}

func (c *Config) Release() bool {
	return c.GinMode == "release"
}
