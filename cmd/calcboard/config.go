package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/calcboard/internal/logger"
)

const (
	defaultListenAddr         = "localhost:8000"
	defaultLoggingLevel       = logger.LevelInfo
	defaultEnvironment        = logger.EnvProd
	defaultSecretKeyID        = "primary"
	defaultAccessTokenTTL     = 15 * time.Minute
	defaultRefreshTokenTTL    = 7 * 24 * time.Hour
	defaultRevocationTimeout  = 2 * time.Second
	defaultSweepInterval      = 10 * time.Minute
	defaultLoginRatePerSecond = 1.0
	defaultLoginRateBurst     = 10
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the calcboard service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key tokens are signed with and its id, written to token 'kid' header
	SecretKey   string
	SecretKeyID string

	// Keys tokens may still be verified with, in 'kid=secret,...' format
	RetiredSecretKeys string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// How long token verification waits for revocation registry before it gives up
	RevocationTimeout time.Duration

	// How often entries of expired tokens are deleted from revocation registry
	SweepInterval time.Duration

	// Per client rate of login and register requests
	LoginRatePerSecond float64
	LoginRateBurst     int

	// Take client address from X-Forwarded-For. Only for deployments behind a proxy that sets it
	TrustProxyHeaders bool

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		Environment:        defaultEnvironment,
		SecretKeyID:        defaultSecretKeyID,
		AccessTokenTTL:     defaultAccessTokenTTL,
		RefreshTokenTTL:    defaultRefreshTokenTTL,
		RevocationTimeout:  defaultRevocationTimeout,
		SweepInterval:      defaultSweepInterval,
		LoginRatePerSecond: defaultLoginRatePerSecond,
		LoginRateBurst:     defaultLoginRateBurst,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = time.ParseDuration(value)
			}
			return err
		}
	}
	setFloat := func(o *float64) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.ParseFloat(value, 64)
			}
			return err
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.Atoi(value)
			}
			return err
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) (err error) {
			if value != "" {
				*o, err = strconv.ParseBool(value)
			}
			return err
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":           setString(&c.ListenAddr),
		"DATABASE_URI":          setString(&c.DatabaseDSN),
		"SECRET_KEY":            setString(&c.SecretKey),
		"SECRET_KEY_ID":         setString(&c.SecretKeyID),
		"RETIRED_SECRET_KEYS":   setString(&c.RetiredSecretKeys),
		"ACCESS_TOKEN_TTL":      setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":     setDuration(&c.RefreshTokenTTL),
		"REVOCATION_TIMEOUT":    setDuration(&c.RevocationTimeout),
		"SWEEP_INTERVAL":        setDuration(&c.SweepInterval),
		"LOGIN_RATE_PER_SECOND": setFloat(&c.LoginRatePerSecond),
		"LOGIN_RATE_BURST":      setInt(&c.LoginRateBurst),
		"TRUST_PROXY_HEADERS":   setBool(&c.TrustProxyHeaders),
		"LOG_LEVEL":             setString(&c.LogLevel),
		"ENVIRONMENT":           setString(&c.Environment),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("calcboard", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key tokens are signed with")
	fs.StringVar(&c.SecretKeyID, "secret-key-id", c.SecretKeyID, "Id of secret key")
	fs.StringVar(&c.RetiredSecretKeys, "retired-secret-keys", c.RetiredSecretKeys, "Verification only keys: kid=secret,...")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.DurationVar(&c.RevocationTimeout, "revocation-timeout", c.RevocationTimeout, "Revocation lookup timeout")
	fs.DurationVar(&c.SweepInterval, "sweep-interval", c.SweepInterval, "Interval of revocation registry cleanup")
	fs.Float64Var(&c.LoginRatePerSecond, "login-rate", c.LoginRatePerSecond, "Login and register requests per second per client")
	fs.IntVar(&c.LoginRateBurst, "login-burst", c.LoginRateBurst, "Login and register burst per client")
	fs.BoolVar(&c.TrustProxyHeaders, "trust-proxy-headers", c.TrustProxyHeaders, "Key rate limits by X-Forwarded-For set by reverse proxy")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Check options that have no sensible default
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN is required"))
	}
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key is required"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.LoginRatePerSecond <= 0 || c.LoginRateBurst <= 0 {
		errs = append(errs, errors.New("login rate and burst must be positive"))
	}

	return errors.Join(errs...)
}
