package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
)

// Version is the config file format this build reads. Files declaring any 0.1.x
// format are accepted.
const (
	Version           = "0.1.0"
	versionConstraint = "~0.1"
)

// Environment variables that override values from the config file. They may also be
// set in a .env file next to the config file.
const (
	EnvDBHost         = "TABLESRV_DB_HOST"
	EnvDBPassword     = "TABLESRV_DB_PASSWORD"
	EnvAuthSigningKey = "TABLESRV_AUTH_SIGNING_KEY"
)

type DBConfig struct {
	Host             string `toml:"host"`
	Port             int    `toml:"port"`
	DBName           string `toml:"dbname"`
	User             string `toml:"user"`
	Password         string `toml:"password"`
	SSLMode          string `toml:"sslmode"`
	MaxOpenConns     int    `toml:"max_open_conns"`
	MaxIdleConns     int    `toml:"max_idle_conns"`
	ConnMaxLifetime  string `toml:"conn_max_lifetime"`
	StatementTimeout string `toml:"statement_timeout"` // per connection, also used as lock and idle-in-transaction timeout
}

type AuthConfig struct {
	SigningKey    string `toml:"signing_key"` // HS256 key shared with the token issuer
	Issuer        string `toml:"issuer"`
	ClockSkew     string `toml:"clock_skew"`
	TestUserID    string `toml:"test_user_id"`
	TestUserToken string `toml:"-"` // accepted only in test mode
}

type RecordsConfig struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

type RawQueryConfig struct {
	Enabled           bool     `toml:"enabled"`
	Timeout           string   `toml:"timeout"`
	TrustedProjects   []string `toml:"trusted_projects"`
	AllowTrustedScope bool     `toml:"allow_trusted_scope"` // tokens with scope "trusted" skip statement checks
}

// ConfigParam holds all configuration of the table service.
type ConfigParam struct {
	FormatVersion string `toml:"format_version"`

	ServerHostName     string   `toml:"server_hostname"`
	ServerPort         string   `toml:"server_port"`
	HandleCORS         bool     `toml:"handle_cors"`
	AllowedOrigins     []string `toml:"allowed_origins"`
	MaxRequestBodySize int64    `toml:"max_request_body_size"`
	RequestTimeout     string   `toml:"request_timeout"`
	LogLevel           string   `toml:"log_level"`

	DB       DBConfig       `toml:"db"`
	Auth     AuthConfig     `toml:"auth"`
	Records  RecordsConfig  `toml:"records"`
	RawQuery RawQueryConfig `toml:"raw_query"`
}

var cfg *ConfigParam

// Config returns the loaded configuration, or nil before LoadConfig succeeds.
func Config() *ConfigParam {
	return cfg
}

// SetConfig replaces the active configuration.
func SetConfig(c *ConfigParam) {
	cfg = c
}

// DSN returns the connection string for the service database.
func (c *ConfigParam) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.DBName, c.DB.SSLMode)
}

func (c *ConfigParam) GetRequestTimeout() time.Duration {
	return durationOrDefault(c.RequestTimeout, 30*time.Second)
}

func (c *DBConfig) GetStatementTimeout() time.Duration {
	return durationOrDefault(c.StatementTimeout, 5*time.Second)
}

func (c *DBConfig) GetConnMaxLifetime() time.Duration {
	return durationOrDefault(c.ConnMaxLifetime, 30*time.Minute)
}

func (a *AuthConfig) GetClockSkew() time.Duration {
	return durationOrDefault(a.ClockSkew, time.Minute)
}

func (r *RawQueryConfig) GetTimeout() time.Duration {
	return durationOrDefault(r.Timeout, 10*time.Second)
}

// IsTrustedProject reports whether raw queries of projectID skip statement checks.
func (r *RawQueryConfig) IsTrustedProject(projectID string) bool {
	for _, p := range r.TrustedProjects {
		if strings.EqualFold(p, projectID) {
			return true
		}
	}
	return false
}

func durationOrDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ParseDuration parses "<number><unit>" where unit is one of ms, s, m, h, d or y.
// A year is 365 days.
func ParseDuration(input string) (time.Duration, error) {
	if len(input) < 2 {
		return 0, fmt.Errorf("invalid input format")
	}
	unit := input[len(input)-1:]
	valueStr := input[:len(input)-1]
	if strings.HasSuffix(input, "ms") {
		unit = "ms"
		valueStr = input[:len(input)-2]
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", err)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative duration: %s", input)
	}

	var duration time.Duration
	switch unit {
	case "ms":
		duration = time.Duration(value) * time.Millisecond
	case "s":
		duration = time.Duration(value) * time.Second
	case "m":
		duration = time.Duration(value) * time.Minute
	case "h":
		duration = time.Duration(value) * time.Hour
	case "d":
		duration = time.Duration(value) * 24 * time.Hour
	case "y":
		duration = time.Duration(value) * 365 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit: %s", unit)
	}
	return duration, nil
}

// ValidateConfig checks required values and fills defaults.
func ValidateConfig(cfg *ConfigParam) error {
	if err := validateConfigFormatVersion(cfg); err != nil {
		return err
	}
	if err := validateServerConfig(cfg); err != nil {
		return err
	}
	if err := validateDBConfig(cfg); err != nil {
		return err
	}
	if err := validateAuthConfig(cfg); err != nil {
		return err
	}
	if err := validateRecordsConfig(cfg); err != nil {
		return err
	}
	return validateRawQueryConfig(cfg)
}

func validateConfigFormatVersion(cfg *ConfigParam) error {
	c, err := semver.NewConstraint(versionConstraint)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(cfg.FormatVersion)
	if err != nil {
		return fmt.Errorf("invalid config file format version %q: %v", cfg.FormatVersion, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("unsupported config file format version: %s", cfg.FormatVersion)
	}
	return nil
}

func validateServerConfig(cfg *ConfigParam) error {
	if cfg.ServerPort == "" {
		return fmt.Errorf("server_port is required")
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = 1 << 20
	}
	if cfg.RequestTimeout != "" {
		if _, err := ParseDuration(cfg.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout: %v", err)
		}
	}
	return nil
}

func validateDBConfig(cfg *ConfigParam) error {
	if v := os.Getenv(EnvDBHost); v != "" {
		cfg.DB.Host = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		cfg.DB.Password = v
	}
	if cfg.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	if cfg.DB.Port <= 0 {
		return fmt.Errorf("db.port must be positive")
	}
	if cfg.DB.DBName == "" {
		return fmt.Errorf("db.dbname is required")
	}
	if cfg.DB.User == "" {
		return fmt.Errorf("db.user is required")
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxOpenConns <= 0 {
		cfg.DB.MaxOpenConns = 50
	}
	if cfg.DB.MaxIdleConns <= 0 {
		cfg.DB.MaxIdleConns = 10
	}
	for name, v := range map[string]string{
		"db.conn_max_lifetime": cfg.DB.ConnMaxLifetime,
		"db.statement_timeout": cfg.DB.StatementTimeout,
	} {
		if v == "" {
			continue
		}
		if _, err := ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %v", name, err)
		}
	}
	return nil
}

func validateAuthConfig(cfg *ConfigParam) error {
	if v := os.Getenv(EnvAuthSigningKey); v != "" {
		cfg.Auth.SigningKey = v
	}
	if cfg.Auth.SigningKey == "" {
		return fmt.Errorf("auth.signing_key is required")
	}
	if len(cfg.Auth.SigningKey) < 32 {
		return fmt.Errorf("auth.signing_key must be at least 32 bytes")
	}
	if cfg.Auth.ClockSkew != "" {
		if _, err := ParseDuration(cfg.Auth.ClockSkew); err != nil {
			return fmt.Errorf("invalid auth.clock_skew: %v", err)
		}
	}
	if cfg.Auth.TestUserID == "" {
		cfg.Auth.TestUserID = "test-user"
	}
	cfg.Auth.TestUserToken = "test-user-token"
	return nil
}

func validateRecordsConfig(cfg *ConfigParam) error {
	if cfg.Records.DefaultPageSize <= 0 {
		cfg.Records.DefaultPageSize = 100
	}
	if cfg.Records.MaxPageSize <= 0 {
		cfg.Records.MaxPageSize = 1000
	}
	if cfg.Records.DefaultPageSize > cfg.Records.MaxPageSize {
		return fmt.Errorf("records.default_page_size exceeds records.max_page_size")
	}
	return nil
}

func validateRawQueryConfig(cfg *ConfigParam) error {
	if cfg.RawQuery.Timeout != "" {
		if _, err := ParseDuration(cfg.RawQuery.Timeout); err != nil {
			return fmt.Errorf("invalid raw_query.timeout: %v", err)
		}
	}
	return nil
}

// LoadConfig reads, validates and activates the config file. A .env file in the same
// directory is loaded first so that its variables can override secrets.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("config filename is required")
	}
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(filename), ".env")) // a missing .env is fine

	c := &ConfigParam{}
	if _, err := toml.Decode(string(content), c); err != nil {
		return fmt.Errorf("error parsing config file: %v", err)
	}
	if err := ValidateConfig(c); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}
	cfg = c
	return nil
}

var isTest = false

func IsTest() bool {
	return isTest
}

func SetTestMode(test bool) {
	isTest = test
}

// TestInit loads tablesrv.conf from the module root and turns on test mode.
func TestInit() {
	isTest = true
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	projectRoot := wd
	for {
		if _, err := os.Stat(filepath.Join(projectRoot, "go.mod")); err == nil {
			break
		}
		parent := filepath.Dir(projectRoot)
		if parent == projectRoot {
			panic("could not find project root (go.mod)")
		}
		projectRoot = parent
	}
	if err := LoadConfig(filepath.Join(projectRoot, "tablesrv.conf")); err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}
}
