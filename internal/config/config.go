// Package config loads application settings from environment variables,
// applies defaults and validates everything at startup so a bad setting
// fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Rules    RulesConfig
	Run      RunConfig
	History  HistoryConfig
	Database DatabaseConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"2m"`
}

// UploadConfig limits uploaded files.
type UploadConfig struct {
	// MaxFileSize is the maximum data file size in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxRulesSize is the maximum rule source size in bytes (default: 256KB)
	MaxRulesSize int64 `env:"UPLOAD_MAX_RULES_SIZE" default:"262144"`

	// PreviewRows is how many rows the data preview shows (default: 20)
	PreviewRows int `env:"UPLOAD_PREVIEW_ROWS" default:"20"`

	// ExpectedSheets are sheet names the data file should contain; missing
	// ones are reported when the file is inspected
	ExpectedSheets []string `env:"UPLOAD_EXPECTED_SHEETS"`
}

// RulesConfig controls how rule sources are discovered and run.
type RulesConfig struct {
	// Mode is the default discovery mode: fixed-name, discover-all or
	// allow-list (default: fixed-name)
	Mode string `env:"RULES_MODE" default:"fixed-name"`

	// EntryPoints are the fixed-name candidates, tried in order
	EntryPoints []string `env:"RULES_ENTRY_POINTS" default:"CheckRules,check_rules,ApplyRules,apply_rules"`

	// Allow lists the rule names run in allow-list mode
	Allow []string `env:"RULES_ALLOW"`

	// ExtraImports adds packages to the import allow-list
	ExtraImports []string `env:"RULES_EXTRA_IMPORTS"`

	// Timeout bounds a single rule; 0 disables the limit (default: 30s)
	Timeout time.Duration `env:"RULES_TIMEOUT" default:"30s"`
}

// RunConfig controls pipeline runs.
type RunConfig struct {
	// MaxConcurrent is the maximum number of simultaneous runs (default: 4)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a run waits for a free slot (default: 15s)
	MaxWaitTime time.Duration `env:"RUN_MAX_WAIT_TIME" default:"15s"`

	// ResultRows caps the rows shown per result section (default: 50)
	ResultRows int `env:"RUN_RESULT_ROWS" default:"50"`

	// ArtifactTTL is how long a result workbook stays downloadable (default: 15m)
	ArtifactTTL time.Duration `env:"RUN_ARTIFACT_TTL" default:"15m"`
}

// HistoryConfig controls the run history.
type HistoryConfig struct {
	// RetentionDays is how long run summaries are kept (default: 30)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"30"`

	// CheckInterval is how often old summaries are pruned (default: 6h)
	CheckInterval time.Duration `env:"HISTORY_CHECK_INTERVAL" default:"6h"`

	// MemoryLimit caps the in-memory history when no database is set (default: 200)
	MemoryLimit int `env:"HISTORY_MEMORY_LIMIT" default:"200"`

	// Path is a local SQLite file for run history, used when DATABASE_URL is empty
	Path string `env:"HISTORY_DB_PATH"`
}

// DatabaseConfig holds the optional Postgres connection used for run history.
// When URL is empty, history is kept in memory.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of pooled connections (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of open connections (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// RunLimit is runs per minute per IP (default: 10)
	RunLimit int `env:"RATE_LIMIT_RUNS" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
