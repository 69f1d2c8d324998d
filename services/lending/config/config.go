package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"shark/crypto"
	"shark/native/lending"
)

const (
	defaultListen         = ":8080"
	defaultOracleTimeout  = 5 * time.Second
	defaultOracleRPS      = 10.0
	defaultRequestTimeout = 10 * time.Second
)

// Config captures the runtime settings for sharkd.
type Config struct {
	ListenAddress string          `yaml:"listen" toml:"listen"`
	TLS           TLSConfig       `yaml:"tls" toml:"tls"`
	Auth          AuthConfig      `yaml:"auth" toml:"auth"`
	Storage       StorageConfig   `yaml:"storage" toml:"storage"`
	Lending       LendingConfig   `yaml:"lending" toml:"lending"`
	Oracle        OracleConfig    `yaml:"oracle" toml:"oracle"`
	Pauses        PauseConfig     `yaml:"pauses" toml:"pauses"`
	Journal       JournalConfig   `yaml:"journal" toml:"journal"`
	Logging       LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics       MetricsConfig   `yaml:"metrics" toml:"metrics"`
	RateLimit     RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	// RequestTimeout bounds each API request, e.g. "10s".
	RequestTimeout string `yaml:"request_timeout" toml:"request_timeout"`

	requestTimeout time.Duration
}

// TLSConfig describes the TLS material for the HTTP server.
type TLSConfig struct {
	CertPath      string `yaml:"cert" toml:"cert"`
	KeyPath       string `yaml:"key" toml:"key"`
	AllowInsecure bool   `yaml:"allow_insecure" toml:"allow_insecure"`
}

// AuthConfig lists the authenticators accepted by the service. Static API
// tokens identify trusted operators that may act for any sender; JWT bearers
// act only as the address in their subject claim.
type AuthConfig struct {
	APITokens []string `yaml:"api_tokens" toml:"api_tokens"`
	JWTSecret string   `yaml:"jwt_secret" toml:"jwt_secret"`
	JWTIssuer string   `yaml:"jwt_issuer" toml:"jwt_issuer"`
}

// StorageConfig selects the ledger location. An empty path keeps the ledger
// in memory.
type StorageConfig struct {
	Path         string `yaml:"path" toml:"path"`
	AllowMigrate bool   `yaml:"allow_migrate" toml:"allow_migrate"`
}

// LendingConfig instantiates the pool on first start when the store is empty.
type LendingConfig struct {
	Prefix          string `yaml:"prefix" toml:"prefix"`
	Admin           string `yaml:"admin" toml:"admin"`
	FundsDenom      string `yaml:"funds_denom" toml:"funds_denom"`
	CollateralDenom string `yaml:"collateral_denom" toml:"collateral_denom"`
}

// OracleConfig points at the AMM query endpoint, or supplies fixed pools when
// no endpoint is set.
type OracleConfig struct {
	Endpoint          string       `yaml:"endpoint" toml:"endpoint"`
	Timeout           string       `yaml:"timeout" toml:"timeout"`
	RequestsPerSecond float64      `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int          `yaml:"burst" toml:"burst"`
	Static            []StaticPool `yaml:"static" toml:"static"`

	timeout time.Duration
}

// StaticPool is a fixed pool composition used for development.
type StaticPool struct {
	PoolID uint64            `yaml:"pool_id" toml:"pool_id"`
	Assets map[string]string `yaml:"assets" toml:"assets"`
	// Price is the spot price of the non-funds asset in the funds denom.
	Price string `yaml:"price" toml:"price"`
}

// PauseConfig halts individual actions.
type PauseConfig struct {
	All              bool `yaml:"all" toml:"all"`
	SupplyFunds      bool `yaml:"supply_funds" toml:"supply_funds"`
	SupplyCollateral bool `yaml:"supply_collateral" toml:"supply_collateral"`
	Borrow           bool `yaml:"borrow" toml:"borrow"`
}

// JournalConfig enables the SQLite action journal when Path is set.
type JournalConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// LoggingConfig selects the log level and optional rotating file.
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// RateLimitConfig throttles API requests per client address. A zero rate
// disables throttling.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

// Load reads the configuration from disk, choosing the decoder by extension
// (.yaml, .yml or .toml), applies environment overrides and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: defaultListen,
		Metrics:       MetricsConfig{Enabled: true},
	}
	if path == "" {
		return cfg, fmt.Errorf("config path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("decode config: unknown fields %v", undecoded)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.applyEnv()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE pairs from the given dotenv files into the
// process environment without overriding variables that are already set.
// Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

func (cfg *Config) applyEnv() {
	if v, ok := os.LookupEnv("SHARK_LISTEN"); ok {
		cfg.ListenAddress = v
	}
	if v, ok := os.LookupEnv("SHARK_API_TOKENS"); ok {
		cfg.Auth.APITokens = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv("SHARK_JWT_SECRET"); ok {
		cfg.Auth.JWTSecret = v
	}
	if v, ok := os.LookupEnv("SHARK_STORAGE_PATH"); ok {
		cfg.Storage.Path = v
	}
	if v, ok := os.LookupEnv("SHARK_ORACLE_ENDPOINT"); ok {
		cfg.Oracle.Endpoint = v
	}
	if v, ok := os.LookupEnv("SHARK_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("SHARK_PAUSE_ALL"); ok {
		if paused, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Pauses.All = paused
		}
	}
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.TLS.CertPath = strings.TrimSpace(cfg.TLS.CertPath)
	cfg.TLS.KeyPath = strings.TrimSpace(cfg.TLS.KeyPath)

	tokens := make([]string, 0, len(cfg.Auth.APITokens))
	for _, token := range cfg.Auth.APITokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	cfg.Auth.APITokens = tokens
	cfg.Auth.JWTSecret = strings.TrimSpace(cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = strings.TrimSpace(cfg.Auth.JWTIssuer)

	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Journal.Path = strings.TrimSpace(cfg.Journal.Path)

	cfg.Lending.Prefix = strings.TrimSpace(cfg.Lending.Prefix)
	if cfg.Lending.Prefix == "" {
		cfg.Lending.Prefix = crypto.DefaultPrefix
	}
	cfg.Lending.Admin = strings.TrimSpace(cfg.Lending.Admin)
	cfg.Lending.FundsDenom = strings.TrimSpace(cfg.Lending.FundsDenom)
	cfg.Lending.CollateralDenom = strings.TrimSpace(cfg.Lending.CollateralDenom)

	cfg.Oracle.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Oracle.Endpoint), "/")
	if cfg.Oracle.RequestsPerSecond <= 0 {
		cfg.Oracle.RequestsPerSecond = defaultOracleRPS
	}
	if cfg.Oracle.Burst <= 0 {
		cfg.Oracle.Burst = 1
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		cfg.RateLimit.RequestsPerMinute = 0
	}
	if cfg.RateLimit.RequestsPerMinute > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}
	if cfg.Metrics.Path = strings.TrimSpace(cfg.Metrics.Path); cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func (cfg *Config) validate() error {
	if cfg.TLS.CertPath != "" && cfg.TLS.KeyPath == "" || cfg.TLS.CertPath == "" && cfg.TLS.KeyPath != "" {
		return fmt.Errorf("tls: cert and key must either both be provided or both be empty")
	}
	if !cfg.TLS.AllowInsecure && cfg.TLS.CertPath == "" {
		return fmt.Errorf("tls: cert and key are required unless allow_insecure=true")
	}
	if len(cfg.Auth.APITokens) == 0 && cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth: at least one api token or a jwt secret must be configured")
	}
	if cfg.Auth.JWTSecret != "" && len(cfg.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth: jwt_secret must be at least 32 bytes")
	}

	timeout, err := parseDuration(cfg.RequestTimeout, defaultRequestTimeout)
	if err != nil {
		return fmt.Errorf("request_timeout: %w", err)
	}
	cfg.requestTimeout = timeout

	if cfg.Lending.FundsDenom != "" || cfg.Lending.CollateralDenom != "" {
		if cfg.Lending.FundsDenom == "" || cfg.Lending.CollateralDenom == "" {
			return fmt.Errorf("lending: funds_denom and collateral_denom must be set together")
		}
		if _, err := lending.ParsePoolID(cfg.Lending.CollateralDenom); err != nil {
			return fmt.Errorf("lending: %w", err)
		}
		if cfg.Lending.Admin == "" {
			return fmt.Errorf("lending: admin is required to instantiate")
		}
	}
	if cfg.Lending.Admin != "" {
		if _, err := crypto.ValidateAddress(cfg.Lending.Admin, cfg.Lending.Prefix); err != nil {
			return fmt.Errorf("lending: admin: %w", err)
		}
	}

	oracleTimeout, err := parseDuration(cfg.Oracle.Timeout, defaultOracleTimeout)
	if err != nil {
		return fmt.Errorf("oracle: timeout: %w", err)
	}
	cfg.Oracle.timeout = oracleTimeout
	if cfg.Oracle.Endpoint == "" && len(cfg.Oracle.Static) == 0 {
		return fmt.Errorf("oracle: endpoint or static pools must be configured")
	}
	for i, pool := range cfg.Oracle.Static {
		if len(pool.Assets) == 0 {
			return fmt.Errorf("oracle: static pool %d has no assets", i)
		}
		if strings.TrimSpace(pool.Price) == "" {
			return fmt.Errorf("oracle: static pool %d has no price", i)
		}
	}
	return nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive")
	}
	return d, nil
}

// RequestTimeoutDuration is the parsed request timeout.
func (cfg Config) RequestTimeoutDuration() time.Duration {
	if cfg.requestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return cfg.requestTimeout
}

// TimeoutDuration is the parsed per-query oracle timeout.
func (cfg OracleConfig) TimeoutDuration() time.Duration {
	if cfg.timeout <= 0 {
		return defaultOracleTimeout
	}
	return cfg.timeout
}

// InstantiateOnStart reports whether the daemon should instantiate the pool
// from this configuration when the store is empty.
func (cfg LendingConfig) InstantiateOnStart() bool {
	return cfg.FundsDenom != "" && cfg.CollateralDenom != ""
}

// PauseTable converts the pause switches into flow keys understood by the
// lending engine.
func (cfg PauseConfig) PauseTable() map[string]bool {
	table := map[string]bool{}
	if cfg.All {
		table["lending"] = true
	}
	if cfg.SupplyFunds {
		table[lending.FlowName(lending.ActionSupplyFunds)] = true
	}
	if cfg.SupplyCollateral {
		table[lending.FlowName(lending.ActionSupplyCollateral)] = true
	}
	if cfg.Borrow {
		table[lending.FlowName(lending.ActionBorrow)] = true
	}
	return table
}
