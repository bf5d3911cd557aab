// Package config loads the gateway configuration: the HTTP server
// settings, logging, the rate-limit admission gate and the static
// per-service routing table. Values come from a YAML file with
// EDGE_* environment overrides applied on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen          = ":8080"
	defaultServiceTimeout  = 5000
	defaultWindowMs        = 60000
	defaultMaxRequests     = 100
	defaultProbeTimeoutMs  = 2000
	defaultReloadDebounce  = 300
	defaultRoutingVersion  = "v1"
	defaultRedisKeyPrefix  = "edge:ratelimit"
	defaultReadTimeoutMs   = 60000
	defaultWriteTimeoutMs  = 60000
	defaultShutdownGraceMs = 10000
)

type ServerConfig struct {
	Listen          string `yaml:"listen"`
	ReadTimeoutMs   int    `yaml:"read_timeout_ms"`
	WriteTimeoutMs  int    `yaml:"write_timeout_ms"`
	ShutdownGraceMs int    `yaml:"shutdown_grace_ms"`
	// Development enables diagnostic detail in error envelopes.
	// Never enable in production.
	Development bool `yaml:"development"`
}

type LoggingConfig struct {
	AccessLog             bool   `yaml:"access_log"`
	AccessLogPath         string `yaml:"access_log_path"`
	AccessLogFormat       string `yaml:"access_log_format"`
	AccessLogFormatPreset string `yaml:"access_log_format_preset"`

	accessLogSet bool `yaml:"-"`
}

// UnmarshalYAML tracks whether access_log was written explicitly, so
// an explicit false survives the default-true fill.
func (c *LoggingConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawLogging struct {
		AccessLog             bool   `yaml:"access_log"`
		AccessLogPath         string `yaml:"access_log_path"`
		AccessLogFormat       string `yaml:"access_log_format"`
		AccessLogFormatPreset string `yaml:"access_log_format_preset"`
	}
	var raw rawLogging
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.AccessLog = raw.AccessLog
	c.AccessLogPath = raw.AccessLogPath
	c.AccessLogFormat = raw.AccessLogFormat
	c.AccessLogFormatPreset = raw.AccessLogFormatPreset
	c.accessLogSet = yamlKeyPresent(value, "access_log")
	return nil
}

type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	KeyPrefix      string `yaml:"key_prefix"`
	ProbeTimeoutMs int    `yaml:"probe_timeout_ms"`
}

type RateLimitConfig struct {
	// Enabled defaults to true: the admission gate guards every
	// dispatched request unless switched off explicitly.
	Enabled     bool        `yaml:"enabled"`
	MaxRequests int         `yaml:"max_requests"`
	WindowMs    int         `yaml:"window_ms"`
	Redis       RedisConfig `yaml:"redis"`
	// TrustForwardedFor uses the first X-Forwarded-For entry as the
	// caller IP when no user identity is attached.
	TrustForwardedFor bool `yaml:"trust_forwarded_for"`
	// GlobalRPS/GlobalBurst configure an optional gateway-wide token
	// bucket ahead of the per-identity window. 0 disables it.
	GlobalRPS   float64 `yaml:"global_rps"`
	GlobalBurst int     `yaml:"global_burst"`

	enabledSet bool `yaml:"-"`
}

func (c *RateLimitConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawRateLimit struct {
		Enabled           bool        `yaml:"enabled"`
		MaxRequests       int         `yaml:"max_requests"`
		WindowMs          int         `yaml:"window_ms"`
		Redis             RedisConfig `yaml:"redis"`
		TrustForwardedFor bool        `yaml:"trust_forwarded_for"`
		GlobalRPS         float64     `yaml:"global_rps"`
		GlobalBurst       int         `yaml:"global_burst"`
	}
	var raw rawRateLimit
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Enabled = raw.Enabled
	c.MaxRequests = raw.MaxRequests
	c.WindowMs = raw.WindowMs
	c.Redis = raw.Redis
	c.TrustForwardedFor = raw.TrustForwardedFor
	c.GlobalRPS = raw.GlobalRPS
	c.GlobalBurst = raw.GlobalBurst
	c.enabledSet = yamlKeyPresent(value, "enabled")
	return nil
}

// yamlKeyPresent reports whether key appears in the mapping node.
func yamlKeyPresent(value *yaml.Node, key string) bool {
	if value == nil || value.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if strings.TrimSpace(value.Content[i].Value) == key {
			return true
		}
	}
	return false
}

type AliasRule struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type AutoReloadConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms"`
}

type RoutingConfig struct {
	DefaultVersion string           `yaml:"default_version"`
	Aliases        []AliasRule      `yaml:"aliases"`
	AutoReload     AutoReloadConfig `yaml:"auto_reload"`
}

type SpecialCaseConfig struct {
	Pattern string `yaml:"pattern"`
	// Target names the owning service when it differs from the
	// service the case is declared under.
	Target        string            `yaml:"target"`
	Rewrite       string            `yaml:"rewrite"`
	MethodRewrite map[string]string `yaml:"method_rewrite"`
}

type ServiceConfig struct {
	Name         string              `yaml:"name"`
	BaseURL      string              `yaml:"base_url"`
	TimeoutMs    int                 `yaml:"timeout_ms"`
	Prefixes     []string            `yaml:"prefixes"`
	Versioned    bool                `yaml:"versioned"`
	AdminRoutes  bool                `yaml:"admin_routes"`
	Headers      map[string]string   `yaml:"headers"`
	SpecialCases []SpecialCaseConfig `yaml:"special_cases"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Routing   RoutingConfig   `yaml:"routing"`
	Services  []ServiceConfig `yaml:"services"`
}

func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = defaultListen
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = defaultReadTimeoutMs
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = defaultWriteTimeoutMs
	}
	if cfg.Server.ShutdownGraceMs <= 0 {
		cfg.Server.ShutdownGraceMs = defaultShutdownGraceMs
	}

	// default true; an explicit access_log: false is honored
	if !cfg.Logging.accessLogSet {
		cfg.Logging.AccessLog = true
	}

	// the admission gate is on unless switched off explicitly
	if !cfg.RateLimit.enabledSet {
		cfg.RateLimit.Enabled = true
	}
	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = defaultMaxRequests
	}
	if cfg.RateLimit.WindowMs <= 0 {
		cfg.RateLimit.WindowMs = defaultWindowMs
	}
	if strings.TrimSpace(cfg.RateLimit.Redis.KeyPrefix) == "" {
		cfg.RateLimit.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
	if cfg.RateLimit.Redis.ProbeTimeoutMs <= 0 {
		cfg.RateLimit.Redis.ProbeTimeoutMs = defaultProbeTimeoutMs
	}

	if strings.TrimSpace(cfg.Routing.DefaultVersion) == "" {
		cfg.Routing.DefaultVersion = defaultRoutingVersion
	}
	if cfg.Routing.AutoReload.DebounceMs <= 0 {
		cfg.Routing.AutoReload.DebounceMs = defaultReloadDebounce
	}

	for i := range cfg.Services {
		if cfg.Services[i].TimeoutMs <= 0 {
			cfg.Services[i].TimeoutMs = defaultServiceTimeout
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("EDGE_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	cfg.Server.Development = envBool("EDGE_DEVELOPMENT", cfg.Server.Development)
	if n, ok := envInt("EDGE_READ_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.ReadTimeoutMs = n
	}
	if n, ok := envInt("EDGE_WRITE_TIMEOUT_MS"); ok && n > 0 {
		cfg.Server.WriteTimeoutMs = n
	}

	if v := strings.TrimSpace(os.Getenv("EDGE_ACCESS_LOG_PATH")); v != "" {
		cfg.Logging.AccessLogPath = v
	}
	if v := os.Getenv("EDGE_ACCESS_LOG_FORMAT"); strings.TrimSpace(v) != "" {
		cfg.Logging.AccessLogFormat = v
	}
	if v := strings.TrimSpace(os.Getenv("EDGE_ACCESS_LOG_FORMAT_PRESET")); v != "" {
		cfg.Logging.AccessLogFormatPreset = v
	}

	cfg.RateLimit.Enabled = envBool("EDGE_RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	if n, ok := envInt("EDGE_RATE_LIMIT_MAX_REQUESTS"); ok && n > 0 {
		cfg.RateLimit.MaxRequests = n
	}
	if n, ok := envInt("EDGE_RATE_LIMIT_WINDOW_MS"); ok && n > 0 {
		cfg.RateLimit.WindowMs = n
	}
	if v := strings.TrimSpace(os.Getenv("EDGE_REDIS_ADDR")); v != "" {
		cfg.RateLimit.Redis.Addr = v
	}
	if v, set := os.LookupEnv("EDGE_REDIS_PASSWORD"); set {
		cfg.RateLimit.Redis.Password = v
	}
	if n, ok := envInt("EDGE_REDIS_DB"); ok {
		cfg.RateLimit.Redis.DB = n
	}
	if n, ok := envInt("EDGE_REDIS_PROBE_TIMEOUT_MS"); ok && n > 0 {
		cfg.RateLimit.Redis.ProbeTimeoutMs = n
	}
	cfg.RateLimit.TrustForwardedFor = envBool("EDGE_TRUST_FORWARDED_FOR", cfg.RateLimit.TrustForwardedFor)

	cfg.Routing.AutoReload.Enabled = envBool("EDGE_ROUTING_AUTO_RELOAD_ENABLED", cfg.Routing.AutoReload.Enabled)
	if n, ok := envInt("EDGE_ROUTING_AUTO_RELOAD_DEBOUNCE_MS"); ok {
		cfg.Routing.AutoReload.DebounceMs = n
	}
}

func validate(cfg *Config) error {
	if len(cfg.Services) == 0 {
		return errors.New("services: at least one service is required")
	}
	seen := map[string]struct{}{}
	for _, svc := range cfg.Services {
		name := strings.TrimSpace(svc.Name)
		if name == "" {
			return errors.New("services: name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("services: duplicate name %q", name)
		}
		seen[name] = struct{}{}
		base := strings.TrimSpace(svc.BaseURL)
		if base == "" {
			return fmt.Errorf("services.%s: base_url is required", name)
		}
		if !strings.Contains(base, "://") {
			return fmt.Errorf("services.%s: base_url must be a URL (e.g. http://product:8081)", name)
		}
		if len(svc.Prefixes) == 0 && len(svc.SpecialCases) == 0 {
			return fmt.Errorf("services.%s: at least one prefix or special case is required", name)
		}
		for _, p := range svc.Prefixes {
			if !strings.HasPrefix(p, "/") {
				return fmt.Errorf("services.%s: prefix %q must start with /", name, p)
			}
		}
	}
	for _, a := range cfg.Routing.Aliases {
		if !strings.HasPrefix(a.From, "/") || !strings.HasPrefix(a.To, "/") {
			return fmt.Errorf("routing.aliases: from/to must start with / (got %q -> %q)", a.From, a.To)
		}
	}
	if cfg.Routing.AutoReload.Enabled && cfg.Routing.AutoReload.DebounceMs <= 0 {
		return errors.New("routing.auto_reload.debounce_ms must be > 0 when routing.auto_reload.enabled=true")
	}
	if cfg.RateLimit.GlobalRPS < 0 || cfg.RateLimit.GlobalBurst < 0 {
		return errors.New("rate_limit.global_rps and global_burst must be >= 0")
	}
	if cfg.RateLimit.GlobalRPS > 0 && cfg.RateLimit.GlobalBurst == 0 {
		return errors.New("rate_limit.global_burst must be > 0 when global_rps is set")
	}
	return nil
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
