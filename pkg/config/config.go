// Package config loads service configuration from YAML with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can use "8h" / "90s" forms.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("decoding duration: %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Reports   ReportsConfig   `yaml:"reports"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// AuthConfig configures caller authentication.
type AuthConfig struct {
	// JWTSecret is the HMAC secret shared with the identity provider.
	JWTSecret string `yaml:"jwt_secret"`

	// APIKeys are service credentials; values are bcrypt hashes.
	APIKeys []APIKeyDef `yaml:"api_keys"`
}

// APIKeyDef defines one API key.
type APIKeyDef struct {
	Name   string `yaml:"name"`
	Hash   string `yaml:"hash"`
	UserID string `yaml:"user_id"`
	Role   string `yaml:"role"`
}

// ReconcileConfig configures the sweep. The three repair rules toggle
// independently; observed deployments run different combinations.
// Enable flags are pointers so an explicit "false" survives defaulting.
type ReconcileConfig struct {
	Interval Duration `yaml:"interval"`

	CeilingEnabled *bool    `yaml:"ceiling_enabled"`
	SessionCeiling Duration `yaml:"session_ceiling"`

	DailyCapEnabled         *bool    `yaml:"daily_cap_enabled"`
	DailyCap                Duration `yaml:"daily_cap"`
	ExcludeProtectedFromCap *bool    `yaml:"exclude_protected_from_cap"`

	StalenessEnabled *bool    `yaml:"staleness_enabled"`
	LivenessTimeout  Duration `yaml:"liveness_timeout"`
}

// ReportsConfig configures summary dispatch.
type ReportsConfig struct {
	Enabled          *bool `yaml:"enabled"`
	ExcludeProtected *bool `yaml:"exclude_protected"`
}

// Load reads configuration from a file.
// The path comes from command line arguments, controlled by the operator.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config. The reference policy
// values — 8h ceiling, 8h daily cap, 6m liveness, 1m sweep — are defaults
// only, never hardcoded at the point of use.
func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(20 * time.Second)
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Reconcile.Interval == 0 {
		cfg.Reconcile.Interval = Duration(time.Minute)
	}
	if cfg.Reconcile.SessionCeiling == 0 {
		cfg.Reconcile.SessionCeiling = Duration(8 * time.Hour)
	}
	if cfg.Reconcile.DailyCap == 0 {
		cfg.Reconcile.DailyCap = Duration(8 * time.Hour)
	}
	if cfg.Reconcile.LivenessTimeout == 0 {
		cfg.Reconcile.LivenessTimeout = Duration(6 * time.Minute)
	}
	defaultBool(&cfg.Reconcile.CeilingEnabled, true)
	defaultBool(&cfg.Reconcile.DailyCapEnabled, true)
	defaultBool(&cfg.Reconcile.StalenessEnabled, false)
	defaultBool(&cfg.Reconcile.ExcludeProtectedFromCap, true)
	defaultBool(&cfg.Reports.Enabled, true)
	defaultBool(&cfg.Reports.ExcludeProtected, true)
}

func defaultBool(field **bool, value bool) {
	if *field == nil {
		v := value
		*field = &v
	}
}
