// Package config loads the gateway's runtime configuration: server,
// controller transport, safety limits, rate limiting, cache TTLs,
// logging and audit options. Grounded on the teacher's
// internal/config/config.go struct-of-structs / viper shape, trimmed to
// this gateway's actual surface (no hot-reload/version-history
// machinery — that served the alert-routing config's own versioning
// need, which a single-controller gateway doesn't share).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Ntrondle/pnp-gateway/internal/motion"
	"github.com/Ntrondle/pnp-gateway/internal/safety"
)

// Config is the gateway's full runtime configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Controller ControllerConfig `mapstructure:"controller"`
	Safety     SafetyConfig     `mapstructure:"safety"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        LogConfig        `mapstructure:"log"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// ControllerConfig configures the ControllerClient (spec §6.2).
type ControllerConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
}

// SafetyConfig holds the per-axis and output bounds the Safety Manager
// enforces (spec §4.E).
type SafetyConfig struct {
	AxisXMin      float64 `mapstructure:"axis_x_min"`
	AxisXMax      float64 `mapstructure:"axis_x_max"`
	AxisYMin      float64 `mapstructure:"axis_y_min"`
	AxisYMax      float64 `mapstructure:"axis_y_max"`
	AxisZMin      float64 `mapstructure:"axis_z_min"`
	AxisZMax      float64 `mapstructure:"axis_z_max"`
	FeedrateMax   float64 `mapstructure:"feedrate_max"`
	PWMMin        float64 `mapstructure:"pwm_min"`
	PWMMax        float64 `mapstructure:"pwm_max"`
	VacuumMin     float64 `mapstructure:"vacuum_min"`
	VacuumMax     float64 `mapstructure:"vacuum_max"`
	MaxFeedDistance float64 `mapstructure:"max_feed_distance"`
	MaxFeedSpeed  float64 `mapstructure:"max_feed_speed"`
	RequireHoming bool    `mapstructure:"require_homing"`
	GPIOAllowList []string `mapstructure:"gpio_allow_list"`
	KnownSensors  []string `mapstructure:"known_sensors"`
	// RejectZeroVacuumPower resolves spec §9 Open Question 3.
	RejectZeroVacuumPower bool `mapstructure:"reject_zero_vacuum_power"`
}

// ToLimits converts the loaded configuration into a safety.Limits value.
// Kept here rather than in internal/safety to avoid that package
// depending on internal/config.
func (s SafetyConfig) ToLimits() safety.Limits {
	return safety.Limits{
		Axes: map[motion.Axis]safety.AxisLimits{
			motion.X: {Min: s.AxisXMin, Max: s.AxisXMax},
			motion.Y: {Min: s.AxisYMin, Max: s.AxisYMax},
			motion.Z: {Min: s.AxisZMin, Max: s.AxisZMax},
		},
		MaxFeedrate:            s.FeedrateMax,
		PWMMin:                 s.PWMMin,
		PWMMax:                 s.PWMMax,
		VacuumMin:              s.VacuumMin,
		VacuumMax:              s.VacuumMax,
		MaxFeedDistance:        s.MaxFeedDistance,
		MaxFeedSpeed:           s.MaxFeedSpeed,
		RequireHomedBeforeMove: s.RequireHoming,
		GPIOAllowList:          s.GPIOAllowList,
		KnownSensors:           s.KnownSensors,
		RejectZeroVacuumPower:  s.RejectZeroVacuumPower,
	}
}

// RateLimitConfig holds the default per-credential sliding-window
// budget, applied to newly created credentials absent an explicit
// override. Window is loaded but not read elsewhere: the Credential
// Registry's window is a fixed trailing second.
type RateLimitConfig struct {
	DefaultBudget int           `mapstructure:"default_budget"`
	Window        time.Duration `mapstructure:"window"`
}

// CacheConfig holds per-category TTL settings (spec §4.G). They are
// loaded but not passed to the State Cache: every cached query uses
// cache.DefaultTTL's compiled-in value for its category.
type CacheConfig struct {
	PositionsTTL time.Duration `mapstructure:"positions_ttl"`
	FansTTL      time.Duration `mapstructure:"fans_ttl"`
	PWMTTL       time.Duration `mapstructure:"pwm_ttl"`
	GPIOTTL      time.Duration `mapstructure:"gpio_ttl"`
	SensorsTTL   time.Duration `mapstructure:"sensors_ttl"`
	SystemTTL    time.Duration `mapstructure:"system_ttl"`
}

// LogConfig holds structured-logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// AuditConfig holds the supplemental SQLite audit trail's configuration.
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AuthConfig holds the Credential Registry's persistence location and
// failed-auth tracking window.
type AuthConfig struct {
	CredentialsPath  string        `mapstructure:"credentials_path"`
	FailureWindow    time.Duration `mapstructure:"failure_window"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

// Load reads configuration from compiled-in defaults, configPath (when
// non-empty), and PNP_GATEWAY_-prefixed environment variables, in that
// order of increasing precedence, then validates the result.
func Load(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("PNP_GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.graceful_shutdown_timeout", "15s")

	viper.SetDefault("controller.base_url", "http://localhost:7125/rpc")
	viper.SetDefault("controller.api_key", "")
	viper.SetDefault("controller.timeout", "5s")
	viper.SetDefault("controller.rate_limit", 50.0)
	viper.SetDefault("controller.burst", 10)

	viper.SetDefault("safety.axis_x_min", 0.0)
	viper.SetDefault("safety.axis_x_max", 300.0)
	viper.SetDefault("safety.axis_y_min", 0.0)
	viper.SetDefault("safety.axis_y_max", 300.0)
	viper.SetDefault("safety.axis_z_min", 0.0)
	viper.SetDefault("safety.axis_z_max", 150.0)
	viper.SetDefault("safety.feedrate_max", 6000.0)
	viper.SetDefault("safety.pwm_min", 0.0)
	viper.SetDefault("safety.pwm_max", 255.0)
	viper.SetDefault("safety.vacuum_min", 0.0)
	viper.SetDefault("safety.vacuum_max", 255.0)
	viper.SetDefault("safety.max_feed_distance", 500.0)
	viper.SetDefault("safety.max_feed_speed", 200.0)
	viper.SetDefault("safety.require_homing", true)
	viper.SetDefault("safety.reject_zero_vacuum_power", false)

	viper.SetDefault("rate_limit.default_budget", 100)
	viper.SetDefault("rate_limit.window", "1s")

	viper.SetDefault("cache.positions_ttl", "200ms")
	viper.SetDefault("cache.fans_ttl", "500ms")
	viper.SetDefault("cache.pwm_ttl", "500ms")
	viper.SetDefault("cache.gpio_ttl", "500ms")
	viper.SetDefault("cache.sensors_ttl", "1s")
	viper.SetDefault("cache.system_ttl", "5s")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")

	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.path", "/data/pnp-gateway-audit.db")

	viper.SetDefault("auth.credentials_path", "/data/pnp-gateway-credentials.json")
	viper.SetDefault("auth.failure_window", "5m")
	viper.SetDefault("auth.failure_threshold", 10)
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Controller.BaseURL == "" {
		return fmt.Errorf("controller base_url cannot be empty")
	}
	if c.Controller.Timeout <= 0 {
		return fmt.Errorf("controller timeout must be positive")
	}
	if c.Safety.AxisXMax <= c.Safety.AxisXMin {
		return fmt.Errorf("safety.axis_x_max must exceed axis_x_min")
	}
	if c.Safety.AxisYMax <= c.Safety.AxisYMin {
		return fmt.Errorf("safety.axis_y_max must exceed axis_y_min")
	}
	if c.Safety.AxisZMax <= c.Safety.AxisZMin {
		return fmt.Errorf("safety.axis_z_max must exceed axis_z_min")
	}
	if c.RateLimit.DefaultBudget <= 0 {
		return fmt.Errorf("rate_limit.default_budget must be positive")
	}
	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}
	return nil
}
