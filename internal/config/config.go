package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	JWT    JWTConfig    `mapstructure:"jwt" yaml:"jwt"`
	Engine EngineConfig `mapstructure:"engine" yaml:"engine"`
	Authz  AuthzConfig  `mapstructure:"authz" yaml:"authz"`
}

// JWTConfig configures handshake token validation.
type JWTConfig struct {
	Secret   string `mapstructure:"secret" yaml:"secret"`
	Issuer   string `mapstructure:"issuer" yaml:"issuer"`
	Audience string `mapstructure:"audience" yaml:"audience"`
}

// EngineConfig tunes the realtime engine's time-bounded resources.
type EngineConfig struct {
	LockTTL     time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
	LockSweep   time.Duration `mapstructure:"lock_sweep" yaml:"lock_sweep"`
	TypingTTL   time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	TypingSweep time.Duration `mapstructure:"typing_sweep" yaml:"typing_sweep"`
}

// AuthzConfig tunes the authorization gate.
type AuthzConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "cospace.db",
		JWT: JWTConfig{
			Issuer:   "cospace",
			Audience: "cospace",
		},
		Engine: EngineConfig{
			LockTTL:     60 * time.Second,
			LockSweep:   5 * time.Second,
			TypingTTL:   5 * time.Second,
			TypingSweep: time.Second,
		},
		Authz: AuthzConfig{
			CacheTTL: 5 * time.Minute,
		},
	}
}
