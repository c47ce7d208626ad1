package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MULTICONTROLLER_POLL_INTERVAL
const EnvPrefix = "MULTICONTROLLER"

// Settings are the runtime options of the bridge
type Settings struct {
	RainMaker RainMakerSettings `mapstructure:"rainmaker"`
	Poll      PollSettings      `mapstructure:"poll"`
	Server    ServerSettings    `mapstructure:"server"`
	Discovery DiscoverySettings `mapstructure:"discovery"`
	Log       LogSettings       `mapstructure:"log"`
}

type RainMakerSettings struct {
	Host     string        `mapstructure:"host"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"` // env or flag only
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PollSettings struct {
	Interval time.Duration `mapstructure:"interval"`
}

type ServerSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TokenSecret     string        `mapstructure:"token_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
}

// Addr returns host:port
func (s ServerSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AuthEnabled reports whether API tokens are required
func (s ServerSettings) AuthEnabled() bool {
	return s.TokenSecret != ""
}

type DiscoverySettings struct {
	Advertise bool `mapstructure:"advertise"`
}

type LogSettings struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rainmaker.host", "https://api.rainmaker.espressif.com")
	v.SetDefault("rainmaker.username", "")
	v.SetDefault("rainmaker.password", "")
	v.SetDefault("rainmaker.timeout", "10s")

	v.SetDefault("poll.interval", "30s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8765)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.token_secret", "")
	v.SetDefault("server.token_ttl", "24h")

	v.SetDefault("discovery.advertise", true)

	v.SetDefault("log.level", "")
}

// LoadSettings reads settings from path, or from settings.yaml in the config
// directory when path is empty. A missing default file is not an error.
// Environment variables override both.
func LoadSettings(path string) (*Settings, error) {
	v := NewViper()
	if err := ReadSettingsFile(v, path); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ReadSettingsFile loads path, or the default settings file, into v
func ReadSettingsFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read settings: %w", err)
		}
		return nil
	}

	if dir, err := GetConfigDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.SetConfigName(settingsFile)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read settings: %w", err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and env binding applied.
// Callers may bind flags to it before Decode.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Decode unmarshals and validates settings
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ranges that would otherwise fail later at runtime
func (s *Settings) Validate() error {
	if s.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %v", s.Poll.Interval)
	}
	if s.RainMaker.Timeout <= 0 {
		return fmt.Errorf("rainmaker.timeout must be positive, got %v", s.RainMaker.Timeout)
	}
	if s.Server.Port < 0 || s.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", s.Server.Port)
	}
	return nil
}
