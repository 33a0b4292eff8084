// Package config loads the bridge settings from a YAML file with
// MATCHBRIDGE_ environment overrides.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/czx-lab/matchbridge/bridge"
	"github.com/czx-lab/matchbridge/event"
	"github.com/czx-lab/matchbridge/network/metrics"
	"github.com/czx-lab/matchbridge/prometheus"
	"github.com/czx-lab/matchbridge/protocol"
	"github.com/czx-lab/matchbridge/xlog"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "MATCHBRIDGE"

// Config holds all application configuration.
type Config struct {
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Events      EventsConfig      `mapstructure:"events"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Player      PlayerConfig      `mapstructure:"player"`
}

// MatchmakingConfig holds the endpoint and attempt settings.
type MatchmakingConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	MatchTimeout     time.Duration `mapstructure:"match_timeout"`
	MaxMessageSize   uint32        `mapstructure:"max_message_size"`
	Framing          string        `mapstructure:"framing"`
	ReportClose      bool          `mapstructure:"report_close"`
	MaxSessions      int           `mapstructure:"max_sessions"`
}

// EventsConfig sizes the result channel.
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
	InputSize  int `mapstructure:"input_size"`
	OutputSize int `mapstructure:"output_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Mode        string `mapstructure:"mode"`
	Path        string `mapstructure:"path"`
	Filename    string `mapstructure:"filename"`
	ServiceName string `mapstructure:"service_name"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	KeepDays    int    `mapstructure:"keep_days"`
	Compress    bool   `mapstructure:"compress"`
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// PlayerConfig is the identity the demo queues with.
type PlayerConfig struct {
	Name     string `mapstructure:"name"`
	Trophies int32  `mapstructure:"trophies"`
}

// Validate checks all configuration values and returns every violation at
// once.
func (c Config) Validate() error {
	var errs []string

	errs = append(errs, validateMatchmaking(c.Matchmaking)...)
	errs = append(errs, validateEvents(c.Events)...)
	errs = append(errs, validateLogging(c.Logging)...)
	errs = append(errs, validateMetrics(c.Metrics)...)
	errs = append(errs, validatePlayer(c.Player)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMatchmaking(m MatchmakingConfig) []string {
	var errs []string
	u, err := url.Parse(m.URL)
	switch {
	case m.URL == "":
		errs = append(errs, "matchmaking.url must not be empty")
	case err != nil:
		errs = append(errs, fmt.Sprintf("matchmaking.url is invalid: %v", err))
	case u.Scheme != "ws" && u.Scheme != "wss":
		errs = append(errs, fmt.Sprintf("matchmaking.url scheme must be ws or wss, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, "matchmaking.url must name a host")
	}
	if m.HandshakeTimeout < 0 {
		errs = append(errs, "matchmaking.handshake_timeout must not be negative")
	}
	if m.WriteTimeout < 0 {
		errs = append(errs, "matchmaking.write_timeout must not be negative")
	}
	if m.MatchTimeout < 0 {
		errs = append(errs, "matchmaking.match_timeout must not be negative")
	}
	if m.MaxMessageSize == 0 {
		errs = append(errs, "matchmaking.max_message_size must be positive")
	}
	if _, err := protocol.ParseFraming(m.Framing); err != nil {
		errs = append(errs, fmt.Sprintf("matchmaking.framing must be one of bare, envelope, auto, got %q", m.Framing))
	}
	if m.MaxSessions < 0 {
		errs = append(errs, "matchmaking.max_sessions must not be negative")
	}
	return errs
}

func validateEvents(e EventsConfig) []string {
	var errs []string
	if e.BufferSize < 0 || e.InputSize < 0 || e.OutputSize < 0 {
		errs = append(errs, "events sizes must not be negative")
	}
	return errs
}

func validateLogging(l LoggingConfig) []string {
	var errs []string
	if _, err := zapcore.ParseLevel(l.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level must be one of debug, info, warn, error, got %q", l.Level))
	}
	if l.Format != xlog.EncodingJson && l.Format != xlog.EncodingConsole {
		errs = append(errs, fmt.Sprintf("logging.format must be json or console, got %q", l.Format))
	}
	switch l.Mode {
	case xlog.StdoutMode, xlog.StderrMode:
	case xlog.FileMode:
		if l.Path == "" {
			errs = append(errs, "logging.path must not be empty in file mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("logging.mode must be stdout, stderr or file, got %q", l.Mode))
	}
	return errs
}

func validateMetrics(m MetricsConfig) []string {
	var errs []string
	if !m.Enabled {
		return errs
	}
	if m.Port < 1 || m.Port > 65535 {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", m.Port))
	}
	if !strings.HasPrefix(m.Path, "/") {
		errs = append(errs, fmt.Sprintf("metrics.path must start with /, got %q", m.Path))
	}
	return errs
}

func validatePlayer(p PlayerConfig) []string {
	if p.Name == "" {
		return nil
	}
	if err := (protocol.JoinRequest{PlayerID: p.Name, Trophies: p.Trophies}).Validate(); err != nil {
		return []string{fmt.Sprintf("player.name: %v", err)}
	}
	return nil
}

// Bridge converts the matchmaking and events sections into a bridge.Conf.
//
// Precondition: c passed Validate.
func (c Config) Bridge() bridge.Conf {
	framing, _ := protocol.ParseFraming(c.Matchmaking.Framing)
	return bridge.Conf{
		URL:              c.Matchmaking.URL,
		HandshakeTimeout: c.Matchmaking.HandshakeTimeout,
		WriteTimeout:     c.Matchmaking.WriteTimeout,
		MatchTimeout:     c.Matchmaking.MatchTimeout,
		MaxMessageSize:   c.Matchmaking.MaxMessageSize,
		Framing:          framing,
		ReportClose:      c.Matchmaking.ReportClose,
		MaxSessions:      c.Matchmaking.MaxSessions,
		Events: event.ChannelConf{
			Bufsize: c.Events.BufferSize,
			Insize:  c.Events.InputSize,
			Outsize: c.Events.OutputSize,
		},
	}
}

// XLog converts the logging section into an xlog.XLogConf.
func (c Config) XLog() xlog.XLogConf {
	return xlog.XLogConf{
		ServiceName: c.Logging.ServiceName,
		Path:        c.Logging.Path,
		Filename:    c.Logging.Filename,
		Mode:        c.Logging.Mode,
		Encoding:    c.Logging.Format,
		Level:       c.Logging.Level,
		Compress:    c.Logging.Compress,
		KeepDays:    c.Logging.KeepDays,
		MaxSize:     c.Logging.MaxSize,
		MaxBackups:  c.Logging.MaxBackups,
	}
}

// Prometheus returns the scrape endpoint settings.
func (c Config) Prometheus() prometheus.Config {
	return prometheus.Config{
		Host: c.Metrics.Host,
		Port: c.Metrics.Port,
		Path: c.Metrics.Path,
	}
}

// CliMetrics returns the attempt metric names.
func (c Config) CliMetrics() metrics.CliMetricsConf {
	return metrics.CliMetricsConf{
		Namespace: c.Metrics.Namespace,
		Subsystem: "client",
	}
}

// Load reads configuration from the YAML file at path, applying defaults
// and MATCHBRIDGE_ environment overrides. An empty path loads defaults and
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("matchmaking.url", "ws://127.0.0.1:8080/ws")
	v.SetDefault("matchmaking.handshake_timeout", "10s")
	v.SetDefault("matchmaking.write_timeout", "10s")
	v.SetDefault("matchmaking.match_timeout", "0s")
	v.SetDefault("matchmaking.max_message_size", 4096)
	v.SetDefault("matchmaking.framing", string(protocol.FramingBare))
	v.SetDefault("matchmaking.report_close", true)
	v.SetDefault("matchmaking.max_sessions", 0)

	v.SetDefault("events.buffer_size", 0)
	v.SetDefault("events.input_size", 0)
	v.SetDefault("events.output_size", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", xlog.EncodingConsole)
	v.SetDefault("logging.mode", xlog.StderrMode)
	v.SetDefault("logging.path", "logs")
	v.SetDefault("logging.filename", "matchbridge.log")
	v.SetDefault("logging.service_name", "matchbridge")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.keep_days", 7)
	v.SetDefault("logging.compress", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.host", "127.0.0.1")
	v.SetDefault("metrics.port", 9101)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "matchbridge")

	v.SetDefault("player.name", "")
	v.SetDefault("player.trophies", 0)
}
