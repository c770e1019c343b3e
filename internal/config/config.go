package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/orchidnexus/orchid/internal/notify"
	"gopkg.in/yaml.v3"
)

type Transport string

const (
	TransportWebsocket Transport = "websocket"
	TransportMQTT      Transport = "mqtt"
)

type MQTT struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// Config is the client configuration. Zero-valued fields fall back to the
// defaults in Default.
type Config struct {
	APIURL        string    `yaml:"api_url"`
	PushURL       string    `yaml:"push_url"`
	PushTransport Transport `yaml:"push_transport"`
	Live          bool      `yaml:"live"`
	MQTT          MQTT      `yaml:"mqtt"`
	DBPath        string    `yaml:"db"`
	LogLevel      string    `yaml:"log_level"`
	LogFormat     string    `yaml:"log_format"`
	TimeoutMs     int       `yaml:"timeout_ms"`
	MetricsAddr   string    `yaml:"metrics_addr"`
}

func Default() Config {
	return Config{
		APIURL:        "http://127.0.0.1:8000",
		PushTransport: TransportWebsocket,
		Live:          true,
		DBPath:        filepath.Join(stateDir(), "orchid.db"),
		LogLevel:      "info",
		LogFormat:     "console",
		TimeoutMs:     15000,
	}
}

// DefaultPath is $ORCHID_CONFIG or ~/.orchid/config.yaml.
func DefaultPath() string {
	if v := os.Getenv("ORCHID_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(stateDir(), "config.yaml")
}

func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".orchid"
	}
	return filepath.Join(home, ".orchid")
}

// Load reads the YAML file at path over the defaults, then applies ORCHID_*
// environment overrides. A missing file is not an error; an empty path means
// DefaultPath.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	for env, dst := range map[string]*string{
		"ORCHID_API_URL":        &cfg.APIURL,
		"ORCHID_PUSH_URL":       &cfg.PushURL,
		"ORCHID_MQTT_BROKER":    &cfg.MQTT.Broker,
		"ORCHID_MQTT_CLIENT_ID": &cfg.MQTT.ClientID,
		"ORCHID_MQTT_USERNAME":  &cfg.MQTT.Username,
		"ORCHID_MQTT_PASSWORD":  &cfg.MQTT.Password,
		"ORCHID_DB":             &cfg.DBPath,
		"ORCHID_LOG_LEVEL":      &cfg.LogLevel,
		"ORCHID_LOG_FORMAT":     &cfg.LogFormat,
		"ORCHID_METRICS_ADDR":   &cfg.MetricsAddr,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("ORCHID_PUSH_TRANSPORT"); v != "" {
		cfg.PushTransport = Transport(v)
	}
	if v := os.Getenv("ORCHID_LIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Live = b
		}
	}
	if v := os.Getenv("ORCHID_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TimeoutMs = n
		}
	}
}

func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("config: api_url is required")
	}
	switch c.PushTransport {
	case TransportWebsocket:
	case TransportMQTT:
		if c.MQTT.Broker == "" {
			return errors.New("config: mqtt transport requires mqtt.broker")
		}
	default:
		return fmt.Errorf("config: unknown push_transport %q (expected websocket or mqtt)", c.PushTransport)
	}
	if c.TimeoutMs <= 0 {
		return fmt.Errorf("config: timeout_ms must be positive, got %d", c.TimeoutMs)
	}
	return nil
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// EffectivePushURL is PushURL, or the API URL with its scheme swapped for
// the websocket equivalent.
func (c Config) EffectivePushURL() string {
	if c.PushURL != "" {
		return c.PushURL
	}
	return notify.PushURLFromAPI(c.APIURL)
}
