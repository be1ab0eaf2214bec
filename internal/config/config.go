// Package config loads the hub configuration: built-in defaults, then an
// optional YAML file, then environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var errMissing = errors.New("missing required setting")

type Config struct {
	Bus     BusConfig     `yaml:"bus"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Display DisplayConfig `yaml:"display"`
	Cloud   CloudConfig   `yaml:"cloud"`
	Influx  InfluxConfig  `yaml:"influx"`
	Events  EventsConfig  `yaml:"events"`
}

type BusConfig struct {
	// Timeout is CAN_TIMEOUT: a node older than this is disconnected.
	Timeout time.Duration `yaml:"timeout"`
}

type MQTTConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"` // frames arrive on <prefix>/node1..3
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DisplayConfig struct {
	Enabled bool          `yaml:"enabled"`
	Refresh time.Duration `yaml:"refresh"`
	Title   string        `yaml:"title"`
}

type CloudConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BaseURL          string        `yaml:"base_url"`
	ChannelID        string        `yaml:"channel_id"`
	WriteKey         string        `yaml:"write_key"`
	Period           time.Duration `yaml:"period"`
	ProbeAddr        string        `yaml:"probe_addr"`
	ReconnectPoll    time.Duration `yaml:"reconnect_poll"`
	ReconnectCeiling time.Duration `yaml:"reconnect_ceiling"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
}

type InfluxConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	Token       string        `yaml:"token"`
	Org         string        `yaml:"org"`
	Bucket      string        `yaml:"bucket"`
	Measurement string        `yaml:"measurement"`
	Interval    time.Duration `yaml:"interval"`
}

type EventsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TopicTemplate string        `yaml:"topic_template"` // {node} is replaced
	Poll          time.Duration `yaml:"poll"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	var c Config
	c.applyDefaults()
	c.Display.Enabled = true
	c.Events.Enabled = true
	return c
}

// Load reads path (if non-empty), applies env overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bus.Timeout <= 0 {
		c.Bus.Timeout = 5 * time.Second
	}
	if c.MQTT.Host == "" {
		c.MQTT.Host = "localhost"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "canbus-hub"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "can"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Display.Refresh <= 0 {
		c.Display.Refresh = time.Second
	}
	if c.Display.Title == "" {
		c.Display.Title = "CAN Rx"
	}
	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = "https://api.thingspeak.com"
	}
	if c.Cloud.Period <= 0 {
		c.Cloud.Period = 20 * time.Second
	}
	if c.Cloud.ProbeAddr == "" {
		c.Cloud.ProbeAddr = "api.thingspeak.com:443"
	}
	if c.Cloud.ReconnectPoll <= 0 {
		c.Cloud.ReconnectPoll = 500 * time.Millisecond
	}
	if c.Cloud.ReconnectCeiling <= 0 {
		c.Cloud.ReconnectCeiling = 10 * time.Second
	}
	if c.Cloud.RequestTimeout <= 0 {
		c.Cloud.RequestTimeout = 5 * time.Second
	}
	if c.Influx.URL == "" {
		c.Influx.URL = "http://localhost:8086"
	}
	if c.Influx.Bucket == "" {
		c.Influx.Bucket = "canbus"
	}
	if c.Influx.Measurement == "" {
		c.Influx.Measurement = "can_snapshot"
	}
	if c.Influx.Interval <= 0 {
		c.Influx.Interval = 10 * time.Second
	}
	if c.Events.TopicTemplate == "" {
		c.Events.TopicTemplate = "event/linkState/{node}"
	}
	if c.Events.Poll <= 0 {
		c.Events.Poll = 500 * time.Millisecond
	}
}

func (c *Config) applyEnv() {
	c.MQTT.Host = envStr("MQTT_HOST", c.MQTT.Host)
	c.MQTT.Port = envInt("MQTT_PORT", c.MQTT.Port)
	c.MQTT.User = envStr("MQTT_USER", c.MQTT.User)
	c.MQTT.Password = envStr("MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.ClientID = envStr("MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.HTTP.Addr = envStr("HTTP_ADDR", c.HTTP.Addr)
	c.Bus.Timeout = envDuration("CAN_TIMEOUT", c.Bus.Timeout)

	c.Cloud.ChannelID = envStr("THINGSPEAK_CHANNEL_ID", c.Cloud.ChannelID)
	c.Cloud.WriteKey = envStr("THINGSPEAK_WRITE_KEY", c.Cloud.WriteKey)
	c.Cloud.BaseURL = envStr("THINGSPEAK_URL", c.Cloud.BaseURL)
	c.Cloud.Period = envDuration("THINGSPEAK_PERIOD", c.Cloud.Period)

	c.Influx.URL = envStr("INFLUX_URL", c.Influx.URL)
	c.Influx.Token = envStr("INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = envStr("INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = envStr("INFLUX_BUCKET", c.Influx.Bucket)
}

func (c *Config) validate() error {
	if c.Cloud.Enabled && (c.Cloud.ChannelID == "" || c.Cloud.WriteKey == "") {
		return fmt.Errorf("cloud.channel_id and cloud.write_key: %w", errMissing)
	}
	if c.Cloud.ReconnectPoll > c.Cloud.ReconnectCeiling {
		return fmt.Errorf("cloud.reconnect_poll %s exceeds reconnect_ceiling %s",
			c.Cloud.ReconnectPoll, c.Cloud.ReconnectCeiling)
	}
	if c.Influx.Enabled && (c.Influx.Token == "" || c.Influx.Org == "") {
		return fmt.Errorf("influx.token and influx.org: %w", errMissing)
	}
	return nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
