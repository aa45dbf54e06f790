package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigMissing = errors.New("config missing")
	ErrConfigInvalid = errors.New("config invalid")
)

const DefaultPath = "./config.yaml"

type Config struct {
	System     SystemConfig     `yaml:"system"`
	Thresholds ThresholdConfig  `yaml:"thresholds"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
}

type SystemConfig struct {
	Mode         string        `yaml:"mode" validate:"required,oneof=MOCK LIVE"`
	Port         string        `yaml:"port"`
	BaudRate     int           `yaml:"baud_rate" validate:"gte=0"`
	TickInterval time.Duration `yaml:"tick_interval" validate:"gte=0"`
}

type ThresholdConfig struct {
	NightStart    *int          `yaml:"night_start" validate:"required,gte=0,lte=23"`
	NightEnd      *int          `yaml:"night_end" validate:"required,gte=0,lte=23"`
	FlowLimit     float64       `yaml:"flow_limit" validate:"gte=0"`
	EventCooldown time.Duration `yaml:"event_cooldown" validate:"gte=0"`
	AlertCooldown time.Duration `yaml:"alert_cooldown" validate:"gte=0"`
}

type SimulationConfig struct {
	Speed     int  `yaml:"speed" validate:"gte=1,lte=3600"`
	StartHour *int `yaml:"start_hour" validate:"omitempty,gte=0,lte=23"`
}

type TelegramConfig struct {
	BotToken          string        `yaml:"bot_token" validate:"required"`
	Subscribers       Recipients    `yaml:"subscribers" validate:"required"`
	APIBase           string        `yaml:"api_base" validate:"url"`
	Timeout           time.Duration `yaml:"timeout" validate:"gte=0"`
	MessagesPerSecond float64       `yaml:"messages_per_second" validate:"gte=0"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// GRPCConfig holds the health server address; empty disables it.
type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	Driver    string        `yaml:"driver" validate:"oneof=memory sqlite"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Recipients is the subscriber list. It accepts a YAML sequence of chat ids
// or a mapping keyed by chat id, whose values are only labels.
type Recipients []string

func (r *Recipients) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		out := make(Recipients, 0, len(n.Content))
		for _, c := range n.Content {
			out = append(out, strings.TrimSpace(c.Value))
		}
		*r = out
	case yaml.MappingNode:
		out := make(Recipients, 0, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			out = append(out, strings.TrimSpace(n.Content[i].Value))
		}
		*r = out
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		*r = Recipients{strings.TrimSpace(n.Value)}
	default:
		return fmt.Errorf("line %d: subscribers must be a list or mapping", n.Line)
	}
	return nil
}

var validate = validator.New()

// PathFromEnv returns PHLOEM_CONFIG or the default path.
func PathFromEnv() string {
	return getenvDefault("PHLOEM_CONFIG", DefaultPath)
}

// Load reads path, applies environment overrides and defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrConfigMissing, path)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfigInvalid, path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.System.Mode = strings.ToUpper(getenvDefault("PHLOEM_MODE", c.System.Mode))
	c.System.Port = getenvDefault("PHLOEM_SERIAL_PORT", c.System.Port)
	c.Telegram.BotToken = getenvDefault("PHLOEM_TELEGRAM_TOKEN", c.Telegram.BotToken)
	if subs := splitCSV(os.Getenv("PHLOEM_TELEGRAM_SUBSCRIBERS")); subs != nil {
		c.Telegram.Subscribers = subs
	}
	c.Simulation.Speed = getenvInt("PHLOEM_SIM_SPEED", c.Simulation.Speed)
	c.HTTP.Addr = getenvDefault("PHLOEM_HTTP_ADDR", c.HTTP.Addr)
	c.GRPC.Addr = getenvDefault("PHLOEM_GRPC_ADDR", c.GRPC.Addr)
	c.Log.Level = strings.ToLower(getenvDefault("PHLOEM_LOG_LEVEL", c.Log.Level))
}

func (c *Config) applyDefaults() {
	if c.System.BaudRate == 0 {
		c.System.BaudRate = 9600
	}
	if c.System.TickInterval == 0 {
		c.System.TickInterval = time.Second
	}
	if c.Thresholds.FlowLimit == 0 {
		c.Thresholds.FlowLimit = 0.5
	}
	if c.Thresholds.EventCooldown == 0 {
		c.Thresholds.EventCooldown = 60 * time.Second
	}
	if c.Thresholds.AlertCooldown == 0 {
		c.Thresholds.AlertCooldown = 60 * time.Second
	}
	if c.Simulation.Speed == 0 {
		c.Simulation.Speed = 1
	}
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 10 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// validate maps a failed "required" rule to ErrConfigMissing and every
// other failure to ErrConfigInvalid.
func (c *Config) validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		key := yamlKey(fe.Namespace())
		if fe.Tag() == "required" {
			missing = append(missing, key)
		} else {
			invalid = append(invalid, fmt.Sprintf("%s (%s=%s)", key, fe.Tag(), fe.Param()))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigMissing, strings.Join(missing, ", "))
	}
	return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(invalid, ", "))
}

var yamlKeys = map[string]string{
	"System":            "system",
	"Mode":              "mode",
	"BaudRate":          "baud_rate",
	"TickInterval":      "tick_interval",
	"Thresholds":        "thresholds",
	"NightStart":        "night_start",
	"NightEnd":          "night_end",
	"FlowLimit":         "flow_limit",
	"EventCooldown":     "event_cooldown",
	"AlertCooldown":     "alert_cooldown",
	"Simulation":        "simulation",
	"Speed":             "speed",
	"StartHour":         "start_hour",
	"Telegram":          "telegram",
	"BotToken":          "bot_token",
	"Subscribers":       "subscribers",
	"APIBase":           "api_base",
	"Timeout":           "timeout",
	"MessagesPerSecond": "messages_per_second",
	"HTTP":              "http",
	"Addr":              "addr",
	"Storage":           "storage",
	"Driver":            "driver",
	"Retention":         "retention",
	"Log":               "log",
	"Level":             "level",
	"Format":            "format",
}

// yamlKey turns "Config.Thresholds.NightStart" into "thresholds.night_start".
func yamlKey(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if k, ok := yamlKeys[p]; ok {
			parts[i] = k
		}
	}
	return strings.Join(parts, ".")
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
