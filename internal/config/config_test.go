package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

const validYAML = `
system:
  mode: MOCK
thresholds:
  night_start: 22
  night_end: 6
telegram:
  bot_token: "123:abc"
  subscribers: [111, 222]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ValidWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.System.Mode != "MOCK" || cfg.System.BaudRate != 9600 || cfg.System.TickInterval != time.Second {
		t.Errorf("unexpected system %+v", cfg.System)
	}
	if *cfg.Thresholds.NightStart != 22 || *cfg.Thresholds.NightEnd != 6 {
		t.Errorf("unexpected window %d..%d", *cfg.Thresholds.NightStart, *cfg.Thresholds.NightEnd)
	}
	if cfg.Thresholds.FlowLimit != 0.5 || cfg.Thresholds.AlertCooldown != 60*time.Second {
		t.Errorf("unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.Simulation.Speed != 1 || cfg.Simulation.StartHour != nil {
		t.Errorf("unexpected simulation %+v", cfg.Simulation)
	}
	if got := strings.Join(cfg.Telegram.Subscribers, ","); got != "111,222" {
		t.Errorf("subscribers = %s", got)
	}
	if cfg.Telegram.APIBase != "https://api.telegram.org" || cfg.Telegram.Timeout != 10*time.Second {
		t.Errorf("unexpected telegram %+v", cfg.Telegram)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Storage.Driver != "memory" || cfg.Log.Level != "info" {
		t.Errorf("unexpected defaults http=%q storage=%q log=%q", cfg.HTTP.Addr, cfg.Storage.Driver, cfg.Log.Level)
	}
}

func TestLoad_NightStartZeroIsPresent(t *testing.T) {
	body := strings.Replace(validYAML, "night_start: 22", "night_start: 0", 1)
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *cfg.Thresholds.NightStart != 0 {
		t.Errorf("night_start = %d, want 0", *cfg.Thresholds.NightStart)
	}
}

func TestLoad_FullDocument(t *testing.T) {
	body := `
system:
  mode: live
  port: /dev/ttyACM0
  baud_rate: 115200
  tick_interval: 500ms
thresholds:
  night_start: 23
  night_end: 5
  flow_limit: 0.8
  event_cooldown: 2m
simulation:
  speed: 60
  start_hour: 21
telegram:
  bot_token: t
  messages_per_second: 5
  subscribers:
    "111": alice
    "222": bob
storage:
  driver: sqlite
  path: /tmp/phloem.db
  retention: 168h
log:
  level: debug
  format: json
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.Mode != "LIVE" || cfg.System.TickInterval != 500*time.Millisecond {
		t.Errorf("unexpected system %+v", cfg.System)
	}
	if cfg.Thresholds.EventCooldown != 2*time.Minute || cfg.Thresholds.FlowLimit != 0.8 {
		t.Errorf("unexpected thresholds %+v", cfg.Thresholds)
	}
	if cfg.Simulation.StartHour == nil || *cfg.Simulation.StartHour != 21 {
		t.Errorf("unexpected start hour %v", cfg.Simulation.StartHour)
	}
	if got := strings.Join(cfg.Telegram.Subscribers, ","); got != "111,222" {
		t.Errorf("mapping subscribers = %s, want the chat id keys", got)
	}
	if cfg.Telegram.MessagesPerSecond != 5 {
		t.Errorf("messages_per_second = %v", cfg.Telegram.MessagesPerSecond)
	}
	if cfg.Storage.Retention != 168*time.Hour || cfg.Log.Format != "json" {
		t.Errorf("unexpected storage/log %+v %+v", cfg.Storage, cfg.Log)
	}
}

// ── Missing / invalid ────────────────────────────────────────────────────

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfigMissing) {
		t.Fatalf("expected ErrConfigMissing, got %v", err)
	}
}

func TestLoad_MissingRequiredKeys(t *testing.T) {
	tests := map[string]string{
		"thresholds.night_end": strings.Replace(validYAML, "  night_end: 6\n", "", 1),
		"telegram.bot_token":   strings.Replace(validYAML, "  bot_token: \"123:abc\"\n", "", 1),
		"telegram.subscribers": strings.Replace(validYAML, "  subscribers: [111, 222]\n", "", 1),
		"system.mode":          strings.Replace(validYAML, "  mode: MOCK\n", "", 1),
	}
	for key, body := range tests {
		t.Run(key, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrConfigMissing) {
				t.Fatalf("expected ErrConfigMissing, got %v", err)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("error %q does not name %s", err, key)
			}
		})
	}
}

func TestRecipients_Forms(t *testing.T) {
	tests := map[string]struct {
		body string
		want string
	}{
		"sequence":     {"subscribers: [111, \" 222 \"]", "111,222"},
		"mapping keys": {"subscribers:\n  111: alice\n  222: bob", "111,222"},
		"scalar":       {"subscribers: 333", "333"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var doc struct {
				Subscribers Recipients `yaml:"subscribers"`
			}
			if err := yaml.Unmarshal([]byte(tc.body), &doc); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if got := strings.Join(doc.Subscribers, ","); got != tc.want {
				t.Errorf("subscribers = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestLoad_EmptySubscribersAllowed(t *testing.T) {
	body := strings.Replace(validYAML, "[111, 222]", "[]", 1)
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Telegram.Subscribers) != 0 {
		t.Errorf("expected no subscribers, got %v", cfg.Telegram.Subscribers)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"mode":       strings.Replace(validYAML, "mode: MOCK", "mode: REMOTE", 1),
		"hour":       strings.Replace(validYAML, "night_start: 22", "night_start: 24", 1),
		"speed":      validYAML + "simulation:\n  speed: 5000\n",
		"driver":     validYAML + "storage:\n  driver: postgres\n",
		"yaml":       "system: [",
		"start_hour": validYAML + "simulation:\n  start_hour: -1\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if !errors.Is(err, ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

// ── Environment overrides ────────────────────────────────────────────────

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PHLOEM_MODE", "live")
	t.Setenv("PHLOEM_SERIAL_PORT", "/dev/ttyUSB1")
	t.Setenv("PHLOEM_TELEGRAM_TOKEN", "from-env")
	t.Setenv("PHLOEM_TELEGRAM_SUBSCRIBERS", "9, 8")
	t.Setenv("PHLOEM_SIM_SPEED", "120")
	t.Setenv("PHLOEM_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("PHLOEM_GRPC_ADDR", ":7777")
	t.Setenv("PHLOEM_LOG_LEVEL", "WARN")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.System.Mode != "LIVE" || cfg.System.Port != "/dev/ttyUSB1" {
		t.Errorf("unexpected system %+v", cfg.System)
	}
	if cfg.Telegram.BotToken != "from-env" || strings.Join(cfg.Telegram.Subscribers, ",") != "9,8" {
		t.Errorf("unexpected telegram %+v", cfg.Telegram)
	}
	if cfg.Simulation.Speed != 120 || cfg.HTTP.Addr != "127.0.0.1:9999" || cfg.GRPC.Addr != ":7777" || cfg.Log.Level != "warn" {
		t.Errorf("unexpected overrides speed=%d http=%s grpc=%s log=%s",
			cfg.Simulation.Speed, cfg.HTTP.Addr, cfg.GRPC.Addr, cfg.Log.Level)
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("PHLOEM_CONFIG", "")
	if got := PathFromEnv(); got != DefaultPath {
		t.Errorf("PathFromEnv() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("PHLOEM_CONFIG", "/etc/phloem.yaml")
	if got := PathFromEnv(); got != "/etc/phloem.yaml" {
		t.Errorf("PathFromEnv() = %q", got)
	}
}

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(" a, ,b "); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("splitCSV = %v", got)
	}
	if splitCSV("  ") != nil {
		t.Error("expected nil for blank input")
	}
}
