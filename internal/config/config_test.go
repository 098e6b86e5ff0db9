package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FILE", "LOG_FILE_MAX_SIZE_MB", "LOG_FILE_MAX_BACKUPS",
	"TB_HOST", "TB_HTTP_BASE_URL", "MQTT_BROKER", "MQTT_PORT", "MQTT_KEEPALIVE",
	"MQTT_CONNECT_GRACE", "MQTT_CLIENT_ID", "ACCESS_TOKEN", "BACKEND_URL",
	"SAMPLE_INTERVAL", "QUANTITIES_FILE", "SIM_SEED", "STATUS_ADDR", "JOURNAL_PATH",
}

// clearEnv blanks every recognized variable and sets the required token.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	t.Setenv("ACCESS_TOKEN", "T1")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.TBHost != "thingsboard.cloud" {
		t.Errorf("TBHost = %q", got.TBHost)
	}
	if got.TBHTTPBaseURL != "https://thingsboard.cloud" {
		t.Errorf("TBHTTPBaseURL = %q", got.TBHTTPBaseURL)
	}
	if got.MQTTBroker != "thingsboard.cloud" || got.MQTTPort != 1883 {
		t.Errorf("MQTT = %s:%d, want thingsboard.cloud:1883", got.MQTTBroker, got.MQTTPort)
	}
	if got.MQTTKeepAlive != 60*time.Second {
		t.Errorf("MQTTKeepAlive = %v, want 60s", got.MQTTKeepAlive)
	}
	if got.MQTTConnectGrace != 2*time.Second {
		t.Errorf("MQTTConnectGrace = %v, want 2s", got.MQTTConnectGrace)
	}
	if !strings.HasPrefix(got.MQTTClientID, "sensorsim-") {
		t.Errorf("MQTTClientID = %q, want sensorsim- prefix", got.MQTTClientID)
	}
	if got.BackendURL != "http://localhost:5000/api/thingsboard/webhook" {
		t.Errorf("BackendURL = %q", got.BackendURL)
	}
	if got.SampleInterval != 5*time.Second {
		t.Errorf("SampleInterval = %v, want 5s", got.SampleInterval)
	}
	if len(got.Quantities) != 5 {
		t.Errorf("len(Quantities) = %d, want 5", len(got.Quantities))
	}
	if got.StatusAddr != ":8081" {
		t.Errorf("StatusAddr = %q, want :8081", got.StatusAddr)
	}
	if got.Seed != 0 || got.JournalPath != "" || got.LogFile != "" {
		t.Errorf("unexpected optional defaults: %+v", got)
	}
}

func TestLoadFromEnv_AccessTokenRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACCESS_TOKEN", "   ")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("LoadFromEnv() error = nil, want non-nil")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TB_HOST", "tb.local")
	t.Setenv("TB_HTTP_BASE_URL", "http://127.0.0.1:9090/")
	t.Setenv("MQTT_PORT", " 1884 ")
	t.Setenv("MQTT_CLIENT_ID", "dev-01")
	t.Setenv("SAMPLE_INTERVAL", "250ms")
	t.Setenv("SIM_SEED", "42")
	t.Setenv("STATUS_ADDR", "off")
	t.Setenv("JOURNAL_PATH", "/tmp/journal.db")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.MQTTBroker != "tb.local" {
		t.Errorf("MQTTBroker = %q, want TB_HOST fallback", got.MQTTBroker)
	}
	if got.TBHTTPBaseURL != "http://127.0.0.1:9090" {
		t.Errorf("TBHTTPBaseURL = %q, want trailing slash trimmed", got.TBHTTPBaseURL)
	}
	if got.MQTTPort != 1884 || got.MQTTClientID != "dev-01" {
		t.Errorf("MQTT = %d/%q", got.MQTTPort, got.MQTTClientID)
	}
	if got.SampleInterval != 250*time.Millisecond {
		t.Errorf("SampleInterval = %v", got.SampleInterval)
	}
	if got.Seed != 42 {
		t.Errorf("Seed = %d", got.Seed)
	}
	if got.StatusAddr != "" {
		t.Errorf("StatusAddr = %q, want disabled", got.StatusAddr)
	}
	if got.JournalPath != "/tmp/journal.db" {
		t.Errorf("JournalPath = %q", got.JournalPath)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "app env", key: "APP_ENV", val: "staging"},
		{name: "app env uppercase", key: "APP_ENV", val: "DEV"},
		{name: "log level", key: "LOG_LEVEL", val: "loud"},
		{name: "mqtt port text", key: "MQTT_PORT", val: "abc"},
		{name: "mqtt port range", key: "MQTT_PORT", val: "70000"},
		{name: "keepalive", key: "MQTT_KEEPALIVE", val: "forever"},
		{name: "grace negative", key: "MQTT_CONNECT_GRACE", val: "-1s"},
		{name: "interval zero", key: "SAMPLE_INTERVAL", val: "0s"},
		{name: "seed", key: "SIM_SEED", val: "-3"},
		{name: "backend scheme", key: "BACKEND_URL", val: "ftp://example.com/hook"},
		{name: "backend host", key: "BACKEND_URL", val: "http:///hook"},
		{name: "tb base", key: "TB_HTTP_BASE_URL", val: "thingsboard.cloud"},
		{name: "log size", key: "LOG_FILE_MAX_SIZE_MB", val: "big"},
		{name: "quantities missing", key: "QUANTITIES_FILE", val: "does-not-exist.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.val)
			}
		})
	}
}

func TestLoadFromEnv_QuantitiesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "q.yaml")
	body := "quantities:\n  - name: temperature\n    min: 20\n    max: 35\n    unit: C\n    initial: 25\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("QUANTITIES_FILE", path)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if len(got.Quantities) != 1 || got.Quantities[0].Name != "temperature" || got.Quantities[0].Max != 35 {
		t.Fatalf("Quantities = %+v", got.Quantities)
	}
}

func TestLoadQuantities_RepoDefaultFile(t *testing.T) {
	qs, err := LoadQuantities(filepath.Join("..", "..", "config", "quantities.yaml"))
	if err != nil {
		t.Fatalf("LoadQuantities() error = %v", err)
	}
	if len(qs) != 5 {
		t.Fatalf("len = %d, want 5", len(qs))
	}
	if qs[2].Name != "light" || qs[2].Unit != "lux" || qs[2].Initial != 1000 {
		t.Errorf("light = %+v", qs[2])
	}
}

func TestParseQuantities_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty", body: "quantities: []\n"},
		{name: "unknown field", body: "quantities:\n  - name: x\n    max: 1\n    colour: red\n"},
		{name: "min above max", body: "quantities:\n  - name: x\n    min: 5\n    max: 1\n    initial: 3\n"},
		{name: "initial outside", body: "quantities:\n  - name: x\n    min: 0\n    max: 1\n    initial: 3\n"},
		{name: "duplicate", body: "quantities:\n  - name: x\n    max: 1\n  - name: x\n    max: 1\n"},
		{name: "not yaml", body: "quantities: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseQuantities([]byte(tt.body)); err == nil {
				t.Fatal("parseQuantities() error = nil, want non-nil")
			}
		})
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
