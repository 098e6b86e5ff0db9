package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"cloudpico-sensorsim/internal/generator"

	"github.com/google/uuid"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level

	// LogFile enables a size-rotated copy of the log stream. Empty disables it.
	LogFile           string
	LogFileMaxSizeMB  int
	LogFileMaxBackups int

	TBHost        string
	TBHTTPBaseURL string

	MQTTBroker       string
	MQTTPort         int
	MQTTKeepAlive    time.Duration
	MQTTConnectGrace time.Duration
	MQTTClientID     string

	AccessToken string
	BackendURL  string

	SampleInterval time.Duration
	QuantitiesFile string
	Quantities     []generator.Quantity
	Seed           uint64

	// StatusAddr is the status HTTP listener; empty when disabled.
	StatusAddr  string
	JournalPath string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	logFileMaxSize, err := envInt("LOG_FILE_MAX_SIZE_MB", 10)
	if err != nil {
		return Config{}, err
	}
	logFileMaxBackups, err := envInt("LOG_FILE_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	tbHost := strings.TrimSpace(os.Getenv("TB_HOST"))
	if tbHost == "" {
		tbHost = "thingsboard.cloud"
	}

	tbBaseURL := strings.TrimSpace(os.Getenv("TB_HTTP_BASE_URL"))
	if tbBaseURL == "" {
		tbBaseURL = "https://" + tbHost
	}
	tbBaseURL = strings.TrimRight(tbBaseURL, "/")
	if err := validateURL(tbBaseURL); err != nil {
		return Config{}, fmt.Errorf("invalid TB_HTTP_BASE_URL %q: %w", tbBaseURL, err)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = tbHost
	}

	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT out of range: %d", mqttPort)
	}

	mqttKeepAlive, err := envDuration("MQTT_KEEPALIVE", 60*time.Second)
	if err != nil {
		return Config{}, err
	}

	mqttConnectGrace, err := envDuration("MQTT_CONNECT_GRACE", 2*time.Second)
	if err != nil {
		return Config{}, err
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "sensorsim-" + uuid.NewString()
	}

	accessToken := strings.TrimSpace(os.Getenv("ACCESS_TOKEN"))
	if accessToken == "" {
		return Config{}, fmt.Errorf("ACCESS_TOKEN is required")
	}

	backendURL := strings.TrimSpace(os.Getenv("BACKEND_URL"))
	if backendURL == "" {
		backendURL = "http://localhost:5000/api/thingsboard/webhook"
	}
	if err := validateURL(backendURL); err != nil {
		return Config{}, fmt.Errorf("invalid BACKEND_URL %q: %w", backendURL, err)
	}

	sampleInterval, err := envDuration("SAMPLE_INTERVAL", 5*time.Second)
	if err != nil {
		return Config{}, err
	}

	quantitiesFile := strings.TrimSpace(os.Getenv("QUANTITIES_FILE"))
	quantities := generator.DefaultQuantities()
	if quantitiesFile != "" {
		quantities, err = LoadQuantities(quantitiesFile)
		if err != nil {
			return Config{}, err
		}
	}

	var seed uint64
	if s := strings.TrimSpace(os.Getenv("SIM_SEED")); s != "" {
		seed, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SIM_SEED %q: %w", s, err)
		}
	}

	statusAddr := strings.TrimSpace(os.Getenv("STATUS_ADDR"))
	switch statusAddr {
	case "":
		statusAddr = ":8081"
	case "off":
		statusAddr = ""
	}

	return Config{
		AppEnv:            appEnv,
		LogLevel:          level,
		LogFile:           logFile,
		LogFileMaxSizeMB:  logFileMaxSize,
		LogFileMaxBackups: logFileMaxBackups,
		TBHost:            tbHost,
		TBHTTPBaseURL:     tbBaseURL,
		MQTTBroker:        mqttBroker,
		MQTTPort:          mqttPort,
		MQTTKeepAlive:     mqttKeepAlive,
		MQTTConnectGrace:  mqttConnectGrace,
		MQTTClientID:      mqttClientID,
		AccessToken:       accessToken,
		BackendURL:        backendURL,
		SampleInterval:    sampleInterval,
		QuantitiesFile:    quantitiesFile,
		Quantities:        quantities,
		Seed:              seed,
		StatusAddr:        statusAddr,
		JournalPath:       strings.TrimSpace(os.Getenv("JOURNAL_PATH")),
	}, nil
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
