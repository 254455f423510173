package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// BluelinkConfig holds vendor API connection settings.
type BluelinkConfig struct {
	BaseURL      string   `yaml:"base_url"`
	Username     string   `yaml:"username"`
	Password     string   `yaml:"password"`
	PIN          string   `yaml:"pin"`
	Region       string   `yaml:"region"`
	Brand        string   `yaml:"brand"`
	AuthPatterns []string `yaml:"auth_error_patterns"`
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	BrokerURL string `yaml:"broker_url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
	BaseTopic string `yaml:"base_topic"`
	QoS       int    `yaml:"qos"`
}

// BridgeConfig holds engine tuning knobs.
type BridgeConfig struct {
	PollInterval     time.Duration            `yaml:"poll_interval"`
	CommandTimeouts  map[string]time.Duration `yaml:"command_timeouts"`
	ThrottleInterval time.Duration            `yaml:"throttle_interval"`
	QueueSize        int                      `yaml:"queue_size"`
	InitialRefresh   bool                     `yaml:"initial_refresh"`
	ReadinessFile    string                   `yaml:"readiness_file"`
}

// Config is the complete bridge configuration.
type Config struct {
	Bluelink    BluelinkConfig `yaml:"bluelink"`
	MQTT        MQTTConfig     `yaml:"mqtt"`
	Bridge      BridgeConfig   `yaml:"bridge"`
	DatabaseURL string         `yaml:"database_url"`
	HTTPAddr    string         `yaml:"http_addr"`
	JWTSecret   string         `yaml:"jwt_secret"`
}

// Load builds configuration from env with an optional yaml file
// pointed at by BRIDGE_CONFIG. File values win over env defaults.
func Load() (Config, error) {
	cfg := Config{
		Bluelink: BluelinkConfig{
			BaseURL:      os.Getenv("BLUELINK_BASE_URL"),
			Username:     os.Getenv("BLUELINK_USERNAME"),
			Password:     os.Getenv("BLUELINK_PASSWORD"),
			PIN:          os.Getenv("BLUELINK_PIN"),
			Region:       getenvDefault("BLUELINK_REGION", "EU"),
			Brand:        getenvDefault("BLUELINK_BRAND", "hyundai"),
			AuthPatterns: getenvList("BLUELINK_AUTH_PATTERNS"),
		},
		MQTT: MQTTConfig{
			BrokerURL: getenvDefault("MQTT_BROKER_URL", "tcp://localhost:1883"),
			Username:  os.Getenv("MQTT_USERNAME"),
			Password:  os.Getenv("MQTT_PASSWORD"),
			ClientID:  getenvDefault("MQTT_CLIENT_ID", "bluelink-bridge"),
			BaseTopic: getenvDefault("MQTT_BASE_TOPIC", "bluelink"),
			QoS:       getenvIntDefault("MQTT_QOS", 1),
		},
		Bridge: BridgeConfig{
			PollInterval:     getenvDuration("POLL_INTERVAL", 5*time.Second),
			ThrottleInterval: getenvDuration("COMMAND_THROTTLE_INTERVAL", 5*time.Second),
			QueueSize:        getenvIntDefault("COMMAND_QUEUE_SIZE", 64),
			InitialRefresh:   getenvBoolDefault("INITIAL_REFRESH", true),
			ReadinessFile:    getenvDefault("READINESS_FILE", "/tmp/bridge-ready"),
		},
		DatabaseURL: getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:   getenvDefault("ADMIN_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}

	if path := os.Getenv("BRIDGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Bluelink.BaseURL == "" {
		return cfg, errors.New("config: bluelink base url required")
	}
	if cfg.Bluelink.Username == "" || cfg.Bluelink.Password == "" {
		return cfg, errors.New("config: bluelink credentials required")
	}
	if cfg.MQTT.BrokerURL == "" {
		return cfg, errors.New("config: mqtt broker url required")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return cfg, errors.New("config: mqtt qos must be 0, 1 or 2")
	}
	if cfg.Bridge.PollInterval <= 0 {
		cfg.Bridge.PollInterval = 5 * time.Second
	}
	if cfg.Bridge.QueueSize <= 0 {
		cfg.Bridge.QueueSize = 64
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value == "true" || value == "1" || value == "yes"
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
