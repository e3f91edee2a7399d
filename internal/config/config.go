package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the meter service, the auth service
// and the admin CLI.
type Config struct {
	Port     int
	AuthPort int

	DatabasePath     string
	AuthDatabasePath string
	ImageDirectory   string
	LogDirectory     string
	MaxUploadMB      int

	DetectionURL        string
	DetectionModel      string
	DetectionAPIKey     string
	DetectionConfidence int // percent
	DetectionOverlap    int // percent
	DetectionTimeout    time.Duration

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	RequireAuth     bool
	CORSOrigins     []string

	MQTTEnabled     bool
	MQTTBroker      string
	MQTTTopicPrefix string
	MQTTUsername    string
	MQTTPassword    string

	TariffFile string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()
	return fromEnv()
}

// LoadFile applies the given env file and then reads the environment.
// Variables already set in the process win over the file.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("env file %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return fromEnv(), nil
}

func fromEnv() *Config {
	return &Config{
		Port:     getEnvAsInt("PORT", 8000),
		AuthPort: getEnvAsInt("AUTH_PORT", 8001),

		DatabasePath:     getEnv("DB_PATH", filepath.Join(".", "meter_readings.db")),
		AuthDatabasePath: getEnv("AUTH_DB_PATH", filepath.Join(".", "users.db")),
		ImageDirectory:   getEnv("IMAGE_DIR", filepath.Join(".", "temp_images")),
		LogDirectory:     getEnv("LOG_DIR", filepath.Join(".", "logs")),
		MaxUploadMB:      getEnvAsInt("MAX_UPLOAD_MB", 10),

		DetectionURL:        getEnv("DETECTION_URL", "https://detect.roboflow.com"),
		DetectionModel:      getEnv("DETECTION_MODEL", "electricity-meter-reading/2"),
		DetectionAPIKey:     getEnv("DETECTION_API_KEY", ""),
		DetectionConfidence: getEnvAsInt("DETECTION_CONFIDENCE", 40),
		DetectionOverlap:    getEnvAsInt("DETECTION_OVERLAP", 30),
		DetectionTimeout:    getEnvAsDuration("DETECTION_TIMEOUT", 30*time.Second),

		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		AccessTokenTTL:  time.Duration(getEnvAsInt("ACCESS_TOKEN_MINUTES", 30)) * time.Minute,
		RefreshTokenTTL: time.Duration(getEnvAsInt("REFRESH_TOKEN_DAYS", 7)) * 24 * time.Hour,
		RequireAuth:     getEnvAsBool("REQUIRE_AUTH", false),
		CORSOrigins:     getEnvAsList("CORS_ORIGINS", []string{"*"}),

		MQTTEnabled:     getEnvAsBool("MQTT_ENABLED", false),
		MQTTBroker:      getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "meterease"),
		MQTTUsername:    getEnv("MQTT_USERNAME", ""),
		MQTTPassword:    getEnv("MQTT_PASSWORD", ""),

		TariffFile: getEnv("TARIFF_FILE", ""),
	}
}

// MaxUploadBytes is the multipart size limit for a predict request.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or plain seconds ("15").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
