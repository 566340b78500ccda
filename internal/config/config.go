package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the chat core.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Environment string
	API         APIConfig
	Socket      SocketConfig
	Chat        ChatConfig
	Recorder    RecorderConfig
	Auth        AuthConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SocketConfig struct {
	URL string
}

type ChatConfig struct {
	PageSize int
	Tier     string
}

type RecorderConfig struct {
	TickInterval     time.Duration
	MinVoiceDuration float64
}

type AuthConfig struct {
	UserID string
	Token  string
}

// LoadConfig loads configuration from environment variables.
// Defaults can be set here if needed.
func LoadConfig() (*Config, error) {
	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 30*time.Second),
		},
		Socket: SocketConfig{
			URL: getEnv("SOCKET_URL", "ws://localhost:8080/ws"),
		},
		Chat: ChatConfig{
			PageSize: getEnvAsInt("CHAT_PAGE_SIZE", 30),
			Tier:     getEnv("CHAT_TIER", "free"),
		},
		Recorder: RecorderConfig{
			TickInterval:     getEnvAsDuration("RECORDER_TICK", 100*time.Millisecond),
			MinVoiceDuration: getEnvAsFloat("RECORDER_MIN_DURATION", 0.5),
		},
		Auth: AuthConfig{
			UserID: getEnv("AUTH_USER_ID", ""),
			Token:  getEnv("AUTH_TOKEN", ""),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
