package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB        DBConfig
	MinIO     MinIOConfig
	JWT       JWTConfig
	Server    ServerConfig
	Owner     OwnerConfig
	Google    GoogleConfig
	Assistant AssistantConfig
	Favorites FavoritesConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port        string
	FrontendURL string
}

// OwnerConfig names the single account that receives the owner role at
// creation time. No panel can grant or revoke it afterwards.
type OwnerConfig struct {
	Email string
}

type GoogleConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type AssistantConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	FallbackModel string
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

type FavoritesConfig struct {
	Path string
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "mtahub"),
			Password: getEnv("DB_PASSWORD", "mtahub_secret"),
			Name:     getEnv("DB_NAME", "mtahub"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "mtahub"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "mtahub_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "mtahub"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3001"),
		},
		Owner: OwnerConfig{
			Email: getEnv("OWNER_EMAIL", ""),
		},
		Google: GoogleConfig{
			Enabled:      getEnvAsBool("GOOGLE_SSO_ENABLED", false),
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		},
		Assistant: AssistantConfig{
			Endpoint:      getEnv("ASSISTANT_ENDPOINT", "https://openrouter.ai/api/v1/chat/completions"),
			APIKey:        getEnv("ASSISTANT_API_KEY", ""),
			Model:         getEnv("ASSISTANT_MODEL", "openai/gpt-3.5-turbo"),
			FallbackModel: getEnv("ASSISTANT_FALLBACK_MODEL", "meta-llama/llama-3.1-8b-instruct"),
			MaxTokens:     getEnvAsInt("ASSISTANT_MAX_TOKENS", 2500),
			Temperature:   getEnvAsFloat("ASSISTANT_TEMPERATURE", 0.7),
			Timeout:       getEnvAsDuration("ASSISTANT_TIMEOUT", 60*time.Second),
		},
		Favorites: FavoritesConfig{
			Path: getEnv("FAVORITES_PATH", "./data/favorites"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
