package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	InputQueueURL     string
	ActivityQueueURL  string
	DatabaseURL       string
	RedisHost         string
	RedisPort         string
	AWSRegion         string
	AWSEndpointURL    string
	AWSAccessKeyID    string
	AWSSecretKey      string
	DynamoDBTable     string
	ResponsesBucket   string
	OpenSearchURL     string
	NumWorkers        int
	MediaKeyCacheSize int
	MediaKeyTTL       time.Duration
	FetchTimeout      time.Duration
	LogLevel          string
	LogFormat         string
}

func Load() (*Config, error) {
	cfg := &Config{
		InputQueueURL:     os.Getenv("INPUT_QUEUE_URL"),
		ActivityQueueURL:  os.Getenv("ACTIVITY_QUEUE_URL"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL:    os.Getenv("AWS_ENDPOINT_URL"),
		AWSAccessKeyID:    os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:      os.Getenv("AWS_SECRET_ACCESS_KEY"),
		DynamoDBTable:     os.Getenv("DYNAMODB_TABLE"),
		ResponsesBucket:   os.Getenv("RESPONSES_BUCKET"),
		OpenSearchURL:     os.Getenv("OPENSEARCH_URL"),
		NumWorkers:        getEnvInt("NUM_WORKERS", 20),
		MediaKeyCacheSize: getEnvInt("MEDIA_KEY_CACHE_SIZE", 1000),
		MediaKeyTTL:       getEnvDuration("MEDIA_KEY_TTL", 0),
		FetchTimeout:      getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
	}

	if cfg.InputQueueURL == "" {
		return nil, fmt.Errorf("INPUT_QUEUE_URL is required")
	}
	if cfg.ActivityQueueURL == "" {
		return nil, fmt.Errorf("ACTIVITY_QUEUE_URL is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
