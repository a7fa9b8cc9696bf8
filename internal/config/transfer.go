package config

import (
	"os"
	"strconv"
	"time"
)

type TransferConfig struct {
	OTPLength          int
	OTPTimeout         time.Duration
	MaxOTPPerUser      int
	RateLimitWindow    time.Duration
	HashIterations     int
	MaxRetries         int
	BaseCurrency       string
	RateCacheTTL       time.Duration
	RateServiceURL     string
	RateRequestTimeout time.Duration
}

func LoadTransferConfig() *TransferConfig {
	maxRetries := getEnvAsInt("TRANSFER_MAX_RETRIES", 3)
	if maxRetries < 1 {
		maxRetries = 1
	}

	return &TransferConfig{
		OTPLength:          getEnvAsInt("TRANSFER_OTP_LENGTH", 6),
		OTPTimeout:         getEnvAsDuration("TRANSFER_OTP_TIMEOUT", 10*time.Minute),
		MaxOTPPerUser:      getEnvAsInt("TRANSFER_MAX_OTP_PER_USER", 5),
		RateLimitWindow:    getEnvAsDuration("TRANSFER_OTP_RATE_WINDOW", 1*time.Hour),
		HashIterations:     getEnvAsInt("TRANSFER_OTP_HASH_ITERATIONS", 10000),
		MaxRetries:         maxRetries,
		BaseCurrency:       getEnv("TRANSFER_BASE_CURRENCY", "USD"),
		RateCacheTTL:       getEnvAsDuration("FX_RATE_CACHE_TTL", 1*time.Hour),
		RateServiceURL:     getEnv("FX_RATE_SERVICE_URL", "https://rates.example.com/api/v1"),
		RateRequestTimeout: getEnvAsDuration("FX_RATE_REQUEST_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
