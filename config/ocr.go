package config

import (
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	ocrOnce   sync.Once
	ocrConfig *OCRConfig
)

// OCRConfig describes the external OCR engine endpoint and the resilience
// settings guarding calls to it.
type OCRConfig struct {
	BaseURL         string
	RequestTimeout  time.Duration
	DefaultLanguage string

	// Circuit breaker settings; the breaker instance is shared by all
	// callers of the engine.
	FailureThreshold int
	ResetTimeout     time.Duration
}

func GetOCRConfig() *OCRConfig {
	ocrOnce.Do(func() {
		loadDotenv()

		ocrConfig = &OCRConfig{
			BaseURL:          getenvDefault("OCR_ENGINE_BASE_URL", "http://localhost:9090"),
			RequestTimeout:   getenvDuration("OCR_REQUEST_TIMEOUT", 30*time.Second),
			DefaultLanguage:  getenvDefault("OCR_DEFAULT_LANGUAGE", "eng"),
			FailureThreshold: getenvInt("OCR_BREAKER_FAILURE_THRESHOLD", 5),
			ResetTimeout:     getenvDuration("OCR_BREAKER_RESET_TIMEOUT", 60*time.Second),
		}
	})
	return ocrConfig
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
