package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the answering service configuration.
type Config struct {
	Port               int
	AllowedOrigins     []string
	GeminiAPIKey       string
	GeminiModel        string
	DeepSeekAPIKey     string
	DeepSeekModel      string
	LLMTimeout         time.Duration
	UploadDir          string
	MaxUploadSizeMB    int
	FileRetentionHours int
	DatabaseURL        string
	DBPath             string
	HistoryLimit       int
	MaxQueryLength     int
	NatsURL            string
	NatsToken          string
	LogLevel           string
	LogFormat          string
}

func Load() Config {
	return Config{
		Port:               envInt("INSIGHT_PORT", 8000),
		AllowedOrigins:     envList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		GeminiAPIKey:       envStr("GEMINI_API_KEY", ""),
		GeminiModel:        envStr("GEMINI_MODEL", "gemini-pro"),
		DeepSeekAPIKey:     envStr("DEEPSEEK_API_KEY", ""),
		DeepSeekModel:      envStr("DEEPSEEK_MODEL", "deepseek-chat"),
		LLMTimeout:         time.Duration(envInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		UploadDir:          envStr("UPLOAD_DIR", "./uploads"),
		MaxUploadSizeMB:    envInt("MAX_UPLOAD_SIZE_MB", 10),
		FileRetentionHours: envInt("FILE_RETENTION_HOURS", 24),
		DatabaseURL:        envStr("DATABASE_URL", ""),
		DBPath:             envStr("DB_PATH", "./data/insight.db"),
		HistoryLimit:       envInt("HISTORY_LIMIT", 50),
		MaxQueryLength:     envInt("MAX_QUERY_LENGTH", 1000),
		NatsURL:            envStr("NATS_URL", ""),
		NatsToken:          envStr("NATS_TOKEN", ""),
		LogLevel:           envStr("LOG_LEVEL", "info"),
		LogFormat:          envStr("LOG_FORMAT", "json"),
	}
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("INSIGHT_PORT out of range: %d", c.Port))
	}
	if c.GeminiAPIKey == "" && c.DeepSeekAPIKey == "" {
		errs = append(errs, errors.New("at least one of GEMINI_API_KEY or DEEPSEEK_API_KEY is required"))
	}
	if c.MaxUploadSizeMB <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_SIZE_MB must be positive"))
	}
	if c.FileRetentionHours <= 0 {
		errs = append(errs, errors.New("FILE_RETENTION_HOURS must be positive"))
	}
	if c.HistoryLimit <= 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be positive"))
	}
	if c.MaxQueryLength <= 0 {
		errs = append(errs, errors.New("MAX_QUERY_LENGTH must be positive"))
	}
	if c.LLMTimeout <= 0 {
		errs = append(errs, errors.New("LLM_TIMEOUT_SECONDS must be positive"))
	}
	return errors.Join(errs...)
}

// MaxUploadBytes is the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

// FileRetention is how long uploads are kept.
func (c Config) FileRetention() time.Duration {
	return time.Duration(c.FileRetentionHours) * time.Hour
}

// ClientConfig configures the insight command line client.
type ClientConfig struct {
	APIURL      string
	SessionFile string
	Provider    string
	Fallback    bool
	Timeout     time.Duration
	LogLevel    string
}

func LoadClient() ClientConfig {
	return ClientConfig{
		APIURL:      strings.TrimRight(envStr("INSIGHT_API_URL", "http://localhost:8000/api"), "/"),
		SessionFile: envStr("INSIGHT_SESSION_FILE", "~/.config/insight/session.json"),
		Provider:    envStr("INSIGHT_PROVIDER", "gemini"),
		Fallback:    envBool("INSIGHT_FALLBACK", true),
		Timeout:     time.Duration(envInt("INSIGHT_TIMEOUT_SECONDS", 60)) * time.Second,
		LogLevel:    envStr("INSIGHT_LOG_LEVEL", "warn"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
