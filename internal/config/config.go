package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values, loaded from the environment
// (and an optional .env file) at process startup.
type Config struct {
	// Server configuration
	Port string
	Host string

	// Database configuration
	DatabasePath string

	// Credential hashing
	TokenSalt   string
	TokenPrefix string

	// File storage
	UploadDir       string
	MaxSyncFileMB   int
	MaxUploadSizeMB int

	// Compute backends
	STTBackendURL          string
	STTBackendModel        string
	DiarizationBackendURL  string
	DiarizationBackendModel string

	// Defaults
	DefaultQuota int

	// CORS
	AllowedOrigins []string

	LogLevel string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		Host:         getEnv("HOST", "0.0.0.0"),
		DatabasePath: getEnv("DATABASE_PATH", "data/apilexia.db"),

		TokenSalt:   getTokenSalt(),
		TokenPrefix: getEnv("TOKEN_PREFIX", "lx_"),

		UploadDir:       getEnv("UPLOAD_DIR", "data/uploads"),
		MaxSyncFileMB:   getEnvAsInt("MAX_SYNC_FILE_MB", 50),
		MaxUploadSizeMB: getEnvAsInt("MAX_UPLOAD_SIZE_MB", 500),

		STTBackendURL:           getEnv("STT_BACKEND_URL", "http://localhost:9001"),
		STTBackendModel:         getEnv("STT_BACKEND_MODEL", "base"),
		DiarizationBackendURL:   getEnv("DIARIZATION_BACKEND_URL", "http://localhost:9002"),
		DiarizationBackendModel: getEnv("DIARIZATION_BACKEND_MODEL", "default"),

		DefaultQuota: getEnvAsInt("DEFAULT_QUOTA", 60),

		AllowedOrigins: splitCSV(getEnv("CORS_ORIGINS", "")),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// IsProduction reports whether the server is bound to a non-local host.
func (c *Config) IsProduction() bool {
	return c.Host != "localhost" && c.Host != "127.0.0.1"
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

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getTokenSalt returns the process-wide secret used to salt credential
// hashes. Persisted to disk in development so restarting the server
// doesn't invalidate every issued credential.
func getTokenSalt() string {
	if salt := os.Getenv("TOKEN_SALT"); salt != "" {
		return salt
	}
	saltFile := getEnv("TOKEN_SALT_FILE", "data/token_salt")
	if data, err := os.ReadFile(saltFile); err == nil && len(data) > 0 {
		return strings.TrimSpace(string(data))
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Printf("Warning: could not generate secure token salt, using fallback: %v", err)
		return "fallback-token-salt-please-set-TOKEN_SALT-env-var"
	}
	salt := hex.EncodeToString(buf)
	_ = os.MkdirAll(filepath.Dir(saltFile), 0755)
	_ = os.WriteFile(saltFile, []byte(salt), 0600)
	log.Println("Generated persistent token salt at", saltFile)
	return salt
}
