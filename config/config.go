package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// minSecretLength is the shortest accepted SESSION_SECRET.
const minSecretLength = 32

// Config holds the application configuration
type Config struct {
	Port            string        // Service port
	APIBaseURL      string        // Church REST API root
	APITimeout      time.Duration // Timeout for a single church API call
	ShutdownTimeout time.Duration // Grace period for in-flight requests

	SessionSecret         string        // Encrypts stored sessions and signs the browser-context cookie
	SessionSecretPrevious string        // Still accepted for reading during rotation
	SessionBackend        string        // memory or redis
	RedisURL              string        // Required for the redis backend
	SessionTTL            time.Duration // Lifetime of a stored session and the browser-context cookie
	SessionIdleTTL        time.Duration // Idle time before a browser context's manager is disposed
	RestoreTimeout        time.Duration // How long a request waits for a session to load

	CSRFSecret     string // Defaults to SessionSecret
	APITokenSecret string // HS256 key of API tokens; empty skips signature checks
	CookieSecure   bool   // Secure flag on cookies and HSTS

	LoginRateLimit float64 // Login and register attempts per second per IP
	LoginRateBurst int

	AdminContactEmail string // Offered on the access-denied page
	AssetsDir         string // SPA bundle served under /assets
	LogLevel          string
}

// Load reads configuration from environment variables, after loading any
// of envFiles that exist. Variables already set take precedence over files.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	config := &Config{
		Port:            getEnv("PORT", "8080"),
		APIBaseURL:      getEnv("CHURCH_API_URL", ""),
		APITimeout:      getDuration("CHURCH_API_TIMEOUT", 10*time.Second, &errs),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),

		SessionSecret:         getEnv("SESSION_SECRET", ""),
		SessionSecretPrevious: getEnv("SESSION_SECRET_PREVIOUS", ""),
		SessionBackend:        strings.ToLower(getEnv("SESSION_BACKEND", BackendMemory)),
		RedisURL:              getEnv("REDIS_URL", ""),
		SessionTTL:            getDuration("SESSION_TTL", 12*time.Hour, &errs),
		SessionIdleTTL:        getDuration("SESSION_IDLE_TTL", 30*time.Minute, &errs),
		RestoreTimeout:        getDuration("SESSION_RESTORE_TIMEOUT", 2*time.Second, &errs),

		CSRFSecret:     getEnv("CSRF_SECRET", ""),
		APITokenSecret: getEnv("API_TOKEN_SECRET", ""),
		CookieSecure:   getBool("COOKIE_SECURE", true, &errs),

		LoginRateLimit: getFloat("LOGIN_RATE_LIMIT", 1, &errs),
		LoginRateBurst: getInt("LOGIN_RATE_BURST", 5, &errs),

		AdminContactEmail: getEnv("ADMIN_CONTACT_EMAIL", ""),
		AssetsDir:         getEnv("ASSETS_DIR", "public"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if config.CSRFSecret == "" {
		config.CSRFSecret = config.SessionSecret
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	u, err := url.Parse(c.APIBaseURL)
	if c.APIBaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CHURCH_API_URL must be an absolute URL")
	}

	if len(c.SessionSecret) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters", minSecretLength)
	}
	if c.SessionSecretPrevious != "" && len(c.SessionSecretPrevious) < minSecretLength {
		return fmt.Errorf("SESSION_SECRET_PREVIOUS must be at least %d characters", minSecretLength)
	}

	switch c.SessionBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q", BackendMemory, BackendRedis)
	}

	for name, d := range map[string]time.Duration{
		"CHURCH_API_TIMEOUT":      c.APITimeout,
		"SHUTDOWN_TIMEOUT":        c.ShutdownTimeout,
		"SESSION_TTL":             c.SessionTTL,
		"SESSION_IDLE_TTL":        c.SessionIdleTTL,
		"SESSION_RESTORE_TIMEOUT": c.RestoreTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.LoginRateLimit <= 0 || c.LoginRateBurst <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_BURST must be positive")
	}

	return nil
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s format: %w", key, err))
		return fallback
	}
	return d
}

func getBool(key string, fallback bool, errs *[]error) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return b
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return f
}

func getInt(key string, fallback int, errs *[]error) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}
