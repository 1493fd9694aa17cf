package startup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kybervision-api/internal/database"
	"kybervision-api/internal/logging"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Config holds all application configuration, loaded from the
// environment at boot. Required settings that are missing are a fatal
// startup error, never a per-request one.
type Config struct {
	UploadDir  string
	VideoDir   string
	MontageDir string

	DatabaseDir  string
	DatabasePath string

	Port        string
	MetricsPort string
	BaseURL     string

	SecretKey        string
	MontageWorkerBin string
	MontageQueue     string // "memory" or "redis"
	MontageWorkers   int
	RedisAddr        string
	RedisPassword    string
	TokenTTL         time.Duration // 0 = artifact tokens never expire

	SMTPAddr string
	SMTPFrom string

	UploadTimeout   time.Duration
	LogHealthChecks bool
}

// LoadConfig loads and validates configuration from environment
// variables, logging a banner of what it found.
func LoadConfig() (*Config, error) {
	printBanner()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		UploadDir:        os.Getenv("PATH_VIDEOS_UPLOAD"),
		VideoDir:         os.Getenv("PATH_VIDEOS"),
		MontageDir:       os.Getenv("PATH_VIDEOS_MONTAGE_COMPLETE"),
		DatabaseDir:      getEnv("DATABASE_DIR", "/database"),
		Port:             getEnv("PORT", "8080"),
		MetricsPort:      getEnv("METRICS_PORT", "9090"),
		BaseURL:          strings.TrimSuffix(os.Getenv("URL_BASE"), "/"),
		SecretKey:        os.Getenv("SECRET_KEY"),
		MontageWorkerBin: os.Getenv("MONTAGE_WORKER_BIN"),
		MontageQueue:     getEnv("MONTAGE_QUEUE", "memory"),
		MontageWorkers:   getEnvInt("MONTAGE_WORKERS", 1),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		SMTPAddr:         os.Getenv("SMTP_ADDR"),
		SMTPFrom:         getEnv("SMTP_FROM", "noreply@kyber-vision.com"),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", false),
	}

	required := []struct{ name, value string }{
		{"PATH_VIDEOS_UPLOAD", cfg.UploadDir},
		{"PATH_VIDEOS", cfg.VideoDir},
		{"PATH_VIDEOS_MONTAGE_COMPLETE", cfg.MontageDir},
		{"SECRET_KEY", cfg.SecretKey},
		{"URL_BASE", cfg.BaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("required environment variable %s is not set", r.name)
		}
	}

	var err error
	if cfg.TokenTTL, err = parseOptionalDuration("MONTAGE_TOKEN_TTL"); err != nil {
		return nil, err
	}
	cfg.UploadTimeout = getEnvDuration("UPLOAD_TIMEOUT", 30*time.Minute)

	switch cfg.MontageQueue {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("MONTAGE_QUEUE=redis requires REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unknown MONTAGE_QUEUE %q (want memory or redis)", cfg.MontageQueue)
	}

	logging.Info("  PATH_VIDEOS_UPLOAD:           %s", cfg.UploadDir)
	logging.Info("  PATH_VIDEOS:                  %s", cfg.VideoDir)
	logging.Info("  PATH_VIDEOS_MONTAGE_COMPLETE: %s", cfg.MontageDir)
	logging.Info("  DATABASE_DIR:                 %s", cfg.DatabaseDir)
	logging.Info("  PORT:                         %s", cfg.Port)
	logging.Info("  METRICS_PORT:                 %s", cfg.MetricsPort)
	logging.Info("  URL_BASE:                     %s", cfg.BaseURL)
	logging.Info("  MONTAGE_QUEUE:                %s", cfg.MontageQueue)
	logging.Info("  MONTAGE_WORKERS:              %d", cfg.MontageWorkers)
	logging.Info("  MONTAGE_WORKER_BIN:           %s", orDefault(cfg.MontageWorkerBin, "(in-process ffmpeg)"))
	logging.Info("  MONTAGE_TOKEN_TTL:            %s", ttlString(cfg.TokenTTL))
	logging.Info("  UPLOAD_TIMEOUT:               %s", cfg.UploadTimeout)
	logging.Info("  SMTP_ADDR:                    %s", orDefault(cfg.SMTPAddr, "(log-only mail)"))
	logging.Info("  LOG_LEVEL:                    %s", logging.GetLevel())

	// Resolve and verify the directory layout. Every directory is
	// required; a missing or read-only one is a configuration error.
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dirs := []struct {
		name string
		path *string
	}{
		{"upload", &cfg.UploadDir},
		{"videos", &cfg.VideoDir},
		{"montage", &cfg.MontageDir},
		{"database", &cfg.DatabaseDir},
	}
	for _, d := range dirs {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs

		if err := ensureDirectory(abs); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(abs); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %s directory: %s", d.name, abs)
	}

	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "kybervision.db")

	return cfg, nil
}

// SeedAdminUsers creates admin accounts for every address listed in the
// ADMIN_EMAILS environment variable (a JSON array). Existing users are
// left alone, so seeding is idempotent across restarts. Malformed input
// warns and continues; seeding is never fatal.
func SeedAdminUsers(ctx context.Context, db *database.Database) {
	raw := os.Getenv("ADMIN_EMAILS")
	if raw == "" {
		return
	}

	var emails []string
	if err := json.Unmarshal([]byte(raw), &emails); err != nil {
		logging.Error("ADMIN_EMAILS is not a valid JSON array: %v", err)
		return
	}

	for _, email := range emails {
		if _, err := db.GetUserByEmail(ctx, email); err == nil {
			logging.Debug("admin user already exists: %s", email)
			continue
		}

		// Default password, to be changed with cmd/resetpw.
		hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
		if err != nil {
			logging.Error("failed to hash seed password for %s: %v", email, err)
			continue
		}

		username, _, _ := strings.Cut(email, "@")
		if _, err := db.CreateUser(ctx, username, email, string(hash), true); err != nil {
			logging.Error("failed to create admin user %s: %v", email, err)
			continue
		}
		logging.Info("created admin user: %s", email)
	}
}

// LogServerStarted logs the endpoint summary once the listeners are up.
func LogServerStarted(cfg *Config, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time: %v", startupDuration)
	logging.Info("  API:          http://0.0.0.0:%s", cfg.Port)
	logging.Info("  Metrics:      http://0.0.0.0:%s/metrics", cfg.MetricsPort)
	logging.Info("  Public base:  %s", cfg.BaseURL)
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogFatal logs a fatal error and exits.
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

func printBanner() {
	logging.Info("KyberVision media API")
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Go:         %s (%s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func ensureDirectory(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("invalid boolean for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		logging.Warn("invalid integer for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("invalid duration for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func parseOptionalDuration(key string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", key, value)
	}
	return parsed, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func ttlString(ttl time.Duration) string {
	if ttl == 0 {
		return "none (tokens do not expire)"
	}
	return ttl.String()
}
