package startup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"kybervision-api/internal/database"
)

func setRequiredEnv(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("PATH_VIDEOS_UPLOAD", filepath.Join(base, "upload"))
	t.Setenv("PATH_VIDEOS", filepath.Join(base, "videos"))
	t.Setenv("PATH_VIDEOS_MONTAGE_COMPLETE", filepath.Join(base, "montage"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "db"))
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("URL_BASE", "http://api.test/")
	return base
}

func TestLoadConfig(t *testing.T) {
	base := setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BaseURL != "http://api.test" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.MontageQueue != "memory" {
		t.Errorf("MontageQueue = %q, want memory default", cfg.MontageQueue)
	}
	if cfg.TokenTTL != 0 {
		t.Errorf("TokenTTL = %v, want 0 (no expiry)", cfg.TokenTTL)
	}
	if cfg.DatabasePath != filepath.Join(base, "db", "kybervision.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
}

func TestLoadConfigMissingRequired(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SECRET_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Errorf("LoadConfig() without SECRET_KEY succeeded, want error")
	}
}

func TestLoadConfigRedisQueueNeedsAddr(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MONTAGE_QUEUE", "redis")

	if _, err := LoadConfig(); err == nil {
		t.Errorf("LoadConfig() with MONTAGE_QUEUE=redis and no REDIS_ADDR succeeded, want error")
	}
}

func TestLoadConfigUnknownQueue(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MONTAGE_QUEUE", "rabbitmq")

	if _, err := LoadConfig(); err == nil {
		t.Errorf("LoadConfig() with unknown queue succeeded, want error")
	}
}

func TestLoadConfigTokenTTL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MONTAGE_TOKEN_TTL", "24h")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
}

func TestSeedAdminUsers(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	}()

	t.Setenv("ADMIN_EMAILS", `["coach@example.com","analyst@example.com"]`)

	SeedAdminUsers(ctx, db)

	for _, email := range []string{"coach@example.com", "analyst@example.com"} {
		user, err := db.GetUserByEmail(ctx, email)
		if err != nil {
			t.Fatalf("seeded user %s missing: %v", email, err)
		}
		if !user.IsAdmin {
			t.Errorf("seeded user %s is not admin", email)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("changeme")); err != nil {
			t.Errorf("seeded password for %s does not verify: %v", email, err)
		}
	}

	// Seeding again must not duplicate or overwrite.
	first, err := db.GetUserByEmail(ctx, "coach@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	SeedAdminUsers(ctx, db)
	again, err := db.GetUserByEmail(ctx, "coach@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() after reseed error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("reseeding replaced user: id %d -> %d", first.ID, again.ID)
	}
}

func TestSeedAdminUsersMalformedEnv(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	}()

	t.Setenv("ADMIN_EMAILS", "not-json")

	// Must not panic or error out; malformed input only logs.
	SeedAdminUsers(ctx, db)
}
