package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	// Set test environment variables
	os.Setenv("SERVER_PORT", "8080")
	os.Setenv("DB_HOST", "localhost")
	os.Setenv("DB_PORT", "5432")
	os.Setenv("DB_USER", "testuser")
	os.Setenv("DB_PASSWORD", "testpass")
	os.Setenv("DB_NAME", "testdb")
	os.Setenv("REDIS_HOST", "localhost")
	os.Setenv("REDIS_PORT", "6379")
	os.Setenv("JWT_ACCESS_SECRET", "test-access-secret")
	os.Setenv("JWT_REFRESH_SECRET", "test-refresh-secret")
	os.Setenv("JWT_ACCESS_EXPIRATION", "30m")
	os.Setenv("PASSWORD_REQUIRE_SPECIAL", "true")
	os.Setenv("BOOTSTRAP_ADMIN", "false")

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Assertions
	assert.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "testuser", cfg.DBUser)
	assert.Equal(t, "testpass", cfg.DBPassword)
	assert.Equal(t, "testdb", cfg.DBName)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, "6379", cfg.RedisPort)
	assert.Equal(t, "test-access-secret", cfg.JWTAccessSecret)
	assert.Equal(t, "test-refresh-secret", cfg.JWTRefreshSecret)
	assert.Equal(t, 30*time.Minute, cfg.JWTAccessExpiration)
	assert.True(t, cfg.PasswordRequireSpecial)
	assert.False(t, cfg.BootstrapAdmin)

	// Cleanup
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("DB_HOST")
	os.Unsetenv("DB_PORT")
	os.Unsetenv("DB_USER")
	os.Unsetenv("DB_PASSWORD")
	os.Unsetenv("DB_NAME")
	os.Unsetenv("REDIS_HOST")
	os.Unsetenv("REDIS_PORT")
	os.Unsetenv("JWT_ACCESS_SECRET")
	os.Unsetenv("JWT_REFRESH_SECRET")
	os.Unsetenv("JWT_ACCESS_EXPIRATION")
	os.Unsetenv("PASSWORD_REQUIRE_SPECIAL")
	os.Unsetenv("BOOTSTRAP_ADMIN")
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("JWT_ACCESS_EXPIRATION")
	os.Unsetenv("JWT_REFRESH_EXPIRATION")
	os.Unsetenv("BOOTSTRAP_ADMIN")

	// Load config
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Assertions - check that defaults are used
	assert.NotNil(t, cfg)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiration)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTRefreshExpiration)
	assert.True(t, cfg.BootstrapAdmin)
}
