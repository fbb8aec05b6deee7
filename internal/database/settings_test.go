package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func useSettingsTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "settings.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&SystemPreference{}))

	prevDB, prevRedis := DB, Redis
	DB, Redis = db, nil
	t.Cleanup(func() { DB, Redis = prevDB, prevRedis })
}

func TestGetSettingFallback(t *testing.T) {
	useSettingsTestDB(t)
	assert.Equal(t, "02:00", GetSetting("backup_time", "02:00"))
}

func TestSetSettingRoundTrip(t *testing.T) {
	useSettingsTestDB(t)

	require.NoError(t, SetSetting("api_rate_limit", "100"))
	assert.Equal(t, "100", GetSetting("api_rate_limit", "60"))

	// Upsert overwrites the stored value
	require.NoError(t, SetSetting("api_rate_limit", "250"))
	assert.Equal(t, "250", GetSetting("api_rate_limit", "60"))
}

func TestGetSettingWithoutDatabase(t *testing.T) {
	prevDB, prevRedis := DB, Redis
	DB, Redis = nil, nil
	t.Cleanup(func() { DB, Redis = prevDB, prevRedis })

	assert.Equal(t, "fallback", GetSetting("anything", "fallback"))
}

func TestEnsureJWTSecretPrefersStoredValue(t *testing.T) {
	useSettingsTestDB(t)

	require.NoError(t, SetSetting("jwt_secret", "stored-secret"))
	assert.Equal(t, "stored-secret", EnsureJWTSecret("configured-secret"))
}
