package database

import "log"

const jwtSecretKey = "jwt_secret"

// SystemPreference is a key/value system setting row
type SystemPreference struct {
	ID        uint   `gorm:"column:id;primaryKey"`
	Key       string `gorm:"column:key;size:100;uniqueIndex;not null"`
	Value     string `gorm:"column:value;type:text"`
	ValueType string `gorm:"column:value_type;size:20;default:string"`
}

func (SystemPreference) TableName() string {
	return "system_preferences"
}

// GetSetting returns a system preference value, or fallback when absent.
// Values are read through the Redis cache; the rate limiter hits this on
// every request.
func GetSetting(key, fallback string) string {
	if DB == nil {
		return fallback
	}

	cacheKey := CacheKeySettings + ":" + key
	if Redis != nil {
		var cached string
		if err := CacheGet(cacheKey, &cached); err == nil {
			return cached
		}
	}

	var pref SystemPreference
	if err := DB.Where("key = ?", key).First(&pref).Error; err != nil {
		return fallback
	}
	if Redis != nil {
		CacheSet(cacheKey, pref.Value, CacheTTLSettings)
	}
	return pref.Value
}

// SetSetting upserts a system preference value and drops the cached copies
func SetSetting(key, value string) error {
	var err error
	var pref SystemPreference
	if DB.Where("key = ?", key).First(&pref).Error != nil {
		pref = SystemPreference{Key: key, Value: value, ValueType: "string"}
		err = DB.Create(&pref).Error
	} else {
		err = DB.Model(&SystemPreference{}).Where("key = ?", key).Update("value", value).Error
	}
	if err != nil {
		return err
	}
	if Redis != nil {
		CacheDeletePattern(CacheKeySettings + ":*")
	}
	return nil
}

// EnsureJWTSecret persists the JWT signing secret so sessions survive restarts.
// If the database already holds one it wins over the configured value.
func EnsureJWTSecret(configured string) string {
	if DB == nil {
		log.Println("Warning: Database not connected, cannot persist JWT secret")
		return configured
	}

	if existing := GetSetting(jwtSecretKey, ""); existing != "" {
		log.Println("JWT secret loaded from database - sessions will persist across restarts")
		return existing
	}

	if err := SetSetting(jwtSecretKey, configured); err != nil {
		log.Printf("Warning: failed to persist JWT secret: %v", err)
		return configured
	}

	log.Println("JWT secret generated and persisted to database")
	return configured
}
