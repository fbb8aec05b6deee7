package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// API
	APIPort int

	// Storage cluster
	StorageNodesFile   string // JSON list of node base URLs
	StorageSecretKey   string // shared X-API-Key for node calls
	StorageTimeoutSecs int    // HTTP timeout for node calls

	// Quota
	GroupDefaultMaxPhotos int // ceiling a new group starts with
	QuotaUnitPhotos       int // photos credited per purchased unit
	QuotaUnitPriceCents   int // price of one unit

	// Payment provider
	PaymentAPIKey         string
	PaymentWebhookSecret  string
	PaymentPublishableKey string
}

// NodeConfig holds the configuration of a single storage node process.
type NodeConfig struct {
	Port       int
	NodeID     string
	StorageDir string
	SecretKey  string
}

// generateSecureSecret generates a cryptographically secure random secret
func generateSecureSecret(length int) string {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a hostname-based value if crypto/rand fails
		return hex.EncodeToString([]byte(os.Getenv("HOSTNAME") + string(rune(length))))
	}
	return hex.EncodeToString(bytes)
}

func Load() *Config {
	// JWT Secret - generate random if not provided
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = generateSecureSecret(32) // 64 character hex string
		log.Println("WARNING: JWT_SECRET not set - generated random secret. Sessions will not persist across restarts.")
	}

	// Database password - warn if using default
	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	// Redis password - warn if using default
	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisPassword == "" {
		log.Println("WARNING: REDIS_PASSWORD not set - Redis is not secured!")
	}

	// Storage secret - warn if using default
	storageSecret := getEnv("STORAGE_SECRET_KEY", "")
	if storageSecret == "" {
		log.Println("WARNING: STORAGE_SECRET_KEY not set - using insecure default!")
		storageSecret = "change-me-in-production"
	}

	return &Config{
		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "closo"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "closo"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,

		// JWT
		JWTSecret:      jwtSecret,
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 168), // 7 days default

		// API
		APIPort: getEnvInt("API_PORT", 8080),

		// Storage cluster
		StorageNodesFile:   getEnv("STORAGE_NODES_FILE", "config/nodes.json"),
		StorageSecretKey:   storageSecret,
		StorageTimeoutSecs: getEnvInt("STORAGE_TIMEOUT_SECONDS", 30),

		// Quota
		GroupDefaultMaxPhotos: getEnvInt("GROUP_DEFAULT_MAX_PHOTOS", 100),
		QuotaUnitPhotos:       getEnvInt("QUOTA_UNIT_PHOTOS", 100),
		QuotaUnitPriceCents:   getEnvInt("QUOTA_UNIT_PRICE_CENTS", 100),

		// Payment provider
		PaymentAPIKey:         getEnv("STRIPE_SECRET_KEY", ""),
		PaymentWebhookSecret:  getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PaymentPublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
	}
}

// LoadNode reads the storage node configuration from the environment.
func LoadNode() *NodeConfig {
	secret := getEnv("SECRET_KEY", "")
	if secret == "" {
		log.Println("WARNING: SECRET_KEY not set - using insecure default!")
		secret = "change-me-in-production"
	}

	return &NodeConfig{
		Port:       getEnvInt("PORT", 8060),
		NodeID:     getEnv("NODE_ID", "node-unnamed"),
		StorageDir: getEnv("STORAGE_DIR", "./storage"),
		SecretKey:  secret,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
