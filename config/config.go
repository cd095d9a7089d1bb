package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string
	AppEnv  string

	DBDriver   string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	SQLitePath string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	OperatorJWTSecret string
	ProcessRateLimit  int

	SessionGatewayURL string
	WorkflowEngineURL string

	APIDeliveryTimeout time.Duration
	DetailFetchTimeout time.Duration
	DeliveryLockTTL    time.Duration
	RefreshWorkers     int
	RefreshQueueSize   int
	RefreshJobTimeout  time.Duration

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PresignTTL time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:            getEnv("APP_PORT", "8080"),
		AppMode:            getEnv("APP_MODE", "debug"),
		AppEnv:             getEnv("APP_ENV", "development"),
		DBDriver:           getEnv("DB_DRIVER", "postgres"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "postgres"),
		DBName:             getEnv("DB_NAME", "xianyu_autosell"),
		DBPort:             getEnv("DB_PORT", "5432"),
		SQLitePath:         getEnv("SQLITE_PATH", "data/autosell.db"),
		RedisHost:          getEnv("REDIS_HOST", ""),
		RedisPort:          getEnv("REDIS_PORT", "6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		OperatorJWTSecret:  getEnv("OPERATOR_JWT_SECRET", ""),
		ProcessRateLimit:   getEnvAsInt("PROCESS_RATE_LIMIT", 30),
		SessionGatewayURL:  getEnv("SESSION_GATEWAY_URL", ""),
		WorkflowEngineURL:  getEnv("WORKFLOW_ENGINE_URL", ""),
		APIDeliveryTimeout: getEnvAsSeconds("API_DELIVERY_TIMEOUT_SEC", 15),
		DetailFetchTimeout: getEnvAsSeconds("DETAIL_FETCH_TIMEOUT_SEC", 10),
		DeliveryLockTTL:    getEnvAsSeconds("DELIVERY_LOCK_TTL_SEC", 120),
		RefreshWorkers:     getEnvAsInt("REFRESH_WORKERS", 4),
		RefreshQueueSize:   getEnvAsInt("REFRESH_QUEUE_SIZE", 256),
		RefreshJobTimeout:  getEnvAsSeconds("REFRESH_JOB_TIMEOUT_SEC", 600),
		S3Region:           getEnv("S3_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:        getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PresignTTL:       getEnvAsSeconds("S3_PRESIGN_TTL_SEC", 900),
	}
}

// S3Enabled reports whether object storage for stock files was configured.
func (c *Config) S3Enabled() bool {
	return c.S3Region != "" && c.S3Bucket != ""
}

// RedisEnabled reports whether a Redis host was configured. Without one the service
// falls back to in-process locking and a local event fan-out.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}
