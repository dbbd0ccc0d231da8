package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Uploads  UploadsConfig
	Server   ServerConfig
	Supabase SupabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Storage  StorageConfig
	LogLevel string
}

type UploadsConfig struct {
	Host        string
	HTTPTimeout time.Duration
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type SupabaseConfig struct {
	URL    string
	KEY    string
	BUCKET string
}

// Enabled reports whether originals should be archived to Supabase.
func (c SupabaseConfig) Enabled() bool {
	return c.URL != "" && c.BUCKET != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

type StorageConfig struct {
	MaxFileSize   int64
	MaxPixels     int64
	AllowedTypes  []string
	UploadPath    string
	CacheDuration time.Duration
}

// Load reads the environment, after loading a .env file when one exists.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool) {
	found := godotenv.Load() == nil

	cfg := &Config{
		Uploads: UploadsConfig{
			Host:        getEnv("UPLOADS_HOST", "uploads.im"),
			HTTPTimeout: getDuration("HTTP_TIMEOUT", 60*time.Second),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 90*time.Second),
		},
		Supabase: SupabaseConfig{
			URL:    getEnv("SUPABASE_URL", ""),
			KEY:    getEnv("SUPABASE_KEY", ""),
			BUCKET: getEnv("SUPABASE_BUCKET", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("CACHE_ENABLED", false),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   getEnv("RABBITMQ_URL", ""),
			Queue: getEnv("RABBITMQ_QUEUE", "uploaded_images"),
		},
		Storage: StorageConfig{
			MaxFileSize:   getEnvAsInt64("MAX_FILE_SIZE", 10*1024*1024), // 10MB
			MaxPixels:     getEnvAsInt64("MAX_IMAGE_PIXELS", 50_000_000),
			AllowedTypes:  []string{"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp", "image/tiff"},
			UploadPath:    getEnv("UPLOAD_PATH", os.TempDir()),
			CacheDuration: getDuration("CACHE_DURATION", 24*time.Hour),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, found
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
