package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	AllowedOrigin      string
	GatewayBaseURL     string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	DataDir            string
	SnapshotTTLSeconds int
	Timezone           string
}

// Load reads configuration from the environment, with a .env file in the
// working directory applied first when present. Real environment variables
// always win over .env values.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("SNAPSHOT_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}

	cfg := Config{
		Port:               getEnv("PORT", "8090"),
		AllowedOrigin:      getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		GatewayBaseURL:     strings.TrimRight(getEnv("GATEWAY_BASE_URL", "http://127.0.0.1:8080"), "/"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		DataDir:            getEnv("DATA_DIR", "data"),
		SnapshotTTLSeconds: ttl,
		Timezone:           getEnv("TIMEZONE", "Asia/Jakarta"),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
