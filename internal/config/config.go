package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort string

	DBDriver          string // "pgx", "postgres" or "memory"
	DBHost            string
	DBPort            int
	DBUser            string
	DBPassword        string
	DBName            string
	DBSslMode         string
	DBTxMaxAttempts   int
	DBConnMaxLifetime time.Duration

	JWTSecret          string
	JWTExpirationHours time.Duration

	HoldWindow          time.Duration
	ExpirySweepInterval time.Duration

	GoogleMapsAPIKey string

	AWSRegion        string
	SQSEventQueueURL string

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	CORSAllowedOrigins   []string
	ReserveRatePerMinute int

	AdminUsername string
	AdminPassword string

	LogLevel  string
	LogFormat string
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("could not load .env file")
	}

	jwtExpHours := getEnvInt("JWT_EXPIRATION_HOURS", 24)

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DBDriver:          getEnv("DB_DRIVER", "pgx"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnvInt("DB_PORT", 5432),
		DBUser:            getEnv("DB_USER", "parkease"),
		DBPassword:        getEnv("DB_PASSWORD", "parkease"),
		DBName:            getEnv("DB_NAME", "parkease"),
		DBSslMode:         getEnv("DB_SSLMODE", "disable"),
		DBTxMaxAttempts:   getEnvInt("DB_TX_MAX_ATTEMPTS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),

		JWTSecret:          getEnv("JWT_SECRET", "change-me-parkease-jwt-secret"),
		JWTExpirationHours: time.Duration(jwtExpHours) * time.Hour,

		HoldWindow:          getEnvDuration("HOLD_WINDOW", 20*time.Minute),
		ExpirySweepInterval: getEnvDuration("EXPIRY_SWEEP_INTERVAL", 30*time.Second),

		GoogleMapsAPIKey: getEnv("GOOGLE_MAPS_API_KEY", ""),

		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		SQSEventQueueURL: getEnv("SQS_EVENT_QUEUE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisChannel:  getEnv("REDIS_CHANNEL", "parkease:reservations"),

		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		ReserveRatePerMinute: getEnvInt("RESERVE_RATE_PER_MINUTE", 10),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// DSN builds the connection string understood by both pgx/stdlib and lib/pq.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" port=" + strconv.Itoa(c.DBPort) +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" sslmode=" + c.DBSslMode
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("log_level", c.LogLevel).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.WithFields(log.Fields{"key": key, "default": fallback}).Debug("environment variable not set, using default")
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := getEnv(key, strconv.Itoa(fallback))
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": raw}).Warn("invalid integer, using default")
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, fallback.String())
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		log.WithFields(log.Fields{"key": key, "value": raw}).Warn("invalid duration, using default")
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
