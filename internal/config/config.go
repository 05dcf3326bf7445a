package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

var AppEnv Config

type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	Port            string        `envconfig:"PORT" default:"8080"`
	MongoURI        string        `envconfig:"MONGO_URI" required:"true"`
	DBName          string        `envconfig:"DB_NAME" default:"marketplace"`
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"20m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"720h"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX_REQUESTS" default:"100"`
	AuthRateLimit   int           `envconfig:"AUTH_RATE_LIMIT_MAX" default:"5"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:3001"`
	UploadDir       string        `envconfig:"UPLOAD_DIR" default:"./uploads"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s"`
}

func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Load reads .env (if present) and then the process environment into AppEnv.
func Load() error {
	if err := godotenv.Load(); err != nil {
		logrus.WithField("area", "CONFIG").Debugf(".env not loaded: %v", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.MongoURI) == "" {
		return errors.New("MONGO_URI must not be empty")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	AppEnv = cfg
	return nil
}

// ConfigureLogger applies the log level and formatter for the environment.
func ConfigureLogger(cfg Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.IsDevelopment() {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
