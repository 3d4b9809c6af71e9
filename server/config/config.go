package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is everything the binary reads from the environment.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	Port        string `env:"PORT" envDefault:"8080"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	APIBase     string        `env:"HANABI_API_BASE" envDefault:"https://hanab.live"`
	HTTPTimeout time.Duration `env:"HANABI_HTTP_TIMEOUT" envDefault:"30s"`
	UserAgent   string        `env:"HANABI_USER_AGENT" envDefault:"hanabi-stats/1.0"`

	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	Workers        int  `env:"WORKERS" envDefault:"4"`
	TopN           int  `env:"TOP_N" envDefault:"10"`
	MinSharedGames int  `env:"MIN_SHARED_GAMES" envDefault:"1"`
	StrikeLimit    int  `env:"STRIKE_LIMIT" envDefault:"3"`
	EndOnStrikeout bool `env:"END_ON_STRIKEOUT" envDefault:"true"`
	BonusClue      bool `env:"BONUS_CLUE" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"."`
}

// Load reads .env when present and then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.StrikeLimit < 1 {
		return Config{}, fmt.Errorf("parse env: STRIKE_LIMIT must be positive, got %d", cfg.StrikeLimit)
	}
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	return cfg, nil
}

// Logger builds the process logger at the configured level. Unknown levels
// fall back to info.
func (c Config) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(strings.TrimSpace(c.LogLevel))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}
