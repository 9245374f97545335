// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/skirmish/engine"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment.
type Config struct {
	ServerURL  string `env:"SKIRMISH_SERVER_URL"`
	ListenAddr string `env:"SKIRMISH_LISTEN_ADDR" envDefault:":8080"`
	JWTSecret  string `env:"SKIRMISH_JWT_SECRET" envDefault:"dev-secret"`
	PlayerID   string `env:"SKIRMISH_PLAYER_ID"`

	CatalogPath string `env:"SKIRMISH_CATALOG"`
	Seed        uint64 `env:"SKIRMISH_SEED"`

	// Balance knobs.
	RoundCap          int `env:"SKIRMISH_ROUND_CAP" envDefault:"10"`
	BeginThreatOffset int `env:"SKIRMISH_BEGIN_THREAT_OFFSET" envDefault:"2"`
	EndThreatOffset   int `env:"SKIRMISH_END_THREAT_OFFSET" envDefault:"3"`

	NarrationURL     string        `env:"SKIRMISH_NARRATION_URL"`
	NarrationModel   string        `env:"SKIRMISH_NARRATION_MODEL"`
	NarrationKey     string        `env:"SKIRMISH_NARRATION_KEY"`
	NarrationTimeout time.Duration `env:"SKIRMISH_NARRATION_TIMEOUT" envDefault:"3s"`

	RedisAddr   string        `env:"SKIRMISH_REDIS_ADDR"`
	SnapshotTTL time.Duration `env:"SKIRMISH_SNAPSHOT_TTL" envDefault:"24h"`
	PostgresDSN string        `env:"SKIRMISH_POSTGRES_DSN"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the given .env files (default ".env"), then parses the
// environment. Missing .env files are not an error.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", p, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Balance returns the engine balance with the configured knobs applied.
func (c Config) Balance() engine.Balance {
	b := engine.DefaultBalance()
	b.RoundCap = c.RoundCap
	b.BeginThreatOffset = c.BeginThreatOffset
	b.EndThreatOffset = c.EndThreatOffset
	return b
}

// Logger builds a logrus logger from LOG_LEVEL and LOG_FORMAT.
func (c Config) Logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	l := logrus.New()
	l.SetLevel(lvl)
	switch c.LogFormat {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log format %q: want json or text", c.LogFormat)
	}
	return l, nil
}
