package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		TokenTTL   string `yaml:"token_ttl"`
		BcryptCost int    `yaml:"bcrypt_cost"`
	} `yaml:"auth"`
	Game struct {
		GradeScale  string `yaml:"grade_scale"`
		BasePoints  int    `yaml:"base_points"`
		QuestionTTL string `yaml:"question_ttl"`
		RankingTTL  string `yaml:"ranking_ttl"`
	} `yaml:"game"`
}

// Default returns the configuration used when no file is present: in-memory
// storage, a 0..10 grade scale and 100 base points.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Auth.TokenTTL = "24h"
	cfg.Game.GradeScale = "10"
	cfg.Game.BasePoints = 100
	cfg.Game.QuestionTTL = "10m"
	cfg.Game.RankingTTL = "30s"
	return cfg
}

// Load reads YAML config from path on top of Default, then applies
// environment overrides. A .env file in the working directory is loaded first
// and never overrides variables that are already set. A missing config file
// is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&cfg.Server.Port, "PORT")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.Format, "LOG_FORMAT")
	override(&cfg.Postgres.URL, "POSTGRES_URL")
	override(&cfg.Redis.Addr, "REDIS_ADDR")
	override(&cfg.Redis.Password, "REDIS_PASSWORD")
	override(&cfg.Auth.JWTSecret, "JWT_SECRET")
	if v, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		cfg.Redis.DB = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
