// Package config loads server configuration from an optional YAML file
// with environment variable overrides on top.
package config

import (
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"databaseUrl"`
	RedisURL    string `yaml:"redisUrl"`
	DataDir     string `yaml:"dataDir"`
	MigrateDir  string `yaml:"migrateDir"`

	// Solve limits
	MaxTimeLimitSeconds int `yaml:"maxTimeLimitSeconds"`
	DefaultTimeScaler   int `yaml:"defaultTimeScaler"`

	// Genetic defaults
	PopulationSize int `yaml:"populationSize"`
	Generations    int `yaml:"generations"`
	TournamentSize int `yaml:"tournamentSize"`

	// Rate limiting (requests per second per client, 0 disables)
	RateLimitRPS   float64 `yaml:"rateLimitRps"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
}

func defaults() Config {
	return Config{
		Port:                "8080",
		DataDir:             "data",
		MigrateDir:          "db/migrations",
		MaxTimeLimitSeconds: 300,
		DefaultTimeScaler:   100,
		PopulationSize:      50,
		Generations:         100,
		TournamentSize:      5,
		RateLimitRPS:        0,
		RateLimitBurst:      20,
	}
}

// Load reads path if it exists, then applies environment overrides.
// A missing file is not an error; env-only deployments are common.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}
	overrideStr(&cfg.Port, "PORT")
	overrideStr(&cfg.DatabaseURL, "DATABASE_URL")
	overrideStr(&cfg.RedisURL, "REDIS_URL")
	overrideStr(&cfg.DataDir, "DATA_DIR")
	overrideStr(&cfg.MigrateDir, "MIGRATE_DIR")
	overrideInt(&cfg.MaxTimeLimitSeconds, "MAX_TIME_LIMIT_SECONDS")
	overrideInt(&cfg.DefaultTimeScaler, "TIME_PRECISION_SCALER")
	overrideInt(&cfg.PopulationSize, "GA_POPULATION_SIZE")
	overrideInt(&cfg.Generations, "GA_GENERATIONS")
	overrideInt(&cfg.TournamentSize, "GA_TOURNAMENT_SIZE")
	overrideFloat(&cfg.RateLimitRPS, "RATE_LIMIT_RPS")
	overrideInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST")
	return cfg, nil
}

func overrideStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func overrideFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
