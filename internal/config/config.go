// Package config loads server settings from an optional YAML file,
// overlaid with environment variables so container deployments can
// override any field without a file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port      string  `yaml:"port"`
		RateRPS   float64 `yaml:"rate_rps"`
		RateBurst int     `yaml:"rate_burst"`
	} `yaml:"server"`
	Database struct {
		URL     string `yaml:"url"`
		Migrate bool   `yaml:"migrate"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Directions struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Profile string `yaml:"profile"`
	} `yaml:"directions"`
	Optimizer struct {
		DefaultBudgetMs int     `yaml:"default_budget_ms"`
		MaxBudgetMs     int     `yaml:"max_budget_ms"`
		AvgSpeedKmh     float64 `yaml:"avg_speed_kmh"`
	} `yaml:"optimizer"`
}

// Defaults returns the configuration used when nothing is specified.
func Defaults() Config {
	var c Config
	c.Server.Port = "8080"
	c.Server.RateRPS = 10
	c.Server.RateBurst = 20
	c.Database.Migrate = true
	c.Optimizer.DefaultBudgetMs = 30000
	c.Optimizer.MaxBudgetMs = 120000
	c.Optimizer.AvgSpeedKmh = 60
	return c
}

// Load reads path (when non-empty) over the defaults, then applies env
// overrides. A missing file at an explicitly configured path is an error;
// an empty path means env-only.
func Load(path string) (Config, error) {
	c := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	c.applyEnv()
	return c, nil
}

// FromEnv loads configuration from CONFIG_FILE (if set) and environment.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RateRPS = f
		}
	}
	if v := os.Getenv("RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.RateBurst = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DB_MIGRATE"); v != "" {
		c.Database.Migrate = v != "false"
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("ORS_BASE_URL"); v != "" {
		c.Directions.BaseURL = v
	}
	if v := os.Getenv("ORS_API_KEY"); v != "" {
		c.Directions.APIKey = v
	}
	if v := os.Getenv("ORS_PROFILE"); v != "" {
		c.Directions.Profile = v
	}
	if v := os.Getenv("AVG_SPEED_KMH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Optimizer.AvgSpeedKmh = f
		}
	}
}
