/*
Package config loads server configuration.

Order of precedence (later wins):
  1. Defaults
  2. YAML file (path argument, or SOLAR_CONFIG)
  3. Environment variables

    http_addr: ":8080"
    db_path: "solar.db"
    contract_owner: "ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM"
    jwt_secret: "change-me"
    recovery_schedule: "@every 1m"
    contribution_rate: 10
    demo: false          # enables /api/scenarios (resets the database)
    log:
      level: info
      encoding: json
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Log struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type Config struct {
	HTTPAddr         string `yaml:"http_addr"`
	DBPath           string `yaml:"db_path"`
	ContractOwner    string `yaml:"contract_owner"`
	JWTSecret        string `yaml:"jwt_secret"`
	RecoverySchedule string `yaml:"recovery_schedule"`
	ContributionRate int    `yaml:"contribution_rate"`
	Demo             bool   `yaml:"demo"`
	Log              Log    `yaml:"log"`
}

func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		DBPath:           "solar.db",
		RecoverySchedule: "@every 1m",
		ContributionRate: 10,
		Log:              Log{Level: "info", Encoding: "json"},
	}
}

// Load reads defaults, then path (or SOLAR_CONFIG when path is empty), then
// the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SOLAR_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DBPath = getenvDefault("DB_PATH", cfg.DBPath)
	cfg.ContractOwner = getenvDefault("CONTRACT_OWNER", cfg.ContractOwner)
	cfg.JWTSecret = getenvDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.RecoverySchedule = getenvDefault("RECOVERY_SCHEDULE", cfg.RecoverySchedule)
	cfg.Log.Level = getenvDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Encoding = getenvDefault("LOG_ENCODING", cfg.Log.Encoding)
	if v := os.Getenv("DEMO_MODE"); v != "" {
		demo, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("config: DEMO_MODE: %w", err)
		}
		cfg.Demo = demo
	}
	if v := os.Getenv("CONTRIBUTION_RATE"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: CONTRIBUTION_RATE: %w", err)
		}
		cfg.ContributionRate = rate
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: http_addr required")
	}
	if c.DBPath == "" {
		return errors.New("config: db_path required")
	}
	if c.ContributionRate < 0 || c.ContributionRate > 100 {
		return fmt.Errorf("config: contribution_rate %d out of range 0..100", c.ContributionRate)
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown log encoding %q", c.Log.Encoding)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
