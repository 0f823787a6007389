package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Scraper  Scraper  `yaml:"scraper"`
	Matcher  Matcher  `yaml:"matcher"`
	SMTP     SMTP     `yaml:"smtp"`
	Schedule Schedule `yaml:"schedule"`
	Storage  Storage  `yaml:"storage"`
}

type Scraper struct {
	BaseURL   string `yaml:"base_url"`
	MaxPages  int    `yaml:"max_pages"`
	BatchSize int    `yaml:"batch_size"`
}

type Matcher struct {
	Threshold  float64 `yaml:"threshold"`
	ScoringURL string  `yaml:"scoring_url"`
	APIKeyEnv  string  `yaml:"api_key_env"`
}

type SMTP struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	From        string   `yaml:"from"`
	To          []string `yaml:"to"`
	User        string   `yaml:"user"`
	PasswordEnv string   `yaml:"password_env"`
}

type Schedule struct {
	At       string `yaml:"at"`
	Timezone string `yaml:"timezone"`
}

type Storage struct {
	DataDir  string `yaml:"data_dir"`
	ShardCap int    `yaml:"shard_cap"`
}

// ConfigDir returns the XDG config directory for carwatch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "carwatch")
}

// DataDir returns the XDG data directory for carwatch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "carwatch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/carwatch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'carwatch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Scraper: Scraper{
			MaxPages:  20,
			BatchSize: 10,
		},
		Matcher: Matcher{
			Threshold:  0.5,
			ScoringURL: "http://localhost:8090/score",
			APIKeyEnv:  "CARWATCH_MODEL_KEY",
		},
		SMTP: SMTP{
			Port:        587,
			PasswordEnv: "CARWATCH_SMTP_PASSWORD",
		},
		Schedule: Schedule{
			At:       "06:00",
			Timezone: "Europe/Berlin",
		},
		Storage: Storage{
			ShardCap: 3000,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Scraper.BaseURL == "" {
		return nil, fmt.Errorf("scraper.base_url is required")
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG
// default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
