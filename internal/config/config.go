package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// ErrNoConfigFile is returned by ResolveConfigPath when no config file exists.
var ErrNoConfigFile = errors.New("no config file found")

type Config struct {
	Database Database `yaml:"database"`
	ADS      ADS      `yaml:"ads"`
	Update   Update   `yaml:"update"`
	Feeds    Feeds    `yaml:"feeds"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type Database struct {
	Path string `yaml:"path"`
}

type ADS struct {
	APIKeyEnv string  `yaml:"api_key_env"`
	BaseURL   string  `yaml:"base_url"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second
	Rows      int     `yaml:"rows"`
}

// Update controls the monthly ADS search.
type Update struct {
	Database              string   `yaml:"database"`
	Exclude               []string `yaml:"exclude"`
	FetchMissingAbstracts bool     `yaml:"fetch_missing_abstracts"`
}

type Feeds struct {
	Sources  []Feed   `yaml:"sources"`
	Keywords []string `yaml:"keywords"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type Output struct {
	Dir string `yaml:"dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for kpub.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "kpub")
}

// DefaultDatabasePath is where the publication database lives unless
// configured otherwise.
func DefaultDatabasePath() string {
	return filepath.Join(homeDir(), ".kpub.db")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/kpub/config.yaml > ./config.yaml
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

	return "", fmt.Errorf("%w; searched:\n  %s\n  ./config.yaml\n\nRun 'kpub init' to create one",
		ErrNoConfigFile, xdgConfig)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// LoadOrDefault loads the resolved config file, falling back to the
// embedded defaults when no file exists. An explicit path that does not
// exist is an error. The returned path is empty when defaults were used.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := ResolveConfigPath(explicit)
	if errors.Is(err, ErrNoConfigFile) {
		cfg, err := parse(DefaultConfigYAML)
		return cfg, "", err
	}
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		ADS: ADS{
			APIKeyEnv: "ADS_DEV_KEY",
			BaseURL:   "https://api.adsabs.harvard.edu/v1",
			RateLimit: 2,
			Rows:      200,
		},
		Update: Update{
			Database: "astronomy",
		},
		Output:  Output{Dir: "."},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDatabasePath returns the effective database path, expanding a
// leading "~/".
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath()
	}
	return expandHome(c.Database.Path)
}

// GetOutputDir returns the directory reports are written to.
func (c *Config) GetOutputDir() string {
	if c.Output.Dir == "" {
		return "."
	}
	return expandHome(c.Output.Dir)
}

// Quiet reports whether informational logging is switched off.
func (c *Config) Quiet() bool {
	return strings.EqualFold(c.Logging.Level, "quiet")
}

// APIKey returns the ADS token. A .env file in the working directory or
// the config directory is consulted first; variables already set in the
// environment win.
func (c *Config) APIKey() string {
	LoadEnv()
	return os.Getenv(c.ADS.APIKeyEnv)
}

// LoadEnv loads .env files that exist, without overriding variables that
// are already set.
func LoadEnv() {
	for _, path := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
