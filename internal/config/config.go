package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"bookmyfaculty/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Exports    ExportConfig     `yaml:"exports"`
	Providers  []ProviderConfig `yaml:"providers"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey binds an API key to an authenticated actor. This is the
// identity provider boundary: whoever holds the key acts as this id and
// role, and the core trusts the mapping as given.
type APIClientKey struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	ActorID int64  `yaml:"actor_id"`
	Role    string `yaml:"role"`
}

type APIRateLimitConfig struct {
	Requests int `yaml:"requests"`
	WindowS  int `yaml:"window_seconds"`
}

// Window returns the rate limit window as a duration.
func (c APIRateLimitConfig) Window() time.Duration {
	if c.WindowS <= 0 {
		return time.Duration(models.RateLimitWindow) * time.Second
	}
	return time.Duration(c.WindowS) * time.Second
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	// ProviderChats maps a provider id to the Telegram chat that
	// receives their booking notifications.
	ProviderChats map[int64]int64 `yaml:"provider_chats"`
}

type GoogleConfig struct {
	Enabled               bool   `yaml:"enabled"`
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ReservationsSheetID   string `yaml:"reservations_spreadsheet_id"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig declares a faculty member known to the service.
type ProviderConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; env expansion below still works without it.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("telegram.bot_token is required when telegram is enabled")
	}

	if c.Google.Enabled {
		if c.Google.GoogleCredentialsFile == "" {
			return errors.New("google.credentials_file is required when sheets export is enabled")
		}
		if c.Google.ReservationsSheetID == "" {
			return errors.New("google.reservations_spreadsheet_id is required when sheets export is enabled")
		}
	}

	if err := ValidateAPIKeys(c.API.Auth.APIKeys); err != nil {
		return err
	}

	return ValidateProviders(c.Providers)
}

// ValidateAPIKeys rejects duplicate keys and unknown roles.
func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key for '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key found: %s", k.Name)
		}
		seen[k.Key] = true

		switch k.Role {
		case models.RoleStudent, models.RoleFaculty, models.RoleAdmin:
		default:
			return fmt.Errorf("api key '%s' has unknown role %q", k.Name, k.Role)
		}
	}
	return nil
}

// ValidateProviders rejects duplicate or zero provider ids.
func ValidateProviders(providers []ProviderConfig) error {
	ids := make(map[int64]bool)
	for _, p := range providers {
		if p.ID == 0 {
			return fmt.Errorf("provider '%s' has invalid ID 0", p.Name)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate provider ID found: %d", p.ID)
		}
		ids[p.ID] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if c.API.Enabled && !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.Requests == 0 {
		c.API.RateLimit.Requests = models.RateLimitRequests
	}
	if c.API.RateLimit.WindowS == 0 {
		c.API.RateLimit.WindowS = models.RateLimitWindow
	}
}
