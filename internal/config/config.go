package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Chat        ChatConfig                `json:"chat"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	ResourcesDir  string `json:"resources_dir"`

	MinWorkers         int `json:"min_workers"`
	MaxWorkers         int `json:"max_workers"`
	QueueSize          int `json:"queue_size"`
	WorkerIdleTimeout  int `json:"worker_idle_timeout"`  // minutes
	SessionIdleTimeout int `json:"session_idle_timeout"` // minutes

	HistoryRetentionDays int `json:"history_retention_days"`
	HistoryCleanInterval int `json:"history_clean_interval"` // minutes

	RateLimitPerMinute int `json:"rate_limit_per_minute"`
	TokenTTLHours      int `json:"token_ttl_hours"`
}

// ChatConfig drives the message broker.
type ChatConfig struct {
	Provider             string `json:"provider"`
	ImageProvider        string `json:"image_provider"`
	ImageModel           string `json:"image_model"`
	DefaultLanguage      string `json:"default_language"`
	DefaultQuota         int    `json:"default_quota"`
	ResetQuota           int    `json:"reset_quota"`
	RemoteTimeoutSeconds int    `json:"remote_timeout_seconds"`
	MaxTokens            int    `json:"max_tokens"`
}

const (
	DefaultProvider      = "openai"
	DefaultImageModel    = "dall-e-3"
	DefaultQuota         = 2
	DefaultResetQuota    = 5
	DefaultRemoteTimeout = 30
	DefaultMaxTokens     = 250
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("databases must be configured")
	}
	if cfg.BasicConfig.ResourcesDir != "" && !filepath.IsAbs(cfg.BasicConfig.ResourcesDir) {
		cfg.BasicConfig.ResourcesDir = filepath.Join(filepath.Dir(absPath), cfg.BasicConfig.ResourcesDir)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv lets <PROVIDER>_API_KEY override the key stored in the file.
func (c *Config) applyEnv() {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for _, name := range []string{"openai", "gemini", "claude"} {
		key := strings.TrimSpace(os.Getenv(strings.ToUpper(name) + "_API_KEY"))
		if key == "" {
			continue
		}
		p := c.Providers[name]
		p.APIKey = key
		c.Providers[name] = p
	}
}

func (c *Config) applyDefaults() {
	if c.Chat.Provider == "" {
		c.Chat.Provider = DefaultProvider
	}
	if c.Chat.ImageProvider == "" {
		c.Chat.ImageProvider = DefaultProvider
	}
	if c.Chat.ImageModel == "" {
		c.Chat.ImageModel = DefaultImageModel
	}
	if c.Chat.DefaultLanguage == "" {
		c.Chat.DefaultLanguage = "es"
	}
	if c.Chat.DefaultQuota <= 0 {
		c.Chat.DefaultQuota = DefaultQuota
	}
	if c.Chat.ResetQuota <= 0 {
		c.Chat.ResetQuota = DefaultResetQuota
	}
	if c.Chat.RemoteTimeoutSeconds <= 0 {
		c.Chat.RemoteTimeoutSeconds = DefaultRemoteTimeout
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = DefaultMaxTokens
	}
	if c.BasicConfig.RateLimitPerMinute <= 0 {
		c.BasicConfig.RateLimitPerMinute = 30
	}
	if c.BasicConfig.TokenTTLHours <= 0 {
		c.BasicConfig.TokenTTLHours = 24
	}
}

// Provider returns the named provider config and whether it carries a key.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, false
	}
	return p, strings.TrimSpace(p.APIKey) != ""
}
