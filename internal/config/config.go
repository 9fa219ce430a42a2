package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the validator configuration.
type Config struct {
	Validator ValidatorConfig `yaml:"validator"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	API       APIConfig       `yaml:"api"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"database"`
	Media     MediaConfig     `yaml:"media"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ValidatorConfig holds round-loop settings.
type ValidatorConfig struct {
	Netuid                 int    `yaml:"netuid"`
	Key                    string `yaml:"key"`
	Secret                 string `yaml:"secret"` // signing secret; defaults to the key
	ModuleNamePrefix       string `yaml:"module_name_prefix"`
	SampleSize             int    `yaml:"sample_size"`
	NumVideos              int    `yaml:"num_videos"`
	DispatchWidth          int    `yaml:"dispatch_width"`
	CallTimeoutSec         int    `yaml:"call_timeout_sec"`
	IterationIntervalSec   int    `yaml:"iteration_interval_sec"`
	UpdateCheckIntervalSec int    `yaml:"update_check_interval_sec"`
	MaxAllowedWeights      int    `yaml:"max_allowed_weights"`
	DropZeroWeights        bool   `yaml:"drop_zero_weights"`
}

// LedgerConfig holds the chain commune endpoint settings.
type LedgerConfig struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// APIConfig holds the subnet owner API settings (topics, novelty index,
// proxies, metadata upload).
type APIConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds the operational HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the embedding-cache store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	CacheTTLSec      int      `yaml:"cache_ttl_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Text    ProviderConfig `yaml:"text"`
	Encoder EncoderConfig  `yaml:"encoder"`
}

// ProviderConfig holds text embedding provider settings.
type ProviderConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// EncoderConfig holds the multimodal clip encoder settings.
type EncoderConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// MediaConfig holds audit download settings.
type MediaConfig struct {
	YTDLPPath           string `yaml:"ytdlp_path"`
	DownloadConcurrency int    `yaml:"download_concurrency"`
	DownloadTimeoutSec  int    `yaml:"download_timeout_sec"`
	WorkDir             string `yaml:"work_dir"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Validator.Secret == "" {
		c.Validator.Secret = c.Validator.Key
	}
	if c.Validator.SampleSize <= 0 {
		c.Validator.SampleSize = 8
	}
	if c.Validator.NumVideos <= 0 {
		c.Validator.NumVideos = 8
	}
	if c.Validator.DispatchWidth <= 0 {
		c.Validator.DispatchWidth = 8
	}
	if c.Validator.CallTimeoutSec <= 0 {
		c.Validator.CallTimeoutSec = 105
	}
	if c.Validator.IterationIntervalSec <= 0 {
		c.Validator.IterationIntervalSec = 60
	}
	if c.Validator.UpdateCheckIntervalSec <= 0 {
		c.Validator.UpdateCheckIntervalSec = 1800
	}
	if c.Validator.MaxAllowedWeights <= 0 {
		c.Validator.MaxAllowedWeights = 400
	}
	if c.Validator.ModuleNamePrefix == "" {
		c.Validator.ModuleNamePrefix = "model.omega"
	}
	if c.Ledger.TimeoutSec <= 0 {
		c.Ledger.TimeoutSec = 30
	}
	if c.API.TimeoutSec <= 0 {
		c.API.TimeoutSec = 30
	}
	if c.Embedding.Text.Model == "" {
		c.Embedding.Text.Model = "text-embedding-3-large"
	}
	if c.Embedding.Encoder.TimeoutSec <= 0 {
		c.Embedding.Encoder.TimeoutSec = 120
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "validator:"
	}
	if c.Database.CacheTTLSec <= 0 {
		c.Database.CacheTTLSec = 604800 // 7 days
	}
	if c.Media.YTDLPPath == "" {
		c.Media.YTDLPPath = "yt-dlp"
	}
	if c.Media.DownloadConcurrency <= 0 {
		c.Media.DownloadConcurrency = 5
	}
	if c.Media.DownloadTimeoutSec <= 0 {
		c.Media.DownloadTimeoutSec = 10
	}
	if c.Media.WorkDir == "" {
		c.Media.WorkDir = os.TempDir()
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.Validator.Netuid <= 0 {
		return fmt.Errorf("validator.netuid is required, got %d", c.Validator.Netuid)
	}
	if c.Validator.Key == "" {
		return fmt.Errorf("validator.key is required")
	}
	if c.Ledger.URL == "" {
		return fmt.Errorf("ledger.url is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Embedding.Encoder.BaseURL == "" {
		return fmt.Errorf("embedding.encoder.base_url is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
