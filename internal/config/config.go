package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the correlation engine
type Config struct {
	// Storage configuration (document store)
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Cache configuration (result + richness caches)
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Processor settings (queue, batching, retries)
	Processor ProcessorConfig `yaml:"processor" mapstructure:"processor"`

	// Analysis scoring weights and thresholds
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`

	// Mode-selection and enhanced-analysis settings
	Integration IntegrationConfig `yaml:"integration" mapstructure:"integration"`

	// Enrichment lookup settings
	Enrichment EnrichmentConfig `yaml:"enrichment" mapstructure:"enrichment"`
}

type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

type CacheConfig struct {
	RedisAddr            string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword        string        `yaml:"redis_password" mapstructure:"redis_password"`
	TTL                  time.Duration `yaml:"ttl" mapstructure:"ttl"`
	CacheAnalysisResults bool          `yaml:"cache_analysis_results" mapstructure:"cache_analysis_results"`
}

type ProcessorConfig struct {
	BatchSize           int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxContextDocuments int           `yaml:"max_context_documents" mapstructure:"max_context_documents"`
	MaxRetries          int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay          time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
	ContextTimeRange    time.Duration `yaml:"context_time_range" mapstructure:"context_time_range"`
	ProcessingInterval  time.Duration `yaml:"processing_interval" mapstructure:"processing_interval"`
	DiscoveryWindow     time.Duration `yaml:"discovery_window" mapstructure:"discovery_window"`
}

type AnalysisConfig struct {
	TemporalThresholdHours     float64 `yaml:"temporal_threshold_hours" mapstructure:"temporal_threshold_hours"`
	SemanticThreshold          float64 `yaml:"semantic_threshold" mapstructure:"semantic_threshold"`
	MaxCorrelationsPerDocument int     `yaml:"max_correlations_per_document" mapstructure:"max_correlations_per_document"`
	KeywordWeight              float64 `yaml:"keyword_weight" mapstructure:"keyword_weight"`
	FilePathWeight             float64 `yaml:"file_path_weight" mapstructure:"file_path_weight"`
	AuthorWeight               float64 `yaml:"author_weight" mapstructure:"author_weight"`
	CommitMessageWeight        float64 `yaml:"commit_message_weight" mapstructure:"commit_message_weight"`
}

type IntegrationConfig struct {
	AnalysisMode       string        `yaml:"analysis_mode" mapstructure:"analysis_mode"` // "auto", "enhanced", "basic", "hybrid"
	EnhancedThreshold  float64       `yaml:"enhanced_threshold" mapstructure:"enhanced_threshold"`
	TechnologyWeight   float64       `yaml:"technology_weight" mapstructure:"technology_weight"`
	ArchitectureWeight float64       `yaml:"architecture_weight" mapstructure:"architecture_weight"`
	RichContentBonus   float64       `yaml:"rich_content_bonus" mapstructure:"rich_content_bonus"`
	FallbackTimeout    time.Duration `yaml:"fallback_timeout" mapstructure:"fallback_timeout"`
}

type EnrichmentConfig struct {
	LookupRateLimit float64 `yaml:"lookup_rate_limit" mapstructure:"lookup_rate_limit"` // lookups per second
	LookupBurst     int     `yaml:"lookup_burst" mapstructure:"lookup_burst"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{},
		Cache: CacheConfig{
			TTL:                  15 * time.Minute,
			CacheAnalysisResults: true,
		},
		Processor: ProcessorConfig{
			BatchSize:           5,
			MaxContextDocuments: 100,
			MaxRetries:          3,
			RetryDelay:          30 * time.Second,
			ContextTimeRange:    7 * 24 * time.Hour,
			ProcessingInterval:  60 * time.Second,
			DiscoveryWindow:     24 * time.Hour,
		},
		Analysis: AnalysisConfig{
			TemporalThresholdHours:     72,
			SemanticThreshold:          0.3,
			MaxCorrelationsPerDocument: 10,
			KeywordWeight:              0.4,
			FilePathWeight:             0.3,
			AuthorWeight:               0.2,
			CommitMessageWeight:        0.3,
		},
		Integration: IntegrationConfig{
			AnalysisMode:       "auto",
			EnhancedThreshold:  0.5,
			TechnologyWeight:   0.15,
			ArchitectureWeight: 0.1,
			RichContentBonus:   0.05,
			FallbackTimeout:    10 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			LookupRateLimit: 10,
			LookupBurst:     20,
		},
	}
}

// Load loads configuration from file, environment, and defaults
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("processor", cfg.Processor)
	v.SetDefault("analysis", cfg.Analysis)
	v.SetDefault("integration", cfg.Integration)
	v.SetDefault("enrichment", cfg.Enrichment)

	v.SetEnvPrefix("KHUB")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".knowledgehub")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".knowledgehub"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".knowledgehub", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.RedisPassword = password
	}
	if cacheResults := os.Getenv("CACHE_ANALYSIS_RESULTS"); cacheResults != "" {
		cfg.Cache.CacheAnalysisResults = cacheResults == "true"
	}
	if size := os.Getenv("BATCH_SIZE"); size != "" {
		if n, err := strconv.Atoi(size); err == nil {
			cfg.Processor.BatchSize = n
		}
	}
	if retries := os.Getenv("MAX_RETRIES"); retries != "" {
		if n, err := strconv.Atoi(retries); err == nil {
			cfg.Processor.MaxRetries = n
		}
	}
	if delay := os.Getenv("RETRY_DELAY_SECONDS"); delay != "" {
		if n, err := strconv.Atoi(delay); err == nil {
			cfg.Processor.RetryDelay = time.Duration(n) * time.Second
		}
	}
	if interval := os.Getenv("PROCESSING_INTERVAL_SECONDS"); interval != "" {
		if n, err := strconv.Atoi(interval); err == nil {
			cfg.Processor.ProcessingInterval = time.Duration(n) * time.Second
		}
	}
	if mode := os.Getenv("ANALYSIS_MODE"); mode != "" {
		cfg.Integration.AnalysisMode = mode
	}
	if threshold := os.Getenv("ENHANCED_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Integration.EnhancedThreshold = f
		}
	}
	if timeout := os.Getenv("FALLBACK_TIMEOUT_SECONDS"); timeout != "" {
		if n, err := strconv.Atoi(timeout); err == nil {
			cfg.Integration.FallbackTimeout = time.Duration(n) * time.Second
		}
	}
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("storage", c.Storage)
	v.Set("cache", c.Cache)
	v.Set("processor", c.Processor)
	v.Set("analysis", c.Analysis)
	v.Set("integration", c.Integration)
	v.Set("enrichment", c.Enrichment)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
