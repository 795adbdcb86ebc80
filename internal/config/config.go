package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Merge policies for orchestration context deltas.
const (
	MergeUnion   = "union"
	MergeReplace = "replace"
)

// Config captures the settings required to boot the investigation engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Investigation InvestigationConfig `yaml:"investigation"`
	Reasoning     ReasoningConfig     `yaml:"reasoning"`
	Advice        AdviceConfig        `yaml:"advice"`
	Cache         CacheConfig         `yaml:"cache"`
	History       HistoryConfig       `yaml:"history"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// GatewayConfig configures access to the observability gateway fronting the
// cloud provider APIs.
type GatewayConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	Timeout     time.Duration `yaml:"timeout"`
	HealthPath  string        `yaml:"healthPath"`
	ChangesPath string        `yaml:"changesPath"`
	ConfigPath  string        `yaml:"configPath"`
	LogsPath    string        `yaml:"logsPath"`
	MetricsPath string        `yaml:"metricsPath"`
	TracePath   string        `yaml:"tracePath"`
}

// InvestigationConfig bounds a single investigation run.
type InvestigationConfig struct {
	MaxHandoffs      int           `yaml:"maxHandoffs"`
	MaxIterations    int           `yaml:"maxIterations"`
	ExecutionTimeout time.Duration `yaml:"executionTimeout"`
	PerStepTimeout   time.Duration `yaml:"perStepTimeout"`
	MaxConcurrency   int           `yaml:"maxConcurrency"`
	ContextMerge     string        `yaml:"contextMerge"`
}

// ReasoningConfig selects the optional reasoning unit.
type ReasoningConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"maxTokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// AdviceConfig controls rule-pack loading for the advisor.
type AdviceConfig struct {
	RulesPath string `yaml:"rulesPath"`
}

// CacheConfig controls caching of the cross-run global prechecks.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	HealthTTL  time.Duration `yaml:"healthTTL"`
	ChangesTTL time.Duration `yaml:"changesTTL"`
}

// HistoryConfig bounds the in-memory report history.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("FAULTLINE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Gateway: GatewayConfig{
			Timeout:     5 * time.Second,
			HealthPath:  "/api/v1/provider/health",
			ChangesPath: "/api/v1/changes",
			ConfigPath:  "/api/v1/resources/config",
			LogsPath:    "/api/v1/resources/logs",
			MetricsPath: "/api/v1/resources/metrics",
			TracePath:   "/api/v1/traces",
		},
		Investigation: InvestigationConfig{
			MaxHandoffs:      6,
			MaxIterations:    10,
			ExecutionTimeout: 2 * time.Minute,
			PerStepTimeout:   15 * time.Second,
			MaxConcurrency:   8,
			ContextMerge:     MergeUnion,
		},
		Reasoning: ReasoningConfig{
			Provider:  "none",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 2048,
			Timeout:   30 * time.Second,
		},
		Advice:  AdviceConfig{RulesPath: "configs/advice/default.yaml"},
		Cache:   CacheConfig{Enabled: false, HealthTTL: 2 * time.Minute, ChangesTTL: 5 * time.Minute},
		History: HistoryConfig{Limit: 128},
	}
}

func validate(cfg *Config) error {
	if cfg.Investigation.MaxHandoffs <= 0 {
		return fmt.Errorf("investigation.maxHandoffs must be positive")
	}
	if cfg.Investigation.MaxIterations <= 0 {
		return fmt.Errorf("investigation.maxIterations must be positive")
	}
	if cfg.Investigation.PerStepTimeout > cfg.Investigation.ExecutionTimeout {
		return fmt.Errorf("investigation.perStepTimeout must not exceed executionTimeout")
	}
	switch cfg.Investigation.ContextMerge {
	case MergeUnion, MergeReplace:
	default:
		return fmt.Errorf("investigation.contextMerge must be %q or %q", MergeUnion, MergeReplace)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FAULTLINE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("FAULTLINE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("FAULTLINE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FAULTLINE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("FAULTLINE_GATEWAY_BASE_URL"); v != "" {
		cfg.Gateway.BaseURL = v
	}
	if v := os.Getenv("FAULTLINE_GATEWAY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Gateway.Timeout = d
		}
	}
	if v := os.Getenv("FAULTLINE_MAX_HANDOFFS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Investigation.MaxHandoffs = n
		}
	}
	if v := os.Getenv("FAULTLINE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Investigation.MaxIterations = n
		}
	}
	if v := os.Getenv("FAULTLINE_EXECUTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Investigation.ExecutionTimeout = d
		}
	}
	if v := os.Getenv("FAULTLINE_PER_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Investigation.PerStepTimeout = d
		}
	}
	if v := os.Getenv("FAULTLINE_MAX_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Investigation.MaxConcurrency = n
		}
	}
	if v := os.Getenv("FAULTLINE_CONTEXT_MERGE"); v != "" {
		cfg.Investigation.ContextMerge = strings.ToLower(v)
	}
	if v := os.Getenv("FAULTLINE_REASONING_PROVIDER"); v != "" {
		cfg.Reasoning.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("FAULTLINE_REASONING_MODEL"); v != "" {
		cfg.Reasoning.Model = v
	}
	if v := os.Getenv("FAULTLINE_REASONING_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reasoning.MaxTokens = n
		}
	}
	if v := os.Getenv("FAULTLINE_ADVICE_RULES_PATH"); v != "" {
		cfg.Advice.RulesPath = v
	}
	if v := os.Getenv("FAULTLINE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("FAULTLINE_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.History.Limit = n
		}
	}
}
