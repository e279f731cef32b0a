// Package config provides YAML-based configuration loading for the SofAI
// backend, with environment-variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level sofaid configuration, loaded from sofai.yaml.
type Config struct {
	Server       ServerConfig    `yaml:"server"`
	Runner       RunnerConfig    `yaml:"runner"`
	History      HistoryConfig   `yaml:"history"`
	Auth         AuthConfig      `yaml:"auth"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	DefaultModel string          `yaml:"default_model"`
	SkipLoad     bool            `yaml:"skip_model_load"`
	Models       []ModelConfig   `yaml:"models"`
	Bridge       BridgeConfig    `yaml:"bridge"`
	Probe        ProbeConfig     `yaml:"probe"`
}

// ServerConfig holds HTTP bind settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// RunnerConfig holds connection settings for the inference runner sidecar.
type RunnerConfig struct {
	URL     string `yaml:"url"`
	Timeout int    `yaml:"timeout_seconds"`
}

// HistoryConfig selects the chat history backend.
type HistoryConfig struct {
	Backend string `yaml:"backend"` // memory, sqlite, mysql
	Path    string `yaml:"path"`    // sqlite file path
	DSN     string `yaml:"dsn"`     // mysql DSN
}

// AuthConfig holds the API key allow-list. An empty list disables the check.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig bounds request rates per client key on generation routes.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// ModelConfig describes one logical model the service can route to.
type ModelConfig struct {
	Name            string         `yaml:"name"`
	Repo            string         `yaml:"repo"`
	Revision        string         `yaml:"revision"`
	ReducedBit      bool           `yaml:"reduced_bit"`
	TrustRemoteCode bool           `yaml:"trust_remote_code"`
	Template        string         `yaml:"template"` // chatml, zephyr, generic
	Sampling        SamplingConfig `yaml:"sampling"`
	Stop            []string       `yaml:"stop"`
}

// SamplingConfig holds per-model generation defaults.
type SamplingConfig struct {
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
	DoSample     *bool   `yaml:"do_sample"`
	MaxNewTokens int     `yaml:"max_new_tokens"`
}

// BridgeConfig enables chat-platform adapters. An adapter is active only
// when its token fields are set.
type BridgeConfig struct {
	Discord DiscordConfig `yaml:"discord"`
	Slack   SlackConfig   `yaml:"slack"`
}

// DiscordConfig holds Discord gateway credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken  string `yaml:"app_token"`
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// ProbeConfig schedules the inference runner health probe.
type ProbeConfig struct {
	Schedule string `yaml:"schedule"` // 5-field cron expression
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file is not an error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Environment variables
// override file values, so a config file is optional.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envBool reports whether the named variable is set to a truthy value.
func envBool(name string) (bool, bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true, true
	}
	return false, true
}

// applyEnv overlays environment variables onto the config. The variable
// names match the original deployment environment, so existing .env files
// keep working.
func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("RUNNER_URL"); v != "" {
		c.Runner.URL = v
	}
	if v := os.Getenv("API_KEYS"); v != "" {
		c.Auth.APIKeys = splitKeys(v)
	}
	if b, ok := envBool("SKIP_MODEL_LOAD"); ok {
		c.SkipLoad = b
	}

	// MODEL_* variables configure the primary model, matching the original
	// single-model deployment shape.
	repo := os.Getenv("MODEL_NAME")
	trust, hasTrust := envBool("MODEL_TRUST_REMOTE")
	reduced, hasReduced := envBool("MODEL_LOAD_8BIT")
	revision := os.Getenv("MODEL_REVISION")
	if repo == "" && !hasTrust && !hasReduced && revision == "" {
		return
	}
	if len(c.Models) == 0 {
		c.Models = append(c.Models, ModelConfig{Name: defaultModelName})
	}
	primary := &c.Models[0]
	if repo != "" {
		primary.Repo = repo
	}
	if hasTrust {
		primary.TrustRemoteCode = trust
	}
	if hasReduced {
		primary.ReducedBit = reduced
	}
	if revision != "" {
		primary.Revision = revision
	}
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

const (
	defaultModelName = "qwen"
	defaultRepo      = "Qwen/Qwen2.5-1.5B-Instruct"
)

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Runner.URL == "" {
		c.Runner.URL = "http://127.0.0.1:8090"
	}
	if c.Runner.Timeout == 0 {
		c.Runner.Timeout = 120
	}
	if c.History.Backend == "" {
		c.History.Backend = "memory"
	}
	if c.History.Backend == "sqlite" && c.History.Path == "" {
		c.History.Path = "sofai_history.db"
	}
	if c.RateLimit.PerSecond == 0 {
		c.RateLimit.PerSecond = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
	if len(c.Models) == 0 {
		c.Models = []ModelConfig{
			{Name: "qwen", Repo: defaultRepo, Template: "chatml"},
			{Name: "tinyllama", Repo: "TinyLlama/TinyLlama-1.1B-Chat-v1.0", Template: "zephyr"},
		}
	}
	if c.DefaultModel == "" {
		c.DefaultModel = c.Models[0].Name
	}
	for i := range c.Models {
		m := &c.Models[i]
		if m.Revision == "" {
			m.Revision = "main"
		}
		if m.Template == "" {
			m.Template = "generic"
		}
		if m.Sampling.Temperature == 0 {
			m.Sampling.Temperature = 0.6
		}
		if m.Sampling.TopP == 0 {
			m.Sampling.TopP = 0.85
		}
		if m.Sampling.DoSample == nil {
			t := true
			m.Sampling.DoSample = &t
		}
		if m.Sampling.MaxNewTokens == 0 {
			m.Sampling.MaxNewTokens = 256
		}
	}
	if c.Probe.Schedule == "" {
		c.Probe.Schedule = "* * * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	seen := make(map[string]bool)
	for i, m := range c.Models {
		if m.Name == "" {
			errs = append(errs, fmt.Sprintf("models[%d].name is required", i))
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Sprintf("models[%d].name %q duplicated", i, m.Name))
		}
		seen[m.Name] = true
		if m.Repo == "" {
			errs = append(errs, fmt.Sprintf("models[%d].repo is required", i))
		}
	}
	if !seen[c.DefaultModel] {
		errs = append(errs, fmt.Sprintf("default_model %q is not in models", c.DefaultModel))
	}
	switch c.History.Backend {
	case "memory", "sqlite":
	case "mysql":
		if c.History.DSN == "" {
			errs = append(errs, "history.dsn is required for the mysql backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("history.backend %q is not one of memory, sqlite, mysql", c.History.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Model returns the named model config and whether it exists.
func (c *Config) Model(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// AuthEnabled reports whether the API key check is active.
func (c *Config) AuthEnabled() bool {
	return len(c.Auth.APIKeys) > 0
}
