package main

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/lingodom/lingodom/capability/lingva"
	"github.com/lingodom/lingodom/capability/llm"
	"github.com/lingodom/lingodom/engine"
)

// appConfig is the top-level configuration: YAML file first, environment
// overrides second.
type appConfig struct {
	// Provider selects the translation backend: "llm" or "lingva".
	Provider string `yaml:"provider" env:"LINGODOM_PROVIDER"`

	LLM    llm.Config    `yaml:"llm"`
	Lingva lingva.Config `yaml:"lingva"`
	Engine engine.Config `yaml:"engine"`

	// StorePath is the SQLite database for saved language and pass history.
	// Empty disables persistence.
	StorePath string `yaml:"store_path" env:"LINGODOM_STORE_PATH"`

	// Addr is the listen address for serve mode.
	Addr string `yaml:"addr" env:"LINGODOM_ADDR"`

	// Browser enables headless-browser escalation when fetching URLs.
	Browser bool `yaml:"browser" env:"LINGODOM_BROWSER"`
}

// envOverrides maps secrets and deploy-time settings that should not live
// in the YAML file.
type envOverrides struct {
	LLMBaseURL string `env:"LINGODOM_LLM_BASE_URL"`
	LLMAPIKey  string `env:"LINGODOM_LLM_API_KEY"`
	LLMModel   string `env:"LINGODOM_LLM_MODEL"`
	LingvaURL  string `env:"LINGODOM_LINGVA_URL"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		Provider: "lingva",
		Addr:     ":8080",
	}
}

func loadConfig(path string) (appConfig, error) {
	cfg := defaultAppConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env config: %w", err)
	}
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if ov.LLMBaseURL != "" {
		cfg.LLM.BaseURL = ov.LLMBaseURL
	}
	if ov.LLMAPIKey != "" {
		cfg.LLM.APIKey = ov.LLMAPIKey
	}
	if ov.LLMModel != "" {
		cfg.LLM.Model = ov.LLMModel
	}
	if ov.LingvaURL != "" {
		cfg.Lingva.BaseURL = ov.LingvaURL
	}

	switch cfg.Provider {
	case "llm":
		if cfg.LLM.BaseURL == "" || cfg.LLM.Model == "" {
			return cfg, fmt.Errorf("llm provider needs base_url and model")
		}
	case "lingva":
	default:
		return cfg, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	return cfg, nil
}
