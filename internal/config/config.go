// Copyright (c) 2026 Userbase
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment
// variables, with an optional overlay from the forum's extension config
// table.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AIConfig selects the model backend and its credentials.
type AIConfig struct {
	Provider string // "openrouter" or "gemini"
	APIKey   string
	Model    string
	BaseURL  string
}

// Config holds all configuration for the assist service.
type Config struct {
	Port int

	DatabaseURL string
	RedisURL    string

	// TablePrefix is the forum's table prefix, e.g. "phpbb_".
	TablePrefix string
	// CookieName is the forum's cookie base name; the session cookie is
	// "<CookieName>_sid".
	CookieName string
	// ConfigFromDB overlays the AI settings and post ceiling from the
	// forum's extension config table at startup.
	ConfigFromDB bool

	AI AIConfig

	// MaxTopicPosts is the topic window ceiling for non-privileged callers.
	MaxTopicPosts int

	GeneralRulesFile     string
	MarketplaceRulesFile string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL string `yaml:"url"`
	} `yaml:"redis"`
	Forum struct {
		TablePrefix  string `yaml:"table_prefix"`
		CookieName   string `yaml:"cookie_name"`
		ConfigFromDB bool   `yaml:"config_from_db"`
	} `yaml:"forum"`
	AI struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
		BaseURL  string `yaml:"base_url"`
	} `yaml:"ai"`
	Limits struct {
		MaxTopicPosts int `yaml:"max_topic_posts"`
	} `yaml:"limits"`
	Rules struct {
		GeneralFile     string `yaml:"general_file"`
		MarketplaceFile string `yaml:"marketplace_file"`
	} `yaml:"rules"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Port:        firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		DatabaseURL: firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		RedisURL:    firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),

		TablePrefix:  firstNonEmpty(raw.Forum.TablePrefix, "phpbb_"),
		CookieName:   firstNonEmpty(raw.Forum.CookieName, "phpbb3"),
		ConfigFromDB: raw.Forum.ConfigFromDB,

		AI: AIConfig{
			Provider: firstNonEmpty(raw.AI.Provider, envOrDefault("AI_PROVIDER", "openrouter")),
			APIKey:   firstNonEmpty(raw.AI.APIKey, os.Getenv("AI_API_KEY")),
			Model:    firstNonEmpty(raw.AI.Model, os.Getenv("AI_MODEL")),
			BaseURL:  firstNonEmpty(raw.AI.BaseURL, os.Getenv("AI_BASEURL")),
		},

		MaxTopicPosts: firstPositive(raw.Limits.MaxTopicPosts, envOrDefaultInt("MAX_TOPIC_POSTS", 20)),

		GeneralRulesFile:     firstNonEmpty(raw.Rules.GeneralFile, "rules/forum_rules.txt"),
		MarketplaceRulesFile: firstNonEmpty(raw.Rules.MarketplaceFile, "rules/marketplace_rules.txt"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database URL configured — set database.url or DATABASE_URL")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
