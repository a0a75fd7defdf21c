// Copyright 2025 Lexeme Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the search engine configuration from YAML.
package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Host        string `yaml:"host"`
	Model       string `yaml:"model"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// CacheConfig configures the embedding cache.
type CacheConfig struct {
	// Path is the BadgerDB directory for the persistent cache.
	// Empty disables persistence.
	Path string `yaml:"path"`

	// Capacity bounds the in-memory cache.
	Capacity int `yaml:"capacity"`

	// StoreCapacity bounds the persistent store; least-recently-used
	// entries are pruned beyond it. Zero disables pruning.
	StoreCapacity int `yaml:"store_capacity"`
}

// FetchConfig configures candidate retrieval.
type FetchConfig struct {
	Concurrency int `yaml:"concurrency"`
	TimeoutSecs int `yaml:"timeout_secs"`
	MaxAttempts int `yaml:"max_attempts"`
}

// Timeout returns the configured fetch timeout as a duration.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// SummaryConfig configures result summaries.
type SummaryConfig struct {
	MaxLength int `yaml:"max_length"`
}

// SectionConfig configures document splitting.
type SectionConfig struct {
	MaxLength int `yaml:"max_length"`
	MinLength int `yaml:"min_length"`
}

// Config is the root configuration.
type Config struct {
	TopK      int             `yaml:"top_k"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Sections  SectionConfig   `yaml:"sections"`
	Summary   SummaryConfig   `yaml:"summary"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a config from path. A missing file yields defaults;
// a present file is merged over them.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.Embedding.Host == "" {
		cfg.Embedding.Host = "http://localhost:11434/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "embeddinggemma"
	}
	if cfg.Embedding.BatchSize <= 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.Concurrency <= 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = 4096
	}
	if cfg.Fetch.Concurrency <= 0 {
		cfg.Fetch.Concurrency = 5
	}
	if cfg.Fetch.TimeoutSecs <= 0 {
		cfg.Fetch.TimeoutSecs = 30
	}
	if cfg.Fetch.MaxAttempts <= 0 {
		cfg.Fetch.MaxAttempts = 2
	}
	if cfg.Sections.MaxLength <= 0 {
		cfg.Sections.MaxLength = 1200
	}
	if cfg.Summary.MaxLength <= 0 {
		cfg.Summary.MaxLength = 300
	}
}
