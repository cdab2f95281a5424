package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the pipeline configuration used by the CLI runner and handed
// explicitly into every component constructor.
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Collection  CollectionConfig  `yaml:"collection"`
	Insights    InsightConfig     `yaml:"insights"`
	Competitors []string          `yaml:"competitors"` // names for CLI one-shot runs
	Schedule    string            `yaml:"schedule"`    // cron spec, empty disables
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
}

// LLMConfig selects the language model provider.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout int    `yaml:"timeout"` // seconds per completion call
}

// RequestTimeout returns the per-call completion timeout.
func (c LLMConfig) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

// DBConfig holds postgres connection settings.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// SearchConfig selects the content-search provider.
type SearchConfig struct {
	Provider string        `yaml:"provider"` // tavily | searxng
	Tavily   TavilyConfig  `yaml:"tavily"`
	SearXNG  SearXNGConfig `yaml:"searxng"`
}

// TavilyConfig holds Tavily credentials.
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// SearXNGConfig holds SearXNG endpoint settings.
type SearXNGConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// CollectionConfig bounds the collection stage.
type CollectionConfig struct {
	DaysBack    int  `yaml:"days_back"`
	MaxDocs     int  `yaml:"max_docs"`
	PageSize    int  `yaml:"page_size"`
	Retries     int  `yaml:"retries"`
	FetchBodies bool `yaml:"fetch_bodies"` // enrich short excerpts via readability
	BucketHours int  `yaml:"bucket_hours"`
	TopTopics   int  `yaml:"top_topics"`
}

// InsightConfig bounds the insight stage.
type InsightConfig struct {
	Enabled bool `yaml:"enabled"`
	Retries int  `yaml:"retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig bounds provider fan-out.
type ConcurrencyConfig struct {
	Workers int `yaml:"workers"` // concurrent collection branches
	QPS     int `yaml:"qps"`
	RPM     int `yaml:"rpm"`
}

// LoadConfig reads a YAML config from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
