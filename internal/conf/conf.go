// Package conf holds the bootstrap configuration scanned from the kratos
// config file.
package conf

import "github.com/compintel/compradar/internal/config"

type Bootstrap struct {
	Server   *Server
	Data     *Data
	Pipeline *Pipeline
}

type Server struct {
	Http *HTTP
}

type HTTP struct {
	Addr    string
	Timeout string
}

type Data struct {
	Database *Database
}

type Database struct {
	// Driver is "postgres" or "memory"; memory keeps everything in
	// process and is meant for local development.
	Driver   string
	Host     string `json:"host"`
	Port     int32  `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Pipeline mirrors the analysis configuration surface of the CLI runner.
type Pipeline struct {
	Llm         *LLM         `json:"llm"`
	Search      *Search      `json:"search"`
	Collection  *Collection  `json:"collection"`
	Insights    *Insights    `json:"insights"`
	Schedule    string       `json:"schedule"`
	Competitors []string     `json:"competitors"`
	Log         *Log         `json:"log"`
	Concurrency *Concurrency `json:"concurrency"`
}

type LLM struct {
	BaseUrl string `json:"base_url"`
	ApiKey  string `json:"api_key"`
	Model   string `json:"model"`
	Timeout int32  `json:"timeout"`
}

type Search struct {
	Provider string   `json:"provider"`
	Tavily   *Tavily  `json:"tavily"`
	Searxng  *SearXNG `json:"searxng"`
}

type Tavily struct {
	ApiKey string `json:"api_key"`
}

type SearXNG struct {
	BaseUrl string `json:"base_url"`
	Timeout int32  `json:"timeout"`
}

type Collection struct {
	DaysBack    int32 `json:"days_back"`
	MaxDocs     int32 `json:"max_docs"`
	PageSize    int32 `json:"page_size"`
	Retries     int32 `json:"retries"`
	FetchBodies bool  `json:"fetch_bodies"`
	BucketHours int32 `json:"bucket_hours"`
	TopTopics   int32 `json:"top_topics"`
}

type Insights struct {
	Enabled bool  `json:"enabled"`
	Retries int32 `json:"retries"`
}

type Log struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

type Concurrency struct {
	Workers int32 `json:"workers"`
	Qps     int32 `json:"qps"`
	Rpm     int32 `json:"rpm"`
}

// AsPipelineConfig flattens the bootstrap pipeline section into the config
// shape the component constructors take.
func (p *Pipeline) AsPipelineConfig(db *Database) *config.Config {
	cfg := &config.Config{}
	if p == nil {
		return cfg
	}
	if p.Llm != nil {
		cfg.LLM = config.LLMConfig{
			BaseURL: p.Llm.BaseUrl,
			APIKey:  p.Llm.ApiKey,
			Model:   p.Llm.Model,
			Timeout: int(p.Llm.Timeout),
		}
	}
	if p.Search != nil {
		cfg.Search.Provider = p.Search.Provider
		if p.Search.Tavily != nil {
			cfg.Search.Tavily = config.TavilyConfig{APIKey: p.Search.Tavily.ApiKey}
		}
		if p.Search.Searxng != nil {
			cfg.Search.SearXNG = config.SearXNGConfig{
				BaseURL: p.Search.Searxng.BaseUrl,
				Timeout: int(p.Search.Searxng.Timeout),
			}
		}
	}
	if p.Collection != nil {
		cfg.Collection = config.CollectionConfig{
			DaysBack:    int(p.Collection.DaysBack),
			MaxDocs:     int(p.Collection.MaxDocs),
			PageSize:    int(p.Collection.PageSize),
			Retries:     int(p.Collection.Retries),
			FetchBodies: p.Collection.FetchBodies,
			BucketHours: int(p.Collection.BucketHours),
			TopTopics:   int(p.Collection.TopTopics),
		}
	}
	if p.Insights != nil {
		cfg.Insights = config.InsightConfig{Enabled: p.Insights.Enabled, Retries: int(p.Insights.Retries)}
	}
	if p.Concurrency != nil {
		cfg.Concurrency = config.ConcurrencyConfig{
			Workers: int(p.Concurrency.Workers),
			QPS:     int(p.Concurrency.Qps),
			RPM:     int(p.Concurrency.Rpm),
		}
	}
	if p.Log != nil {
		cfg.Log = config.LogConfig{Level: p.Log.Level, File: p.Log.File}
	}
	cfg.Schedule = p.Schedule
	cfg.Competitors = p.Competitors
	if db != nil {
		cfg.DB = config.DBConfig{
			Host:     db.Host,
			Port:     int(db.Port),
			User:     db.User,
			Password: db.Password,
			Name:     db.Name,
		}
	}
	return cfg
}
