package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the docrag service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Chunking ChunkingConfig `yaml:"chunking"`
	Retrieve RetrieveConfig `yaml:"retrieve"`
	Backend  BackendConfig  `yaml:"backend"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP listener configuration.
type ServerConfig struct {
	Addr             string  `yaml:"addr"`
	ReadTimeoutSecs  int     `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int     `yaml:"write_timeout_secs"`
	MaxUploadMB      int     `yaml:"max_upload_mb"`
	RateLimit        float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst            int     `yaml:"burst"`
}

// ChunkingConfig selects the fragmenting strategy.
type ChunkingConfig struct {
	Strategy     string `yaml:"strategy"` // "semantic" or "window"
	MaxWords     int    `yaml:"max_words"`
	OverlapWords int    `yaml:"overlap_words"`
	Size         int    `yaml:"size"`
	Overlap      int    `yaml:"overlap"`
	Units        string `yaml:"units"` // "words" or "tokens"
}

// RetrieveConfig holds query-time configuration.
type RetrieveConfig struct {
	TopK         int     `yaml:"top_k"`
	MatchMode    string  `yaml:"match_mode"` // "strict" or "permissive"
	MinScore     float64 `yaml:"min_score"`  // 0 = disabled
	CacheSize    int     `yaml:"cache_size"` // 0 = no cache
	CacheTTLSecs int     `yaml:"cache_ttl_secs"`
}

// BackendConfig selects and configures the search backend.
type BackendConfig struct {
	Type          string              `yaml:"type"` // "elasticsearch", "sqlite", "bolt", "memory"
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	Bolt          BoltConfig          `yaml:"bolt"`
	K1            float64             `yaml:"k1"`
	B             float64             `yaml:"b"`
}

// ElasticsearchConfig contains connection details for an Elasticsearch cluster.
type ElasticsearchConfig struct {
	Addresses   []string `yaml:"addresses"`
	Index       string   `yaml:"index"`
	Username    string   `yaml:"username"`
	PasswordEnv string   `yaml:"password_env"`
	TimeoutSecs int      `yaml:"timeout_secs"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type BoltConfig struct {
	Path string `yaml:"path"`
}

// IngestConfig controls file and directory ingestion.
type IngestConfig struct {
	DataDir    string   `yaml:"data_dir"`
	Includes   []string `yaml:"includes"`
	Excludes   []string `yaml:"excludes"`
	Extensions []string `yaml:"extensions"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text", "json", "logfmt"
}

const (
	StrategySemantic = "semantic"
	StrategyWindow   = "window"

	UnitsWords  = "words"
	UnitsTokens = "tokens"

	BackendElasticsearch = "elasticsearch"
	BackendSQLite        = "sqlite"
	BackendBolt          = "bolt"
	BackendMemory        = "memory"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:             ":8081",
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 60,
			MaxUploadMB:      32,
		},
		Chunking: ChunkingConfig{
			Strategy:     StrategySemantic,
			MaxWords:     50,
			OverlapWords: 20,
			Size:         400,
			Overlap:      50,
			Units:        UnitsWords,
		},
		Retrieve: RetrieveConfig{
			TopK:         5,
			MatchMode:    "strict",
			CacheSize:    256,
			CacheTTLSecs: 300,
		},
		Backend: BackendConfig{
			Type: BackendElasticsearch,
			Elasticsearch: ElasticsearchConfig{
				Addresses:   []string{"http://localhost:9200"},
				Index:       "rag_docs",
				PasswordEnv: "ES_PASSWORD",
				TimeoutSecs: 10,
			},
			SQLite: SQLiteConfig{Path: filepath.Join(".docrag", "fragments.db")},
			Bolt:   BoltConfig{Path: filepath.Join(".docrag", "index.db")},
			K1:     1.2,
			B:      0.75,
		},
		Ingest: IngestConfig{
			DataDir:    "Data",
			Includes:   []string{"**/*"},
			Excludes:   []string{"**/.git/**", "**/.docrag/**", "**/node_modules/**", "**/__pycache__/**"},
			Extensions: []string{"pptx", "ppt", "docx", "doc", "pdf", "txt", "json", "py"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml).
// A .env file in the directory is read first so it can feed the overrides.
func LoadFromDir(dir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := DefaultConfig()
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ES_HOST"); v != "" {
		c.Backend.Elasticsearch.Addresses = strings.Split(v, ",")
	}
	if v := os.Getenv("DOCRAG_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("DOCRAG_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DOCRAG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Chunking.Strategy {
	case StrategySemantic:
		if c.Chunking.MaxWords <= 0 {
			errs = append(errs, errors.New("chunking.max_words must be positive"))
		}
		if c.Chunking.OverlapWords < 0 || c.Chunking.OverlapWords >= c.Chunking.MaxWords {
			errs = append(errs, errors.New("chunking.overlap_words must be in [0, max_words)"))
		}
	case StrategyWindow:
		if c.Chunking.Size <= 0 {
			errs = append(errs, errors.New("chunking.size must be positive"))
		}
		if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
			errs = append(errs, errors.New("chunking.overlap must be in [0, size)"))
		}
		if c.Chunking.Units != UnitsWords && c.Chunking.Units != UnitsTokens {
			errs = append(errs, fmt.Errorf("unknown chunking.units %q", c.Chunking.Units))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown chunking.strategy %q", c.Chunking.Strategy))
	}

	if c.Retrieve.TopK <= 0 {
		errs = append(errs, errors.New("retrieve.top_k must be positive"))
	}
	if c.Retrieve.MatchMode != "strict" && c.Retrieve.MatchMode != "permissive" {
		errs = append(errs, fmt.Errorf("unknown retrieve.match_mode %q", c.Retrieve.MatchMode))
	}

	switch c.Backend.Type {
	case BackendElasticsearch:
		if len(c.Backend.Elasticsearch.Addresses) == 0 {
			errs = append(errs, errors.New("backend.elasticsearch.addresses is empty"))
		}
		if c.Backend.Elasticsearch.Index == "" {
			errs = append(errs, errors.New("backend.elasticsearch.index is empty"))
		}
	case BackendSQLite:
		if c.Backend.SQLite.Path == "" {
			errs = append(errs, errors.New("backend.sqlite.path is empty"))
		}
	case BackendBolt:
		if c.Backend.Bolt.Path == "" {
			errs = append(errs, errors.New("backend.bolt.path is empty"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend.type %q", c.Backend.Type))
	}

	return errors.Join(errs...)
}

// Save saves configuration to a YAML file, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c ServerConfig) ReadTimeout() time.Duration  { return seconds(c.ReadTimeoutSecs) }
func (c ServerConfig) WriteTimeout() time.Duration { return seconds(c.WriteTimeoutSecs) }

// MaxUploadBytes returns the multipart body limit.
func (c ServerConfig) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) << 20 }

func (c RetrieveConfig) CacheTTL() time.Duration { return seconds(c.CacheTTLSecs) }

func (c ElasticsearchConfig) Timeout() time.Duration { return seconds(c.TimeoutSecs) }

// Password resolves the password from the configured environment variable.
func (c ElasticsearchConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ResolvePath anchors a relative store path at the project directory.
func ResolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
