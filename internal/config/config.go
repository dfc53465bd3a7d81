package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Key     string `yaml:"key"`
	Model   string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize        int `yaml:"chunk_size"`
	ChunkOverlap     int `yaml:"chunk_overlap"`
	TopK             int `yaml:"top_k"`
	MaxContextTokens int `yaml:"max_context_tokens"`
	// MaxAttempts bounds the rate-limit retry loop per question.
	MaxAttempts    int `yaml:"max_attempts"`
	RequestDelayMS int `yaml:"request_delay_ms"`
}

type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	InferLLM LLMConfig      `yaml:"inference_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Cache    CacheConfig    `yaml:"vector_cache"`
}

const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultTopK           = 5
	DefaultMaxAttempts    = 6
	DefaultRequestDelayMS = 1500
)

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = DefaultChunkSize
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = DefaultChunkOverlap
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = DefaultTopK
	}
	if cfg.RAG.MaxAttempts == 0 {
		cfg.RAG.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RAG.RequestDelayMS == 0 {
		cfg.RAG.RequestDelayMS = DefaultRequestDelayMS
	}
	if cfg.Cache.Enabled && cfg.Cache.Path == "" {
		cfg.Cache.Path = "./chromemdb"
	}
}

// API keys are picked up from the environment when the config file leaves them
// blank, so they can stay out of checked-in YAML.
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("GROQ_API_KEY"); key != "" && cfg.InferLLM.Key == "" {
		cfg.InferLLM.Key = key
	}
	if key := os.Getenv("EMBED_API_KEY"); key != "" && cfg.EmbedLLM.Key == "" {
		cfg.EmbedLLM.Key = key
	}
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" && cfg.Database.DSN == "" {
		cfg.Database.DSN = dsn
	}
}
