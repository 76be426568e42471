package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Qdrant     QdrantConfig     `mapstructure:"qdrant"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	YouTube    YouTubeConfig    `mapstructure:"youtube"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Workers    WorkersConfig    `mapstructure:"workers"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Matching   MatchingConfig   `mapstructure:"matching"`
}

type ServerConfig struct {
	Port  int        `mapstructure:"port"`
	Mode  string     `mapstructure:"mode"`
	OrgID string     `mapstructure:"org_id"`
	CORS  CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects sqlite (Path) or postgres (DSN parts).
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	JobTTL   time.Duration `mapstructure:"job_ttl"`
}

type QdrantConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// SourcesConfig overrides adapter endpoints.
type SourcesConfig struct {
	ESPNBaseURL       string `mapstructure:"espn_base_url"`
	DraftKingsBaseURL string `mapstructure:"draftkings_base_url"`
	SportsGridBaseURL string `mapstructure:"sportsgrid_base_url"`
	RenderURL         string `mapstructure:"render_url"`
	RenderToken       string `mapstructure:"render_token"`
}

type YouTubeConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type TranscriptConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type EmbeddingConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Provider   string `mapstructure:"provider"`
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// AnalysisConfig selects the generative analysis provider (openai or anthropic).
type AnalysisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type SchedulerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	StaleRunTimeout time.Duration `mapstructure:"stale_run_timeout"`
	ManualCooldown  time.Duration `mapstructure:"manual_cooldown"`
}

type WorkersConfig struct {
	QueryConcurrency int `mapstructure:"query_concurrency"`
	FetchConcurrency int `mapstructure:"fetch_concurrency"`
}

type PipelineConfig struct {
	TopN            int     `mapstructure:"top_n"`
	MaxMoments      int     `mapstructure:"max_moments"`
	GapSeconds      float64 `mapstructure:"gap_seconds"`
	MaxMomentSecs   float64 `mapstructure:"max_moment_seconds"`
	RecencyMaxDays  int     `mapstructure:"recency_max_days"`
	ChunkSeconds    float64 `mapstructure:"chunk_seconds"`
	OverlapSeconds  float64 `mapstructure:"overlap_seconds"`
	ChunkMaxChars   int     `mapstructure:"chunk_max_chars"`
	IndexCandidates bool    `mapstructure:"index_candidates"`
}

type MatchingConfig struct {
	MinImportance float64 `mapstructure:"min_importance"`
	Threshold     float64 `mapstructure:"threshold"`
	MaxMatches    int     `mapstructure:"max_matches"`
	PoolSize      int     `mapstructure:"pool_size"`
	Strategy      string  `mapstructure:"strategy"`
	PendingLimit  int     `mapstructure:"pending_limit"`
}

// Load reads .env, then the YAML config file, applying defaults and environment overrides.
// Parameters:
//   - configPath: explicit config file path, or empty to search ./configs and the working dir.
// Returns:
//   - *Config: merged configuration.
//   - error: non-nil if the file exists but cannot be parsed.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and common deployment knobs
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("qdrant.host", "QDRANT_HOST")
	_ = v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	_ = v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	_ = v.BindEnv("youtube.api_key", "YOUTUBE_API_KEY")
	_ = v.BindEnv("transcript.api_key", "TRANSCRIPT_API_KEY")
	_ = v.BindEnv("embedding.api_key", "JINA_API_KEY")
	_ = v.BindEnv("analysis.api_key", "ANALYSIS_API_KEY")
	_ = v.BindEnv("sources.render_token", "RENDER_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.org_id", "default")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/sportsclips.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.job_ttl", 24*time.Hour)

	v.SetDefault("qdrant.enabled", false)
	v.SetDefault("qdrant.host", "localhost")
	v.SetDefault("qdrant.port", 6334)
	v.SetDefault("qdrant.collection", "candidates")

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket", "transcripts")

	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")

	v.SetDefault("embedding.enabled", false)
	v.SetDefault("embedding.provider", "jina")
	v.SetDefault("embedding.model", "jina-embeddings-v3")
	v.SetDefault("embedding.base_url", "https://api.jina.ai/v1")
	v.SetDefault("embedding.dimensions", 1024)

	v.SetDefault("analysis.enabled", false)
	v.SetDefault("analysis.provider", "openai")
	v.SetDefault("analysis.model", "gpt-4o-mini")
	v.SetDefault("analysis.base_url", "https://api.openai.com/v1")
	v.SetDefault("analysis.max_tokens", 1024)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.tick_interval", 60*time.Second)
	v.SetDefault("scheduler.stale_run_timeout", 30*time.Minute)
	v.SetDefault("scheduler.manual_cooldown", 5*time.Minute)

	v.SetDefault("workers.query_concurrency", 2)
	v.SetDefault("workers.fetch_concurrency", 3)

	v.SetDefault("pipeline.top_n", 100)
	v.SetDefault("pipeline.max_moments", 5)
	v.SetDefault("pipeline.gap_seconds", 10)
	v.SetDefault("pipeline.max_moment_seconds", 90)
	v.SetDefault("pipeline.recency_max_days", 30)
	v.SetDefault("pipeline.chunk_seconds", 30)
	v.SetDefault("pipeline.overlap_seconds", 5)
	v.SetDefault("pipeline.chunk_max_chars", 1000)
	v.SetDefault("pipeline.index_candidates", false)

	v.SetDefault("matching.min_importance", 0.6)
	v.SetDefault("matching.threshold", 0.3)
	v.SetDefault("matching.max_matches", 5)
	v.SetDefault("matching.pool_size", 100)
	v.SetDefault("matching.strategy", "substring")
	v.SetDefault("matching.pending_limit", 50)
}
