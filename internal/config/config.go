package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Graph database configuration
	Neo4j Neo4jConfig `yaml:"neo4j"`

	// GitHub configuration
	GitHub GitHubConfig `yaml:"github"`

	// Job tracker storage
	Storage StorageConfig `yaml:"storage"`

	// Task queue dispatch
	Tasks TasksConfig `yaml:"tasks"`

	// HTTP servers
	API    ServerConfig `yaml:"api"`
	Worker ServerConfig `yaml:"worker"`

	// Ingestion tuning
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // "json" or "text"
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type GitHubConfig struct {
	// Personal access token auth (CLI / local use)
	Token string `yaml:"token"`

	// GitHub App installation auth (server use)
	AppID          int64  `yaml:"app_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
	InstallationID int64  `yaml:"installation_id"`

	WebhookSecret string `yaml:"webhook_secret"`
	RateLimit     int    `yaml:"rate_limit"` // requests per second
}

type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

type TasksConfig struct {
	// WorkerBaseURL is where queued tasks are delivered via HTTP POST.
	WorkerBaseURL string `yaml:"worker_base_url"`
	// AuthToken is attached to deliveries so the worker can verify the caller.
	AuthToken string `yaml:"auth_token"`
	// DispatchDeadline bounds how long a single delivery may run.
	DispatchDeadline time.Duration `yaml:"dispatch_deadline"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type IngestionConfig struct {
	// ScratchDir is the base directory for per-job clones.
	ScratchDir string `yaml:"scratch_dir"`
	// ParseWorkers bounds the per-file parse pool. Zero means min(NumCPU, 8).
	ParseWorkers int `yaml:"parse_workers"`
	// IgnoreDirs is the fixed directory skip list applied during enumeration.
	IgnoreDirs []string `yaml:"ignore_dirs"`

	CloneTimeout time.Duration `yaml:"clone_timeout"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// Load reads configuration from the environment, an optional .env file and an
// optional YAML config file, in that order of precedence.
func Load() (*Config, error) {
	// .env is optional; missing file is not an error
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("BUGVIPER")
	v.AutomaticEnv()

	v.SetConfigName("bugviper")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".bugviper"))
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	setDefaults(v)

	cfg := &Config{
		Neo4j: Neo4jConfig{
			URI:      v.GetString("neo4j_uri"),
			Username: v.GetString("neo4j_username"),
			Password: v.GetString("neo4j_password"),
			Database: v.GetString("neo4j_database"),
		},
		GitHub: GitHubConfig{
			Token:          v.GetString("github_token"),
			AppID:          v.GetInt64("github_app_id"),
			PrivateKeyPath: v.GetString("github_private_key_path"),
			InstallationID: v.GetInt64("github_installation_id"),
			WebhookSecret:  v.GetString("github_webhook_secret"),
			RateLimit:      v.GetInt("github_rate_limit"),
		},
		Storage: StorageConfig{
			PostgresDSN: v.GetString("postgres_dsn"),
		},
		Tasks: TasksConfig{
			WorkerBaseURL:    v.GetString("worker_base_url"),
			AuthToken:        v.GetString("tasks_auth_token"),
			DispatchDeadline: v.GetDuration("tasks_dispatch_deadline"),
		},
		API:    ServerConfig{Addr: v.GetString("api_addr")},
		Worker: ServerConfig{Addr: v.GetString("worker_addr")},
		Ingestion: IngestionConfig{
			ScratchDir:   v.GetString("scratch_dir"),
			ParseWorkers: v.GetInt("parse_workers"),
			IgnoreDirs:   v.GetStringSlice("ignore_dirs"),
			CloneTimeout: v.GetDuration("clone_timeout"),
			FetchTimeout: v.GetDuration("fetch_timeout"),
			ResetTimeout: v.GetDuration("reset_timeout"),
		},
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("neo4j_uri", "bolt://localhost:7687")
	v.SetDefault("neo4j_username", "neo4j")
	v.SetDefault("neo4j_database", "neo4j")
	v.SetDefault("github_rate_limit", 10)
	v.SetDefault("worker_base_url", "http://localhost:8081")
	v.SetDefault("tasks_dispatch_deadline", 30*time.Minute)
	v.SetDefault("api_addr", ":8080")
	v.SetDefault("worker_addr", ":8081")
	v.SetDefault("scratch_dir", filepath.Join(os.TempDir(), "bugviper"))
	v.SetDefault("ignore_dirs", []string{
		"node_modules", "vendor", "dist", "build", "__pycache__",
		".git", ".venv", "venv", ".tox", ".mypy_cache", "target",
	})
	v.SetDefault("clone_timeout", 5*time.Minute)
	v.SetDefault("fetch_timeout", 2*time.Minute)
	v.SetDefault("reset_timeout", time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j URI is required")
	}
	if c.Neo4j.Password == "" {
		return fmt.Errorf("neo4j password is required (set BUGVIPER_NEO4J_PASSWORD)")
	}
	if c.GitHub.Token == "" && c.GitHub.AppID == 0 {
		return fmt.Errorf("github auth is required: set a token or app credentials")
	}
	if c.GitHub.AppID != 0 && c.GitHub.PrivateKeyPath == "" {
		return fmt.Errorf("github app auth requires a private key path")
	}
	if c.Ingestion.ParseWorkers < 0 {
		return fmt.Errorf("parse_workers must be >= 0")
	}
	return nil
}

// EffectiveParseWorkers resolves the parse pool size: min(NumCPU, 8) unless
// overridden.
func (c *Config) EffectiveParseWorkers() int {
	if c.Ingestion.ParseWorkers > 0 {
		return c.Ingestion.ParseWorkers
	}
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}
