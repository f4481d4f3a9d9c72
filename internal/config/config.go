package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceUser     = "user"
	SourceStarList = "starlist"
)

type Config struct {
	SurrealURL  string
	SurrealNS   string
	SurrealDB   string
	SurrealUser string
	SurrealPass string

	GitHubToken   string
	GitHubAPIURL  string
	GitHubUser    string
	GitHubPerPage int
	StarListID    string
	RepoSource    string

	CacheFile  string
	ListenAddr string
	CacheTTL   time.Duration

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	EmbeddingBaseURL string
	EmbeddingAPIKey  string
	EmbeddingModel   string
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		SurrealURL:  os.Getenv("SURREAL_URL"),
		SurrealNS:   os.Getenv("SURREAL_NS"),
		SurrealDB:   os.Getenv("SURREAL_DB"),
		SurrealUser: os.Getenv("SURREAL_USER"),
		SurrealPass: os.Getenv("SURREAL_PASS"),

		GitHubToken:   os.Getenv("GITHUB_TOKEN"),
		GitHubAPIURL:  os.Getenv("GITHUB_API_URL"),
		GitHubUser:    os.Getenv("GITHUB_USER"),
		GitHubPerPage: intEnv("GITHUB_PER_PAGE", 12),
		StarListID:    os.Getenv("STAR_LIST_ID"),
		RepoSource:    strings.ToLower(os.Getenv("REPO_SOURCE")),

		CacheFile:  os.Getenv("CACHE_FILE"),
		ListenAddr: os.Getenv("LISTEN_ADDR"),
		CacheTTL:   durationEnv("CACHE_TTL", 10*time.Minute),

		LLMBaseURL: os.Getenv("LLM_BASE_URL"),
		LLMAPIKey:  os.Getenv("LLM_API_KEY"),
		LLMModel:   os.Getenv("LLM_MODEL"),

		EmbeddingBaseURL: os.Getenv("EMBEDDING_BASE_URL"),
		EmbeddingAPIKey:  os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:   os.Getenv("EMBEDDING_MODEL"),
	}

	// The SDK appends /rpc automatically
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/rpc")
	cfg.SurrealURL = strings.TrimSuffix(cfg.SurrealURL, "/")

	if cfg.GitHubAPIURL == "" {
		cfg.GitHubAPIURL = "https://api.github.com"
	}
	cfg.GitHubAPIURL = strings.TrimSuffix(cfg.GitHubAPIURL, "/")
	if cfg.GitHubUser == "" {
		cfg.GitHubUser = "manlikeinder"
	}
	if cfg.RepoSource == "" {
		cfg.RepoSource = SourceUser
	}
	if cfg.CacheFile == "" {
		cfg.CacheFile = "projects.json"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = "gpt-4o-mini"
	}
	if cfg.EmbeddingBaseURL == "" {
		cfg.EmbeddingBaseURL = cfg.LLMBaseURL
	}
	if cfg.EmbeddingAPIKey == "" {
		cfg.EmbeddingAPIKey = cfg.LLMAPIKey
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}

	return cfg
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// CachePath is the cache file for the active source. CacheFile is the base
// name; the source and the login or star list ID are folded into it so two
// sources never share one file.
func (c *Config) CachePath() string {
	key := c.GitHubUser
	if c.RepoSource == SourceStarList {
		key = c.StarListID
	}
	key = unsafeName.ReplaceAllString(key, "_")
	if key == "" {
		key = "_"
	}

	base := c.CacheFile
	if base == "" {
		base = "projects.json"
	}
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	if ext == "" {
		ext = ".json"
	}
	return stem + "-" + c.RepoSource + "-" + key + ext
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
