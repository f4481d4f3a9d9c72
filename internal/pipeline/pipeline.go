package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/kevinmichaelchen/portfolio-projects/internal/category"
	"github.com/kevinmichaelchen/portfolio-projects/internal/config"
	"github.com/kevinmichaelchen/portfolio-projects/internal/embedding"
	"github.com/kevinmichaelchen/portfolio-projects/internal/github"
	"github.com/kevinmichaelchen/portfolio-projects/internal/llm"
	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	"github.com/kevinmichaelchen/portfolio-projects/internal/surrealdb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	SkipEnrich bool
	Force      bool
	Refresh    bool
}

func Run(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) error {
	log.Info("Connecting to SurrealDB", zap.String("url", cfg.SurrealURL))
	db, err := surrealdb.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(ctx) }()

	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	// Step 1: Load repos (from cache or GitHub) and classify them
	repos, err := LoadRepos(ctx, cfg, log, opts.Refresh)
	if err != nil {
		return err
	}
	repos = Classify(repos)
	for c, n := range category.Counts(repos) {
		log.Debug("Classified", zap.String("category", c.String()), zap.Int("count", n))
	}

	// Step 2: Upsert repos into SurrealDB
	log.Info("Upserting repos into SurrealDB", zap.Int("count", len(repos)))
	for i, repo := range repos {
		if err := db.UpsertRepo(ctx, repo); err != nil {
			return err
		}
		if (i+1)%50 == 0 || i+1 == len(repos) {
			log.Info("Upserted", zap.Int("done", i+1), zap.Int("total", len(repos)))
		}
	}

	if opts.SkipEnrich {
		log.Info("Skipping enrichment (--skip-enrich)")
		return nil
	}

	// Step 3: Find repos needing enrichment
	var toEnrich []models.Repo
	if opts.Force {
		toEnrich, err = db.GetAllRepos(ctx)
	} else {
		toEnrich, err = db.GetUnenrichedRepos(ctx)
	}
	if err != nil {
		return err
	}

	if len(toEnrich) == 0 {
		log.Info("All repos already enriched")
	} else {
		// Step 4: Generate AI summaries
		log.Info("Enriching repos with AI summaries", zap.Int("count", len(toEnrich)))
		llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

		var done atomic.Int64
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(5)

		for _, repo := range toEnrich {
			g.Go(func() error {
				result, err := llmClient.Summarize(gCtx, repo)
				if err != nil {
					log.Warn("Summarize failed", zap.String("repo", repo.FullName), zap.Error(err))
					return nil // continue with other repos
				}

				if err := db.UpdateEnrichment(gCtx, repo.FullName, result.Summary, result.Categories); err != nil {
					log.Warn("Storing enrichment failed", zap.String("repo", repo.FullName), zap.Error(err))
					return nil
				}

				n := done.Add(1)
				if n%10 == 0 || int(n) == len(toEnrich) {
					log.Info("Enriched", zap.Int64("done", n), zap.Int("total", len(toEnrich)))
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
		log.Info("Enrichment complete", zap.Int64("count", done.Load()))
	}

	// Step 5: Generate embeddings
	var toEmbed []models.Repo
	if opts.Force {
		toEmbed, err = db.GetAllRepos(ctx)
	} else {
		toEmbed, err = db.GetReposNeedingEmbedding(ctx)
	}
	if err != nil {
		return err
	}

	if len(toEmbed) == 0 {
		log.Info("All repos already have embeddings")
	} else {
		log.Info("Generating embeddings", zap.Int("count", len(toEmbed)))
		embClient := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)

		vectors, err := embClient.EmbedRepos(ctx, toEmbed)
		if err != nil {
			return fmt.Errorf("generating embeddings: %w", err)
		}

		for i, repo := range toEmbed {
			if err := db.UpdateEmbedding(ctx, repo.FullName, vectors[i]); err != nil {
				log.Warn("Storing embedding failed", zap.String("repo", repo.FullName), zap.Error(err))
				continue
			}
		}
		log.Info("Stored embeddings", zap.Int("count", len(vectors)))
	}

	log.Info("Sync complete")
	return nil
}

// Classify stamps every repo with its rule category, keeping order.
func Classify(repos []models.Repo) []models.Repo {
	out := make([]models.Repo, len(repos))
	for i, r := range repos {
		r.Category = category.Classify(r).String()
		out[i] = r
	}
	return out
}

// LoadRepos returns the configured source's repos, reading the cache file
// when possible and refreshing it after a GitHub fetch.
func LoadRepos(ctx context.Context, cfg *config.Config, log *zap.Logger, refresh bool) ([]models.Repo, error) {
	gh := github.NewClient(cfg.GitHubToken, github.WithAPIURL(cfg.GitHubAPIURL), github.WithLogger(log))
	return loadRepos(ctx, gh, cfg, log, refresh)
}

func loadRepos(ctx context.Context, gh *github.Client, cfg *config.Config, log *zap.Logger, refresh bool) ([]models.Repo, error) {
	path := cfg.CachePath()

	if cfg.RepoSource != config.SourceStarList {
		if !refresh {
			if cached, err := readCache(path); err == nil && len(cached) > 0 {
				log.Info("Using cached repos", zap.String("file", path), zap.Int("count", len(cached)))
				return cached, nil
			}
		}
		log.Info("Fetching repos from GitHub", zap.String("user", cfg.GitHubUser))
		strategy := github.UserStrategy{Options: github.ListOptions{Sort: "updated", PerPage: cfg.GitHubPerPage}}
		return fetchAndCache(ctx, gh, cfg.GitHubUser, strategy, nil, path, log)
	}

	cached, cacheErr := readCache(path)

	// --refresh: discard cache and do a full forward fetch
	if refresh {
		log.Info("Fetching star list from GitHub (full refresh)")
		return fetchAndCache(ctx, gh, cfg.StarListID, github.ForwardStrategy{}, nil, path, log)
	}

	// Cache exists: try incremental fetch for new repos
	if cacheErr == nil && len(cached) > 0 {
		log.Info("Checking star list for new repos", zap.Int("cached", len(cached)))
		repos, err := github.IncrementalStrategy{}.Fetch(ctx, gh, cfg.StarListID, cached)
		if err != nil {
			log.Warn("Incremental fetch failed, using cache as-is", zap.Error(err))
			return cached, nil
		}
		if len(repos) > len(cached) {
			log.Info("Found new repos", zap.Int("new", len(repos)-len(cached)), zap.Int("total", len(repos)))
			if err := writeCache(path, repos); err != nil {
				log.Warn("Could not update cache", zap.String("file", path), zap.Error(err))
			}
		} else {
			log.Info("Cache is up to date", zap.Int("count", len(cached)))
		}
		return repos, nil
	}

	// No cache: full forward fetch
	log.Info("Fetching star list from GitHub")
	return fetchAndCache(ctx, gh, cfg.StarListID, github.ForwardStrategy{}, nil, path, log)
}

func fetchAndCache(ctx context.Context, gh *github.Client, source string, strategy github.Strategy, cached []models.Repo, path string, log *zap.Logger) ([]models.Repo, error) {
	repos, err := strategy.Fetch(ctx, gh, source, cached)
	if err != nil {
		return nil, fmt.Errorf("fetching repos for %s: %w", source, err)
	}
	log.Info("Fetched repos", zap.Int("count", len(repos)))

	if err := writeCache(path, repos); err != nil {
		log.Warn("Could not write cache", zap.String("file", path), zap.Error(err))
	} else {
		log.Info("Cached repos", zap.String("file", path))
	}
	return repos, nil
}

func readCache(path string) ([]models.Repo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var repos []models.Repo
	if err := json.Unmarshal(data, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

func writeCache(path string, repos []models.Repo) error {
	data, err := json.MarshalIndent(repos, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
