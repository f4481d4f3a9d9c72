package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kevinmichaelchen/portfolio-projects/internal/category"
	"github.com/kevinmichaelchen/portfolio-projects/internal/config"
	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	sdk "github.com/surrealdb/surrealdb.go"
)

type Client struct {
	db *sdk.DB
}

func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	db, err := sdk.FromEndpointURLString(ctx, cfg.SurrealURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to SurrealDB: %w", err)
	}

	if _, err := db.SignIn(ctx, sdk.Auth{
		Namespace: cfg.SurrealNS,
		Database:  cfg.SurrealDB,
		Username:  cfg.SurrealUser,
		Password:  cfg.SurrealPass,
	}); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if err := db.Use(ctx, cfg.SurrealNS, cfg.SurrealDB); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("selecting ns/db: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}

func (c *Client) InitSchema(ctx context.Context) error {
	schema := `
DEFINE TABLE IF NOT EXISTS repo SCHEMAFULL;

DEFINE FIELD IF NOT EXISTS github_id      ON TABLE repo TYPE option<int>;
DEFINE FIELD IF NOT EXISTS owner          ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS name           ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS full_name      ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS description    ON TABLE repo TYPE option<string>;
DEFINE FIELD IF NOT EXISTS url            ON TABLE repo TYPE string;
DEFINE FIELD IF NOT EXISTS homepage_url   ON TABLE repo TYPE option<string>;
DEFINE FIELD IF NOT EXISTS stars          ON TABLE repo TYPE int;
DEFINE FIELD IF NOT EXISTS forks          ON TABLE repo TYPE int DEFAULT 0;
DEFINE FIELD IF NOT EXISTS updated_at     ON TABLE repo TYPE option<datetime>;
DEFINE FIELD IF NOT EXISTS category       ON TABLE repo TYPE string DEFAULT "Tools";
DEFINE FIELD IF NOT EXISTS language       ON TABLE repo TYPE option<string>;
DEFINE FIELD IF NOT EXISTS topics         ON TABLE repo TYPE array<string>;
DEFINE FIELD IF NOT EXISTS readme_excerpt ON TABLE repo TYPE option<string>;
DEFINE FIELD IF NOT EXISTS ai_summary     ON TABLE repo TYPE option<string>;
DEFINE FIELD IF NOT EXISTS ai_categories  ON TABLE repo TYPE option<array<string>>;
DEFINE FIELD IF NOT EXISTS embedding      ON TABLE repo TYPE option<array<float>>;
DEFINE FIELD IF NOT EXISTS fetched_at     ON TABLE repo TYPE datetime;
DEFINE FIELD IF NOT EXISTS enriched_at    ON TABLE repo TYPE option<datetime>;

DEFINE INDEX IF NOT EXISTS idx_full_name ON TABLE repo FIELDS full_name UNIQUE;
DEFINE INDEX IF NOT EXISTS idx_category ON TABLE repo FIELDS category;
REMOVE INDEX IF EXISTS idx_hnsw_embedding ON TABLE repo;
DEFINE INDEX idx_hnsw_embedding ON TABLE repo FIELDS embedding HNSW DIMENSION 1536 DIST COSINE;
`
	_, err := sdk.Query[any](ctx, c.db, schema, nil)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *Client) UpsertRepo(ctx context.Context, r models.Repo) error {
	// Build data map with only non-nil optional fields to avoid
	// CBOR NULL vs SurrealDB NONE mismatch.
	id := strings.ReplaceAll(r.FullName, "/", "__")
	data := map[string]any{
		"owner":      r.Owner,
		"name":       r.Name,
		"full_name":  r.FullName,
		"url":        r.URL,
		"stars":      r.Stars,
		"forks":      r.Forks,
		"category":   categoryOf(r),
		"fetched_at": time.Now().UTC(),
	}
	if r.ID != 0 {
		data["github_id"] = r.ID
	}
	if !r.UpdatedAt.IsZero() {
		data["updated_at"] = r.UpdatedAt.UTC()
	}
	if r.Description != nil {
		data["description"] = *r.Description
	}
	if r.HomepageURL != nil {
		data["homepage_url"] = *r.HomepageURL
	}
	if r.Language != nil {
		data["language"] = *r.Language
	}
	topics := r.Topics
	if topics == nil {
		topics = []string{}
	}
	data["topics"] = topics
	if r.ReadmeExcerpt != nil {
		data["readme_excerpt"] = *r.ReadmeExcerpt
	}

	_, err := sdk.Query[any](ctx, c.db,
		`UPSERT type::thing("repo", $id) MERGE $data`,
		map[string]any{
			"id":   id,
			"data": data,
		})
	if err != nil {
		return fmt.Errorf("upserting %s: %w", r.FullName, err)
	}
	return nil
}

func (c *Client) GetUnenrichedRepos(ctx context.Context) ([]models.Repo, error) {
	results, err := sdk.Query[[]models.Repo](ctx, c.db,
		`SELECT * FROM repo WHERE ai_summary IS NONE`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying unenriched repos: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

func (c *Client) GetAllRepos(ctx context.Context) ([]models.Repo, error) {
	results, err := sdk.Query[[]models.Repo](ctx, c.db,
		`SELECT * FROM repo`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying all repos: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

// ListByCategory returns stored repos in one rule category, most recently
// updated first. An empty category returns every repo.
func (c *Client) ListByCategory(ctx context.Context, category string) ([]models.Repo, error) {
	query, vars := listQuery(category)
	results, err := sdk.Query[[]models.Repo](ctx, c.db, query, vars)
	if err != nil {
		return nil, fmt.Errorf("listing repos in %q: %w", category, err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

func listQuery(category string) (string, map[string]any) {
	if category == "" {
		return `SELECT * FROM repo ORDER BY updated_at DESC`, map[string]any{}
	}
	return `SELECT * FROM repo WHERE category = $category ORDER BY updated_at DESC`,
		map[string]any{"category": category}
}

func (c *Client) GetReposNeedingEmbedding(ctx context.Context) ([]models.Repo, error) {
	results, err := sdk.Query[[]models.Repo](ctx, c.db,
		`SELECT * FROM repo WHERE ai_summary IS NOT NONE AND embedding IS NONE`, nil)
	if err != nil {
		return nil, fmt.Errorf("querying repos needing embedding: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

func (c *Client) UpdateEnrichment(ctx context.Context, fullName string, summary string, categories []string) error {
	if categories == nil {
		categories = []string{}
	}
	_, err := sdk.Query[any](ctx, c.db,
		`UPDATE repo SET
			ai_summary = $ai_summary,
			ai_categories = $ai_categories,
			enriched_at = time::now()
		WHERE full_name = $full_name`,
		map[string]any{
			"full_name":     fullName,
			"ai_summary":    summary,
			"ai_categories": categories,
		})
	if err != nil {
		return fmt.Errorf("updating enrichment for %s: %w", fullName, err)
	}
	return nil
}

func (c *Client) UpdateEmbedding(ctx context.Context, fullName string, embedding []float32) error {
	_, err := sdk.Query[any](ctx, c.db,
		`UPDATE repo SET embedding = $embedding WHERE full_name = $full_name`,
		map[string]any{
			"full_name": fullName,
			"embedding": embedding,
		})
	if err != nil {
		return fmt.Errorf("updating embedding for %s: %w", fullName, err)
	}
	return nil
}

func (c *Client) VectorSearch(ctx context.Context, queryVec []float32, k int) ([]models.SearchResult, error) {
	// The HNSW KNN operator (<|K|>) returns nothing after the index is
	// redefined, so score every embedded repo with brute-force cosine
	// similarity. A portfolio holds a few dozen repos at most.
	query := fmt.Sprintf(`
		SELECT full_name, description, ai_summary, ai_categories, category, stars, url,
			vector::similarity::cosine(embedding, $query_vec) AS score
		FROM repo
		WHERE embedding IS NOT NONE
		ORDER BY score DESC
		LIMIT %d
	`, k)

	results, err := sdk.Query[[]models.SearchResult](ctx, c.db, query,
		map[string]any{"query_vec": queryVec})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	return (*results)[0].Result, nil
}

type Stats struct {
	Total    int
	Enriched int
	Embedded int
}

func (c *Client) GetStats(ctx context.Context) (*Stats, error) {
	results, err := sdk.Query[[]map[string]any](ctx, c.db,
		`SELECT
			count() AS total,
			math::sum(IF ai_summary IS NOT NONE THEN 1 ELSE 0 END) AS enriched,
			math::sum(IF embedding IS NOT NONE THEN 1 ELSE 0 END) AS embedded
		FROM repo GROUP ALL`,
		nil)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}
	if len(*results) == 0 || len((*results)[0].Result) == 0 {
		return &Stats{}, nil
	}
	row := (*results)[0].Result[0]
	return &Stats{
		Total:    toInt(row["total"]),
		Enriched: toInt(row["enriched"]),
		Embedded: toInt(row["embedded"]),
	}, nil
}

type CategoryCount struct {
	Category string
	Count    int
}

// RuleCounts folds a category breakdown into per-category counts. Every
// assignable category is present; rows that are not rule categories are
// dropped.
func RuleCounts(rows []CategoryCount) map[category.Category]int {
	counts := make(map[category.Category]int, len(category.Assignable()))
	for _, c := range category.Assignable() {
		counts[c] = 0
	}
	for _, row := range rows {
		c, err := category.Parse(row.Category)
		if err != nil || c == category.All {
			continue
		}
		counts[c] += row.Count
	}
	return counts
}

// GetCategoryBreakdown counts stored repos per rule category.
func (c *Client) GetCategoryBreakdown(ctx context.Context) ([]CategoryCount, error) {
	results, err := sdk.Query[[]map[string]any](ctx, c.db,
		`SELECT category, count() AS count FROM repo GROUP BY category`, nil)
	if err != nil {
		return nil, fmt.Errorf("getting categories: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	var out []CategoryCount
	for _, row := range (*results)[0].Result {
		name, _ := row["category"].(string)
		out = append(out, CategoryCount{Category: name, Count: toInt(row["count"])})
	}
	return out, nil
}

// GetTagBreakdown counts the AI-assigned tags across enriched repos.
func (c *Client) GetTagBreakdown(ctx context.Context) ([]CategoryCount, error) {
	// Fetch all repos with tags and compute in Go
	results, err := sdk.Query[[]models.Repo](ctx, c.db,
		`SELECT ai_categories FROM repo WHERE ai_categories IS NOT NONE`, nil)
	if err != nil {
		return nil, fmt.Errorf("getting tags: %w", err)
	}
	if len(*results) == 0 {
		return nil, nil
	}
	counts := map[string]int{}
	for _, r := range (*results)[0].Result {
		for _, tag := range r.AICategories {
			counts[tag]++
		}
	}
	var out []CategoryCount
	for tag, cnt := range counts {
		out = append(out, CategoryCount{Category: tag, Count: cnt})
	}
	return out, nil
}

func categoryOf(r models.Repo) string {
	if r.Category != "" {
		return r.Category
	}
	return category.Classify(r).String()
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	default:
		return 0
	}
}
