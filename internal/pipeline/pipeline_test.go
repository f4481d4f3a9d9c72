package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/kevinmichaelchen/portfolio-projects/internal/config"
	"github.com/kevinmichaelchen/portfolio-projects/internal/github"
	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const reposBody = `[
  {"id": 1, "name": "landing", "full_name": "octocat/landing", "language": "HTML", "html_url": "https://github.com/octocat/landing", "owner": {"login": "octocat"}},
  {"id": 2, "name": "queue", "full_name": "octocat/queue", "language": "Go", "html_url": "https://github.com/octocat/queue", "owner": {"login": "octocat"}}
]`

func newGitHub(t *testing.T, hits *atomic.Int64) *github.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/users/octocat/repos", r.URL.Path)
		_, _ = io.WriteString(w, reposBody)
	}))
	t.Cleanup(srv.Close)
	return github.NewClient("", github.WithAPIURL(srv.URL))
}

func TestLoadReposUsesCache(t *testing.T) {
	var hits atomic.Int64
	gh := newGitHub(t, &hits)
	cfg := &config.Config{
		GitHubUser:    "octocat",
		GitHubPerPage: 12,
		RepoSource:    config.SourceUser,
		CacheFile:     filepath.Join(t.TempDir(), "projects.json"),
	}
	ctx := context.Background()
	log := zap.NewNop()

	repos, err := loadRepos(ctx, gh, cfg, log, false)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, int64(1), hits.Load())

	cached, err := loadRepos(ctx, gh, cfg, log, false)
	require.NoError(t, err)
	assert.Equal(t, repos, cached)
	assert.Equal(t, int64(1), hits.Load())

	_, err = loadRepos(ctx, gh, cfg, log, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestLoadReposFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := &config.Config{
		GitHubUser: "ghost",
		RepoSource: config.SourceUser,
		CacheFile:  filepath.Join(t.TempDir(), "projects.json"),
	}
	gh := github.NewClient("", github.WithAPIURL(srv.URL))
	_, err := loadRepos(context.Background(), gh, cfg, zap.NewNop(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadReposCacheIsPerUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := filepath.Base(filepath.Dir(r.URL.Path))
		body, err := json.Marshal([]map[string]any{{
			"id": 1, "name": "site", "full_name": user + "/site", "owner": map[string]string{"login": user},
		}})
		require.NoError(t, err)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	gh := github.NewClient("", github.WithAPIURL(srv.URL))
	cfg := &config.Config{
		GitHubUser: "alice",
		RepoSource: config.SourceUser,
		CacheFile:  filepath.Join(t.TempDir(), "projects.json"),
	}
	ctx := context.Background()

	repos, err := loadRepos(ctx, gh, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "alice", repos[0].Owner)

	cfg.GitHubUser = "bob"
	repos, err = loadRepos(ctx, gh, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "bob", repos[0].Owner)

	assert.FileExists(t, filepath.Join(filepath.Dir(cfg.CacheFile), "projects-user-alice.json"))
	assert.FileExists(t, filepath.Join(filepath.Dir(cfg.CacheFile), "projects-user-bob.json"))
	assert.NoFileExists(t, cfg.CacheFile)
}

func TestLoadReposUserCacheNotReadAsStarList(t *testing.T) {
	var hits atomic.Int64
	gh := newGitHub(t, &hits)
	cfg := &config.Config{
		GitHubUser:    "octocat",
		GitHubPerPage: 12,
		RepoSource:    config.SourceUser,
		CacheFile:     filepath.Join(t.TempDir(), "projects.json"),
	}
	_, err := loadRepos(context.Background(), gh, cfg, zap.NewNop(), false)
	require.NoError(t, err)

	list := newStarList(t, []string{"dotfiles"})
	cfg.RepoSource = config.SourceStarList
	cfg.StarListID = "UL_1"
	repos, err := loadRepos(context.Background(), list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "octocat/dotfiles", repos[0].FullName)
	assert.Equal(t, int64(1), list.forward.Load())
}

// starList serves a star list over GraphQL. Forward and backward requests
// both see the whole list on one page.
type starList struct {
	client   *github.Client
	names    atomic.Pointer[[]string]
	forward  atomic.Int64
	backward atomic.Int64
	fail     atomic.Bool
}

func newStarList(t *testing.T, names []string) *starList {
	t.Helper()
	s := &starList{}
	s.names.Store(&names)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/graphql", r.URL.Path)
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if _, ok := req.Variables["last"]; ok {
			s.backward.Add(1)
		} else {
			s.forward.Add(1)
		}
		if s.fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		var nodes []map[string]any
		for _, n := range *s.names.Load() {
			nodes = append(nodes, map[string]any{
				"owner":            map[string]string{"login": "octocat"},
				"name":             n,
				"url":              "https://github.com/octocat/" + n,
				"repositoryTopics": map[string]any{"nodes": []any{}},
			})
		}
		body, err := json.Marshal(map[string]any{"data": map[string]any{"node": map[string]any{
			"items": map[string]any{
				"totalCount": len(nodes),
				"pageInfo":   map[string]any{},
				"nodes":      nodes,
			},
		}}})
		require.NoError(t, err)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	s.client = github.NewClient("token", github.WithAPIURL(srv.URL))
	return s
}

func starListConfig(t *testing.T) *config.Config {
	return &config.Config{
		RepoSource: config.SourceStarList,
		StarListID: "UL_1",
		CacheFile:  filepath.Join(t.TempDir(), "projects.json"),
	}
}

func TestLoadReposStarListFirstRunFetchesForward(t *testing.T) {
	list := newStarList(t, []string{"a", "b"})
	cfg := starListConfig(t)

	repos, err := loadRepos(context.Background(), list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, int64(1), list.forward.Load())
	assert.Zero(t, list.backward.Load())

	cached, err := readCache(cfg.CachePath())
	require.NoError(t, err)
	assert.Equal(t, repos, cached)
}

func TestLoadReposStarListAppendsNewAndRewritesCache(t *testing.T) {
	list := newStarList(t, []string{"a", "b"})
	cfg := starListConfig(t)
	ctx := context.Background()

	_, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)

	list.names.Store(&[]string{"a", "b", "c"})
	repos, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, "octocat/c", repos[2].FullName)
	assert.Equal(t, int64(1), list.backward.Load())
	assert.Equal(t, int64(1), list.forward.Load())

	cached, err := readCache(cfg.CachePath())
	require.NoError(t, err)
	assert.Len(t, cached, 3)
}

func TestLoadReposStarListUpToDateLeavesCache(t *testing.T) {
	list := newStarList(t, []string{"a"})
	cfg := starListConfig(t)
	ctx := context.Background()

	_, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	before, err := os.Stat(cfg.CachePath())
	require.NoError(t, err)

	repos, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	assert.Len(t, repos, 1)
	assert.Equal(t, int64(1), list.backward.Load())

	after, err := os.Stat(cfg.CachePath())
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
}

func TestLoadReposStarListFallsBackToCache(t *testing.T) {
	list := newStarList(t, []string{"a", "b"})
	cfg := starListConfig(t)
	ctx := context.Background()

	first, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)

	list.fail.Store(true)
	repos, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)
	assert.Equal(t, first, repos)
	assert.Equal(t, int64(1), list.backward.Load())
}

func TestLoadReposStarListRefreshRefetches(t *testing.T) {
	list := newStarList(t, []string{"a", "b"})
	cfg := starListConfig(t)
	ctx := context.Background()

	_, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), false)
	require.NoError(t, err)

	list.names.Store(&[]string{"b"})
	repos, err := loadRepos(ctx, list.client, cfg, zap.NewNop(), true)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, int64(2), list.forward.Load())
	assert.Zero(t, list.backward.Load())

	list.fail.Store(true)
	_, err = loadRepos(ctx, list.client, cfg, zap.NewNop(), true)
	assert.ErrorContains(t, err, "UL_1")
}

func TestClassifyStampsCategory(t *testing.T) {
	goLang := "Go"
	in := []models.Repo{{Name: "landing", Language: ptr("HTML")}, {Name: "queue", Language: &goLang}}

	out := Classify(in)
	require.Len(t, out, 2)
	assert.Equal(t, "Frontend", out[0].Category)
	assert.Equal(t, "Backend", out[1].Category)
	assert.Empty(t, in[0].Category)
}

func ptr(s string) *string { return &s }
