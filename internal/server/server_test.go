package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kevinmichaelchen/portfolio-projects/internal/github"
	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLister struct {
	repos []models.Repo
	err   error
	calls int
	users []string
}

func (f *fakeLister) ListUserRepos(_ context.Context, user string, opts github.ListOptions) ([]models.Repo, error) {
	f.calls++
	f.users = append(f.users, user)
	return f.repos, f.err
}

func lang(s string) *string { return &s }

func fixtures() []models.Repo {
	return []models.Repo{
		{ID: 1, Name: "landing", Language: lang("HTML")},
		{ID: 2, Name: "queue", Language: lang("Go")},
		{ID: 3, Name: "habit", Description: lang("flutter habit tracker"), Language: lang("Dart")},
		{ID: 4, Name: "payments", Description: lang("rest api"), Language: lang("Elixir")},
	}
}

func newTestServer(l Lister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(l, Config{User: "octocat", PerPage: 12, CacheTTL: time.Minute}, zap.NewNop()).Router()
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := get(t, newTestServer(&fakeLister{}), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestProjectsAll(t *testing.T) {
	w := get(t, newTestServer(&fakeLister{repos: fixtures()}), "/api/v1/projects")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProjectsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "All", resp.Category)
	require.Len(t, resp.Projects, 4)
	assert.Equal(t, "landing", resp.Projects[0].Name)
	assert.Equal(t, "payments", resp.Projects[3].Name)
}

func TestProjectsFiltered(t *testing.T) {
	w := get(t, newTestServer(&fakeLister{repos: fixtures()}), "/api/v1/projects?category=backend")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ProjectsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Backend", resp.Category)
	require.Len(t, resp.Projects, 2)
	assert.Equal(t, "queue", resp.Projects[0].Name)
	assert.Equal(t, "payments", resp.Projects[1].Name)
	for _, p := range resp.Projects {
		assert.Equal(t, "Backend", p.Category)
	}
}

func TestProjectsEmptyCategory(t *testing.T) {
	w := get(t, newTestServer(&fakeLister{repos: fixtures()}), "/api/v1/projects?category=full-stack")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"category":"Full Stack","projects":[]}`, w.Body.String())
}

func TestProjectsUnknownCategory(t *testing.T) {
	l := &fakeLister{repos: fixtures()}
	w := get(t, newTestServer(l), "/api/v1/projects?category=desktop")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown category")
	assert.Zero(t, l.calls)
}

func TestCategories(t *testing.T) {
	w := get(t, newTestServer(&fakeLister{repos: fixtures()}), "/api/v1/categories")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[
		{"category":"All","count":4},
		{"category":"Frontend","count":1},
		{"category":"Backend","count":2},
		{"category":"Full Stack","count":0},
		{"category":"Mobile","count":1},
		{"category":"Tools","count":0}
	]`, w.Body.String())
}

func TestReposAreCached(t *testing.T) {
	l := &fakeLister{repos: fixtures()}
	r := newTestServer(l)

	get(t, r, "/api/v1/projects")
	get(t, r, "/api/v1/categories")
	assert.Equal(t, 1, l.calls)
}

func TestUserQueryIsIgnored(t *testing.T) {
	l := &fakeLister{repos: fixtures()}
	r := newTestServer(l)

	w := get(t, r, "/api/v1/projects?user=hubot")
	assert.Equal(t, http.StatusOK, w.Code)
	get(t, r, "/api/v1/categories?user=../../orgs/github")
	assert.Equal(t, 1, l.calls)
	assert.Equal(t, []string{"octocat"}, l.users)
}

func TestNoUserConfigured(t *testing.T) {
	l := &fakeLister{repos: fixtures()}
	gin.SetMode(gin.TestMode)
	r := New(l, Config{PerPage: 12, CacheTTL: time.Minute}, zap.NewNop()).Router()

	w := get(t, r, "/api/v1/projects?user=hubot")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, l.calls)
}

func TestUpstreamFailure(t *testing.T) {
	l := &fakeLister{err: errors.New("GitHub API returned 500")}
	r := newTestServer(l)

	w := get(t, r, "/api/v1/projects")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"could not fetch repositories"}`, w.Body.String())

	// failures are not cached
	get(t, r, "/api/v1/projects")
	assert.Equal(t, 2, l.calls)
}

func TestCORSPreflight(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil)
	newTestServer(&fakeLister{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
