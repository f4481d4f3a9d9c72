package embedding

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedEmpty(t *testing.T) {
	c := NewClient("http://unused.invalid", "key", "model")
	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"object": "list",
			"model": "model",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.5, -0.25]}]
		}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "model")
	vec, err := c.EmbedSingle(context.Background(), "weather dashboard")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25}, vec)
}

func TestText(t *testing.T) {
	desc := "rest api"
	summary := "A payments service."

	assert.Equal(t, "octocat/payments (Backend): rest api",
		Text(models.Repo{FullName: "octocat/payments", Category: "Backend", Description: &desc}))
	assert.Equal(t, "octocat/payments (Backend): A payments service.\ntopics: stripe, go",
		Text(models.Repo{
			FullName:    "octocat/payments",
			Category:    "Backend",
			Description: &desc,
			AISummary:   &summary,
			Topics:      []string{"stripe", "go"},
		}))
}
