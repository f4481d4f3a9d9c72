// Package server exposes the classified project list over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kevinmichaelchen/portfolio-projects/internal/category"
	"github.com/kevinmichaelchen/portfolio-projects/internal/display"
	"github.com/kevinmichaelchen/portfolio-projects/internal/github"
	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	"go.uber.org/zap"
)

const cacheSize = 64

// Lister fetches a user's repositories from the code host.
type Lister interface {
	ListUserRepos(ctx context.Context, user string, opts github.ListOptions) ([]models.Repo, error)
}

type Config struct {
	User     string
	PerPage  int
	CacheTTL time.Duration
}

type Server struct {
	lister Lister
	cfg    Config
	cache  *expirable.LRU[string, []models.Repo]
	log    *zap.Logger
}

func New(lister Lister, cfg Config, log *zap.Logger) *Server {
	return &Server{
		lister: lister,
		cfg:    cfg,
		cache:  expirable.NewLRU[string, []models.Repo](cacheSize, nil, cfg.CacheTTL),
		log:    log,
	}
}

// Router builds the gin engine with logging, recovery and CORS.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(s.log))
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.GET("/health", s.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/projects", s.Projects)
		v1.GET("/categories", s.Categories)
	}
	return router
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ProjectsResponse struct {
	Category string         `json:"category"`
	Projects []display.Card `json:"projects"`
}

// Health handles GET /health
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// Projects handles GET /api/v1/projects?category=...
func (s *Server) Projects(c *gin.Context) {
	selected, err := category.Parse(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	repos, ok := s.repos(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, ProjectsResponse{
		Category: selected.String(),
		Projects: display.NewCards(category.Filter(repos, selected)),
	})
}

// Categories handles GET /api/v1/categories
func (s *Server) Categories(c *gin.Context) {
	repos, ok := s.repos(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, display.Badges(category.Counts(repos)))
}

// repos returns the configured user's repositories. Clients cannot pick
// another user, so every upstream call is for the portfolio owner.
func (s *Server) repos(c *gin.Context) ([]models.Repo, bool) {
	user := s.cfg.User
	if user == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no GitHub user configured"})
		return nil, false
	}

	if repos, ok := s.cache.Get(user); ok {
		return repos, true
	}

	repos, err := s.lister.ListUserRepos(c.Request.Context(), user, github.ListOptions{
		Sort:    "updated",
		PerPage: s.cfg.PerPage,
	})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		s.log.Error("Fetching repositories failed", zap.String("user", user), zap.Error(err))
		c.JSON(status, ErrorResponse{Error: "could not fetch repositories"})
		return nil, false
	}

	s.cache.Add(user, repos)
	return repos, true
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
