package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kevinmichaelchen/portfolio-projects/internal/category"
	"github.com/kevinmichaelchen/portfolio-projects/internal/config"
	"github.com/kevinmichaelchen/portfolio-projects/internal/display"
	"github.com/kevinmichaelchen/portfolio-projects/internal/embedding"
	"github.com/kevinmichaelchen/portfolio-projects/internal/github"
	"github.com/kevinmichaelchen/portfolio-projects/internal/logging"
	"github.com/kevinmichaelchen/portfolio-projects/internal/pipeline"
	"github.com/kevinmichaelchen/portfolio-projects/internal/server"
	"github.com/kevinmichaelchen/portfolio-projects/internal/surrealdb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	logger  *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:   "portfolio",
		Short: "GitHub projects → categorized portfolio listing",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(schemaCmd(), syncCmd(), searchCmd(), statsCmd(), projectsCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Initialize/update SurrealDB schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg := config.Load()

			db, err := surrealdb.NewClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			if err := db.InitSchema(ctx); err != nil {
				return err
			}
			logger.Info("Schema initialized")
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	var skipEnrich, force, refresh bool
	var source string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch repos, classify, enrich with AI, store in SurrealDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if source != "" {
				cfg.RepoSource = source
			}
			return pipeline.Run(cmd.Context(), cfg, logger, pipeline.Options{
				SkipEnrich: skipEnrich,
				Force:      force,
				Refresh:    refresh,
			})
		},
	}
	cmd.Flags().BoolVar(&skipEnrich, "skip-enrich", false, "Fetch and store only (no AI calls)")
	cmd.Flags().BoolVar(&force, "force", false, "Re-enrich all repos")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-fetch from GitHub (ignores cache)")
	cmd.Flags().StringVar(&source, "source", "", "Repo source: user or starlist (default from REPO_SOURCE)")
	return cmd
}

func searchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Semantic similarity search across repos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			query := args[0]

			embClient := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModel)
			vec, err := embClient.EmbedSingle(ctx, query)
			if err != nil {
				return fmt.Errorf("embedding query: %w", err)
			}

			db, err := surrealdb.NewClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			results, err := db.VectorSearch(ctx, vec, k)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Println("No results found")
				return nil
			}

			fmt.Printf("Top %d results for %q:\n\n", len(results), query)
			for i, r := range results {
				fmt.Printf("%d. %s  [%s]  (%.3f)  ★ %d\n", i+1, r.FullName, r.Category, r.Score, r.Stars)
				fmt.Printf("   %s\n", r.URL)
				if r.AISummary != nil {
					fmt.Printf("   %s\n", *r.AISummary)
				}
				if len(r.AICategories) > 0 {
					fmt.Printf("   Tags: %s\n", strings.Join(r.AICategories, ", "))
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 10, "Number of results")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show repo counts and category breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := config.Load()

			db, err := surrealdb.NewClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(ctx) }()

			stats, err := db.GetStats(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Repos:    %d\n", stats.Total)
			fmt.Printf("Enriched: %d\n", stats.Enriched)
			fmt.Printf("Embedded: %d\n", stats.Embedded)

			cats, err := db.GetCategoryBreakdown(ctx)
			if err != nil {
				return err
			}
			printBreakdown("Category breakdown", cats)

			tags, err := db.GetTagBreakdown(ctx)
			if err != nil {
				return err
			}
			printBreakdown("AI tag breakdown", tags)

			return nil
		},
	}
}

func printBreakdown(title string, rows []surrealdb.CategoryCount) {
	if len(rows) == 0 {
		return
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Count > rows[j].Count
	})
	fmt.Printf("\n%s:\n", title)
	for _, c := range rows {
		fmt.Printf("  %-20s %d\n", c.Category, c.Count)
	}
}

func projectsCmd() *cobra.Command {
	var selected, user string
	var refresh, stored bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List repos in a category with per-category counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := category.Parse(selected)
			if err != nil {
				return err
			}

			cfg := config.Load()
			if stored {
				listing, err := storedListing(ctx, cfg, cat)
				if err != nil {
					return err
				}
				printListing(listing)
				return nil
			}

			if user != "" {
				cfg.GitHubUser = user
				cfg.RepoSource = config.SourceUser
			}
			repos, err := pipeline.LoadRepos(ctx, cfg, logger, refresh)
			if err != nil {
				return err
			}
			printListing(display.NewListing(repos, cat))
			return nil
		},
	}
	cmd.Flags().StringVarP(&selected, "category", "c", "All", "Category to show")
	cmd.Flags().StringVarP(&user, "user", "u", "", "GitHub user (default from GITHUB_USER)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Re-fetch from GitHub (ignores cache)")
	cmd.Flags().BoolVar(&stored, "stored", false, "List what the last sync stored in SurrealDB")
	cmd.MarkFlagsMutuallyExclusive("stored", "user")
	cmd.MarkFlagsMutuallyExclusive("stored", "refresh")
	return cmd
}

// storedListing reads the section from SurrealDB instead of GitHub.
func storedListing(ctx context.Context, cfg *config.Config, cat category.Category) (display.Listing, error) {
	db, err := surrealdb.NewClient(ctx, cfg)
	if err != nil {
		return display.Listing{}, err
	}
	defer func() { _ = db.Close(ctx) }()

	rows, err := db.GetCategoryBreakdown(ctx)
	if err != nil {
		return display.Listing{}, err
	}

	filter := ""
	if cat != category.All {
		filter = cat.String()
	}
	repos, err := db.ListByCategory(ctx, filter)
	if err != nil {
		return display.Listing{}, err
	}

	return display.Listing{
		Category: cat.String(),
		Badges:   display.Badges(surrealdb.RuleCounts(rows)),
		Cards:    display.NewCards(repos),
	}, nil
}

func printListing(l display.Listing) {
	badges := make([]string, 0, len(l.Badges))
	for _, b := range l.Badges {
		if b.Category == category.All.String() {
			badges = append(badges, b.Category)
			continue
		}
		badges = append(badges, fmt.Sprintf("%s (%d)", b.Category, b.Count))
	}
	fmt.Println(strings.Join(badges, " | "))
	fmt.Println()

	if len(l.Cards) == 0 {
		fmt.Println("No projects found in this category")
		return
	}
	for _, card := range l.Cards {
		printCard(card)
	}
}

func printCard(c display.Card) {
	fmt.Printf("%s  [%s]  ★ %d  ⑂ %d\n", c.Name, c.Category, c.Stars, c.Forks)
	if c.Description != "" {
		fmt.Printf("   %s\n", c.Description)
	}
	if c.Language != "" {
		fmt.Printf("   %s (%s)\n", c.Language, c.Color)
	}
	if len(c.Topics) > 0 {
		topics := strings.Join(c.Topics, ", ")
		if c.HiddenTopics > 0 {
			topics += fmt.Sprintf(" +%d", c.HiddenTopics)
		}
		fmt.Printf("   Topics: %s\n", topics)
	}
	if !c.UpdatedAt.IsZero() {
		fmt.Printf("   Updated %s\n", c.UpdatedAt.Format("2006-01-02"))
	}
	fmt.Printf("   %s\n", c.URL)
	if c.DemoURL != "" {
		fmt.Printf("   Demo: %s\n", c.DemoURL)
	}
	fmt.Println()
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the categorized project list over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if addr == "" {
				addr = cfg.ListenAddr
			}

			if os.Getenv("GIN_MODE") == "" {
				gin.SetMode(gin.ReleaseMode)
			}

			gh := github.NewClient(cfg.GitHubToken, github.WithAPIURL(cfg.GitHubAPIURL), github.WithLogger(logger))
			srv := server.New(gh, server.Config{
				User:     cfg.GitHubUser,
				PerPage:  cfg.GitHubPerPage,
				CacheTTL: cfg.CacheTTL,
			}, logger)

			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Listening", zap.String("addr", addr), zap.String("user", cfg.GitHubUser))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from LISTEN_ADDR)")
	return cmd
}
