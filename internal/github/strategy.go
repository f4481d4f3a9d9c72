package github

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	"go.uber.org/zap"
)

// Strategy determines how repos are fetched: a user's own repositories or
// a GitHub star list.
//
// The UserList.items GraphQL connection is undocumented and its sort order
// is not guaranteed. Strategies encapsulate the pagination approach so we
// can swap implementations if GitHub changes behavior.
type Strategy interface {
	// Fetch returns repos for source (a login or a star list ID). cached
	// contains previously fetched repos (may be nil on first run). The
	// returned slice should be the complete set of repos to cache.
	Fetch(ctx context.Context, c *Client, source string, cached []models.Repo) ([]models.Repo, error)
}

// UserStrategy lists a user's own public repositories through the REST
// API. The cache is ignored because the listing is a single small page.
type UserStrategy struct {
	Options ListOptions
}

func (s UserStrategy) Fetch(ctx context.Context, c *Client, user string, _ []models.Repo) ([]models.Repo, error) {
	return c.ListUserRepos(ctx, user, s.Options)
}

// ForwardStrategy walks a star list from the first item to the last. A repo
// that moves across a page boundary while the walk is running shows up only
// once in the result.
type ForwardStrategy struct{}

func (ForwardStrategy) Fetch(ctx context.Context, c *Client, listID string, _ []models.Repo) ([]models.Repo, error) {
	seen := make(map[string]bool)
	var repos []models.Repo

	for after := (*string)(nil); ; {
		page, err := c.FetchPageForward(ctx, listID, after)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Repos {
			if k := repoKey(r); !seen[k] {
				seen[k] = true
				repos = append(repos, r)
			}
		}
		c.log.Debug("Star list page", zap.Int("have", len(repos)), zap.Int("total", page.TotalCount))

		if !page.PageInfo.HasNextPage {
			return repos, nil
		}
		next := page.PageInfo.EndCursor
		after = &next
	}
}

// IncrementalStrategy reads a star list from its tail and stops at the first
// page holding a project that is already cached. Stars are listed oldest
// first, so everything it picks up is appended after the cached projects in
// list order. With nothing cached it is a ForwardStrategy.
type IncrementalStrategy struct{}

func (IncrementalStrategy) Fetch(ctx context.Context, c *Client, listID string, cached []models.Repo) ([]models.Repo, error) {
	if len(cached) == 0 {
		return ForwardStrategy{}.Fetch(ctx, c, listID, nil)
	}

	known := make(map[string]bool, len(cached))
	for _, r := range cached {
		known[repoKey(r)] = true
	}

	var fresh []models.Repo
	for before := (*string)(nil); ; {
		page, err := c.FetchPageBackward(ctx, listID, before)
		if err != nil {
			return nil, err
		}

		overlap := false
		var unseen []models.Repo
		for _, r := range page.Repos {
			k := repoKey(r)
			if known[k] {
				overlap = true
				continue
			}
			known[k] = true
			unseen = append(unseen, r)
		}
		// Earlier pages go in front of later ones.
		fresh = append(unseen, fresh...)

		if overlap || !page.PageInfo.HasPreviousPage {
			break
		}
		prev := page.PageInfo.StartCursor
		before = &prev
	}

	if len(fresh) == 0 {
		return cached, nil
	}
	c.log.Info("New projects on star list", zap.Int("count", len(fresh)))
	return slices.Concat(cached, fresh), nil
}

// repoKey identifies a repo across fetches. Renames keep the GitHub ID, so it
// wins over the name when both sides carry one.
func repoKey(r models.Repo) string {
	if r.ID != 0 {
		return "id:" + strconv.FormatInt(r.ID, 10)
	}
	return "name:" + strings.ToLower(r.FullName)
}
