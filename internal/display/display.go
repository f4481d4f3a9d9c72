// Package display turns classified repos into the project cards rendered
// by the HTTP API and the CLI.
package display

import (
	"strings"
	"time"

	"github.com/kevinmichaelchen/portfolio-projects/internal/category"
	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
)

// DefaultTopicPreview is how many topic chips a card shows before "+N".
const DefaultTopicPreview = 3

const fallbackColor = "gray-500"

var languageColors = map[string]string{
	"javascript": "yellow-500",
	"typescript": "blue-600",
	"python":     "green-600",
	"html":       "orange-500",
	"css":        "blue-500",
	"java":       "red-600",
	"go":         "cyan-500",
	"rust":       "orange-600",
	"php":        "purple-600",
	"ruby":       "red-500",
}

type Card struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Language     string    `json:"language,omitempty"`
	Color        string    `json:"color"`
	Category     string    `json:"category"`
	Topics       []string  `json:"topics"`
	HiddenTopics int       `json:"hidden_topics"`
	Stars        int       `json:"stars"`
	Forks        int       `json:"forks"`
	UpdatedAt    time.Time `json:"updated_at"`
	URL          string    `json:"url"`
	DemoURL      string    `json:"demo_url,omitempty"`
}

// Badge is a category filter button with the number of projects behind it.
type Badge struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Badges lists every category in display order. All carries the total of
// the assignable counts.
func Badges(counts map[category.Category]int) []Badge {
	total := 0
	for _, c := range category.Assignable() {
		total += counts[c]
	}

	badges := make([]Badge, 0, len(category.Categories()))
	for _, c := range category.Categories() {
		n := counts[c]
		if c == category.All {
			n = total
		}
		badges = append(badges, Badge{Category: c.String(), Count: n})
	}
	return badges
}

// Listing is one view of the project section: the badge row and the cards
// under the selected category.
type Listing struct {
	Category string  `json:"category"`
	Badges   []Badge `json:"badges"`
	Cards    []Card  `json:"projects"`
}

// NewListing classifies repos once and builds both the badges and the
// selected cards from the same grouping.
func NewListing(repos []models.Repo, selected category.Category) Listing {
	groups := category.Group(repos)
	counts := make(map[category.Category]int, len(groups))
	for c, g := range groups {
		counts[c] = len(g)
	}

	shown := repos
	if selected != category.All {
		shown = groups[selected]
	}
	return Listing{
		Category: selected.String(),
		Badges:   Badges(counts),
		Cards:    NewCards(shown),
	}
}

func NewCard(r models.Repo) Card {
	topics, hidden := TopicPreview(r.Topics, DefaultTopicPreview)
	return Card{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.DescriptionText(),
		Language:     r.LanguageName(),
		Color:        LanguageColor(r.LanguageName()),
		Category:     category.Classify(r).String(),
		Topics:       topics,
		HiddenTopics: hidden,
		Stars:        r.Stars,
		Forks:        r.Forks,
		UpdatedAt:    r.UpdatedAt,
		URL:          r.URL,
		DemoURL:      DemoURL(r.URL),
	}
}

func NewCards(repos []models.Repo) []Card {
	cards := make([]Card, 0, len(repos))
	for _, r := range repos {
		cards = append(cards, NewCard(r))
	}
	return cards
}

func LanguageColor(lang string) string {
	if c, ok := languageColors[strings.ToLower(lang)]; ok {
		return c
	}
	return fallbackColor
}

// TopicPreview returns at most n topics and how many were left out.
func TopicPreview(topics []string, n int) ([]string, int) {
	if n < 0 {
		n = 0
	}
	if len(topics) <= n {
		return append([]string{}, topics...), 0
	}
	return append([]string{}, topics[:n]...), len(topics) - n
}

// DemoURL derives a GitHub Pages link for repos hosted under github.io.
// Other repos have no demo and get "".
func DemoURL(repoURL string) string {
	if !strings.Contains(repoURL, "github.io") {
		return ""
	}
	u := strings.Replace(repoURL, "github.com", "github.io", 1)
	return strings.TrimSuffix(u, ".git")
}
