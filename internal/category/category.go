// Package category sorts repositories into the fixed set of display
// buckets shown on the projects page and filters lists by bucket.
//
// Classification is a pure function of a repo's name, description,
// topics and primary language. The rules are ordered and the first match
// wins, so the order below is the tie-break policy.
package category

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
)

type Category string

const (
	All       Category = "All"
	Frontend  Category = "Frontend"
	Backend   Category = "Backend"
	FullStack Category = "Full Stack"
	Mobile    Category = "Mobile"
	Tools     Category = "Tools"
)

var ErrUnknownCategory = errors.New("unknown category")

var assignable = []Category{Frontend, Backend, FullStack, Mobile, Tools}

// Categories returns every category in display order, All first.
func Categories() []Category {
	return append([]Category{All}, assignable...)
}

// Assignable returns the categories a repo can actually be assigned to.
func Assignable() []Category {
	return append([]Category(nil), assignable...)
}

func (c Category) String() string { return string(c) }

// Parse resolves a category label case-insensitively. The empty string
// means All.
func Parse(s string) (Category, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "", "all":
		return All, nil
	case "full stack", "fullstack", "full-stack", "full_stack":
		return FullStack, nil
	}
	for _, c := range assignable {
		if strings.ToLower(string(c)) == key {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

var (
	markupKeywords      = []string{"html", "css", "sass", "scss"}
	jsFrameworkKeywords = []string{"react", "vue", "angular", "frontend"}
	tsFrameworkKeywords = []string{"react", "next", "vue", "angular"}
	mobileKeywords      = []string{"react native", "flutter", "mobile", "android", "ios"}
	backendKeywords     = []string{"api", "server", "backend"}
	toolKeywords        = []string{"tool", "cli", "script", "automation"}

	backendLanguages  = []string{"python", "java", "go", "rust"}
	frontendFallbacks = []string{"javascript", "typescript"}
	backendFallbacks  = []string{"python", "java", "go", "rust", "php", "ruby"}
)

// Classify assigns a repo to exactly one category. It never returns All.
func Classify(r models.Repo) Category {
	lang := strings.ToLower(r.LanguageName())
	text := haystack(r)

	switch {
	case lang == "html" || containsAny(text, markupKeywords):
		return Frontend
	case lang == "javascript" && containsAny(text, jsFrameworkKeywords):
		return Frontend
	case lang == "typescript" && containsAny(text, tsFrameworkKeywords):
		return Frontend
	case containsAny(text, mobileKeywords):
		return Mobile
	case slices.Contains(backendLanguages, lang) || containsAny(text, backendKeywords):
		return Backend
	case strings.Contains(text, "fullstack") || strings.Contains(text, "full-stack"),
		strings.Contains(text, "frontend") && strings.Contains(text, "backend"):
		return FullStack
	case containsAny(text, toolKeywords):
		return Tools
	case slices.Contains(frontendFallbacks, lang):
		return Frontend
	case slices.Contains(backendFallbacks, lang):
		return Backend
	}
	return Tools
}

// Filter returns the repos in c, keeping the input order. All returns the
// input unchanged.
func Filter(repos []models.Repo, c Category) []models.Repo {
	if c == All {
		return repos
	}
	out := []models.Repo{}
	for _, r := range repos {
		if Classify(r) == c {
			out = append(out, r)
		}
	}
	return out
}

// Counts returns how many repos fall into each assignable category.
// Every assignable category has an entry, and the values sum to len(repos).
func Counts(repos []models.Repo) map[Category]int {
	counts := make(map[Category]int, len(assignable))
	for _, c := range assignable {
		counts[c] = 0
	}
	for _, r := range repos {
		counts[Classify(r)]++
	}
	return counts
}

// Group buckets repos by category in one pass, preserving input order
// inside each bucket.
func Group(repos []models.Repo) map[Category][]models.Repo {
	groups := make(map[Category][]models.Repo, len(assignable))
	for _, c := range assignable {
		groups[c] = []models.Repo{}
	}
	for _, r := range repos {
		c := Classify(r)
		groups[c] = append(groups[c], r)
	}
	return groups
}

func haystack(r models.Repo) string {
	return strings.ToLower(r.Name + " " + r.DescriptionText() + " " + strings.Join(r.Topics, " "))
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
