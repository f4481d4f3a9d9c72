package models

import "time"

type Repo struct {
	ID            int64     `json:"github_id"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   *string   `json:"description"`
	URL           string    `json:"url"`
	HomepageURL   *string   `json:"homepage_url"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	Language      *string   `json:"language"`
	Topics        []string  `json:"topics"`
	UpdatedAt     time.Time `json:"updated_at"`
	Category      string    `json:"category,omitempty"`
	ReadmeExcerpt *string   `json:"readme_excerpt"`
	AISummary     *string   `json:"ai_summary"`
	AICategories  []string  `json:"ai_categories"`
	Embedding     []float32 `json:"embedding"`
}

// DescriptionText returns the description, or "" when GitHub sent none.
func (r Repo) DescriptionText() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// LanguageName returns the primary language, or "" when GitHub sent none.
func (r Repo) LanguageName() string {
	if r.Language == nil {
		return ""
	}
	return *r.Language
}

type SummaryResult struct {
	Summary    string   `json:"summary"`
	Categories []string `json:"categories"`
}

type SearchResult struct {
	FullName     string   `json:"full_name"`
	Description  *string  `json:"description"`
	AISummary    *string  `json:"ai_summary"`
	AICategories []string `json:"ai_categories"`
	Category     string   `json:"category"`
	Stars        int      `json:"stars"`
	URL          string   `json:"url"`
	Score        float64  `json:"score"`
}
