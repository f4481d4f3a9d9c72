package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kevinmichaelchen/portfolio-projects/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(baseURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

const systemPrompt = `You write short blurbs for a developer's portfolio. Given a GitHub repository's name, language, topics, description, and README excerpt, produce a JSON object with:

1. "summary": A 1-2 sentence summary of what the project does and what it demonstrates.
2. "categories": An array of 1-3 tags from this list:
   Web App, UI Component, REST API, Database, Mobile App, CLI, Automation, Game, Library, Data Science, Machine Learning, DevOps, Learning Project, Other

Return ONLY valid JSON. No markdown, no code fences.`

// maxTags is how many tags a card shows next to its rule category.
const maxTags = 3

// Summarize asks the model for a portfolio blurb and up to maxTags tags.
func (c *Client) Summarize(ctx context.Context, repo models.Repo) (*models.SummaryResult, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage(repo)},
		},
		// No ResponseFormat: not all models support json_object mode.
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM call for %s: %w", repo.FullName, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned for %s", repo.FullName)
	}

	result, err := parseSummary(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("blurb for %s: %w", repo.FullName, err)
	}
	return result, nil
}

// userMessage lays out what the card already knows about a project.
func userMessage(repo models.Repo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s", repo.FullName)
	if lang := repo.LanguageName(); lang != "" {
		fmt.Fprintf(&b, "\nLanguage: %s", lang)
	}
	if len(repo.Topics) > 0 {
		fmt.Fprintf(&b, "\nTopics: %s", strings.Join(repo.Topics, ", "))
	}
	if desc := repo.DescriptionText(); desc != "" {
		fmt.Fprintf(&b, "\nDescription: %s", desc)
	}
	if repo.ReadmeExcerpt != nil && *repo.ReadmeExcerpt != "" {
		fmt.Fprintf(&b, "\n\nREADME excerpt:\n%s", *repo.ReadmeExcerpt)
	}
	return b.String()
}

// parseSummary decodes the model's reply. Tags are trimmed, deduplicated
// case-insensitively and capped at maxTags.
func parseSummary(content string) (*models.SummaryResult, error) {
	content = stripCodeFences(content)

	var result models.SummaryResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("parsing reply: %w\nraw: %s", err, content)
	}
	result.Summary = strings.TrimSpace(result.Summary)
	if result.Summary == "" {
		return nil, errors.New("reply has no summary")
	}

	seen := make(map[string]bool, len(result.Categories))
	tags := make([]string, 0, maxTags)
	for _, tag := range result.Categories {
		tag = strings.TrimSpace(tag)
		key := strings.ToLower(tag)
		if tag == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, tag)
		if len(tags) == maxTags {
			break
		}
	}
	result.Categories = tags
	return &result, nil
}

// stripCodeFences unwraps a reply the model put in a markdown fence anyway.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	body, fenced := strings.CutPrefix(s, "```")
	if !fenced {
		return s
	}
	// Drop the info string (```json) on the opening line.
	if _, rest, ok := strings.Cut(body, "\n"); ok {
		body = rest
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	return strings.TrimSpace(body)
}
