// Package openai narrates invoice descriptions through the chat completions
// API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 10 * time.Second

	systemPrompt = "You write short, factual invoice descriptions for a consulting business."
)

var ErrNoChoices = errors.New("completion returned no choices")

// Config holds the connection settings for the API
type Config struct {
	APIKey       string
	Organization string
	Project      string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	MaxTokens    int
}

// Client wraps the SDK client. It satisfies billing.TextGenerator.
type Client struct {
	api  *goopenai.Client
	http *http.Client
	cfg  Config
}

// NewClient creates a client, filling in defaults for empty settings
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Project != "" {
		httpClient.Transport = projectTransport{project: cfg.Project, next: http.DefaultTransport}
	}

	sdkConfig := goopenai.DefaultConfig(cfg.APIKey)
	sdkConfig.BaseURL = cfg.BaseURL
	sdkConfig.OrgID = cfg.Organization
	sdkConfig.HTTPClient = httpClient

	return &Client{
		api:  goopenai.NewClientWithConfig(sdkConfig),
		http: httpClient,
		cfg:  cfg,
	}
}

// projectTransport adds the OpenAI-Project header, which the SDK config does
// not carry
type projectTransport struct {
	project string
	next    http.RoundTripper
}

func (t projectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("OpenAI-Project", t.project)
	return t.next.RoundTrip(req)
}

// GenerateText sends prompt as a single user message and returns the content
// of the first choice.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("completion failed with status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
