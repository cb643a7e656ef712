package synthesis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrCredentialMissing is returned before any request is made when no API
// key is configured.
var ErrCredentialMissing = errors.New("credential not configured")

// Client sends one prompt to a hosted chat model and returns its text.
type Client interface {
	CompleteChat(ctx context.Context, prompt string) (string, error)
}

type OpenAIConfig struct {
	APIKey string
	// URL is an OpenAI-compatible base URL. A trailing /chat/completions
	// is accepted and stripped.
	URL     string
	Model   string
	Timeout time.Duration

	// Optional OpenRouter attribution headers.
	SiteURL  string
	SiteName string
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint,
// OpenRouter by default.
type OpenAIClient struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.URL != "" {
		oc.BaseURL = strings.TrimSuffix(strings.TrimSuffix(cfg.URL, "/"), "/chat/completions")
	}
	oc.HTTPClient = &attributionDoer{
		client:   &http.Client{Timeout: cfg.Timeout},
		siteURL:  cfg.SiteURL,
		siteName: cfg.SiteName,
	}

	return &OpenAIClient{cfg: cfg, client: openai.NewClientWithConfig(oc)}
}

func (c *OpenAIClient) CompleteChat(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrCredentialMissing
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	if msg.Content != "" {
		return msg.Content, nil
	}
	parts := make([]string, 0, len(msg.MultiContent))
	for _, p := range msg.MultiContent {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

type attributionDoer struct {
	client   *http.Client
	siteURL  string
	siteName string
}

func (d *attributionDoer) Do(req *http.Request) (*http.Response, error) {
	if d.siteURL != "" {
		req.Header.Set("HTTP-Referer", d.siteURL)
	}
	if d.siteName != "" {
		req.Header.Set("X-Title", d.siteName)
	}
	return d.client.Do(req)
}
