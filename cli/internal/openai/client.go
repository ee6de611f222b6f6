// Package openai provides an HTTP client for OpenAI-compatible endpoints
// (model listing and non-streaming chat completions).
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"convcommit/cli/internal/version"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// maxErrorBody caps how much of a failed response body is read into an error.
const maxErrorBody = 64 * 1024

var (
	// ErrUnreachable indicates the endpoint could not be reached (DNS, connection refused, TLS, timeout).
	ErrUnreachable = errors.New("completion endpoint unreachable")
	// ErrNoModels indicates the model listing was empty.
	ErrNoModels = errors.New("endpoint listed no models")
	// ErrNoChoices indicates a completion response without choices.
	ErrNoChoices = errors.New("completion returned no choices")
)

// APIError is a non-2xx response from the endpoint.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP %d", e.StatusCode)
	if e.Type != "" {
		b.WriteString(" " + e.Type)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	return b.String()
}

// Client calls an OpenAI-compatible API. Zero value is not valid; use NewClient.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client. baseURL is the API root including the version
// segment (e.g. https://api.openai.com/v1). If httpClient is nil, a client
// without a timeout is used.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// BaseURL returns the normalized API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Model is one entry of GET /models.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

type modelsResponse struct {
	Data []Model `json:"data"`
}

// ListModels returns the models advertised by GET /models, in endpoint order.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var body modelsResponse
	if err := c.do(ctx, http.MethodGet, "/models", nil, &body); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return body.Data, nil
}

// FirstModel returns the ID of the first listed model.
func (c *Client) FirstModel(ctx context.Context) (string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return "", err
	}
	if len(models) == 0 || models[0].ID == "" {
		return "", fmt.Errorf("list models: %w", ErrNoModels)
	}
	return models[0].ID, nil
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat/completions. Temperature is always
// sent, including 0.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token counts when the endpoint provides them.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the body returned by POST /chat/completions.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Content returns the first choice's message content unmodified.
func (r *ChatResponse) Content() (string, error) {
	if r == nil || len(r.Choices) == 0 {
		return "", ErrNoChoices
	}
	return r.Choices[0].Message.Content, nil
}

// CreateChatCompletion sends one non-streaming chat completion request.
// Stream is forced to false.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: encode request: %w", err)
	}
	var resp ChatResponse
	if err := c.do(ctx, http.MethodPost, "/chat/completions", payload, &resp); err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if resp.Usage != nil {
		log.Debug().Str("model", resp.Model).Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).Msg("chat completion usage")
	}
	return &resp, nil
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// do performs one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("X-Client-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	log.Debug().Str("method", method).Str("url", req.URL.String()).Str("request_id", requestID).Msg("openai request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Join(ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil && env.Error != nil {
			apiErr.Type = env.Error.Type
			apiErr.Message = env.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
