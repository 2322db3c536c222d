// Package scoring asks a structured-output language model to rate text.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/apperr"
	"github.com/japaniel/bsdetect/pkg/lexicon"
)

// Providers understood by Client.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 60 * time.Second

// Result is the model's verdict. Score is passed through unclamped.
type Result struct {
	Score       int      `json:"score"`
	Buzzwords   []string `json:"buzzwords"`
	Suggestions []string `json:"suggestions"`
	Explanation string   `json:"explanation"`
}

// Client calls either an OpenAI-compatible chat completion endpoint or an
// Ollama chat endpoint. It never retries.
type Client struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format"`
}

type ollamaResponse struct {
	Message *struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// Score rates text in lang.
func (c *Client) Score(ctx context.Context, text string, lang lexicon.Language) (Result, error) {
	if c.BaseURL == "" || c.Model == "" {
		return Result{}, apperr.Upstreamf(apperr.CodeModelFailed, apperr.StageModel, "base URL and model required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	messages := []chatMessage{
		{Role: "system", Content: SystemPrompt(lang)},
		{Role: "user", Content: UserPrompt(text, lang)},
	}

	start := time.Now()
	var (
		content json.RawMessage
		err     error
	)
	switch c.provider() {
	case ProviderOpenAI:
		content, err = c.sendOpenAI(ctx, messages)
	case ProviderOllama:
		content, err = c.sendOllama(ctx, messages)
	default:
		err = apperr.Upstreamf(apperr.CodeModelFailed, apperr.StageModel, "unknown provider %q", c.Provider)
	}
	if err != nil {
		c.logger().Warn("model call failed",
			zap.String("provider", c.provider()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Result{}, err
	}

	res, err := parseContent(content)
	if err != nil {
		return Result{}, apperr.Upstreamf(apperr.CodeInvalidModelResponse, apperr.StageModel, "%w", err)
	}
	c.logger().Debug("model call done",
		zap.String("provider", c.provider()),
		zap.Int("score", res.Score),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

func (c *Client) sendOpenAI(ctx context.Context, messages []chatMessage) (json.RawMessage, error) {
	body := openAIRequest{
		Model:    c.Model,
		Messages: messages,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   SchemaName,
				Strict: true,
				Schema: responseSchema,
			},
		},
	}
	var payload openAIResponse
	if err := c.post(ctx, c.BaseURL, body, &payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, apperr.Upstreamf(apperr.CodeModelFailed, apperr.StageModel, "llm error: %s", payload.Error.Message)
	}
	if len(payload.Choices) == 0 {
		return nil, apperr.Upstreamf(apperr.CodeInvalidModelResponse, apperr.StageModel, "no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) sendOllama(ctx context.Context, messages []chatMessage) (json.RawMessage, error) {
	endpoint := strings.TrimRight(c.BaseURL, "/")
	if !strings.HasSuffix(endpoint, "/api/chat") {
		endpoint += "/api/chat"
	}
	body := ollamaRequest{
		Model:    c.Model,
		Messages: messages,
		Stream:   false,
		Format:   responseSchema,
	}
	var payload ollamaResponse
	if err := c.post(ctx, endpoint, body, &payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, apperr.Upstreamf(apperr.CodeModelFailed, apperr.StageModel, "ollama error: %s", payload.Error)
	}
	if payload.Message == nil {
		return nil, apperr.Upstreamf(apperr.CodeInvalidModelResponse, apperr.StageModel, "no message in response")
	}
	return payload.Message.Content, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return apperr.Upstreamf(apperr.CodeModelFailed, apperr.StageModel, "encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return apperr.Upstreamf(apperr.CodeModelFailed, apperr.StageModel, "create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return apperr.Upstream(apperr.CodeModelFailed, apperr.StageModel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Upstreamf(apperr.CodeModelFailed, apperr.StageModel, "%s: %s",
			resp.Status, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Upstreamf(apperr.CodeInvalidModelResponse, apperr.StageModel, "decode response: %w", err)
	}
	return nil
}

// strictResult mirrors Result with pointers so missing fields are detectable.
type strictResult struct {
	Score       *int      `json:"score"`
	Buzzwords   *[]string `json:"buzzwords"`
	Suggestions *[]string `json:"suggestions"`
	Explanation *string   `json:"explanation"`
}

// parseContent decodes the message content, which must be a JSON string
// holding exactly one object that matches the response schema.
func parseContent(content json.RawMessage) (Result, error) {
	if len(bytes.TrimSpace(content)) == 0 || bytes.Equal(bytes.TrimSpace(content), []byte("null")) {
		return Result{}, errors.New("empty content")
	}
	var raw string
	if err := json.Unmarshal(content, &raw); err != nil {
		return Result{}, errors.New("content is not a string")
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	var s strictResult
	if err := dec.Decode(&s); err != nil {
		return Result{}, fmt.Errorf("parse content: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Result{}, errors.New("parse content: trailing data after object")
	}

	var missing []string
	if s.Score == nil {
		missing = append(missing, "score")
	}
	if s.Buzzwords == nil {
		missing = append(missing, "buzzwords")
	}
	if s.Suggestions == nil {
		missing = append(missing, "suggestions")
	}
	if s.Explanation == nil {
		missing = append(missing, "explanation")
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}

	return Result{
		Score:       *s.Score,
		Buzzwords:   *s.Buzzwords,
		Suggestions: *s.Suggestions,
		Explanation: *s.Explanation,
	}, nil
}

func (c *Client) provider() string {
	if c.Provider == "" {
		return ProviderOpenAI
	}
	return c.Provider
}

func (c *Client) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
