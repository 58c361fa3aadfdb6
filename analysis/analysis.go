// Package analysis produces document analyses with a chat model.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const systemPrompt = `You review documents submitted by users. Summarize the document in a few sentences, then list any factual, grammatical or structural problems you find. Answer in plain text.`

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("analysis: empty model response")

// Config tunes the model call.
type Config struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

func DefaultConfig() Config {
	return Config{MaxTokens: 800, Temperature: 0.2, Timeout: 30 * time.Second}
}

// LangChain implements docgate.Analyzer over any langchaingo model.
type LangChain struct {
	model llms.Model
	cfg   Config
}

func New(model llms.Model, cfg Config) *LangChain {
	return &LangChain{model: model, cfg: cfg}
}

// NewOpenAI builds an analyzer backed by an OpenAI compatible endpoint.
// baseURL may be empty.
func NewOpenAI(apiKey, model, baseURL string, cfg Config) (*LangChain, error) {
	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("analysis: openai client: %w", err)
	}
	return New(llm, cfg), nil
}

func (a *LangChain) Analyze(ctx context.Context, text string) (string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}
	resp, err := a.model.GenerateContent(ctx, msgs,
		llms.WithMaxTokens(a.cfg.MaxTokens),
		llms.WithTemperature(a.cfg.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("analysis: generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	out := strings.TrimSpace(resp.Choices[0].Content)
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
