// Package llm adapts the text-generation providers behind one Generator
// interface used by the classifier and the responder.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"accidentbot/internal/config"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role Role
	Text string
}

type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Completion is a finished generation. Blocked is set when the provider
// refused the content; Text is then empty.
type Completion struct {
	Text        string
	Blocked     bool
	BlockReason string
	Usage       Usage
}

type Generator interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	Provider() string
	Model() string
}

func NewGenerator(cfg config.Config, httpClient *http.Client) (Generator, error) {
	switch cfg.LLMProvider {
	case "anthropic":
		model := cfg.LLMModel
		if model == "" {
			model = defaultAnthropicModel
		}
		return NewAnthropic(cfg.AnthropicAPIKey, model, httpClient), nil
	case "openai":
		model := cfg.LLMModel
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAI(cfg.OpenAIAPIKey, model, cfg.OpenAIBaseURL, httpClient), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// StripCodeFence removes a surrounding ```json or ``` fence from a model reply.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
