package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI builds a chat-completions client. baseURL may point at any
// OpenAI-compatible server; empty keeps the public endpoint.
func NewOpenAI(apiKey, model, baseURL string, httpClient *http.Client) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Provider() string { return "openai" }
func (o *OpenAI) Model() string    { return o.model }

func (o *OpenAI) Complete(ctx context.Context, req Request) (Completion, error) {
	creq := openai.ChatCompletionRequest{
		Model:               o.model,
		MaxCompletionTokens: req.MaxTokens,
		Messages:            make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1),
	}
	if strings.TrimSpace(req.System) != "" {
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{Role: role, Content: m.Text})
	}

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && fmt.Sprint(apiErr.Code) == "content_filter" {
			log.Printf("llm openai blocked code=content_filter status=%d", apiErr.HTTPStatusCode)
			return Completion{Blocked: true, BlockReason: "content_filter"}, nil
		}
		log.Printf("llm openai error: %v", err)
		return Completion{}, fmt.Errorf("OpenAI API error: %w", err)
	}

	usage := Usage{
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}
	if len(resp.Choices) == 0 {
		return Completion{Usage: usage}, fmt.Errorf("no choices in OpenAI response")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		log.Printf("llm openai blocked finish_reason=content_filter tokens_in=%d", usage.InputTokens)
		return Completion{Blocked: true, BlockReason: "content_filter", Usage: usage}, nil
	}

	log.Printf("llm openai response size=%d tokens_in=%d tokens_out=%d", len(choice.Message.Content), usage.InputTokens, usage.OutputTokens)
	return Completion{Text: choice.Message.Content, Usage: usage}, nil
}
