// Package ai turns a member's free-form message into a typed finance
// request: one call classifies which form the message needs, a second
// pulls the form's fields out of the text.
package ai

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the slice of the OpenAI client the extractor uses.
// Tests substitute a canned implementation.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates the OpenAI chat client. The timeout bounds a hanging
// API call; zero means no bound.
func NewClient(apiKey string, timeout time.Duration) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: timeout}
	}
	return openai.NewClientWithConfig(config)
}
