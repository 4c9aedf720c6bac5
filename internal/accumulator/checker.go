package accumulator

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const (
	checkerModel   = "gpt-4o-mini"
	checkerTimeout = 2 * time.Second
	checkerPrompt  = "Reply with exactly one character: Y if the text is a grammatically complete, translatable sentence. N if it is incomplete or cut off. No other output."
)

// CompletionChecker is the secondary, LLM-based completeness check consulted
// when the length heuristic (not punctuation) says "ready". It is fail-open:
// any error, timeout, or odd reply counts as complete so translation is
// never blocked on it.
type CompletionChecker struct {
	client  *openai.Client
	timeout time.Duration
}

func NewCompletionChecker(apiKey string) *CompletionChecker {
	if apiKey == "" {
		return nil
	}
	return &CompletionChecker{
		client:  openai.NewClient(apiKey),
		timeout: checkerTimeout,
	}
}

// IsComplete reports whether text reads as a finished sentence.
func (c *CompletionChecker) IsComplete(ctx context.Context, text string) bool {
	if c == nil || strings.TrimSpace(text) == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: checkerModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: checkerPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   1,
		Temperature: 0,
	})
	if err != nil {
		log.Warn().Err(err).Msg("completion check: failing open")
		return true
	}
	if len(resp.Choices) == 0 {
		return true
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	return !strings.HasPrefix(answer, "N")
}
