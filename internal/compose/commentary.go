package compose

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/park285/voicechess/internal/obslog"
)

const commentarySystemPrompt = `You are Magnus Carlsen.
Given the current board position in a string representation, provide a very short comment of the game.
Provide your response in exactly one sentence in the shortest possible way.
Please provide your answer between <answer> and </answer> tags.`

const commentaryFallback = "No comment."

var answerRe = regexp.MustCompile(`(?is)<answer>(.*?)</answer>`)

// Commentator produces best-effort color commentary on positions through an
// OpenAI-compatible chat endpoint. A nil *Commentator is valid and comments
// on nothing.
type Commentator struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewCommentator targets baseURL with the given model. apiKey may be empty
// for servers that do not authenticate.
func NewCommentator(baseURL, apiKey, model string) *Commentator {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Commentator{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: 120 * time.Second,
	}
}

// Comment asks for one sentence about the position. It never fails: any
// transport or parse problem is logged and ("", false) returned so callers
// simply skip the commentary.
func (c *Commentator) Comment(ctx context.Context, position string) (string, bool) {
	if c == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: commentarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: position},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			obslog.L().Warn("commentary request failed", zap.Error(err))
		}
		return "", false
	}
	if len(resp.Choices) == 0 {
		return "", false
	}
	text := extractAnswer(resp.Choices[0].Message.Content)
	if text == "" {
		return commentaryFallback, true
	}
	return text, true
}

// extractAnswer pulls the tagged answer out of the raw completion. Thinking
// models prepend reasoning, sometimes closed by a bare </think>; anything
// before that marker is discarded first.
func extractAnswer(raw string) string {
	if i := strings.LastIndex(raw, "</think>"); i >= 0 {
		raw = raw[i+len("</think>"):]
	}
	m := answerRe.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
