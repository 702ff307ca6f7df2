package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/parallaxlabs/erpquery/pkg/prompt"
)

const defaultMaxTokens = 2048

// AnthropicGenerator drives the agent with Claude. The prompt material is
// fixed at construction; per-call state arrives in the prompt.Context.
type AnthropicGenerator struct {
	log       *slog.Logger
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	prompts   *prompt.Config
}

// NewAnthropicGenerator creates a generator. The API key is read from the
// environment by the SDK.
func NewAnthropicGenerator(log *slog.Logger, model anthropic.Model, maxTokens int64, prompts *prompt.Config) *AnthropicGenerator {
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return &AnthropicGenerator{
		log:       log,
		client:    anthropic.NewClient(),
		model:     model,
		maxTokens: maxTokens,
		prompts:   prompts,
	}
}

// Next implements Generator.
func (g *AnthropicGenerator) Next(ctx context.Context, pc prompt.Context) (Action, error) {
	start := time.Now()

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System: []anthropic.TextBlockParam{
			{Type: "text", Text: g.prompts.SystemPrompt()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(pc.RenderUser())),
		},
	})
	if err != nil {
		if g.log != nil {
			g.log.Error("llm: anthropic call failed", "duration", time.Since(start), "error", err)
		}
		return Action{}, fmt.Errorf("anthropic API error: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return Action{}, fmt.Errorf("%w: no text content in response", ErrMalformedAction)
	}

	if g.log != nil {
		g.log.Debug("llm: anthropic call completed",
			"duration", time.Since(start),
			"stopReason", msg.StopReason)
	}

	return ParseAction(text)
}
