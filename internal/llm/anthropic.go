package llm

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/cory-johannsen/chronicle/internal/config"
)

//go:embed prompts/system.txt
var systemPrompt string

// messageCreator is the subset of the Anthropic messages API the client uses.
type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicClient generates narrator replies with the Anthropic Messages API.
type AnthropicClient struct {
	messages  messageCreator
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	logger    *zap.Logger
}

// NewAnthropicClient creates a client from cfg.
//
// Precondition: cfg.APIKey and cfg.Model must be non-empty; logger must be non-nil.
func NewAnthropicClient(cfg config.LLMConfig, logger *zap.Logger) *AnthropicClient {
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return newAnthropicClient(&client.Messages, cfg, logger)
}

func newAnthropicClient(messages messageCreator, cfg config.LLMConfig, logger *zap.Logger) *AnthropicClient {
	return &AnthropicClient{
		messages:  messages,
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Generate sends req to the model and parses the reply.
//
// A reply that is not a JSON object is kept as narrative with no state updates.
//
// Postcondition: Returns a non-nil Response, or an error when the API call fails or
// the reply has no text.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	bundle, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("encoding narrator request: %w", err)
	}

	start := time.Now()
	msg, err := c.messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(bundle)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("calling narrator model: %w", err)
	}

	text := replyText(msg)
	c.logger.Debug("narrator reply received",
		zap.String("campaign_id", req.CampaignID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.String("stop_reason", string(msg.StopReason)),
	)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("narrator reply contained no text")
	}

	resp, err := ParseResponse(text)
	if err != nil {
		c.logger.Warn("narrator reply was not structured; keeping narrative only",
			zap.String("campaign_id", req.CampaignID),
			zap.Error(err),
		)
		return &Response{Narrative: strings.TrimSpace(text), Raw: text}, nil
	}
	return resp, nil
}

func replyText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
