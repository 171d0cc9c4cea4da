package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.GPT4oMini

const proposalTemperature = 0.2

// OpenAI is an Advisor backed by an OpenAI-compatible chat completion
// endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

// OpenAIOption configures an OpenAI advisor.
type OpenAIOption func(*OpenAI)

// WithModel overrides the completion model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		if model != "" {
			o.model = model
		}
	}
}

// WithLogger sets the advisor's logger.
func WithLogger(log *slog.Logger) OpenAIOption {
	return func(o *OpenAI) {
		if log != nil {
			o.log = log
		}
	}
}

// WithBaseURL points the advisor at an OpenAI-compatible server such as a
// local llama.cpp or vLLM instance.
func WithBaseURL(apiKey, baseURL string) OpenAIOption {
	return func(o *OpenAI) {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		o.client = openai.NewClientWithConfig(cfg)
	}
}

// NewOpenAI builds an OpenAI advisor from an API key.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		client: openai.NewClient(apiKey),
		model:  DefaultModel,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Propose asks the model for a corrected command. Any failure to obtain a
// plausible single-line fix is reported as ErrNoFix with the cause wrapped.
func (o *OpenAI) Propose(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: proposalTemperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(req)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", ErrNoFix, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrNoFix)
	}

	fix := cleanReply(resp.Choices[0].Message.Content)
	if fix == "" {
		return "", fmt.Errorf("%w: blank reply", ErrNoFix)
	}
	if fix == req.FailingCommand {
		return "", fmt.Errorf("%w: model returned the failing command unchanged", ErrNoFix)
	}
	if !strings.Contains(fix, "(") {
		return "", fmt.Errorf("%w: reply is not a command: %q", ErrNoFix, fix)
	}

	o.log.Debug("advisor proposed fix",
		"failing_command", req.FailingCommand,
		"fixed_command", fix)
	return fix, nil
}
