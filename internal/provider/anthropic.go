// internal/provider/anthropic.go
package provider

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"persona-workers/internal/common/config"
	"persona-workers/internal/common/errors"
)

const anthropicMaxTokens = 1024

func init() {
	Register("anthropic", newAnthropicProvider)
}

type anthropicProvider struct {
	client *anthropic.Client
	model  anthropic.Model
}

func newAnthropicProvider(cfg config.BackendConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewProviderUnavailableError("anthropic")
	}
	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.ModelClaudeHaiku4_5
	}
	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &anthropicProvider{client: &client, model: model}, nil
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

func (p *anthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", errors.NewProviderCallFailedError("anthropic", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.NewProviderBadReplyError("anthropic returned no content blocks")
	}
	return resp.Content[0].Text, nil
}
