// internal/provider/openai.go
package provider

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"persona-workers/internal/common/config"
	"persona-workers/internal/common/errors"
)

const defaultOpenAIModel = openai.ChatModelGPT4oMini

func init() {
	Register("openai", newOpenAIProvider)
}

type openAIProvider struct {
	client *openai.Client
	model  openai.ChatModel
}

func newOpenAIProvider(cfg config.BackendConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewProviderUnavailableError("openai")
	}
	model := openai.ChatModel(cfg.Model)
	if cfg.Model == "" {
		model = defaultOpenAIModel
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &openAIProvider{client: &client, model: model}, nil
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", errors.NewProviderCallFailedError("openai", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.NewProviderBadReplyError("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
