// internal/provider/gemini.go
package provider

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"persona-workers/internal/common/config"
	"persona-workers/internal/common/errors"
)

const defaultGeminiModel = "gemini-1.5-flash-002"

func init() {
	Register("google", newGeminiProvider)
}

type geminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func newGeminiProvider(cfg config.BackendConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewProviderUnavailableError("google")
	}
	name := cfg.Model
	if name == "" {
		name = defaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, errors.NewProviderCallFailedError("google", err)
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(2048)

	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Name() string {
	return "google"
}

func (p *geminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.NewProviderCallFailedError("google", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.NewProviderBadReplyError("google returned no candidates")
	}
	return fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]), nil
}
