// internal/provider/reaction_test.go
package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-workers/internal/models"
)

func personaFixture() *models.Persona {
	return &models.Persona{
		ID:          1,
		Name:        "Asha Patel",
		City:        "Mumbai",
		Description: "A pragmatic shopkeeper who follows local politics closely.",
		Mappings: []models.SubCategoryRef{
			{SubCategory: "31-50", Category: "age"},
			{SubCategory: "female", Category: "gender"},
		},
	}
}

func TestParseReaction(t *testing.T) {
	tests := []struct {
		name            string
		raw             string
		wantLabel       string
		wantIntensity   float64
		wantExplanation string
		wantResponse    string
		wantErr         bool
	}{
		{
			name:            "well formed",
			raw:             "Person: Asha Patel\nEmotion: joy\nIntensity: 0.8\nExplanation: The new market rules help small traders.",
			wantLabel:       "joy",
			wantIntensity:   0.8,
			wantExplanation: "The new market rules help small traders.",
		},
		{
			name:            "unrecognized emotion coerced to unknown",
			raw:             "Person: Asha Patel\nEmotion: melancholy\nIntensity: 0.4\nExplanation: Hard to say.",
			wantLabel:       LabelUnknown,
			wantIntensity:   0.4,
			wantExplanation: "Hard to say.",
		},
		{
			name:            "mixed case emotion",
			raw:             "Emotion: Anger\nIntensity: 1\nExplanation: Prices went up again.",
			wantLabel:       "anger",
			wantIntensity:   1,
			wantExplanation: "Prices went up again.",
		},
		{
			name:            "trailing response option",
			raw:             "Emotion: optimism\nIntensity: 0.6\nExplanation: Looks promising.\nResponse: Strongly support",
			wantLabel:       "optimism",
			wantIntensity:   0.6,
			wantExplanation: "Looks promising.",
			wantResponse:    "Strongly support",
		},
		{
			name:            "intensity above range clamped",
			raw:             "Emotion: joy\nIntensity: 1.7\nExplanation: Very excited.",
			wantLabel:       "joy",
			wantIntensity:   1,
			wantExplanation: "Very excited.",
		},
		{
			name:            "negative intensity clamped",
			raw:             "Emotion: sadness\nIntensity: -0.3\nExplanation: Not great.",
			wantLabel:       "sadness",
			wantIntensity:   0,
			wantExplanation: "Not great.",
		},
		{
			name:    "missing emotion field",
			raw:     "Intensity: 0.5\nExplanation: no header",
			wantErr: true,
		},
		{
			name:    "unparseable intensity",
			raw:     "Emotion: fear\nIntensity: high\nExplanation: scary",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReaction(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.InDelta(t, tt.wantIntensity, got.Intensity, 1e-9)
			assert.Equal(t, tt.wantExplanation, got.Explanation)
			assert.Equal(t, tt.wantResponse, got.Response)
		})
	}
}

func TestBuildReactionPrompt(t *testing.T) {
	prompt := BuildReactionPrompt(personaFixture(), "A new metro line opens next month.")

	assert.Contains(t, prompt, "Name Asha Patel")
	assert.Contains(t, prompt, "City Mumbai")
	assert.Contains(t, prompt, "31-50 (age)")
	assert.Contains(t, prompt, "female (gender)")
	assert.Contains(t, prompt, "A new metro line opens next month.")
	assert.Contains(t, prompt, "joy, sadness, anger, fear, disgust, surprise, optimism, anxiety, compassion, outrage")
	assert.Contains(t, prompt, "Emotion: {emotion}")
}

func TestBuildChoicePrompt(t *testing.T) {
	prompt := BuildChoicePrompt(personaFixture(), "Fuel taxes rise by 5%.", []string{"Support", "Oppose"})

	assert.Contains(t, prompt, "- Support")
	assert.Contains(t, prompt, "- Oppose")
	assert.Contains(t, prompt, "Response: {chosen response}")
}

func TestKnownLabel(t *testing.T) {
	assert.True(t, KnownLabel("joy"))
	assert.True(t, KnownLabel("outrage"))
	assert.False(t, KnownLabel("melancholy"))
	assert.False(t, KnownLabel(""))
}

func TestRegistryLookup(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "anthropic")
	assert.Contains(t, names, "google")
}
