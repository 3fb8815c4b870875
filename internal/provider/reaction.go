// internal/provider/reaction.go
package provider

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/models"
)

// ==========================
// 1. Emotion Vocabulary
// ==========================

// LabelUnknown is assigned when the model answers with an emotion
// outside the allowed vocabulary.
const LabelUnknown = "unknown"

// emotionVocabulary lists the labels the prompt asks the model to pick
// from. Anything else is coerced to LabelUnknown at parse time.
var emotionVocabulary = map[string]struct{}{
	"joy":        {},
	"sadness":    {},
	"anger":      {},
	"fear":       {},
	"disgust":    {},
	"surprise":   {},
	"optimism":   {},
	"anxiety":    {},
	"compassion": {},
	"outrage":    {},
}

// KnownLabel reports whether label belongs to the prompt vocabulary.
func KnownLabel(label string) bool {
	_, ok := emotionVocabulary[label]
	return ok
}

// ==========================
// 2. Prompt Construction
// ==========================

// DescribePersona renders a persona into the profile block the reaction
// prompt opens with.
func DescribePersona(p *models.Persona) string {
	demographics := make([]string, 0, len(p.Mappings))
	for _, m := range p.Mappings {
		demographics = append(demographics, fmt.Sprintf("%s (%s)", m.SubCategory, m.Category))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Persona: Name %s, City %s, Demographics: %s.\n",
		p.Name, p.City, strings.Join(demographics, ", "))
	fmt.Fprintf(&sb, "Background: %s\n", p.Description)
	return sb.String()
}

// BuildReactionPrompt asks the model how the persona reacts to the
// stimulus, in a line-oriented format ParseReaction can recover.
func BuildReactionPrompt(p *models.Persona, content string) string {
	var sb strings.Builder
	sb.WriteString(DescribePersona(p))
	fmt.Fprintf(&sb, "News: %q ", content)
	sb.WriteString("Question: How does this news impact the persona emotionally? ")
	sb.WriteString("Please provide an emotion that must be one of the following: ")
	sb.WriteString("joy, sadness, anger, fear, disgust, surprise, optimism, anxiety, compassion, outrage. ")
	sb.WriteString("Also, provide an intensity score for the emotion on a scale from 0 to 1, ")
	sb.WriteString("Explain briefly, in one line, without any newlines or paragraph breaks. ")
	sb.WriteString("Provide the response in the following format:\n")
	sb.WriteString("Person: {persona_name}\nEmotion: {emotion}\nIntensity: {intensity}\nExplanation: {explanation}")
	return sb.String()
}

// BuildChoicePrompt extends the reaction prompt with a fixed option
// list the persona must choose from.
func BuildChoicePrompt(p *models.Persona, content string, options []string) string {
	var sb strings.Builder
	sb.WriteString(BuildReactionPrompt(p, content))
	sb.WriteString("\nAdditionally pick exactly one of the following responses, verbatim:\n")
	for _, opt := range options {
		fmt.Fprintf(&sb, "- %s\n", opt)
	}
	sb.WriteString("Append it as a final line in the format:\nResponse: {chosen response}")
	return sb.String()
}

// ==========================
// 3. Reply Parsing
// ==========================

// Reaction is a parsed model reply.
type Reaction struct {
	Label       string
	Intensity   float64
	Explanation string
	// Response is the chosen option text, empty when the prompt did not
	// offer options.
	Response string
}

// ParseReaction recovers the labelled fields from the raw model text.
// An emotion outside the vocabulary becomes LabelUnknown rather than an
// error; a missing field or unparseable intensity is an error.
func ParseReaction(raw string) (*Reaction, error) {
	if !strings.Contains(raw, "Emotion:") || !strings.Contains(raw, "Explanation:") {
		return nil, errors.NewProviderBadReplyError("reply missing Emotion or Explanation field")
	}

	emotion := strings.ToLower(firstLineAfter(raw, "Emotion:"))
	if !KnownLabel(emotion) {
		emotion = LabelUnknown
	}

	intensityText := firstLineAfter(raw, "Intensity:")
	intensity, err := strconv.ParseFloat(intensityText, 64)
	if err != nil {
		return nil, errors.NewProviderBadReplyError(fmt.Sprintf("bad intensity %q", intensityText))
	}
	// Intensity is a share in [0, 1]; models occasionally drift outside.
	intensity = math.Min(math.Max(intensity, 0), 1)

	explanation := strings.TrimSpace(after(raw, "Explanation:"))
	response := ""
	if idx := strings.Index(explanation, "Response:"); idx >= 0 {
		response = strings.TrimSpace(explanation[idx+len("Response:"):])
		explanation = strings.TrimSpace(explanation[:idx])
	}

	return &Reaction{
		Label:       emotion,
		Intensity:   intensity,
		Explanation: explanation,
		Response:    response,
	}, nil
}

func after(raw, marker string) string {
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return ""
	}
	return raw[idx+len(marker):]
}

func firstLineAfter(raw, marker string) string {
	rest := after(raw, marker)
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[:nl]
	}
	return strings.TrimSpace(rest)
}
