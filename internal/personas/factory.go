// internal/personas/factory.go
package personas

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"persona-workers/internal/common/logger"
	"persona-workers/internal/common/metrics"
	"persona-workers/internal/models"
	"persona-workers/internal/provider"
)

// FallbackDescription is used when enrichment fails. Persistence still
// proceeds; only the flavour text is degraded.
const FallbackDescription = "A unique individual with diverse characteristics."

const defaultChunkWorkers = 4

// Creator is the persistence slice the factory needs.
type Creator interface {
	Create(ctx context.Context, p *models.Persona) error
}

// Config carries the factory knobs.
type Config struct {
	// ChunkWorkers is the number of parallel materialization workers.
	ChunkWorkers int
	// CallTimeout bounds each enrichment call.
	CallTimeout time.Duration
}

// Factory materializes persona blueprints: it names each one, asks the
// provider for a personality description, and persists the result. The
// blueprints are partitioned round-robin across chunk workers; each
// worker appends to its own slice and the chunks are merged at the end,
// so no state is shared while running.
type Factory struct {
	cfg   Config
	prov  provider.Provider
	store Creator
	log   logger.Logger
}

func NewFactory(cfg Config, prov provider.Provider, store Creator, log logger.Logger) *Factory {
	if cfg.ChunkWorkers <= 0 {
		cfg.ChunkWorkers = defaultChunkWorkers
	}
	return &Factory{cfg: cfg, prov: prov, store: store, log: log}
}

// Materialize turns blueprints (city and mappings set, name and
// description empty) into persisted personas. Enrichment failures fall
// back to FallbackDescription; a persistence failure aborts the whole
// batch.
func (f *Factory) Materialize(ctx context.Context, blueprints []models.Persona) ([]models.Persona, error) {
	if len(blueprints) == 0 {
		return nil, nil
	}

	workers := f.cfg.ChunkWorkers
	if workers > len(blueprints) {
		workers = len(blueprints)
	}

	chunks := make([][]models.Persona, workers)
	for i, bp := range blueprints {
		w := i % workers
		chunks[w] = append(chunks[w], bp)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]models.Persona, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			done, err := f.processChunk(ctx, chunks[w])
			results[w] = done
			if err != nil {
				errs[w] = err
				cancel()
			}
		}(w)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var personas []models.Persona
	for _, chunk := range results {
		personas = append(personas, chunk...)
	}
	return personas, nil
}

func (f *Factory) processChunk(ctx context.Context, chunk []models.Persona) ([]models.Persona, error) {
	var done []models.Persona
	for _, bp := range chunk {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		p := bp
		if p.Name == "" {
			p.Name = gofakeit.Name()
		}
		p.Description = f.describe(ctx, &p)

		if err := f.store.Create(ctx, &p); err != nil {
			return done, err
		}
		metrics.PersonasCreated.WithLabelValues(p.City).Inc()
		done = append(done, p)
	}
	return done, nil
}

// describe asks the provider for a short personality description and
// degrades to the fallback text on any failure.
func (f *Factory) describe(ctx context.Context, p *models.Persona) string {
	callCtx, cancel := context.WithTimeout(ctx, f.cfg.CallTimeout)
	defer cancel()

	raw, err := f.prov.Generate(callCtx, BuildDescriptionPrompt(p))
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(f.prov.Name(), "error").Inc()
		f.log.Warn("persona enrichment failed, using fallback description", map[string]interface{}{
			"persona": p.Name,
			"city":    p.City,
			"error":   err.Error(),
		})
		return FallbackDescription
	}
	metrics.ProviderCalls.WithLabelValues(f.prov.Name(), "success").Inc()

	description := strings.TrimSpace(raw)
	if description == "" {
		return FallbackDescription
	}
	return description
}

// BuildDescriptionPrompt asks for a three line personality sketch built
// from the persona's demographic mappings.
func BuildDescriptionPrompt(p *models.Persona) string {
	byCategory := make(map[string][]string)
	var order []string
	for _, m := range p.Mappings {
		if _, seen := byCategory[m.Category]; !seen {
			order = append(order, m.Category)
		}
		byCategory[m.Category] = append(byCategory[m.Category], m.SubCategory)
	}

	details := make([]string, 0, len(order))
	for _, cat := range order {
		details = append(details, fmt.Sprintf("%s: %s", cat, strings.Join(byCategory[cat], ", ")))
	}
	context := "Diverse background"
	if len(details) > 0 {
		context = strings.Join(details, "; ")
	}

	var sb strings.Builder
	sb.WriteString("Generate a nuanced, concise 3-line personality description for a person with the following profile:\n\n")
	fmt.Fprintf(&sb, "Name: %s\n", p.Name)
	fmt.Fprintf(&sb, "City: %s\n", p.City)
	fmt.Fprintf(&sb, "Demographic Context: %s\n\n", context)
	sb.WriteString("Guidelines for description:\n")
	sb.WriteString("- Be specific and draw insights from the demographic context\n")
	sb.WriteString("- Include a potential profession or role based on categories\n")
	sb.WriteString("- Highlight key personality traits\n")
	sb.WriteString("- Provide a brief insight into their potential motivations or interests\n")
	sb.WriteString("- Create diverse personalities\n")
	sb.WriteString("- Use the format: '[Name] is a [role/profession] who is [key traits]. [Additional detail].'\n")
	return sb.String()
}
