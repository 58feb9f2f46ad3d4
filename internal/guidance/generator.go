package guidance

import (
	"context"
	"hash/fnv"
)

// Generator produces guidance text from an aggregated context. Treated as an
// opaque pure function; implementations must not write to the store.
type Generator interface {
	Generate(ctx context.Context, gc Context) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, gc Context) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, gc Context) (string, error) {
	return f(ctx, gc)
}

var templates = []string{
	"Your path is marked by potential. The data suggests you value structure.",
	"Chaos swirls around you, but your core remains steady. Trust your intuition.",
	"The patterns indicate a time for action. Do not hesitate.",
	"Reflection is your greatest tool right now. Look inward.",
}

// TemplateGenerator is the built-in fallback: deterministic per user and
// answer count, so the same state yields the same text.
type TemplateGenerator struct{}

func (TemplateGenerator) Generate(_ context.Context, gc Context) (string, error) {
	if len(gc.Answers) == 0 {
		return "The stars are silent. Speak to them (answer questions) to hear their voice.", nil
	}

	h := fnv.New32a()
	h.Write([]byte(gc.Profile.ID.String()))
	index := (h.Sum32() + uint32(len(gc.Answers))) % uint32(len(templates))
	return templates[index], nil
}
