package debate

import "context"

// Generator produces the next utterance for a persona given the recent
// context window. Implementations own timeouts and retries.
type Generator interface {
	Generate(ctx context.Context, persona string, window []Turn) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, persona string, window []Turn) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, persona string, window []Turn) (string, error) {
	return f(ctx, persona, window)
}
