package core

import "context"

// Options controls model behavior; fields are optional per provider.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int
	SystemPrompt        string
	// JSONMode asks providers that support it to return a bare JSON object.
	JSONMode bool
}

// Client is a provider-agnostic interface for the single-turn prompts the
// oracle sends.
type Client interface {
	Respond(ctx context.Context, input string, opts Options) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, input string, opts Options) (string, error)

func (f ClientFunc) Respond(ctx context.Context, input string, opts Options) (string, error) {
	return f(ctx, input, opts)
}
