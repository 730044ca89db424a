package summary

import "context"

// Client produces a short summary of a ticket dialogue at close time.
// Implementations may fail; the caller degrades to a placeholder and the
// failure never blocks closing.
type Client interface {
	Summarize(ctx context.Context, dialogue string) (string, error)
}
