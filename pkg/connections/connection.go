package connections

import (
	"context"
)

// Connection is a configured external capability (an LLM provider, a
// social platform, a chain RPC endpoint) exposing named actions.
type Connection interface {
	// Name returns the connection's registry key
	Name() string
	// IsLLMProvider reports whether this connection can generate text
	IsLLMProvider() bool
	// Perform executes a named action. Unknown action names fail with
	// ErrActionNotFound; runtime failures come back as *ExecutionError.
	Perform(ctx context.Context, action string, params map[string]any) (any, error)
	// Close releases any resources held by the connection
	Close() error
}
