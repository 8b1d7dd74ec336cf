package connections

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured connections and acts as the action
// executor for agents. It is an explicit object handed to whoever needs
// it, never a package-level global.
type Registry struct {
	conns map[string]Connection
	mu    sync.RWMutex
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Connection),
	}
}

// Register adds a connection under its own name.
func (r *Registry) Register(conn Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := conn.Name()
	if name == "" {
		return fmt.Errorf("connection has no name")
	}
	if _, exists := r.conns[name]; exists {
		return fmt.Errorf("connection %s is already registered", name)
	}
	r.conns[name] = conn
	return nil
}

// Get returns the named connection.
func (r *Registry) Get(name string) (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotConfigured, name)
	}
	return conn, nil
}

// Names returns the registered connection names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LLMProviders returns the names of connections that can generate text,
// in sorted order.
func (r *Registry) LLMProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0)
	for name, conn := range r.conns {
		if conn.IsLLMProvider() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Perform routes an action to the named connection. This is the single
// entry point agents use for side effects.
func (r *Registry) Perform(ctx context.Context, connection string, action string, params map[string]any) (any, error) {
	conn, err := r.Get(connection)
	if err != nil {
		return nil, err
	}
	return conn.Perform(ctx, action, params)
}

// Close closes every registered connection and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, conn := range r.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing connection %s: %w", name, err)
		}
	}
	r.conns = make(map[string]Connection)
	return firstErr
}
