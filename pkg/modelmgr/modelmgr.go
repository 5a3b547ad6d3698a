// Package modelmgr defines the model manager collaborator contract and an
// HTTP client implementation for ollama's native API. The sync engine and
// capability prober depend only on the Manager interface so tests can
// substitute fakes.
package modelmgr

import "context"

// Manager is the external model store collaborator: it can enumerate
// installed models, pull new ones, and remove existing ones.
type Manager interface {
	// Ping verifies the manager is reachable. Unreachable managers are a
	// fatal precondition, not a per-model failure.
	Ping(ctx context.Context) error
	// List returns the names of installed models.
	List(ctx context.Context) ([]string, error)
	// Pull downloads a model by name, blocking until done.
	Pull(ctx context.Context, model string) error
	// Remove deletes an installed model by name.
	Remove(ctx context.Context, model string) error
}
