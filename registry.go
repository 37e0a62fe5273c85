package pgutils

import (
	"errors"
	"fmt"
	"log/slog"
)

// Registry holds the configured clients keyed by id, in configuration file
// order. The caller owns the registry; nothing in the package is global.
type Registry struct {
	clients map[string]*Client
	order   []string
}

// NewRegistry builds a registry from configuration entries.
func NewRegistry(cfgs []ClientConfig, log *slog.Logger) (*Registry, error) {
	r := &Registry{clients: make(map[string]*Client, len(cfgs))}
	for _, cfg := range cfgs {
		if _, ok := r.clients[cfg.ID]; ok {
			return nil, &ConfigurationError{Err: fmt.Errorf("%w: %s", ErrDuplicateClient, cfg.ID)}
		}
		r.clients[cfg.ID] = NewClient(cfg, log)
		r.order = append(r.order, cfg.ID)
	}
	return r, nil
}

// LoadRegistry reads the configuration file and builds the registry.
func LoadRegistry(path string, log *slog.Logger) (*Registry, error) {
	cfgs, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewRegistry(cfgs, log)
}

// Client returns the client with the given id.
func (r *Registry) Client(id string) (*Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: %s", ErrUnknownClient, id)}
	}
	return c, nil
}

// Clients returns all clients in configuration order.
func (r *Registry) Clients() []*Client {
	out := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.clients[id])
	}
	return out
}

// Managed returns the clients with migration management enabled, in
// configuration order.
func (r *Registry) Managed() []*Client {
	var out []*Client
	for _, id := range r.order {
		if c := r.clients[id]; c.ManagesMigrations() {
			out = append(out, c)
		}
	}
	return out
}

// Close closes every client connection, returning the joined errors.
func (r *Registry) Close() error {
	var errs []error
	for _, id := range r.order {
		if err := r.clients[id].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
