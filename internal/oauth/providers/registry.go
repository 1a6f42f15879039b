package providers

import "fmt"

// Registry holds the providers configured at startup. It is built once and
// never mutated afterwards, so lookups need no locking.
type Registry struct {
	byName map[string]Provider
	order  []Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		if _, dup := r.byName[p.Name()]; dup {
			continue
		}
		r.byName[p.Name()] = p
		r.order = append(r.order, p)
	}
	return r
}

// Get returns the provider registered under name, or ErrUnknownProvider.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// List returns the providers in registration order.
func (r *Registry) List() []Provider {
	out := make([]Provider, len(r.order))
	copy(out, r.order)
	return out
}
