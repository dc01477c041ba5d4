package remediation

import (
	"sort"
	"sync"

	"aegis-hq/sentinel/pkg/policy/bundle"
)

// ActionInfo describes one catalog entry for introspection.
type ActionInfo struct {
	Kind        bundle.ActionKind `json:"kind"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Enabled     bool              `json:"enabled"`
}

type registration struct {
	handler Handler
	info    ActionInfo
}

// Registry maps action kinds to their handlers. One handler per kind;
// registration is expected at startup, but the registry is safe for
// concurrent use so actions can be enabled or disabled at runtime.
type Registry struct {
	mu       sync.RWMutex
	handlers map[bundle.ActionKind]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[bundle.ActionKind]*registration)}
}

// Register adds or replaces the handler for an action kind.
func (r *Registry) Register(kind bundle.ActionKind, name, description string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = &registration{
		handler: handler,
		info: ActionInfo{
			Kind:        kind,
			Name:        name,
			Description: description,
			Enabled:     true,
		},
	}
}

// SetEnabled toggles an action kind. Dispatching a disabled kind fails as
// an unknown action.
func (r *Registry) SetEnabled(kind bundle.ActionKind, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.handlers[kind]
	if !ok {
		return false
	}
	reg.info.Enabled = enabled
	return true
}

// Handler returns the enabled handler for the kind.
func (r *Registry) Handler(kind bundle.ActionKind) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[kind]
	if !ok {
		return nil, &UnknownActionKindError{Kind: string(kind)}
	}
	if !reg.info.Enabled {
		return nil, &UnknownActionKindError{Kind: string(kind), Disabled: true}
	}
	return reg.handler, nil
}

// Catalog returns all registrations sorted by kind.
func (r *Registry) Catalog() []ActionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ActionInfo, 0, len(r.handlers))
	for _, reg := range r.handlers {
		infos = append(infos, reg.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Kind < infos[j].Kind })
	return infos
}
