package model

import "sort"

// Registry maps short logical model names (e.g. "qwen") to loaded handles.
// It is populated once at startup and read-only afterward, so lookups need
// no synchronization.
type Registry struct {
	defaultName string
	entries     map[string]*Handle
}

// NewRegistry creates a registry with the given default model name.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		defaultName: defaultName,
		entries:     make(map[string]*Handle),
	}
}

// Register adds a handle under a logical name. Call only during startup.
func (r *Registry) Register(name string, h *Handle) {
	r.entries[name] = h
}

// Resolve returns the handle for name, falling back to the default model
// when the name is unknown. The returned name is the one actually resolved.
// An unknown name is not an error; a missing default yields a nil handle.
func (r *Registry) Resolve(name string) (string, *Handle) {
	if h, ok := r.entries[name]; ok {
		return name, h
	}
	return r.defaultName, r.entries[r.defaultName]
}

// DefaultName returns the configured primary model name.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Names lists registered logical names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
