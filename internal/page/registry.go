package page

import (
	"fmt"
	"sort"
	"sync"
)

// NotFoundError reports a name with no registered selector, or a selector
// that matched nothing on the page.
type NotFoundError struct {
	Name     string
	Selector string
	// Err is the underlying cause, if any (a poll timeout).
	Err error
}

func (e *NotFoundError) Error() string {
	if e.Selector == "" {
		return fmt.Sprintf("page: no selector registered for %q", e.Name)
	}
	return fmt.Sprintf("page: %q (%s) not found", e.Name, e.Selector)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// Registry maps element names to CSS selectors.
type Registry struct {
	mu        sync.RWMutex
	selectors map[string]string
}

// NewRegistry copies selectors into a new registry.
func NewRegistry(selectors map[string]string) *Registry {
	r := &Registry{selectors: make(map[string]string, len(selectors))}
	for name, sel := range selectors {
		r.selectors[name] = sel
	}
	return r
}

// Set registers or replaces the selector for name.
func (r *Registry) Set(name, selector string) {
	r.mu.Lock()
	r.selectors[name] = selector
	r.mu.Unlock()
}

// Lookup returns the selector for name.
func (r *Registry) Lookup(name string) (string, error) {
	r.mu.RLock()
	sel, ok := r.selectors[name]
	r.mu.RUnlock()
	if !ok {
		return "", &NotFoundError{Name: name}
	}
	return sel, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.selectors))
	for name := range r.selectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len reports the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.selectors)
}
