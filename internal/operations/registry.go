package operations

import (
	"fmt"
	"strings"
	"sync"
)

// Registry holds the steps of one pipeline in registration order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]Step
	steps []Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Step)}
}

// Register appends step. IDs must be non-empty and unique.
func (r *Registry) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("cannot register nil step")
	}
	id := step.ID()
	if id == "" {
		return fmt.Errorf("step ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byID[id]; dup {
		return fmt.Errorf("step with ID %s already registered", id)
	}
	r.byID[id] = step
	r.steps = append(r.steps, step)
	return nil
}

// Len returns the number of registered steps.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// IDs returns the step IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.steps))
	for i, s := range r.steps {
		ids[i] = s.ID()
	}
	return ids
}

// Ordered returns the steps so that every step follows its dependencies. Of
// the steps ready at any point, the earliest registered runs first.
func (r *Registry) Ordered() ([]Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.steps {
		for _, dep := range s.GetDependencies() {
			if _, ok := r.byID[dep]; !ok {
				return nil, fmt.Errorf("step %s depends on non-existent step %s", s.ID(), dep)
			}
		}
	}

	placed := make(map[string]bool, len(r.steps))
	ordered := make([]Step, 0, len(r.steps))
	for len(ordered) < len(r.steps) {
		next := r.firstReady(placed)
		if next == nil {
			return nil, fmt.Errorf("dependency cycle detected among %s", strings.Join(r.unplaced(placed), ", "))
		}
		placed[next.ID()] = true
		ordered = append(ordered, next)
	}
	return ordered, nil
}

// firstReady returns the first unplaced step whose dependencies are all placed.
func (r *Registry) firstReady(placed map[string]bool) Step {
	for _, s := range r.steps {
		if placed[s.ID()] {
			continue
		}
		ready := true
		for _, dep := range s.GetDependencies() {
			if !placed[dep] {
				ready = false
				break
			}
		}
		if ready {
			return s
		}
	}
	return nil
}

func (r *Registry) unplaced(placed map[string]bool) []string {
	var ids []string
	for _, s := range r.steps {
		if !placed[s.ID()] {
			ids = append(ids, s.ID())
		}
	}
	return ids
}
