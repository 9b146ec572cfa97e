package run

import (
	"sync"

	"github.com/google/uuid"
)

// Context is one build context: a controller with its panel, error
// index, and annotation state, addressable by ID. Editors map one
// context per window; a CLI typically has exactly one.
type Context struct {
	id         string
	Controller *Controller
}

// ID returns the context's opaque identifier.
func (c *Context) ID() string {
	return c.id
}

// Registry tracks live build contexts by ID.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*Context
	opts     Options
}

// NewRegistry creates a registry. opts seed every context's controller.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		contexts: make(map[string]*Context),
		opts:     opts,
	}
}

// Get returns the context with the given ID, or nil.
func (r *Registry) Get(id string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.contexts[id]
}

// Create makes a new context with a fresh ID and controller.
func (r *Registry) Create() *Context {
	ctx := &Context{
		id:         uuid.New().String(),
		Controller: NewController(r.opts),
	}
	r.mu.Lock()
	r.contexts[ctx.id] = ctx
	r.mu.Unlock()
	return ctx
}

// GetOrCreate returns the context with the given ID, creating it on
// first use. An empty ID always creates.
func (r *Registry) GetOrCreate(id string) *Context {
	if id == "" {
		return r.Create()
	}
	r.mu.Lock()
	if ctx, ok := r.contexts[id]; ok {
		r.mu.Unlock()
		return ctx
	}
	ctx := &Context{id: id, Controller: NewController(r.opts)}
	r.contexts[id] = ctx
	r.mu.Unlock()
	return ctx
}

// Close shuts down the context's controller and removes it from the
// registry.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	ctx, ok := r.contexts[id]
	delete(r.contexts, id)
	r.mu.Unlock()
	if ok {
		ctx.Controller.Close()
	}
}

// CloseAll shuts down every context.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	contexts := make([]*Context, 0, len(r.contexts))
	for _, ctx := range r.contexts {
		contexts = append(contexts, ctx)
	}
	r.contexts = make(map[string]*Context)
	r.mu.Unlock()
	for _, ctx := range contexts {
		ctx.Controller.Close()
	}
}

// Len returns the number of live contexts.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}
