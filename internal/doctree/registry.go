package doctree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

var ErrTemplateNotFound = errors.New("template not found")

// RemoteSource is an external template store.
type RemoteSource interface {
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context) ([]*Template, error)
}

// Registry resolves template IDs against the built-in set, then templates
// added locally, then the optional remote store.
type Registry struct {
	mu     sync.RWMutex
	local  map[string]*Template
	order  []string
	remote RemoteSource
	log    *slog.Logger
}

func NewRegistry(remote RemoteSource, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		local:  make(map[string]*Template),
		remote: remote,
		log:    log,
	}
	for _, t := range Builtin() {
		r.add(t)
	}
	return r
}

// Add registers a template after validating it. Validation warnings are
// logged; errors reject the template. A later Add with the same ID replaces
// the earlier one.
func (r *Registry) Add(t *Template) (Report, error) {
	rep := Validate(t)
	if !rep.OK() {
		return rep, fmt.Errorf("template %q is invalid: %v", t.ID, rep.Errors)
	}
	for _, w := range rep.Warnings {
		r.log.Warn("template warning", "template_id", t.ID, "warning", w)
	}
	r.add(t)
	return rep, nil
}

func (r *Registry) add(t *Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.local[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.local[t.ID] = t
}

// AddDir registers every template found in dir.
func (r *Registry) AddDir(dir string) error {
	ts, err := LoadDir(dir)
	if err != nil {
		return err
	}
	for _, t := range ts {
		if _, err := r.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the template with the given ID.
func (r *Registry) Get(ctx context.Context, id string) (*Template, error) {
	r.mu.RLock()
	t, ok := r.local[id]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}
	if r.remote == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	t, err := r.remote.GetTemplate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("remote template %s: %w", id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return t, nil
}

// List returns local templates in registration order followed by remote
// templates whose IDs are not shadowed locally. A failing remote store is
// logged and skipped.
func (r *Registry) List(ctx context.Context) []*Template {
	r.mu.RLock()
	out := make([]*Template, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.local[id])
	}
	r.mu.RUnlock()

	if r.remote == nil {
		return out
	}
	remote, err := r.remote.ListTemplates(ctx)
	if err != nil {
		r.log.Warn("remote template listing failed", "error", err)
		return out
	}
	for _, t := range remote {
		if !slices.ContainsFunc(out, func(l *Template) bool { return l.ID == t.ID }) {
			out = append(out, t)
		}
	}
	return out
}
