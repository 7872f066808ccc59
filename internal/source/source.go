// Package source provides the common data-source plumbing: identity,
// dependency lists, parameters, subscriber fan-out and status reporting.
package source

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/junsooki/deskhook/internal/snapshot"
)

// Status is a coarse lifecycle transition reported to observers.
type Status string

const (
	StatusStarted Status = "started"
	StatusError   Status = "error"
)

// StatusFunc receives lifecycle transitions for the named source.
type StatusFunc func(name string, status Status)

// ProgressFunc is reserved for per-cycle progress reporting. Sources accept
// it but do not call it yet.
type ProgressFunc func(name string, done, total int)

// Subscriber receives every snapshot a source emits.
type Subscriber interface {
	Update(ctx context.Context, snap snapshot.Snapshot) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, snap snapshot.Snapshot) error

func (f SubscriberFunc) Update(ctx context.Context, snap snapshot.Snapshot) error {
	return f(ctx, snap)
}

// Options configure a Base.
type Options struct {
	Name         string
	Session      string
	Dependencies []string
	Subscribers  []Subscriber
	Params       Params
	Status       StatusFunc
	Progress     ProgressFunc
}

// Base holds state shared by all data sources.
type Base struct {
	name         string
	session      string
	dependencies []string
	params       Params
	status       StatusFunc
	progress     ProgressFunc

	mu          sync.Mutex
	subscribers []Subscriber
}

// NewBase copies opts into a new Base. Containers are never shared with the
// caller or with other instances.
func NewBase(opts Options) *Base {
	session := opts.Session
	if session == "" {
		session = uuid.NewString()
	}
	deps := make([]string, 0, len(opts.Dependencies))
	deps = append(deps, opts.Dependencies...)
	subs := make([]Subscriber, 0, len(opts.Subscribers))
	for _, s := range opts.Subscribers {
		if s != nil {
			subs = append(subs, s)
		}
	}
	params := make(Params, len(opts.Params))
	maps.Copy(params, opts.Params)

	return &Base{
		name:         opts.Name,
		session:      session,
		dependencies: deps,
		params:       params,
		status:       opts.Status,
		progress:     opts.Progress,
		subscribers:  subs,
	}
}

func (b *Base) Name() string    { return b.name }
func (b *Base) Session() string { return b.session }

// Dependencies returns a copy of the dependency list.
func (b *Base) Dependencies() []string {
	return slices.Clone(b.dependencies)
}

// Params returns a copy of the configured parameters.
func (b *Base) Params() Params {
	return maps.Clone(b.params)
}

// Subscribe registers s for future updates.
func (b *Base) Subscribe(s Subscriber) {
	if s == nil {
		return
	}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, s)
	b.mu.Unlock()
}

// Unsubscribe removes s. It reports whether s was registered. s must be a
// comparable value such as a pointer; function subscribers cannot be removed.
func (b *Base) Unsubscribe(s Subscriber) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, existing := range b.subscribers {
		if existing == s {
			b.subscribers = slices.Delete(b.subscribers, i, i+1)
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of registered subscribers.
func (b *Base) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// ReportStatus forwards a lifecycle transition if a status observer is set.
func (b *Base) ReportStatus(status Status) {
	if b.status != nil {
		b.status(b.name, status)
	}
}

// HasProgress reports whether a progress observer was configured.
func (b *Base) HasProgress() bool {
	return b.progress != nil
}

// Update delivers snap to every subscriber in registration order. Each
// subscriber is called even if an earlier one fails; the failures are joined.
func (b *Base) Update(ctx context.Context, snap snapshot.Snapshot) error {
	b.mu.Lock()
	subs := slices.Clone(b.subscribers)
	b.mu.Unlock()

	var errs []error
	for i, s := range subs {
		if err := s.Update(ctx, snap); err != nil {
			errs = append(errs, fmt.Errorf("subscriber %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
