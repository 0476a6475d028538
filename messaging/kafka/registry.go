package kafka

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TopicRegistry tracks the topics this process has already provisioned.
// Names are only ever added. State is process-local and is not persisted.
type TopicRegistry struct {
	mu     sync.RWMutex
	known  map[string]struct{}
	flight singleflight.Group
}

func NewTopicRegistry() *TopicRegistry {
	return &TopicRegistry{known: make(map[string]struct{})}
}

// IsKnown reports whether name was marked as provisioned.
func (r *TopicRegistry) IsKnown(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[name]
	return ok
}

// MarkKnown records name. Marking a known name is a no-op.
func (r *TopicRegistry) MarkKnown(name string) {
	r.mu.Lock()
	r.known[name] = struct{}{}
	r.mu.Unlock()
}

// Known returns a sorted snapshot of the provisioned names.
func (r *TopicRegistry) Known() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.known))
	for n := range r.known {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Ensure runs provision for name unless it is already known, and marks it known on success.
// Concurrent callers for the same name join a single in-flight provision and share its
// result, so at most one creation request per name is outstanding.
//
// The flight is detached from any caller's cancellation; a caller whose ctx ends stops
// waiting and gets ctx.Err(), while the flight runs on for the callers still waiting.
// provision must bound its own duration, as the AdminClient implementations do.
func (r *TopicRegistry) Ensure(ctx context.Context, name string, provision func(context.Context) error) error {
	if r.IsKnown(name) {
		return nil
	}
	flightCtx := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(name, func() (interface{}, error) {
		// a flight that finished between IsKnown and DoChan has already marked the name
		if r.IsKnown(name) {
			return nil, nil
		}
		if err := provision(flightCtx); err != nil {
			return nil, err
		}
		r.MarkKnown(name)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}
