package coordinator

import (
	"context"
	"sort"
	"sync"

	"rosariobus.dev/internal/metrics"
)

// Factory builds the coordinator for an agency on its first subscription.
type Factory func(agency string) *Coordinator

// NewFactory returns a Factory sharing one fetcher and one set of options.
func NewFactory(fetcher Fetcher, opts Options) Factory {
	return func(agency string) *Coordinator {
		return New(agency, fetcher, opts)
	}
}

// Registry owns the agency -> coordinator mapping. A coordinator is created on
// the first subscription for its agency and retired when its last
// subscription goes away. Subscribe and Unsubscribe for the same agency are
// serialized; different agencies never wait on each other's fetches.
type Registry struct {
	factory Factory
	metrics *metrics.Metrics

	mu           sync.Mutex
	coordinators map[string]*Coordinator
	locks        map[string]*agencyLock
}

// agencyLock is dropped from the registry once refs, the holders plus
// waiters, falls back to zero.
type agencyLock struct {
	mu   sync.Mutex
	refs int
}

func NewRegistry(factory Factory, m *metrics.Metrics) *Registry {
	return &Registry{
		factory:      factory,
		metrics:      m,
		coordinators: make(map[string]*Coordinator),
		locks:        make(map[string]*agencyLock),
	}
}

func (r *Registry) lockAgency(agency string) *agencyLock {
	r.mu.Lock()
	lock, ok := r.locks[agency]
	if !ok {
		lock = &agencyLock{}
		r.locks[agency] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (r *Registry) unlockAgency(agency string, lock *agencyLock) {
	lock.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	lock.refs--
	if lock.refs == 0 && r.locks[agency] == lock {
		delete(r.locks, agency)
	}
}

// Subscribe adds (stop, route) to the agency's coordinator, creating it if
// needed, and returns it once the first refresh for a new key has run.
func (r *Registry) Subscribe(ctx context.Context, agency, stop, route string) (*Coordinator, error) {
	lock := r.lockAgency(agency)
	defer r.unlockAgency(agency, lock)

	r.mu.Lock()
	c, ok := r.coordinators[agency]
	if !ok {
		c = r.factory(agency)
		r.coordinators[agency] = c
	}
	r.mu.Unlock()

	if err := c.AddStopRoute(ctx, stop, route); err != nil {
		if !ok {
			r.retire(agency, c)
		}
		return nil, err
	}

	r.reportActive()
	return c, nil
}

// Unsubscribe drops one reference to (stop, route) and retires the agency's
// coordinator once it has no routes left.
func (r *Registry) Unsubscribe(agency, stop, route string) {
	lock := r.lockAgency(agency)
	defer r.unlockAgency(agency, lock)

	c, ok := r.Get(agency)
	if !ok {
		return
	}
	c.RemoveStopRoute(stop, route)
	if !c.HasRoutes() {
		r.retire(agency, c)
		c.Shutdown()
	}
}

func (r *Registry) retire(agency string, c *Coordinator) {
	r.mu.Lock()
	if r.coordinators[agency] == c {
		delete(r.coordinators, agency)
	}
	r.mu.Unlock()
	r.reportActive()
}

func (r *Registry) reportActive() {
	r.mu.Lock()
	n := len(r.coordinators)
	r.mu.Unlock()
	r.metrics.SetActiveCoordinators(n)
}

func (r *Registry) Get(agency string) (*Coordinator, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coordinators[agency]
	return c, ok
}

// Agencies lists agencies with a live coordinator, sorted.
func (r *Registry) Agencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	agencies := make([]string, 0, len(r.coordinators))
	for agency := range r.coordinators {
		agencies = append(agencies, agency)
	}
	sort.Strings(agencies)
	return agencies
}

// Coordinators returns the live coordinators sorted by agency.
func (r *Registry) Coordinators() []*Coordinator {
	agencies := r.Agencies()
	out := make([]*Coordinator, 0, len(agencies))
	for _, agency := range agencies {
		if c, ok := r.Get(agency); ok {
			out = append(out, c)
		}
	}
	return out
}

// Shutdown stops every coordinator and empties the registry.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	coordinators := r.coordinators
	r.coordinators = make(map[string]*Coordinator)
	r.mu.Unlock()

	for _, c := range coordinators {
		c.Shutdown()
	}
	r.metrics.SetActiveCoordinators(0)
}
