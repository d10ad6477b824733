// Package coordinator polls predictions for every route/stop subscribed in one
// agency with a single shared request per interval, caches the latest result
// and notifies listeners after each refresh.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"rosariobus.dev/internal/clock"
	"rosariobus.dev/internal/logging"
	"rosariobus.dev/internal/metrics"
	"rosariobus.dev/internal/predictions"
)

const (
	DefaultInterval = time.Minute
	Attribution     = "Data provided by comollego.rosario.gob.ar"
)

// Fetcher is the upstream the coordinator polls. *predictions.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, agency string, keys []predictions.RouteStop) (map[predictions.RouteStop]*predictions.Record, error)
}

// Options tunes a Coordinator. Zero values fall back to the defaults.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Clock    clock.Clock
}

type listener struct {
	id uint64
	fn func()
}

// Coordinator is Idle while it has no subscriptions and Active, with a ticker
// goroutine running, while it has at least one.
type Coordinator struct {
	agency   string
	fetcher  Fetcher
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    clock.Clock

	// refreshMu keeps a single fetch in flight.
	refreshMu sync.Mutex

	// mu guards everything below.
	mu            sync.Mutex
	subscriptions map[predictions.RouteStop]int
	data          map[predictions.RouteStop]*predictions.Record
	lastErr       error
	lastUpdate    time.Time
	listeners     []listener
	nextListener  uint64
	stop          chan struct{}

	wg sync.WaitGroup
}

func New(agency string, fetcher Fetcher, opts Options) *Coordinator {
	c := &Coordinator{
		agency:        agency,
		fetcher:       fetcher,
		interval:      opts.Interval,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		clock:         opts.Clock,
		subscriptions: make(map[predictions.RouteStop]int),
		data:          make(map[predictions.RouteStop]*predictions.Record),
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = clock.RealClock{}
	}
	c.logger = c.logger.With(slog.String("component", "coordinator"), slog.String("agency", agency))
	return c
}

func (c *Coordinator) Agency() string {
	return c.agency
}

// Attribution names the data source. It never changes.
func (c *Coordinator) Attribution() string {
	return Attribution
}

// AddStopRoute subscribes one reference to (stop, route). The first reference
// to a key triggers an immediate refresh before returning, and the first key
// overall starts the periodic ticker, so a new reader never sees an empty
// cache that a fetch could have filled.
func (c *Coordinator) AddStopRoute(ctx context.Context, stop, route string) error {
	key := predictions.NewRouteStop(route, stop)
	if err := key.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.subscriptions[key]++
	isNewKey := c.subscriptions[key] == 1
	activated := false
	if c.stop == nil {
		c.stop = make(chan struct{})
		activated = true
		c.wg.Add(1)
		go c.run(c.stop)
	}
	count := len(c.subscriptions)
	c.mu.Unlock()

	c.metrics.SetSubscriptions(c.agency, count)
	if activated {
		logging.LogOperation(c.logger, "coordinator_activated", slog.Duration("interval", c.interval))
	}
	if isNewKey {
		_ = c.Refresh(ctx)
	}
	return nil
}

// RemoveStopRoute drops one reference. The last reference removes the key and
// its cached record; an empty subscription set stops the ticker.
func (c *Coordinator) RemoveStopRoute(stop, route string) {
	key := predictions.NewRouteStop(route, stop)

	c.mu.Lock()
	refs, ok := c.subscriptions[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	if refs <= 1 {
		delete(c.subscriptions, key)
		delete(c.data, key)
	} else {
		c.subscriptions[key] = refs - 1
	}
	count := len(c.subscriptions)
	var stopCh chan struct{}
	if count == 0 && c.stop != nil {
		stopCh = c.stop
		c.stop = nil
	}
	c.mu.Unlock()

	c.metrics.SetSubscriptions(c.agency, count)
	if stopCh != nil {
		close(stopCh)
		logging.LogOperation(c.logger, "coordinator_idle")
	}
}

func (c *Coordinator) HasRoutes() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions) > 0
}

// GetPredictionData returns the cached record for (stop, route), or nil.
func (c *Coordinator) GetPredictionData(stop, route string) *predictions.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[predictions.NewRouteStop(route, stop)]
}

// LastError is the error of the most recent refresh, nil after a success.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastUpdate is when the cache was last replaced. Zero until the first success.
func (c *Coordinator) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdate
}

// AddListener registers fn to run after every refresh and returns a func that
// unregisters it. Listeners run outside the coordinator's lock but must not
// call Shutdown.
func (c *Coordinator) AddListener(fn func()) (remove func()) {
	c.mu.Lock()
	c.nextListener++
	id := c.nextListener
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Refresh fetches every subscribed key in one request. On success the cache is
// replaced wholesale; on failure it is left alone and the error is recorded.
// Listeners are notified once either way.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	keys := c.subscribedKeys()
	if len(keys) == 0 {
		return nil
	}

	ctx = logging.WithLogger(ctx, c.logger)
	start := time.Now()
	records, err := c.fetcher.Fetch(ctx, c.agency, keys)
	elapsed := time.Since(start)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err
	} else {
		// A key removed while the request was in flight must not come back.
		data := make(map[predictions.RouteStop]*predictions.Record, len(records))
		for key, record := range records {
			if _, ok := c.subscriptions[key]; ok {
				data[key] = record
			}
		}
		c.data = data
		c.lastErr = nil
		c.lastUpdate = c.clock.Now()
	}
	notify := make([]func(), 0, len(c.listeners))
	for _, l := range c.listeners {
		notify = append(notify, l.fn)
	}
	c.mu.Unlock()

	c.metrics.ObserveFetch(c.agency, fetchResult(err), elapsed)
	if err != nil {
		logging.LogError(c.logger, "Error fetching predictions", err,
			slog.Int("route_stops", len(keys)))
	} else {
		c.logger.Debug("predictions refreshed",
			slog.Int("route_stops", len(keys)),
			slog.Int("records", len(records)),
			slog.Duration("elapsed", elapsed))
	}

	for _, fn := range notify {
		fn()
	}
	return err
}

// Shutdown stops the ticker and waits for it to exit. Safe to call repeatedly.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) run(stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.Refresh(context.Background())
		case <-stop:
			return
		}
	}
}

func (c *Coordinator) subscribedKeys() []predictions.RouteStop {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]predictions.RouteStop, 0, len(c.subscriptions))
	for key := range c.subscriptions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

func fetchResult(err error) string {
	if err == nil {
		return "success"
	}
	var fetchErr *predictions.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind.String()
	}
	return "error"
}

// Snapshot is a point-in-time copy of a coordinator's state.
type Snapshot struct {
	Agency      string                         `json:"agency"`
	Attribution string                         `json:"attribution"`
	RouteStops  []string                       `json:"routeStops"`
	LastUpdate  time.Time                      `json:"lastUpdate"`
	LastError   string                         `json:"lastError,omitempty"`
	Records     map[string]*predictions.Record `json:"records"`
}

func (c *Coordinator) Snapshot() Snapshot {
	keys := c.subscribedKeys()

	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Agency:      c.agency,
		Attribution: Attribution,
		RouteStops:  make([]string, 0, len(keys)),
		LastUpdate:  c.lastUpdate,
		Records:     make(map[string]*predictions.Record, len(c.data)),
	}
	for _, key := range keys {
		snap.RouteStops = append(snap.RouteStops, key.String())
	}
	for key, record := range c.data {
		snap.Records[key.String()] = record
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}
