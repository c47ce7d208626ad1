package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/muurk/multicontroller/internal/logging"
	"github.com/muurk/multicontroller/internal/params"
	"github.com/muurk/multicontroller/internal/rainmaker"
)

const (
	// DefaultInterval is the default time between scheduled refreshes
	DefaultInterval = 30 * time.Second

	// DefaultRefreshTimeout bounds one shared refresh cycle
	DefaultRefreshTimeout = time.Minute

	// refreshKey is the singleflight key shared by every refresh
	refreshKey = "refresh"

	// subscriberBuffer is the per-subscriber update queue length
	subscriberBuffer = 8
)

var (
	// ErrUpdateFailed marks a refresh cycle that did not replace the snapshot
	ErrUpdateFailed = errors.New("update failed")

	// ErrNotReady means setup could not reach the cloud and may be retried later
	ErrNotReady = errors.New("integration not ready")

	// ErrAuthFailed means setup was rejected because of credentials
	ErrAuthFailed = errors.New("authentication failed")
)

// Source is the remote API the coordinator polls. *rainmaker.API implements it.
type Source interface {
	EnsureConnected(ctx context.Context) error
	ListNodes(ctx context.Context) (*rainmaker.NodeList, error)
	SetParam(ctx context.Context, nodeID, name string, value any) error
}

// Options configures a Coordinator
type Options struct {
	// Interval between scheduled refreshes (default: 30s)
	Interval time.Duration

	// Service is the parameter namespace to read values from
	Service string

	// Timeout bounds each refresh cycle (default: 1m). A cycle runs
	// independently of the callers waiting on it.
	Timeout time.Duration
}

// Update is delivered to subscribers after every refresh cycle
type Update struct {
	Success bool
	Nodes   int
	Skipped int
	Err     error
	At      time.Time

	// Retryable is set on failures the next poll may recover from
	Retryable bool
}

// Coordinator owns the cached Snapshot and the refresh cycle that replaces it
type Coordinator struct {
	api      Source
	interval time.Duration
	service  string
	timeout  time.Duration

	snapshot atomic.Pointer[params.Snapshot]
	group    singleflight.Group

	stateMu     sync.RWMutex
	lastSuccess bool
	lastErr     error
	lastUpdate  time.Time
	lastSkipped []error

	subsMu  sync.Mutex
	subs    map[int]chan Update
	nextSub int

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a coordinator over api
func New(api Source, opts Options) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Service == "" {
		opts.Service = rainmaker.DefaultService
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRefreshTimeout
	}
	return &Coordinator{
		api:      api,
		interval: opts.Interval,
		service:  opts.Service,
		timeout:  opts.Timeout,
		subs:     make(map[int]chan Update),
	}
}

// API returns the remote API the coordinator polls
func (c *Coordinator) API() Source {
	return c.api
}

// Interval returns the scheduled refresh interval
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// Snapshot returns the last successfully built snapshot, or nil before the
// first successful refresh
func (c *Coordinator) Snapshot() *params.Snapshot {
	return c.snapshot.Load()
}

// LastUpdateSuccess reports whether the most recent cycle succeeded
func (c *Coordinator) LastUpdateSuccess() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastSuccess
}

// LastError returns the error of the most recent cycle, or nil
func (c *Coordinator) LastError() error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastErr
}

// LastUpdate returns when the most recent cycle finished
func (c *Coordinator) LastUpdate() time.Time {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.lastUpdate
}

// Skipped returns the per-node errors of the most recent cycle
func (c *Coordinator) Skipped() []error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return append([]error(nil), c.lastSkipped...)
}

// Refresh runs one cycle. Callers arriving while a cycle is in flight wait
// for it and share its result instead of starting a second fetch. The cycle
// keeps the values of ctx but not its cancellation: a caller whose ctx ends
// returns ctx.Err() while the cycle completes for everyone else.
func (c *Coordinator) Refresh(ctx context.Context) error {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		cycleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return nil, c.refresh(cycleCtx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestRefresh is the out-of-band refresh used after writes. Failures are
// logged and left for the next scheduled cycle.
func (c *Coordinator) RequestRefresh(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil {
		logging.Debug("Requested refresh failed", zap.Error(err))
	}
}

// FirstRefresh is the refresh run during setup. Unlike scheduled cycles its
// failure is returned as ErrAuthFailed or ErrNotReady.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	err := c.Refresh(ctx)
	if err == nil {
		return nil
	}
	if rainmaker.IsAuthError(err) {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrNotReady, err)
}

func (c *Coordinator) refresh(ctx context.Context) error {
	start := time.Now()

	if err := c.api.EnsureConnected(ctx); err != nil {
		return c.fail(start, nil, fmt.Errorf("reconnect failed: %w", err))
	}

	list, err := c.api.ListNodes(ctx)
	if err != nil {
		return c.fail(start, nil, fmt.Errorf("failed to fetch nodes: %w", err))
	}
	if list == nil || list.Nodes == nil {
		return c.fail(start, nil, rainmaker.NewFormatError("API response missing node_details", nil))
	}

	results := params.Normalize(list.Nodes, c.service)
	snap, skipped, err := params.Fold(results)
	for _, nerr := range skipped {
		logging.Warn("Failed to process node", zap.Error(nerr))
	}
	if err != nil {
		return c.fail(start, skipped, err)
	}

	c.snapshot.Store(snap)

	c.stateMu.Lock()
	c.lastSuccess = true
	c.lastErr = nil
	c.lastUpdate = time.Now()
	c.lastSkipped = skipped
	c.stateMu.Unlock()

	logging.LogRefresh(snap.Len(), len(skipped), time.Since(start), nil)
	c.notify(Update{Success: true, Nodes: snap.Len(), Skipped: len(skipped), At: time.Now()})
	return nil
}

func (c *Coordinator) fail(start time.Time, skipped []error, err error) error {
	err = fmt.Errorf("%w: %w", ErrUpdateFailed, err)

	c.stateMu.Lock()
	c.lastSuccess = false
	c.lastErr = err
	c.lastUpdate = time.Now()
	c.lastSkipped = skipped
	c.stateMu.Unlock()

	retryable := rainmaker.IsRetryable(err) || errors.Is(err, params.ErrEmptySnapshot)
	logging.LogRefresh(c.Snapshot().Len(), len(skipped), time.Since(start), err)
	if !retryable {
		logging.Warn("Refresh failure needs attention, polling continues",
			zap.String("reason", rainmaker.GetShortErrorMessage(err)))
	}
	c.notify(Update{
		Success:   false,
		Nodes:     c.Snapshot().Len(),
		Skipped:   len(skipped),
		Err:       err,
		At:        time.Now(),
		Retryable: retryable,
	})
	return err
}

// Subscribe returns a channel that receives an Update after every cycle and
// a function that cancels the subscription. Slow subscribers miss updates
// rather than blocking the refresh.
func (c *Coordinator) Subscribe() (<-chan Update, func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Update, subscriberBuffer)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
			close(ch)
		})
	}
}

func (c *Coordinator) notify(u Update) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Run refreshes on every tick until ctx is cancelled
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.Refresh(ctx)
		}
	}
}

// Start begins scheduled polling in the background
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stopChan = make(chan struct{})
	c.running = true
	c.wg.Add(2)

	go func() {
		defer c.wg.Done()
		c.Run(ctx)
	}()
	go func(stop chan struct{}) {
		defer c.wg.Done()
		<-stop
		cancel()
	}(c.stopChan)

	logging.Info("Coordinator polling started", zap.Duration("interval", c.interval))
}

// Stop ends scheduled polling and waits for the loop to exit
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	close(c.stopChan)
	c.running = false
	c.mu.Unlock()

	c.wg.Wait()
	logging.Info("Coordinator polling stopped")
}

// IsRunning reports whether scheduled polling is active
func (c *Coordinator) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
