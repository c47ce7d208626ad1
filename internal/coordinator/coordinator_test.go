package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/multicontroller/internal/params"
	"github.com/muurk/multicontroller/internal/rainmaker"
)

// fakeSource is an in-memory Source
type fakeSource struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	listErr    error
	list       *rainmaker.NodeList
	connects   int
	lists      int

	entered chan struct{}
	release chan struct{}

	inFlight    int32
	maxInFlight int32
}

func (f *fakeSource) EnsureConnected(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connected {
		return nil
	}
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeSource) ListNodes(ctx context.Context) (*rainmaker.NodeList, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, n) {
			break
		}
	}

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, rainmaker.NewConnectionError("node list request failed", ctx.Err())
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.list, nil
}

func (f *fakeSource) SetParam(ctx context.Context, nodeID, name string, value any) error {
	return nil
}

func (f *fakeSource) setList(list *rainmaker.NodeList, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.list = list
	f.listErr = err
}

func node(id string, value int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"id":%q,"config":{"devices":[{"params":[{"name":"Name","data_type":"string"},{"name":"p","data_type":"int","properties":["read","write"]}]}]},"params":{"multicontrol":{"Name":"Node %s","p":%d}}}`,
		id, id, value))
}

func listOf(nodes ...json.RawMessage) *rainmaker.NodeList {
	return &rainmaker.NodeList{Nodes: nodes}
}

func TestCoordinator_RefreshStoresSnapshot(t *testing.T) {
	src := &fakeSource{connected: true, list: listOf(node("n1", 1), node("n2", 2))}
	c := New(src, Options{})

	if c.Snapshot() != nil {
		t.Fatal("Snapshot() should be nil before first refresh")
	}
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	snap := c.Snapshot()
	if snap.Len() != 2 {
		t.Errorf("Len() = %d, want 2", snap.Len())
	}
	if v, _ := snap.Param("n2", "p").Int(); v != 2 {
		t.Errorf("n2.p = %d, want 2", v)
	}
	if !c.LastUpdateSuccess() || c.LastError() != nil {
		t.Errorf("LastUpdateSuccess() = %v, LastError() = %v", c.LastUpdateSuccess(), c.LastError())
	}
}

func TestCoordinator_FailureKeepsPreviousSnapshot(t *testing.T) {
	src := &fakeSource{connected: true, list: listOf(node("n1", 1))}
	c := New(src, Options{})
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before := c.Snapshot()

	src.setList(nil, rainmaker.NewConnectionError("down", nil))
	err := c.Refresh(context.Background())
	if !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("Refresh() error = %v, want ErrUpdateFailed", err)
	}
	if !rainmaker.IsConnectionError(err) {
		t.Errorf("Refresh() error should wrap the connection error, got %v", err)
	}
	if c.Snapshot() != before {
		t.Error("snapshot was replaced after a failed cycle")
	}
	if c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true after failure")
	}
}

func TestCoordinator_AllNodesMalformed(t *testing.T) {
	src := &fakeSource{connected: true, list: listOf(node("n1", 1))}
	c := New(src, Options{})
	_ = c.Refresh(context.Background())
	before := c.Snapshot()

	src.setList(listOf(json.RawMessage(`{"id":"n1","params":{},"config":{}}`)), nil)
	err := c.Refresh(context.Background())
	if !errors.Is(err, params.ErrEmptySnapshot) {
		t.Fatalf("Refresh() error = %v, want ErrEmptySnapshot", err)
	}
	if c.Snapshot() != before {
		t.Error("an empty result must not replace the snapshot")
	}
	if len(c.Skipped()) != 1 {
		t.Errorf("len(Skipped()) = %d, want 1", len(c.Skipped()))
	}
}

func TestCoordinator_PartialFailure(t *testing.T) {
	src := &fakeSource{connected: true, list: listOf(node("n1", 1), json.RawMessage(`"bad"`), node("n3", 3))}
	c := New(src, Options{})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if c.Snapshot().Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Snapshot().Len())
	}
	if len(c.Skipped()) != 1 {
		t.Errorf("len(Skipped()) = %d, want 1", len(c.Skipped()))
	}
}

func TestCoordinator_MissingNodeList(t *testing.T) {
	src := &fakeSource{connected: true, list: &rainmaker.NodeList{}}
	c := New(src, Options{})

	if err := c.Refresh(context.Background()); !rainmaker.IsFormatError(err) {
		t.Errorf("Refresh() error = %v, want format error", err)
	}
}

func TestCoordinator_Reconnects(t *testing.T) {
	src := &fakeSource{list: listOf(node("n1", 1))}
	c := New(src, Options{})

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if src.connects != 1 {
		t.Errorf("connects = %d, want 1", src.connects)
	}
}

func TestCoordinator_ReconnectFailureAbortsCycle(t *testing.T) {
	src := &fakeSource{connectErr: rainmaker.NewConnectionError("down", nil), list: listOf(node("n1", 1))}
	c := New(src, Options{})

	if err := c.Refresh(context.Background()); !errors.Is(err, ErrUpdateFailed) {
		t.Fatalf("Refresh() error = %v, want ErrUpdateFailed", err)
	}
	if src.lists != 0 {
		t.Errorf("lists = %d, want 0 after failed reconnect", src.lists)
	}
}

func TestCoordinator_FirstRefresh(t *testing.T) {
	tests := []struct {
		name string
		src  *fakeSource
		want error
	}{
		{"ok", &fakeSource{connected: true, list: listOf(node("n1", 1))}, nil},
		{"auth", &fakeSource{connectErr: rainmaker.NewAuthError("bad", 401, nil)}, ErrAuthFailed},
		{"connection", &fakeSource{connectErr: rainmaker.NewConnectionError("down", nil)}, ErrNotReady},
		{"empty", &fakeSource{connected: true, list: listOf()}, ErrNotReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.src, Options{}).FirstRefresh(context.Background())
			if tt.want == nil {
				if err != nil {
					t.Errorf("FirstRefresh() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("FirstRefresh() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCoordinator_ConcurrentRefreshesDoNotOverlap(t *testing.T) {
	src := &fakeSource{
		connected: true,
		list:      listOf(node("n1", 1)),
		entered:   make(chan struct{}, 16),
		release:   make(chan struct{}),
	}
	c := New(src, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- c.Refresh(context.Background())
	}()
	<-src.entered

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Refresh(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Refresh() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&src.maxInFlight); got != 1 {
		t.Errorf("max concurrent fetches = %d, want 1", got)
	}
	if src.lists >= 5 {
		t.Errorf("lists = %d, concurrent callers should share a fetch", src.lists)
	}
}

func TestCoordinator_CancelledCallerDoesNotFailSharedCycle(t *testing.T) {
	src := &fakeSource{
		connected: true,
		list:      listOf(node("n1", 1)),
		entered:   make(chan struct{}, 4),
		release:   make(chan struct{}),
	}
	c := New(src, Options{})

	reqCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.Refresh(reqCtx) }()
	<-src.entered

	scheduled := make(chan error, 1)
	go func() { scheduled <- c.Refresh(context.Background()) }()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller error = %v, want context.Canceled", err)
	}

	close(src.release)
	if err := <-scheduled; err != nil {
		t.Fatalf("scheduled caller error = %v, want nil", err)
	}
	if !c.LastUpdateSuccess() {
		t.Errorf("LastUpdateSuccess() = false, LastError() = %v", c.LastError())
	}
	if c.Snapshot().Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Snapshot().Len())
	}
}

func TestCoordinator_CycleTimeout(t *testing.T) {
	src := &fakeSource{
		connected: true,
		list:      listOf(node("n1", 1)),
		release:   make(chan struct{}),
	}
	defer close(src.release)
	c := New(src, Options{Timeout: 20 * time.Millisecond})

	err := c.Refresh(context.Background())
	if !errors.Is(err, ErrUpdateFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Refresh() error = %v, want deadline exceeded", err)
	}
	if c.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true after a timed out cycle")
	}
}

func TestCoordinator_FailureRetryable(t *testing.T) {
	tests := []struct {
		name    string
		listErr error
		want    bool
	}{
		{"connection", rainmaker.NewConnectionError("down", nil), true},
		{"auth", rainmaker.NewAuthError("rejected", 401, nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{connected: true, listErr: tt.listErr}
			c := New(src, Options{})
			updates, cancel := c.Subscribe()
			defer cancel()

			_ = c.Refresh(context.Background())
			u := <-updates
			if u.Success {
				t.Fatal("Success = true, want false")
			}
			if u.Retryable != tt.want {
				t.Errorf("Retryable = %v, want %v", u.Retryable, tt.want)
			}
		})
	}
}

func TestCoordinator_Subscribe(t *testing.T) {
	src := &fakeSource{connected: true, list: listOf(node("n1", 1))}
	c := New(src, Options{})

	updates, cancel := c.Subscribe()
	defer cancel()

	_ = c.Refresh(context.Background())
	src.setList(nil, errors.New("boom"))
	_ = c.Refresh(context.Background())

	first := <-updates
	if !first.Success || first.Nodes != 1 {
		t.Errorf("first update = %+v", first)
	}
	second := <-updates
	if second.Success || second.Err == nil || second.Nodes != 1 {
		t.Errorf("second update = %+v", second)
	}

	cancel()
	cancel()
	if _, ok := <-updates; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestCoordinator_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{connected: true, list: listOf(node("n1", 1))}
	c := New(src, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for c.Snapshot() == nil {
		select {
		case <-deadline:
			t.Fatal("Run() never refreshed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestCoordinator_StartStop(t *testing.T) {
	src := &fakeSource{connected: true, list: listOf(node("n1", 1))}
	c := New(src, Options{Interval: time.Hour})

	c.Start()
	c.Start()
	if !c.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	c.Stop()
	c.Stop()
	if c.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(&fakeSource{}, Options{})
	if c.Interval() != DefaultInterval {
		t.Errorf("Interval() = %v, want %v", c.Interval(), DefaultInterval)
	}
	if c.service != rainmaker.DefaultService {
		t.Errorf("service = %v, want %v", c.service, rainmaker.DefaultService)
	}
}
