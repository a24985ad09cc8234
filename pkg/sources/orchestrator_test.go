package sources

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

type stubSpout struct {
	loadFn  func(ctx context.Context, p params.Values) error
	title   string
	htmlURL string
	items   []spouts.Item

	loaded bool
}

func (s *stubSpout) Load(ctx context.Context, p params.Values) error {
	if s.loadFn != nil {
		if err := s.loadFn(ctx, p); err != nil {
			return err
		}
	}
	s.loaded = true
	return nil
}

func (s *stubSpout) Items() []spouts.Item {
	if !s.loaded {
		return []spouts.Item{}
	}
	return s.items
}

func (s *stubSpout) Title() string   { return s.title }
func (s *stubSpout) HTMLURL() string { return s.htmlURL }
func (s *stubSpout) Destroy()        { s.items = []spouts.Item{} }

type fakeStore struct {
	mu        sync.Mutex
	records   map[string]*Source
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*Source)}
}

func (s *fakeStore) List(context.Context) ([]*Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Source, 0, len(s.records))
	for _, src := range s.records {
		out = append(out, src.Clone())
	}
	return out, nil
}

func (s *fakeStore) Upsert(_ context.Context, src *Source) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[src.ID] = src.Clone()
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *fakeStore) get(id string) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

type fakeSink struct {
	mu       sync.Mutex
	stored   map[string]int
	storeErr error
	onStore  func(sourceID string)
}

func newFakeSink() *fakeSink {
	return &fakeSink{stored: make(map[string]int)}
}

func (s *fakeSink) Store(_ context.Context, sourceID string, items []spouts.Item) error {
	if s.onStore != nil {
		s.onStore(sourceID)
	}
	if s.storeErr != nil {
		return s.storeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored[sourceID] += len(items)
	return nil
}

func testConfig() *Config {
	return &Config{
		MaxConcurrentFetches: 4,
		FetchTimeout:         time.Second,
		ReloadInterval:       time.Hour,
	}
}

func newTestOrchestrator(t *testing.T, store Store, sink ItemSink, factory spouts.Factory) *Orchestrator {
	t.Helper()
	logger := zerolog.Nop()

	registry := spouts.NewRegistry(&logger)
	desc := spouts.Descriptor{
		ID:   "test/stub",
		Name: "Stub",
		Params: []params.Param{
			{Name: "key", Required: true, Validation: []params.Validator{params.ValidatorNonEmpty}},
		},
	}
	if err := registry.Register(desc, factory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	return NewOrchestrator(&logger, registry, store, sink, nil, testConfig())
}

func TestReloadIsolatesFailures(t *testing.T) {
	store := newFakeStore()
	sink := newFakeSink()

	var calls atomic.Int32
	orch := newTestOrchestrator(t, store, sink, func() spouts.Spout {
		n := calls.Add(1)
		if n == 2 {
			return &stubSpout{loadFn: func(context.Context, params.Values) error {
				return errors.New("remote exploded")
			}}
		}
		return &stubSpout{
			title:   "Stub Source",
			htmlURL: "https://example.com/",
			items:   []spouts.Item{{ID: "a"}, {ID: "b"}},
		}
	})

	srcs := []*Source{
		{ID: "s1", Spout: "test/stub", Params: map[string]string{"key": "v"}},
		{ID: "s2", Spout: "test/stub", Params: map[string]string{"key": "v"}},
		{ID: "s3", Spout: "test/stub", Params: map[string]string{"key": "v"}},
	}

	// Submission order is deterministic with one worker per task slot,
	// but instance order is not; count outcomes instead of positions.
	updated, err := orch.Reload(context.Background(), srcs)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	var failed, succeeded int
	for _, src := range updated {
		if src.LastError != "" {
			failed++
			if src.LastFetch != nil {
				t.Errorf("failed source %s has LastFetch set", src.ID)
			}
			continue
		}
		succeeded++
		if src.Title != "Stub Source" {
			t.Errorf("source %s Title = %q, want %q", src.ID, src.Title, "Stub Source")
		}
		if src.LastFetch == nil {
			t.Errorf("source %s LastFetch = nil after success", src.ID)
		}
	}

	if failed != 1 || succeeded != 2 {
		t.Errorf("got %d failed, %d succeeded; want 1 failed, 2 succeeded", failed, succeeded)
	}
}

func TestReloadRecordsParameterAndTypeErrors(t *testing.T) {
	store := newFakeStore()
	orch := newTestOrchestrator(t, store, newFakeSink(), func() spouts.Spout {
		return &stubSpout{}
	})

	srcs := []*Source{
		{ID: "bad-type", Spout: "nope/nope", Params: map[string]string{}},
		{ID: "bad-params", Spout: "test/stub", Params: map[string]string{}},
	}

	updated, err := orch.Reload(context.Background(), srcs)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if !strings.Contains(updated[0].LastError, "unknown spout type") {
		t.Errorf("unknown type LastError = %q", updated[0].LastError)
	}
	if !strings.Contains(updated[1].LastError, "missing required parameter") {
		t.Errorf("missing param LastError = %q", updated[1].LastError)
	}

	// Failures are persisted so they survive a restart.
	if got := store.get("bad-params"); got == nil || got.LastError == "" {
		t.Errorf("store record for bad-params = %+v, want persisted LastError", got)
	}
}

func TestReloadKeepsStaleMetadataOnFailure(t *testing.T) {
	store := newFakeStore()
	orch := newTestOrchestrator(t, store, newFakeSink(), func() spouts.Spout {
		return &stubSpout{loadFn: func(context.Context, params.Values) error {
			return errors.New("down for maintenance")
		}}
	})

	src := &Source{
		ID:      "s1",
		Spout:   "test/stub",
		Params:  map[string]string{"key": "v"},
		Title:   "Known Title",
		HTMLURL: "https://example.com/",
	}

	updated, err := orch.Reload(context.Background(), []*Source{src})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if updated[0].Title != "Known Title" || updated[0].HTMLURL != "https://example.com/" {
		t.Errorf("failure clobbered metadata: %+v", updated[0])
	}
	if updated[0].LastError == "" {
		t.Errorf("LastError empty after failed fetch")
	}
}

func TestReloadFetchTimeout(t *testing.T) {
	store := newFakeStore()
	orch := newTestOrchestrator(t, store, newFakeSink(), func() spouts.Spout {
		return &stubSpout{loadFn: func(ctx context.Context, _ params.Values) error {
			<-ctx.Done()
			return ctx.Err()
		}}
	})
	orch.config.FetchTimeout = 20 * time.Millisecond

	src := &Source{ID: "slow", Spout: "test/stub", Params: map[string]string{"key": "v"}}

	updated, err := orch.Reload(context.Background(), []*Source{src})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if updated[0].LastError == "" {
		t.Errorf("timed-out fetch not recorded as source failure")
	}
}

func TestReloadSupersedes(t *testing.T) {
	store := newFakeStore()

	firstStarted := make(chan struct{})
	release := make(chan struct{})

	var calls atomic.Int32
	orch := newTestOrchestrator(t, store, newFakeSink(), func() spouts.Spout {
		if calls.Add(1) == 1 {
			return &stubSpout{
				title: "stale",
				loadFn: func(ctx context.Context, _ params.Values) error {
					close(firstStarted)
					select {
					case <-release:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				},
			}
		}
		return &stubSpout{title: "fresh"}
	})

	src := &Source{ID: "s1", Spout: "test/stub", Params: map[string]string{"key": "v"}}

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = orch.Reload(context.Background(), []*Source{src.Clone()})
	}()

	<-firstStarted

	updated, err := orch.Reload(context.Background(), []*Source{src.Clone()})
	if err != nil {
		t.Fatalf("second Reload() error = %v", err)
	}
	close(release)
	wg.Wait()

	if !errors.Is(firstErr, context.Canceled) {
		t.Errorf("superseded Reload() error = %v, want context.Canceled", firstErr)
	}
	if updated[0].Title != "fresh" {
		t.Errorf("second Reload() Title = %q, want fresh", updated[0].Title)
	}
	if got := store.get("s1"); got == nil || got.Title != "fresh" {
		t.Errorf("store record = %+v, want title from the superseding reload", got)
	}
}

// A fetch that finishes loading just before a newer reload cancels it
// must not write its stale metadata over the record the superseding
// reload has committed.
func TestReloadSupersededFetchDoesNotPersist(t *testing.T) {
	store := newFakeStore()

	inSink := make(chan struct{})
	release := make(chan struct{})

	sink := newFakeSink()
	var sinkCalls atomic.Int32
	sink.onStore = func(string) {
		if sinkCalls.Add(1) == 1 {
			close(inSink)
			<-release
		}
	}

	var calls atomic.Int32
	orch := newTestOrchestrator(t, store, sink, func() spouts.Spout {
		if calls.Add(1) == 1 {
			return &stubSpout{title: "stale", items: []spouts.Item{{ID: "a"}}}
		}
		return &stubSpout{title: "fresh", items: []spouts.Item{{ID: "a"}}}
	})

	src := &Source{ID: "s1", Spout: "test/stub", Params: map[string]string{"key": "v"}}

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = orch.Reload(context.Background(), []*Source{src.Clone()})
	}()

	// The first fetch has loaded successfully and is now persisting.
	<-inSink

	updated, err := orch.Reload(context.Background(), []*Source{src.Clone()})
	if err != nil {
		t.Fatalf("second Reload() error = %v", err)
	}
	if updated[0].Title != "fresh" {
		t.Fatalf("second Reload() Title = %q, want fresh", updated[0].Title)
	}

	close(release)
	wg.Wait()

	if !errors.Is(firstErr, context.Canceled) {
		t.Errorf("superseded Reload() error = %v, want context.Canceled", firstErr)
	}
	if got := store.get("s1"); got == nil || got.Title != "fresh" {
		t.Errorf("store record = %+v, want title from the superseding reload", got)
	}
}

func TestReloadAuthExpired(t *testing.T) {
	store := newFakeStore()
	sink := newFakeSink()
	sink.storeErr = ErrAuthExpired

	orch := newTestOrchestrator(t, store, sink, func() spouts.Spout {
		return &stubSpout{items: []spouts.Item{{ID: "a"}}}
	})

	srcs := []*Source{
		{ID: "s1", Spout: "test/stub", Params: map[string]string{"key": "v"}},
		{ID: "s2", Spout: "test/stub", Params: map[string]string{"key": "v"}},
	}

	_, err := orch.Reload(context.Background(), srcs)
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("Reload() error = %v, want ErrAuthExpired", err)
	}
}

func TestAddDraft(t *testing.T) {
	store := newFakeStore()
	fetched := atomic.Int32{}

	orch := newTestOrchestrator(t, store, newFakeSink(), func() spouts.Spout {
		fetched.Add(1)
		return &stubSpout{}
	})

	draft := orch.AddDraft("test/stub", map[string]string{"key": "preset"})
	if !draft.IsDraft() {
		t.Errorf("AddDraft() id = %q, want draft prefix", draft.ID)
	}
	if draft.Params["key"] != "preset" {
		t.Errorf("draft params = %v, want preset values", draft.Params)
	}
	if store.get(draft.ID) != nil {
		t.Errorf("AddDraft() persisted the draft, want client-side only")
	}

	// Drafts pass through a reload untouched.
	updated, err := orch.Reload(context.Background(), []*Source{draft})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if updated[0] != draft {
		t.Errorf("Reload() replaced the draft record")
	}
	if fetched.Load() != 0 {
		t.Errorf("Reload() fetched a draft source")
	}
}
