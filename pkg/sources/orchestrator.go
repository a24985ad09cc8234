package sources

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts"
	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

type Config struct {
	MaxConcurrentFetches int           `env:"MAX_CONCURRENT_FETCHES,default=8" validate:"min=1"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT,default=30s"`
	ReloadInterval       time.Duration `env:"RELOAD_INTERVAL,default=30m"`
}

// Store is the external configuration store persisting Source records.
// Implementations may be backed by a database or by a remote API; a remote
// implementation reports an expired session as ErrAuthExpired.
type Store interface {
	List(ctx context.Context) ([]*Source, error)
	Upsert(ctx context.Context, source *Source) error
	Delete(ctx context.Context, id string) error
}

// ItemSink receives the items consumed from a spout after a successful
// fetch. De-duplication against previously seen items is the sink's
// concern.
type ItemSink interface {
	Store(ctx context.Context, sourceID string, items []spouts.Item) error
}

// Orchestrator drives fetch cycles across all configured sources.
//
// Each source's fetch is isolated: one failure is recorded on that source
// alone and never aborts its siblings. A reload supersedes any reload
// still in flight; superseded results are discarded, never merged.
type Orchestrator struct {
	registry *spouts.Registry
	store    Store
	sink     ItemSink
	config   *Config
	logger   *zerolog.Logger
	metrics  *Metrics
	pool     pond.Pool

	mu         sync.Mutex
	generation uint64
	cancelPrev context.CancelFunc
}

func NewOrchestrator(
	logger *zerolog.Logger,
	registry *spouts.Registry,
	store Store,
	sink ItemSink,
	metrics *Metrics,
	config *Config,
) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    store,
		sink:     sink,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		pool:     pond.NewPool(config.MaxConcurrentFetches),
	}
}

// AddDraft creates a draft source with a placeholder id and optional
// preset parameter values, e.g. arriving from a quick-add link. It touches
// neither the network nor the store; the draft only exists for its caller
// until explicitly saved.
func (o *Orchestrator) AddDraft(spoutID string, preset map[string]string) *Source {
	p := make(map[string]string, len(preset))
	maps.Copy(p, preset)

	return &Source{
		ID:     draftIDPrefix + uuid.NewString(),
		Spout:  spoutID,
		Params: p,
	}
}

// Reload fetches every configured, non-draft source and returns the
// updated records. Draft sources pass through untouched. The returned
// error is global (ErrAuthExpired or a cancelled context); per-source
// failures are recorded on each source's LastError instead.
func (o *Orchestrator) Reload(ctx context.Context, srcs []*Source) ([]*Source, error) {
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.cancelPrev != nil {
		o.cancelPrev()
	}
	o.cancelPrev = cancel
	o.generation++
	gen := o.generation
	o.mu.Unlock()

	// One result slot per source, written at most once.
	results := make([]*Source, len(srcs))
	for i, src := range srcs {
		results[i] = src
	}

	var authOnce sync.Once
	var authErr error

	group := o.pool.NewGroup()
	for i, src := range srcs {
		if src.IsDraft() {
			continue
		}

		group.Submit(func() {
			// Cancelled before starting: skipped, not failed.
			if ctx.Err() != nil {
				return
			}

			updated, err := o.fetchSource(ctx, src.Clone(), gen)
			if err != nil {
				authOnce.Do(func() { authErr = err })
				cancel()
				return
			}

			// A fetch that outlived its reload is discarded rather
			// than merged, so it cannot race a newer reload's update
			// for the same source.
			if o.currentGeneration() != gen {
				return
			}

			results[i] = updated
		})
	}
	group.Wait()

	if authErr != nil {
		return nil, authErr
	}

	if err := ctx.Err(); err != nil && o.currentGeneration() != gen {
		return nil, err
	}

	o.metrics.recordReloadDuration(time.Since(start))

	return results, nil
}

// ReloadAll lists the store's sources and reloads them.
func (o *Orchestrator) ReloadAll(ctx context.Context) ([]*Source, error) {
	srcs, err := o.store.List(ctx)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("list sources: %w", err)
	}

	return o.Reload(ctx, srcs)
}

// Run reloads all sources now and then on every tick until the context
// ends or the session expires.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.config.ReloadInterval)
	defer ticker.Stop()

	for {
		if _, err := o.ReloadAll(ctx); err != nil {
			if errors.Is(err, ErrAuthExpired) {
				return err
			}
			o.logger.Error().Err(err).Msg("Reload cycle failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) currentGeneration() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generation
}

// superseded reports whether a newer reload has taken over, in which
// case this fetch must not touch the store.
func (o *Orchestrator) superseded(ctx context.Context, gen uint64) bool {
	return ctx.Err() != nil || o.currentGeneration() != gen
}

// fetchSource performs one isolated fetch for the reload identified by
// gen. All failures are recorded on the source; the returned error is
// reserved for the global authentication-expired condition.
func (o *Orchestrator) fetchSource(ctx context.Context, src *Source, gen uint64) (*Source, error) {
	sLogger := o.sourceLogger(src)

	desc, ok := o.registry.Lookup(src.Spout)
	if !ok {
		return o.recordFailure(ctx, src, fmt.Errorf("unknown spout type %q", src.Spout))
	}

	resolved, err := params.Resolve(desc.Params, src.Params)
	if err != nil {
		return o.recordFailure(ctx, src, err)
	}

	spout, err := o.registry.New(src.Spout)
	if err != nil {
		return o.recordFailure(ctx, src, err)
	}
	defer spout.Destroy()

	fetchCtx, cancelFetch := context.WithTimeout(ctx, o.config.FetchTimeout)
	defer cancelFetch()

	if err := spout.Load(fetchCtx, resolved); err != nil {
		// A superseded reload cancels its fetches; that is not a
		// source failure and must not be recorded as one.
		if ctx.Err() != nil {
			return src, nil
		}
		sLogger.Warn().Err(err).Msg("Source fetch failed")
		return o.recordFailure(ctx, src, err)
	}

	if o.superseded(ctx, gen) {
		return src, nil
	}

	items := spout.Items()
	if o.sink != nil {
		if err := o.sink.Store(ctx, src.ID, items); err != nil {
			if errors.Is(err, ErrAuthExpired) {
				return nil, err
			}
			return o.recordFailure(ctx, src, fmt.Errorf("store items: %w", err))
		}
	}

	// A fetch whose Load finished just before a newer reload cancelled
	// it would otherwise merge its stale metadata over the record the
	// superseding reload has already committed.
	if o.superseded(ctx, gen) {
		return src, nil
	}

	if title := spout.Title(); title != "" {
		src.Title = title
	}
	if htmlURL := spout.HTMLURL(); htmlURL != "" {
		src.HTMLURL = htmlURL
	}
	now := time.Now()
	src.LastFetch = &now
	src.LastError = ""

	o.metrics.recordFetchSuccess(src.Spout)
	sLogger.Debug().Int("items", len(items)).Msg("Source fetch complete")

	if err := o.upsert(ctx, src); err != nil {
		return nil, err
	}

	return src, nil
}

// recordFailure stores the failure on the source, leaving the last-known
// title and URL untouched.
func (o *Orchestrator) recordFailure(ctx context.Context, src *Source, cause error) (*Source, error) {
	src.LastError = cause.Error()
	o.metrics.recordFetchFailure(src.Spout)

	if err := o.upsert(ctx, src); err != nil {
		return nil, err
	}

	return src, nil
}

func (o *Orchestrator) upsert(ctx context.Context, src *Source) error {
	err := o.store.Upsert(ctx, src)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrAuthExpired) {
		return err
	}

	o.sourceLogger(src).Error().Err(err).Msg("Failed to persist source")
	return nil
}

func (o *Orchestrator) sourceLogger(src *Source) *zerolog.Logger {
	out := o.logger.With().
		Str("source_id", src.ID).
		Str("spout", src.Spout).
		Logger()

	return &out
}
