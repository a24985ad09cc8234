package spouts

import (
	"context"
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MiteyIronPaw/selfoss/pkg/spouts/params"
)

// Descriptor is the registry entry for one spout type, exposed read-only
// to whatever UI lets an operator pick and configure a source.
type Descriptor struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Params      []params.Param `json:"params"`
}

// Factory constructs a fresh, unloaded spout instance.
type Factory func() Spout

// Preset is a suggested, prefilled source configuration for one spout type.
type Preset struct {
	Spout  string            `json:"spout"`
	Title  string            `json:"title"`
	Params map[string]string `json:"params"`
}

// PresetFetcher lets a spout type offer quick-add suggestions, either from
// a static list or by querying the remote service.
type PresetFetcher interface {
	Search(ctx context.Context, query string) ([]Preset, error)
}

type registration struct {
	desc    Descriptor
	factory Factory
}

// Registry enumerates the compiled-in spout types.
//
// It is populated once at process start and must not be mutated afterwards;
// read methods are safe for concurrent use only under that regime.
type Registry struct {
	logger   *zerolog.Logger
	order    []string
	spouts   map[string]registration
	fetchers []PresetFetcher
}

func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		logger: logger,
		spouts: make(map[string]registration),
	}
}

func (r *Registry) Register(desc Descriptor, factory Factory) error {
	if desc.ID == "" {
		return fmt.Errorf("spout descriptor has empty id")
	}
	if _, exists := r.spouts[desc.ID]; exists {
		return fmt.Errorf("spout %q already registered", desc.ID)
	}
	if err := params.ValidateSchema(desc.Params); err != nil {
		return fmt.Errorf("spout %q: %w", desc.ID, err)
	}

	r.spouts[desc.ID] = registration{desc: desc, factory: factory}
	r.order = append(r.order, desc.ID)

	r.logger.Debug().Str("spout", desc.ID).Msg("Registered spout type")
	return nil
}

func (r *Registry) RegisterPresetFetcher(f PresetFetcher) {
	r.fetchers = append(r.fetchers, f)
}

// Describe returns all registered descriptors in registration order.
func (r *Registry) Describe() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.spouts[id].desc)
	}
	return out
}

func (r *Registry) Lookup(id string) (Descriptor, bool) {
	reg, ok := r.spouts[id]
	return reg.desc, ok
}

// New instantiates an unloaded spout of the given type.
func (r *Registry) New(id string) (Spout, error) {
	reg, ok := r.spouts[id]
	if !ok {
		return nil, fmt.Errorf("unknown spout type %q", id)
	}
	return reg.factory(), nil
}

// Search fuzzy-matches descriptors by name and description.
// An empty query returns everything.
func (r *Registry) Search(query string) []Descriptor {
	if query == "" {
		return r.Describe()
	}

	var matches []Descriptor
	for _, id := range r.order {
		desc := r.spouts[id].desc
		haystack := strings.ToLower(desc.Name + " " + desc.Description)
		if fuzzy.MatchNormalizedFold(query, haystack) {
			matches = append(matches, desc)
		}
	}
	return matches
}

// SearchPresets fans the query out to every registered preset fetcher.
// A failing fetcher is logged and skipped so one remote outage does not
// hide the other suggestions.
func (r *Registry) SearchPresets(ctx context.Context, query string) ([]Preset, error) {
	results := make([][]Preset, len(r.fetchers))

	g, gctx := errgroup.WithContext(ctx)
	for i, fetcher := range r.fetchers {
		g.Go(func() error {
			presets, err := fetcher.Search(gctx, query)
			if err != nil {
				r.logger.Warn().Err(err).Msg("Preset fetcher failed")
				return nil
			}
			results[i] = presets
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("search presets: %w", err)
	}

	var merged []Preset
	for _, presets := range results {
		merged = append(merged, presets...)
	}
	return merged, nil
}
