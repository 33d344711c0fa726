package providers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/macrocorr/internal/domain"
)

// Source fetches raw observations for a provider-specific series id,
// sorted ascending by date with duplicate dates collapsed.
type Source interface {
	Name() string
	Fetch(ctx context.Context, id string) ([]domain.Observation, error)
}

// ProxyRef points a series id at a substitute series on another provider.
type ProxyRef struct {
	Source string `yaml:"source"`
	ID     string `yaml:"id"`
}

// FallbackConfig is the data-driven fallback policy: same-provider
// alternate ids tried in order, then an optional cross-provider proxy.
// Chains live in series.yaml, not in code.
type FallbackConfig struct {
	Alternates map[string]map[string][]string `yaml:"alternates"`
	Proxies    map[string]ProxyRef            `yaml:"proxies"`
}

// ObservationCache is the subset of the redis cache the registry needs.
type ObservationCache interface {
	Get(ctx context.Context, source, id string) ([]domain.Observation, bool, error)
	Set(ctx context.Context, source, id string, obs []domain.Observation) error
}

// Registry resolves source names to Source implementations and runs the
// fallback chain for a fetch.
type Registry struct {
	sources   map[string]Source
	fallbacks FallbackConfig
	cache     ObservationCache
}

// NewRegistry builds a registry over the given sources.
func NewRegistry(fallbacks FallbackConfig, sources ...Source) *Registry {
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.Name()] = s
	}
	return &Registry{sources: m, fallbacks: fallbacks}
}

// WithCache attaches an observation cache. Cache errors degrade to direct
// fetches with a warning.
func (r *Registry) WithCache(c ObservationCache) *Registry {
	r.cache = c
	return r
}

// Fetch retrieves observations for (source, id), walking the fallback
// chain: primary id, same-source alternates, then the cross-provider
// proxy. The first non-empty result wins.
func (r *Registry) Fetch(ctx context.Context, source, id string) ([]domain.Observation, error) {
	if obs, ok := r.cacheGet(ctx, source, id); ok {
		return obs, nil
	}

	type candidate struct {
		source string
		id     string
	}
	chain := []candidate{{source, id}}
	for _, alt := range r.fallbacks.Alternates[source][id] {
		chain = append(chain, candidate{source, alt})
	}
	if proxy, ok := r.fallbacks.Proxies[id]; ok {
		chain = append(chain, candidate{proxy.Source, proxy.ID})
	}

	var lastErr error
	for i, c := range chain {
		src, ok := r.sources[c.source]
		if !ok {
			lastErr = fmt.Errorf("unknown source %q", c.source)
			continue
		}
		obs, err := src.Fetch(ctx, c.id)
		if err != nil {
			lastErr = err
			log.Warn().Str("source", c.source).Str("id", c.id).Err(err).
				Msg("Fetch attempt failed")
			continue
		}
		if len(obs) == 0 {
			lastErr = fmt.Errorf("no observations from %s:%s", c.source, c.id)
			continue
		}
		if i > 0 {
			log.Info().Str("source", c.source).Str("id", c.id).
				Str("primary", source+":"+id).Msg("Fetched via fallback")
		}
		r.cacheSet(ctx, source, id, obs)
		return obs, nil
	}
	return nil, fmt.Errorf("all fetch attempts failed for %s:%s: %w", source, id, lastErr)
}

func (r *Registry) cacheGet(ctx context.Context, source, id string) ([]domain.Observation, bool) {
	if r.cache == nil {
		return nil, false
	}
	obs, hit, err := r.cache.Get(ctx, source, id)
	if err != nil {
		log.Warn().Str("source", source).Str("id", id).Err(err).Msg("Cache read failed")
		return nil, false
	}
	return obs, hit
}

func (r *Registry) cacheSet(ctx context.Context, source, id string, obs []domain.Observation) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, source, id, obs); err != nil {
		log.Warn().Str("source", source).Str("id", id).Err(err).Msg("Cache write failed")
	}
}
