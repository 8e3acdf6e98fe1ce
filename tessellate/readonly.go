package tessellate

import "context"

// ReadOnly serves lookups from c and drops every Put, so layers built
// through it are returned to the caller but never retained.
func ReadOnly(c LayerCache) LayerCache {
	if c == nil {
		c = SharedCache()
	}
	return readOnly{c: c}
}

type readOnly struct{ c LayerCache }

func (r readOnly) Get(ctx context.Context, key float64) (Layers, bool) { return r.c.Get(ctx, key) }
func (readOnly) Put(context.Context, float64, Layers)                  {}

// Transient returns a copy of p that reads p's cache but does not write
// to it. It is used for densities that must not become permanent keys.
func (p *Pipeline) Transient() *Pipeline {
	return &Pipeline{
		Cache:   ReadOnly(p.Cache),
		Runner:  p.Runner,
		Metrics: p.Metrics,
	}
}
