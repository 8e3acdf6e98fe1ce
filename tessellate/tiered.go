package tessellate

import "context"

// Tiered consults a local cache before a remote one and copies remote
// hits into the local tier.
type Tiered struct {
	Local  LayerCache
	Remote LayerCache
}

func (t Tiered) Get(ctx context.Context, key float64) (Layers, bool) {
	if t.Local != nil {
		if l, ok := t.Local.Get(ctx, key); ok {
			return l, true
		}
	}
	if t.Remote == nil {
		return Layers{}, false
	}
	l, ok := t.Remote.Get(ctx, key)
	if ok && t.Local != nil {
		t.Local.Put(ctx, key, l)
	}
	return l, ok
}

func (t Tiered) Put(ctx context.Context, key float64, l Layers) {
	if t.Local != nil {
		t.Local.Put(ctx, key, l)
	}
	if t.Remote != nil {
		t.Remote.Put(ctx, key, l)
	}
}
