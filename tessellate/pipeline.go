package tessellate

import (
	"context"
	"fmt"

	"github.com/security-somanos/blockchain-center/land"
)

// Stage marks a step of Pipeline.Layers.
type Stage int

const (
	// StageCached: the layers came from the cache; nothing was computed.
	StageCached Stage = iota
	// StageEdges: edge tessellation is starting.
	StageEdges
	// StageFill: edges are done and fill tessellation is starting.
	StageFill
	// StageDone: both layers were computed and stored.
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageCached:
		return "cached"
	case StageEdges:
		return "edges"
	case StageFill:
		return "fill"
	case StageDone:
		return "done"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// CacheRecorder counts cache lookups.
type CacheRecorder interface {
	ObserveCacheLookup(hit bool)
}

// Pipeline resolves the layers for a tiling density, from the cache when
// possible.
type Pipeline struct {
	Cache   LayerCache
	Runner  *Runner
	Metrics CacheRecorder
}

// Layers returns the edge and fill layers of l for tileDeg. onStage, if
// set, is called on the caller's goroutine as work progresses.
func (p *Pipeline) Layers(ctx context.Context, l *land.Land, tileDeg float64, onStage func(Stage)) (Layers, error) {
	if l == nil {
		return Layers{}, land.ErrNoLand
	}
	if onStage == nil {
		onStage = func(Stage) {}
	}
	cache := p.Cache
	if cache == nil {
		cache = SharedCache()
	}
	runner := p.Runner
	if runner == nil {
		runner = NewRunner()
	}

	if cached, ok := cache.Get(ctx, tileDeg); ok {
		p.observe(true)
		onStage(StageCached)
		return cached, nil
	}
	p.observe(false)

	onStage(StageEdges)
	edge, err := runner.Edges(ctx, l.Outlines, tileDeg)
	if err != nil {
		return Layers{}, fmt.Errorf("edge layer: %w", err)
	}

	onStage(StageFill)
	fill, err := runner.Fill(ctx, l.Shapes, tileDeg)
	if err != nil {
		return Layers{}, fmt.Errorf("fill layer: %w", err)
	}

	out := Layers{Edge: edge, Fill: fill}
	cache.Put(ctx, tileDeg, out)
	onStage(StageDone)
	return out, nil
}

func (p *Pipeline) observe(hit bool) {
	if p.Metrics != nil {
		p.Metrics.ObserveCacheLookup(hit)
	}
}
