// Package api exposes the globe's layers, pins and snapshots over gRPC
// and HTTP.
package api

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/fogleman/gg"
	"go.opentelemetry.io/otel/attribute"

	"github.com/security-somanos/blockchain-center/internal/logging"
	"github.com/security-somanos/blockchain-center/internal/observability"
	"github.com/security-somanos/blockchain-center/model"
	"github.com/security-somanos/blockchain-center/overlay"
	"github.com/security-somanos/blockchain-center/scene"
	"github.com/security-somanos/blockchain-center/scene/raster"
	"github.com/security-somanos/blockchain-center/tessellate"
	"github.com/security-somanos/blockchain-center/timectrl"
)

// Snapshot size limits in CSS pixels.
const (
	MaxSnapshotSize     = 2048
	DefaultSnapshotSize = scene.DefaultSize
)

// TileStep is the resolution of client-requested densities that are not
// presets. Such densities are rounded to it and never cached.
const TileStep = 0.1

// Service answers layer, pin and snapshot queries for one globe
// configuration. It is safe for concurrent use.
type Service struct {
	land     scene.LandSource
	pipeline  *tessellate.Pipeline
	transient *tessellate.Pipeline
	presets   []float64
	globe     model.Options
	log      logging.Logger
	metrics  *observability.GlobeCollector

	snapshotW, snapshotH int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the collector used by snapshot scenes and the
// transport layers.
func WithMetrics(c *observability.GlobeCollector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithSnapshotSize sets the default snapshot size.
func WithSnapshotSize(width, height int) Option {
	return func(s *Service) {
		if width > 0 {
			s.snapshotW = width
		}
		if height > 0 {
			s.snapshotH = height
		}
	}
}

// WithTilePresets adds densities whose layers are kept in the cache. The
// configured globe density is always a preset.
func WithTilePresets(degs ...float64) Option {
	return func(s *Service) {
		for _, d := range degs {
			if d > 0 && !math.IsInf(d, 0) {
				s.presets = append(s.presets, d)
			}
		}
	}
}

// NewService builds a service over src. A nil pipeline uses the shared
// in-process cache.
func NewService(src scene.LandSource, pipeline *tessellate.Pipeline, globe model.Options, opts ...Option) *Service {
	if pipeline == nil {
		pipeline = &tessellate.Pipeline{}
	}
	s := &Service{
		land:      src,
		pipeline:  pipeline,
		globe:     globe,
		log:       logging.Noop(),
		snapshotW: DefaultSnapshotSize,
		snapshotH: DefaultSnapshotSize,
		presets:   []float64{globe.TileDeg},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.transient = pipeline.Transient()
	return s
}

// Options returns the globe configuration the service was built with.
func (s *Service) Options() model.Options { return s.globe }

// resolveTileDeg validates a client density and picks the pipeline that
// serves it. Zero selects the configured density. Presets go through the
// caching pipeline; anything else is clamped, rounded to TileStep and
// built without being stored, so clients cannot add cache keys.
func (s *Service) resolveTileDeg(v float64) (float64, *tessellate.Pipeline, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, nil, fmt.Errorf("%w: tile_deg must be a non-negative number, got %v", ErrInvalidArgument, v)
	}
	if v == 0 {
		v = s.globe.TileDeg
	}
	if p, ok := s.preset(v); ok {
		return p, s.pipeline, nil
	}
	q := math.Round(model.ClampTileDeg(v)/TileStep) * TileStep
	if p, ok := s.preset(q); ok {
		return p, s.pipeline, nil
	}
	return q, s.transient, nil
}

func (s *Service) preset(v float64) (float64, bool) {
	for _, p := range s.presets {
		if math.Abs(p-v) < 1e-9 {
			return p, true
		}
	}
	return 0, false
}

// Layers returns the edge and fill layers for tileDeg. Zero selects the
// configured density.
func (s *Service) Layers(ctx context.Context, tileDeg float64) (tessellate.Layers, error) {
	deg, pipeline, err := s.resolveTileDeg(tileDeg)
	if err != nil {
		return tessellate.Layers{}, err
	}
	ctx, span := observability.StartSpan(ctx, "api.Layers", attribute.Float64("tile_deg", deg))
	defer span.End()

	l, err := s.land.Land(ctx)
	if err != nil {
		span.RecordError(err)
		return tessellate.Layers{}, fmt.Errorf("load land: %w", err)
	}
	layers, err := pipeline.Layers(ctx, l, deg, nil)
	if err != nil {
		span.RecordError(err)
		return tessellate.Layers{}, err
	}
	span.SetAttributes(
		attribute.Int("edge_points", layers.Edge.Points()),
		attribute.Int("fill_points", layers.Fill.Points()),
	)
	return layers, nil
}

// PinView is the resolved form of a configured pin.
type PinView struct {
	Pin       model.Pin  `json:"pin"`
	Anchor    [3]float64 `json:"anchor"`
	LabelHTML string     `json:"label_html,omitempty"`
	LabelCSS  string     `json:"label_css,omitempty"`
	Visible   bool       `json:"visible"`
}

// Pins resolves the configured pins into anchors and label markup.
func (s *Service) Pins() []PinView {
	style := overlay.StyleFromOptions(s.globe)
	out := make([]PinView, 0, len(s.globe.Pins))
	for _, p := range s.globe.Pins {
		m := overlay.NewMarker(p, style)
		v := PinView{Pin: p, Anchor: [3]float64{m.Anchor.X, m.Anchor.Y, m.Anchor.Z}}
		if m.Label != nil {
			v.LabelHTML, v.LabelCSS, v.Visible = m.Label.HTML, m.Label.CSS, m.Label.Visible
		}
		out = append(out, v)
	}
	return out
}

// SnapshotRequest parameterises one rendered frame. Zero values select
// the service defaults.
type SnapshotRequest struct {
	Width    int
	Height   int
	TileDeg  float64
	Rotation float64 // radians about the polar axis, added to the start phase
}

// Snapshot mounts a headless scene, renders one frame and writes it to w
// as PNG. The scene is disposed before Snapshot returns.
func (s *Service) Snapshot(ctx context.Context, w io.Writer, req SnapshotRequest) error {
	if req.Width == 0 {
		req.Width = s.snapshotW
	}
	if req.Height == 0 {
		req.Height = s.snapshotH
	}
	if req.Width < 0 || req.Height < 0 || req.Width > MaxSnapshotSize || req.Height > MaxSnapshotSize {
		return fmt.Errorf("%w: snapshot size %dx%d outside 1..%d", ErrInvalidArgument, req.Width, req.Height, MaxSnapshotSize)
	}
	if math.IsNaN(req.Rotation) || math.IsInf(req.Rotation, 0) {
		return fmt.Errorf("%w: rotation must be finite", ErrInvalidArgument)
	}
	opts := s.globe
	deg, pipeline, err := s.resolveTileDeg(req.TileDeg)
	if err != nil {
		return err
	}
	opts.TileDeg = deg

	ctx, span := observability.StartSpan(ctx, "api.Snapshot",
		attribute.Int("width", req.Width),
		attribute.Int("height", req.Height),
		attribute.Float64("tile_deg", deg),
	)
	defer span.End()

	engine := raster.NewEngine(overlay.StyleFromOptions(opts))
	m, err := scene.New(scene.Config{
		Options: opts,
		Engine:  engine,
		Host:    raster.NewHost(req.Width, req.Height, 1),
		Frames:  timectrl.NewManualScheduler(time.Now()),
		Land:    s.land,
		Layers:  pipeline,
		Logger:  loggerFrom(ctx, s.log),
		Metrics: s.metrics,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	defer m.Dispose()

	if err := m.Mount(ctx); err != nil {
		span.RecordError(err)
		return err
	}
	if req.Rotation != 0 {
		m.Rotate(req.Rotation)
		if err := m.RenderNow(); err != nil {
			return err
		}
	}
	img := engine.Snapshot()
	if img == nil {
		return fmt.Errorf("snapshot: %w", scene.ErrNotReady)
	}
	return gg.NewContextForImage(img).EncodePNG(w)
}
