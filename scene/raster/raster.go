// Package raster is a software backend for the scene package. It draws
// the globe into an in-memory image with fogleman/gg so a scene can run
// headless, for snapshots and the render command.
package raster

import (
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"golang.org/x/image/font/basicfont"

	"github.com/security-somanos/blockchain-center/overlay"
	"github.com/security-somanos/blockchain-center/scene"
	"github.com/security-somanos/blockchain-center/tessellate"
)

// Element kinds.
const (
	KindCanvas = "canvas"
	KindLabels = "labels"
)

// Engine hands out raster renderers and keeps the latest pair so their
// output can be composed into one image.
type Engine struct {
	style overlay.Style

	mu       sync.Mutex
	renderer *Renderer
	labels   *LabelRenderer
	live     int
}

// NewEngine constructs an engine drawing label panels with style.
func NewEngine(style overlay.Style) *Engine {
	return &Engine{style: style}
}

// Live returns the number of resources created and not yet disposed.
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.live
}

func (e *Engine) acquire() *resource {
	e.mu.Lock()
	e.live++
	e.mu.Unlock()
	return &resource{engine: e}
}

type resource struct {
	engine *Engine
	once   sync.Once
}

func (r *resource) Dispose() {
	r.once.Do(func() {
		r.engine.mu.Lock()
		r.engine.live--
		r.engine.mu.Unlock()
	})
}

// element is what the host sees for a canvas or overlay.
type element struct{ kind string }

func (e *element) ElementKind() string { return e.kind }

func (e *Engine) NewRenderer(cfg scene.RendererConfig) (scene.Renderer, error) {
	r := &Renderer{resource: e.acquire(), el: &element{kind: KindCanvas}, ratio: cfg.PixelRatio}
	if r.ratio <= 0 {
		r.ratio = 1
	}
	r.SetSize(cfg.Width, cfg.Height)
	e.mu.Lock()
	e.renderer = r
	e.mu.Unlock()
	return r, nil
}

func (e *Engine) NewLabelRenderer(width, height int) (scene.LabelRenderer, error) {
	l := &LabelRenderer{resource: e.acquire(), el: &element{kind: KindLabels}, style: e.style}
	l.SetSize(width, height)
	e.mu.Lock()
	e.labels = l
	e.mu.Unlock()
	return l, nil
}

func (e *Engine) NewPointsGeometry(tessellate.Buffer) (scene.Geometry, error) {
	return e.acquire(), nil
}

func (e *Engine) NewPointsMaterial(style scene.PointsStyle) (scene.PointsMaterial, error) {
	return &PointsMaterial{resource: e.acquire(), style: style, back: style.BackOpacity}, nil
}

func (e *Engine) NewSphereGeometry(float64) (scene.Geometry, error) {
	return e.acquire(), nil
}

func (e *Engine) NewPinMaterial(string) (scene.Material, error) {
	return e.acquire(), nil
}

func (e *Engine) NewHaloMaterial(string) (scene.Material, error) {
	return e.acquire(), nil
}

// Snapshot composes the latest canvas and label overlay. It returns nil
// before the first renderer is created.
func (e *Engine) Snapshot() image.Image {
	e.mu.Lock()
	r, l := e.renderer, e.labels
	e.mu.Unlock()
	if r == nil {
		return nil
	}
	img := r.Image()
	if l == nil {
		return img
	}
	dc := gg.NewContextForImage(img)
	overlayImg := l.Image()
	// the overlay is laid out in CSS pixels; scale it up to the canvas
	dc.Scale(float64(dc.Width())/float64(overlayImg.Bounds().Dx()), float64(dc.Height())/float64(overlayImg.Bounds().Dy()))
	dc.DrawImage(overlayImg, 0, 0)
	return dc.Image()
}

// PointsMaterial records the fade uniforms for the points of one layer.
type PointsMaterial struct {
	*resource
	style  scene.PointsStyle
	camPos r3.Vector
	back   float64
}

func (m *PointsMaterial) SetUniforms(camPos r3.Vector, backOpacity float64) {
	m.camPos, m.back = camPos, backOpacity
}

// Renderer draws point layers and pins into an RGBA canvas.
type Renderer struct {
	*resource
	el    *element
	ratio float64

	mu     sync.Mutex
	dc     *gg.Context
	width  int
	height int
}

func (r *Renderer) Element() scene.Element { return r.el }

func (r *Renderer) SetPixelRatio(ratio float64) {
	if ratio <= 0 {
		ratio = 1
	}
	r.mu.Lock()
	r.ratio = ratio
	w, h := r.width, r.height
	r.mu.Unlock()
	r.SetSize(w, h)
}

// SetSize reallocates the canvas at the CSS size times the pixel ratio.
func (r *Renderer) SetSize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
	r.dc = gg.NewContext(max(1, int(float64(width)*r.ratio)), max(1, int(float64(height)*r.ratio)))
}

// Image returns a copy of the canvas.
func (r *Renderer) Image() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.dc.Image()
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.(*image.RGBA).Pix)
	return out
}

// EncodePNG writes the canvas as PNG.
func (r *Renderer) EncodePNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dc.EncodePNG(w)
}

// Render clears to transparent and draws the fill, edge and pin layers in
// that order with the hemisphere fade applied per point.
func (r *Renderer) Render(g *scene.Graph, cam *scene.Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dc := r.dc
	dc.SetColor(color.Transparent)
	dc.Clear()

	w, h := dc.Width(), dc.Height()
	// pixels per world unit at distance 1
	focal := float64(h) / (2 * math.Tan(cam.FOV*math.Pi/360))

	for i := len(g.Layers) - 1; i >= 0; i-- {
		layer := g.Layers[i]
		mat, _ := layer.Material.(*PointsMaterial)
		camPos, back := cam.Position, layer.Style.BackOpacity
		if mat != nil {
			camPos, back = mat.camPos, mat.back
		}
		base := overlay.ParseColor(layer.Style.Color)
		pos := layer.Positions
		for p := 0; p < pos.Points(); p++ {
			world := g.World(r3.Vector{X: float64(pos[3*p]), Y: float64(pos[3*p+1]), Z: float64(pos[3*p+2])})
			ndcX, ndcY, ok := cam.Project(world)
			if !ok {
				continue
			}
			fade := scene.HemisphereFade(camPos, world)
			depth := world.Sub(cam.Position).Norm()
			radius := math.Max(0.5, scene.FadeSize(layer.Style.Size, fade)*focal/depth/2)
			alpha := scene.FadeAlpha(layer.Style.Opacity*float64(base.A)/255, back, fade)
			x, y := scene.FromNDC(ndcX, ndcY, w, h)
			dc.DrawCircle(x, y, radius)
			dc.SetColor(withAlpha(base, alpha))
			dc.Fill()
		}
	}

	for _, pin := range g.Pins {
		m := pin.Marker
		world := g.World(m.Anchor)
		ndcX, ndcY, ok := cam.Project(world)
		if !ok {
			continue
		}
		x, y := scene.FromNDC(ndcX, ndcY, w, h)
		depth := world.Sub(cam.Position).Norm()
		c := overlay.ParseColor(m.Color)

		halo := m.HaloSize * focal / depth / 2
		grad := gg.NewRadialGradient(x, y, 0, x, y, halo)
		grad.AddColorStop(0, withAlpha(c, 0.9))
		grad.AddColorStop(0.4, withAlpha(c, 0.35))
		grad.AddColorStop(1, withAlpha(c, 0))
		dc.SetFillStyle(grad)
		dc.DrawCircle(x, y, halo)
		dc.Fill()

		dc.SetColor(c)
		dc.DrawCircle(x, y, math.Max(1, m.Radius*focal/depth))
		dc.Fill()
	}
}

// LabelRenderer draws visible label panels above their pins.
type LabelRenderer struct {
	*resource
	el    *element
	style overlay.Style

	mu sync.Mutex
	dc *gg.Context
}

func (l *LabelRenderer) Element() scene.Element { return l.el }

func (l *LabelRenderer) SetSize(width, height int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dc = gg.NewContext(max(1, width), max(1, height))
	l.dc.SetFontFace(basicfont.Face7x13)
}

// Image returns a copy of the overlay.
func (l *LabelRenderer) Image() image.Image {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.dc.Image()
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.(*image.RGBA).Pix)
	return out
}

const (
	panelPad    = 12.0
	panelRadius = 8.0
	lineSpacing = 1.35
)

func (l *LabelRenderer) Render(g *scene.Graph, cam *scene.Camera) {
	l.mu.Lock()
	defer l.mu.Unlock()
	dc := l.dc
	dc.SetColor(color.Transparent)
	dc.Clear()

	bg := withAlpha(overlay.ParseColor(l.style.PanelBgColor), l.style.PanelBgOpacity)
	border := overlay.ParseColor(l.style.PanelBorderColor)
	text := overlay.ParseColor(l.style.LabelColor)

	for _, pin := range g.Pins {
		label := pin.Marker.Label
		if label == nil || !label.Visible {
			continue
		}
		ndcX, ndcY, ok := cam.Project(g.World(pin.Marker.LabelPosition()))
		if !ok {
			continue
		}
		x, y := scene.FromNDC(ndcX, ndcY, dc.Width(), dc.Height())

		var w float64
		for _, line := range label.Lines {
			lw, _ := dc.MeasureString(line)
			w = math.Max(w, lw)
		}
		lh := dc.FontHeight() * lineSpacing
		pw := w + 2*panelPad
		ph := lh*float64(len(label.Lines)) + 2*panelPad
		// centred on the anchor like a CSS2D object
		left, top := x-pw/2, y-ph/2

		dc.DrawRoundedRectangle(left, top, pw, ph, panelRadius)
		dc.SetColor(bg)
		dc.FillPreserve()
		dc.SetColor(border)
		dc.SetLineWidth(1)
		dc.Stroke()

		dc.SetColor(text)
		for i, line := range label.Lines {
			dc.DrawStringAnchored(line, left+panelPad, top+panelPad+lh*float64(i), 0, 1)
		}
	}
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(math.Round(math.Max(0, math.Min(1, alpha)) * 255))
	return c
}
