package scene

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"

	"github.com/security-somanos/blockchain-center/land"
	"github.com/security-somanos/blockchain-center/tessellate"
)

type fakeElement struct{ kind string }

func (e *fakeElement) ElementKind() string { return e.kind }

type fakeResource struct {
	kind     string
	disposed int
}

func (r *fakeResource) Dispose() { r.disposed++ }

type fakePointsMaterial struct {
	fakeResource
	camPos      r3.Vector
	backOpacity float64
	updates     int
}

func (m *fakePointsMaterial) SetUniforms(camPos r3.Vector, backOpacity float64) {
	m.camPos, m.backOpacity = camPos, backOpacity
	m.updates++
}

type fakeRenderer struct {
	fakeResource
	el            *fakeElement
	width, height int
	ratio         float64
	renders       int
}

func (r *fakeRenderer) Element() Element            { return r.el }
func (r *fakeRenderer) SetPixelRatio(ratio float64) { r.ratio = ratio }
func (r *fakeRenderer) SetSize(w, h int)            { r.width, r.height = w, h }
func (r *fakeRenderer) Render(*Graph, *Camera)      { r.renders++ }

type fakeLabelRenderer struct {
	fakeResource
	el            *fakeElement
	width, height int
	renders       int
}

func (r *fakeLabelRenderer) Element() Element       { return r.el }
func (r *fakeLabelRenderer) SetSize(w, h int)       { r.width, r.height = w, h }
func (r *fakeLabelRenderer) Render(*Graph, *Camera) { r.renders++ }

// fakeEngine records every resource it hands out.
type fakeEngine struct {
	mu        sync.Mutex
	resources []*fakeResource
	points    []*fakePointsMaterial
	renderer  *fakeRenderer
	labels    *fakeLabelRenderer
	spheres   int
	failOn    string
}

func (e *fakeEngine) add(r *fakeResource, kind string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if kind == e.failOn {
		return errors.New("engine: " + kind + " unavailable")
	}
	r.kind = kind
	e.resources = append(e.resources, r)
	if kind == "sphere" {
		e.spheres++
	}
	return nil
}

func (e *fakeEngine) resource(kind string) (Disposer, error) {
	r := &fakeResource{}
	if err := e.add(r, kind); err != nil {
		return nil, err
	}
	return r, nil
}

func (e *fakeEngine) NewRenderer(cfg RendererConfig) (Renderer, error) {
	r := &fakeRenderer{el: &fakeElement{kind: "canvas"}, width: cfg.Width, height: cfg.Height, ratio: cfg.PixelRatio}
	if err := e.add(&r.fakeResource, "renderer"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.renderer = r
	e.mu.Unlock()
	return r, nil
}

func (e *fakeEngine) NewLabelRenderer(w, h int) (LabelRenderer, error) {
	l := &fakeLabelRenderer{el: &fakeElement{kind: "labels"}, width: w, height: h}
	if err := e.add(&l.fakeResource, "labels"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.labels = l
	e.mu.Unlock()
	return l, nil
}

func (e *fakeEngine) NewPointsMaterial(PointsStyle) (PointsMaterial, error) {
	m := &fakePointsMaterial{}
	if err := e.add(&m.fakeResource, "points-material"); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.points = append(e.points, m)
	e.mu.Unlock()
	return m, nil
}

func (e *fakeEngine) NewPointsGeometry(tessellate.Buffer) (Geometry, error) {
	return e.resource("points-geometry")
}

func (e *fakeEngine) NewSphereGeometry(float64) (Geometry, error) { return e.resource("sphere") }
func (e *fakeEngine) NewPinMaterial(string) (Material, error)     { return e.resource("pin-material") }
func (e *fakeEngine) NewHaloMaterial(string) (Material, error)    { return e.resource("halo-material") }

// leaks returns resources not disposed exactly once.
func (e *fakeEngine) leaks() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, r := range e.resources {
		if r.disposed != 1 {
			out = append(out, r.kind)
		}
	}
	return out
}

func (e *fakeEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.resources)
}

// fakeHost is a container plus observers driven by the test.
type fakeHost struct {
	mu       sync.Mutex
	width    int
	height   int
	ratio    float64
	hidden   bool
	elements []Element
	cursor   Cursor

	pointer      map[int]func(PointerEvent)
	visibility   map[int]func(bool)
	intersection map[int]func(bool)
	resize       map[int]func(int, int)
	nextID       int
}

func newFakeHost(w, h int) *fakeHost {
	return &fakeHost{
		width:        w,
		height:       h,
		ratio:        3,
		pointer:      map[int]func(PointerEvent){},
		visibility:   map[int]func(bool){},
		intersection: map[int]func(bool){},
		resize:       map[int]func(int, int){},
		elements:     []Element{&fakeElement{kind: "stale"}},
	}
}

func (h *fakeHost) Size() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

func (h *fakeHost) DevicePixelRatio() float64 { return h.ratio }
func (h *fakeHost) Hidden() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hidden
}

func (h *fakeHost) Clear() {
	h.mu.Lock()
	h.elements = nil
	h.mu.Unlock()
}

func (h *fakeHost) Append(e Element) {
	h.mu.Lock()
	h.elements = append(h.elements, e)
	h.mu.Unlock()
}

func (h *fakeHost) Remove(e Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, el := range h.elements {
		if el == e {
			h.elements = append(h.elements[:i], h.elements[i+1:]...)
			return
		}
	}
}

func (h *fakeHost) SetCursor(c Cursor) {
	h.mu.Lock()
	h.cursor = c
	h.mu.Unlock()
}

func (h *fakeHost) Cursor() Cursor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func (h *fakeHost) Elements() []Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Element(nil), h.elements...)
}

func register[F any](h *fakeHost, m map[int]F, fn F) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	m[id] = fn
	return func() {
		h.mu.Lock()
		delete(m, id)
		h.mu.Unlock()
	}
}

func (h *fakeHost) OnPointer(fn func(PointerEvent)) func() { return register(h, h.pointer, fn) }
func (h *fakeHost) OnVisibility(fn func(bool)) func()      { return register(h, h.visibility, fn) }
func (h *fakeHost) OnIntersection(fn func(bool)) func()    { return register(h, h.intersection, fn) }
func (h *fakeHost) OnResize(fn func(int, int)) func()      { return register(h, h.resize, fn) }

// listeners returns the number of live registrations.
func (h *fakeHost) listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pointer) + len(h.visibility) + len(h.intersection) + len(h.resize)
}

func snapshot[F any](h *fakeHost, m map[int]F) []F {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]F, 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func (h *fakeHost) emitPointer(ev PointerEvent) {
	for _, fn := range snapshot(h, h.pointer) {
		fn(ev)
	}
}

func (h *fakeHost) emitVisibility(hidden bool) {
	for _, fn := range snapshot(h, h.visibility) {
		fn(hidden)
	}
}

func (h *fakeHost) emitIntersection(in bool) {
	for _, fn := range snapshot(h, h.intersection) {
		fn(in)
	}
}

func (h *fakeHost) emitResize(w, hgt int) {
	h.mu.Lock()
	h.width, h.height = w, hgt
	h.mu.Unlock()
	for _, fn := range snapshot(h, h.resize) {
		fn(w, hgt)
	}
}

// squareLand is a single 2°x2° landmass centred on (0,0).
func squareLand() *land.Land {
	poly := orb.Polygon{{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}, {-1, -1}}}
	return &land.Land{Outlines: []orb.Polygon{poly}, Shapes: []orb.Polygon{poly}}
}

// fakeLand serves a fixed Land, optionally blocking until released.
type fakeLand struct {
	land    *land.Land
	err     error
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func (f *fakeLand) Land(ctx context.Context) (*land.Land, error) {
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.land, f.err
}
