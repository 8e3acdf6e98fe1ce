package raster

import (
	"sync"

	"github.com/security-somanos/blockchain-center/scene"
)

// Host is an offscreen container of fixed size. Visibility, intersection,
// resize and pointer events are injected by the caller.
type Host struct {
	mu       sync.Mutex
	width    int
	height   int
	ratio    float64
	hidden   bool
	elements []scene.Element
	cursor   scene.Cursor

	nextID       int
	pointer      map[int]func(scene.PointerEvent)
	visibility   map[int]func(bool)
	intersection map[int]func(bool)
	resize       map[int]func(int, int)
}

// NewHost returns a visible host of width x height CSS pixels.
func NewHost(width, height int, pixelRatio float64) *Host {
	return &Host{
		width:        width,
		height:       height,
		ratio:        pixelRatio,
		pointer:      map[int]func(scene.PointerEvent){},
		visibility:   map[int]func(bool){},
		intersection: map[int]func(bool){},
		resize:       map[int]func(int, int){},
	}
}

func (h *Host) Size() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.width, h.height
}

func (h *Host) DevicePixelRatio() float64 { return h.ratio }

func (h *Host) Hidden() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hidden
}

func (h *Host) Clear() {
	h.mu.Lock()
	h.elements = nil
	h.mu.Unlock()
}

func (h *Host) Append(e scene.Element) {
	h.mu.Lock()
	h.elements = append(h.elements, e)
	h.mu.Unlock()
}

func (h *Host) Remove(e scene.Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, el := range h.elements {
		if el == e {
			h.elements = append(h.elements[:i], h.elements[i+1:]...)
			return
		}
	}
}

// Elements returns the attached elements in order.
func (h *Host) Elements() []scene.Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]scene.Element(nil), h.elements...)
}

func (h *Host) SetCursor(c scene.Cursor) {
	h.mu.Lock()
	h.cursor = c
	h.mu.Unlock()
}

// Cursor returns the last cursor set by the scene.
func (h *Host) Cursor() scene.Cursor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor
}

func add[F any](h *Host, m map[int]F, fn F) func() {
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

func listeners[F any](h *Host, m map[int]F) []F {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]F, 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}

func (h *Host) OnPointer(fn func(scene.PointerEvent)) func() { return add(h, h.pointer, fn) }
func (h *Host) OnVisibility(fn func(bool)) func()            { return add(h, h.visibility, fn) }
func (h *Host) OnIntersection(fn func(bool)) func()          { return add(h, h.intersection, fn) }
func (h *Host) OnResize(fn func(int, int)) func()            { return add(h, h.resize, fn) }

// Listeners returns the number of live registrations.
func (h *Host) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pointer) + len(h.visibility) + len(h.intersection) + len(h.resize)
}

// Pointer delivers a pointer event.
func (h *Host) Pointer(ev scene.PointerEvent) {
	for _, fn := range listeners(h, h.pointer) {
		fn(ev)
	}
}

// SetHidden changes document visibility.
func (h *Host) SetHidden(hidden bool) {
	h.mu.Lock()
	h.hidden = hidden
	h.mu.Unlock()
	for _, fn := range listeners(h, h.visibility) {
		fn(hidden)
	}
}

// SetIntersecting reports whether the container is on screen.
func (h *Host) SetIntersecting(in bool) {
	for _, fn := range listeners(h, h.intersection) {
		fn(in)
	}
}

// Resize changes the container size.
func (h *Host) Resize(width, height int) {
	h.mu.Lock()
	h.width, h.height = width, height
	h.mu.Unlock()
	for _, fn := range listeners(h, h.resize) {
		fn(width, height)
	}
}
