package scene

import (
	"time"

	"github.com/golang/geo/r3"

	"github.com/security-somanos/blockchain-center/timectrl"
)

// updateRunningLocked pauses while the document is hidden or the
// container is off screen and resumes once neither holds.
func (m *Manager) updateRunningLocked() {
	if m.hidden || !m.intersecting {
		m.stopLocked()
		return
	}
	m.startLocked()
}

func (m *Manager) startLocked() {
	if m.frame != 0 || m.state != StateReady {
		return
	}
	m.last = time.Time{}
	// the first frame after a start renders immediately
	m.acc = FrameInterval
	m.requestLocked()
}

func (m *Manager) stopLocked() {
	if m.frame == 0 {
		return
	}
	m.frames.Cancel(m.frame)
	m.frame = 0
}

func (m *Manager) requestLocked() {
	id := new(timectrl.FrameID)
	*id = m.frames.Request(func(now time.Time) { m.tick(id, now) })
	m.frame = *id
}

// tick is one iteration of the frame loop: spin the globe by the elapsed
// time and render once a full frame interval has accumulated.
func (m *Manager) tick(id *timectrl.FrameID, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady || m.frame != *id {
		// cancelled after the scheduler had already dequeued us
		return
	}
	m.requestLocked()

	var dt time.Duration
	if !m.last.IsZero() && now.After(m.last) {
		dt = now.Sub(m.last)
	}
	m.last = now
	m.graph.RotationY += m.opts.AutoRotateSpeed * dt.Seconds()
	m.acc += dt

	if !m.hidden && m.acc >= FrameInterval {
		m.renderLocked()
		m.acc = 0
	}
}

func (m *Manager) renderLocked() {
	for _, l := range m.graph.Layers {
		if l.Material != nil {
			l.Material.SetUniforms(m.camera.Position, m.opts.BackOpacity)
		}
	}
	m.controls.Update()
	m.renderer.Render(m.graph, m.camera)
	if m.labels != nil {
		m.labels.Render(m.graph, m.camera)
	}
	m.rendered++
	m.metrics.IncFrames()
}

func (m *Manager) handleVisibility(hidden bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return
	}
	m.hidden = hidden
	m.updateRunningLocked()
}

func (m *Manager) handleIntersection(intersecting bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return
	}
	m.intersecting = intersecting
	m.updateRunningLocked()
}

// handleResize resizes the viewport and renders straight away instead of
// waiting for the next loop frame.
func (m *Manager) handleResize(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return
	}
	if width <= 0 {
		width = DefaultSize
	}
	if height <= 0 {
		height = DefaultSize
	}
	m.width, m.height = width, height
	m.camera.Aspect = float64(width) / float64(height)
	m.controls.SetViewportHeight(height)
	m.renderer.SetSize(width, height)
	if m.labels != nil {
		m.labels.SetSize(width, height)
	}
	m.acc = FrameInterval
	m.renderLocked()
}

func (m *Manager) handlePointer(ev PointerEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return
	}
	switch ev.Kind {
	case PointerDown:
		m.controls.Start(ev.X, ev.Y)
	case PointerMove:
		m.controls.Move(ev.X, ev.Y)
		m.hovering = m.pickLocked(ev.X, ev.Y) >= 0
	case PointerUp:
		m.controls.End()
	case PointerLeave:
		m.controls.End()
		m.hovering = false
	case PointerWheel:
		m.controls.Wheel(ev.DeltaY)
	case PointerClick:
		m.clickLocked(ev.X, ev.Y)
	}
	m.host.SetCursor(m.cursorLocked())
}

func (m *Manager) cursorLocked() Cursor {
	switch {
	case m.hovering:
		return CursorPointer
	case m.controls.Dragging():
		return CursorGrabbing
	default:
		return CursorGrab
	}
}

// clickLocked reveals the clicked pin's label and hides the rest. It does
// nothing when labels are always on or no pin has a label.
func (m *Manager) clickLocked(x, y float64) {
	if !m.hasLabels || m.opts.ShowLabels {
		return
	}
	if i := m.pickLocked(x, y); i >= 0 {
		m.labelSet.Reveal(i)
	} else {
		m.labelSet.HideAll()
	}
	m.acc = FrameInterval
}

// pickLocked returns the index of the nearest pin under container point
// (x, y), or -1.
func (m *Manager) pickLocked(x, y float64) int {
	ndcX, ndcY := ToNDC(x, y, m.width, m.height)
	origin, dir := m.camera.Ray(ndcX, ndcY)
	best, bestT := -1, 0.0
	for i, p := range m.graph.Pins {
		center := m.graph.World(p.Marker.Anchor)
		t, ok := intersectSphere(origin, dir, center, p.Marker.Radius)
		if ok && (best < 0 || t < bestT) {
			best, bestT = i, t
		}
	}
	return best
}

// CameraPosition returns the current camera position.
func (m *Manager) CameraPosition() r3.Vector {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.camera == nil {
		return DefaultCameraPosition
	}
	return m.camera.Position
}
