package scene

// Cursor is the pointer style shown over the globe.
type Cursor string

const (
	CursorGrab     Cursor = "grab"
	CursorGrabbing Cursor = "grabbing"
	CursorPointer  Cursor = "pointer"
)

// PointerKind identifies a pointer or touch event.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	PointerLeave
	PointerClick
	PointerWheel
)

// PointerEvent is a pointer event in container pixels. DeltaY is only set
// for wheel events.
type PointerEvent struct {
	Kind   PointerKind
	X, Y   float64
	DeltaY float64
}

// Host is the page the globe is mounted into: a container element plus
// the observers that report its size and visibility. Every On* method
// returns a function that removes the registration.
type Host interface {
	// Size reports the container size in CSS pixels. Zero means unknown.
	Size() (width, height int)
	DevicePixelRatio() float64
	// Hidden reports whether the document is currently hidden.
	Hidden() bool

	Clear()
	Append(e Element)
	Remove(e Element)
	SetCursor(c Cursor)

	OnPointer(fn func(PointerEvent)) (remove func())
	OnVisibility(fn func(hidden bool)) (remove func())
	OnIntersection(fn func(intersecting bool)) (remove func())
	OnResize(fn func(width, height int)) (remove func())
}
