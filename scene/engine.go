// Package scene owns a mounted globe: the camera and orbit controls, the
// point-cloud layers, the pin markers and the frame loop that renders
// them. Drawing and the host page are reached only through the Engine and
// Host interfaces so the same manager runs against a raster backend or a
// test fake.
package scene

import (
	"github.com/golang/geo/r3"

	"github.com/security-somanos/blockchain-center/geom"
	"github.com/security-somanos/blockchain-center/overlay"
	"github.com/security-somanos/blockchain-center/tessellate"
)

// Element is a node the host can attach to its container, such as a
// renderer canvas or the label overlay.
type Element interface {
	ElementKind() string
}

// Disposer releases an engine resource. Dispose must be safe to call once.
type Disposer interface {
	Dispose()
}

// Geometry is an uploaded vertex buffer.
type Geometry interface {
	Disposer
}

// Material is a shading program with its parameters.
type Material interface {
	Disposer
}

// PointsMaterial shades a point cloud with the hemisphere fade. Uniforms
// are refreshed on every rendered frame.
type PointsMaterial interface {
	Material
	SetUniforms(camPos r3.Vector, backOpacity float64)
}

// PointsStyle configures a points material.
type PointsStyle struct {
	Color       string
	Size        float64
	Opacity     float64
	BackOpacity float64
}

// RendererConfig configures a renderer at creation.
type RendererConfig struct {
	Width, Height int
	PixelRatio    float64
	Transparent   bool
}

// Renderer draws a Graph from a camera.
type Renderer interface {
	Disposer
	Element() Element
	SetPixelRatio(ratio float64)
	SetSize(width, height int)
	Render(g *Graph, cam *Camera)
}

// LabelRenderer positions the label panels of a Graph over the canvas.
type LabelRenderer interface {
	Disposer
	Element() Element
	SetSize(width, height int)
	Render(g *Graph, cam *Camera)
}

// Engine creates the GPU-side resources of a scene.
type Engine interface {
	NewRenderer(cfg RendererConfig) (Renderer, error)
	NewLabelRenderer(width, height int) (LabelRenderer, error)
	NewPointsGeometry(positions tessellate.Buffer) (Geometry, error)
	NewPointsMaterial(style PointsStyle) (PointsMaterial, error)
	NewSphereGeometry(radius float64) (Geometry, error)
	NewPinMaterial(color string) (Material, error)
	NewHaloMaterial(color string) (Material, error)
}

// PointsLayer is one point cloud of the globe.
type PointsLayer struct {
	Name      string
	Positions tessellate.Buffer
	Style     PointsStyle
	Geometry  Geometry
	Material  PointsMaterial
}

// PinNode is the mesh group of one pin: its sphere, its halo sprite and
// the marker carrying the label.
type PinNode struct {
	Marker   *overlay.Marker
	Sphere   Geometry
	Material Material
	Halo     Material
}

// Graph is the retained scene: a single group spun about the vertical
// axis holding every layer and pin.
type Graph struct {
	RotationY float64
	Layers    []*PointsLayer
	Pins      []*PinNode
}

// World maps a point in the group's frame to world space.
func (g *Graph) World(local r3.Vector) r3.Vector {
	return geom.RotateY(local, g.RotationY)
}

// dispose releases every geometry and material of the graph.
func (g *Graph) dispose() {
	for _, l := range g.Layers {
		disposeAll(l.Geometry, l.Material)
	}
	for _, p := range g.Pins {
		disposeAll(p.Sphere, p.Material, p.Halo)
	}
	g.Layers, g.Pins = nil, nil
}

func disposeAll(ds ...Disposer) {
	for _, d := range ds {
		if d == nil {
			continue
		}
		d.Dispose()
	}
}
