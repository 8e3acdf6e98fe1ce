// Package land turns the bundled landmass topology into the two polygon
// representations the globe needs: decimated outlines for edge dots and
// full-precision shapes for interior fill testing.
package land

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/security-somanos/blockchain-center/geom"
)

var (
	// ErrMalformedDataset indicates the landmass asset could not be decoded.
	ErrMalformedDataset = errors.New("malformed land dataset")
	// ErrNoLand indicates no polygon survived decoding and filtering.
	ErrNoLand = errors.New("no land polygons")
)

// OutlineTarget is the vertex budget for decimated outer rings.
const OutlineTarget = 3000

// Polar artifact thresholds: rings spanning more than polarSpanDeg of
// longitude around a mid-latitude beyond polarLatDeg are dropped.
const (
	polarSpanDeg = 300
	polarLatDeg  = 60
)

// Land is the decoded landmass. Outlines[i] and Shapes[i] describe the
// same polygon.
type Land struct {
	// Outlines holds outer rings decimated to OutlineTarget vertices and
	// holes at full resolution.
	Outlines []orb.Polygon
	// Shapes holds the untouched polygons used for containment tests.
	Shapes []orb.Polygon
}

// Len returns the number of polygons.
func (l *Land) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Shapes)
}

// Build flattens the features of fc into independent polygons, decimates
// outlines and drops polar artifacts.
func Build(fc *geojson.FeatureCollection) (*Land, error) {
	if fc == nil {
		return nil, ErrNoLand
	}

	var shapes []orb.Polygon
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			shapes = append(shapes, g)
		case orb.MultiPolygon:
			for _, p := range g {
				shapes = append(shapes, p)
			}
		}
	}

	l := &Land{}
	for _, shape := range shapes {
		if len(shape) == 0 || len(shape[0]) < 4 {
			continue
		}
		if isPolarArtifact(shape[0]) {
			continue
		}
		l.Outlines = append(l.Outlines, outline(shape))
		l.Shapes = append(l.Shapes, shape)
	}
	if len(l.Shapes) == 0 {
		return nil, ErrNoLand
	}
	return l, nil
}

// Decode parses a TopoJSON document and builds the land polygons from
// its "land" object, or from every object when there is none.
func Decode(data []byte) (*Land, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedDataset)
	}
	fc, err := DecodeTopology(data, "land")
	if err != nil {
		return nil, err
	}
	return Build(fc)
}

func outline(shape orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(shape))
	out[0] = DecimateRing(shape[0], OutlineTarget)
	for i := 1; i < len(shape); i++ {
		out[i] = shape[i].Clone()
	}
	return out
}

// DecimateRing keeps every step-th vertex, step = floor(len/target), when
// the ring is longer than target. The first and last vertices are always
// kept so the ring stays closed.
func DecimateRing(ring orb.Ring, target int) orb.Ring {
	n := len(ring)
	if n == 0 {
		return nil
	}
	step := 1
	if target > 0 && n > target {
		step = n / target
	}
	out := make(orb.Ring, 0, n/step+2)
	last := 0
	for i := 0; i < n; i += step {
		out = append(out, ring[i])
		last = i
	}
	if last != n-1 {
		out = append(out, ring[n-1])
	}
	return out
}

func isPolarArtifact(outer orb.Ring) bool {
	b := geom.RingBound(outer)
	width := b.Max.Lon() - b.Min.Lon()
	midLat := (b.Min.Lat() + b.Max.Lat()) / 2
	return width > polarSpanDeg && math.Abs(midLat) > polarLatDeg
}
