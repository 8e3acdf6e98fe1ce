package land

import (
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// topology is the subset of the TopoJSON document model the land
// dataset uses: polygonal objects over a shared, optionally quantized
// arc table.
type topology struct {
	Type      string                   `json:"type"`
	Transform *transform               `json:"transform,omitempty"`
	Objects   map[string]*topoGeometry `json:"objects"`
	Arcs      [][][]float64            `json:"arcs"`
}

type transform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type topoGeometry struct {
	Type       string          `json:"type"`
	ID         any             `json:"id,omitempty"`
	Properties map[string]any  `json:"properties,omitempty"`
	Arcs       json.RawMessage `json:"arcs,omitempty"`
	Geometries []*topoGeometry `json:"geometries,omitempty"`
}

// DecodeTopology converts a TopoJSON document into GeoJSON features.
// Only the named object is converted when the topology has it; otherwise
// every object is converted, in name order.
func DecodeTopology(data []byte, object string) (*geojson.FeatureCollection, error) {
	var topo topology
	if err := json.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDataset, err)
	}
	if topo.Type != "Topology" {
		return nil, fmt.Errorf("%w: document type %q, want Topology", ErrMalformedDataset, topo.Type)
	}

	arcs, err := topo.decodeArcs()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(topo.Objects))
	if _, ok := topo.Objects[object]; ok {
		names = append(names, object)
	} else {
		for name := range topo.Objects {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	fc := geojson.NewFeatureCollection()
	for _, name := range names {
		if err := appendFeatures(fc, topo.Objects[name], arcs); err != nil {
			return nil, fmt.Errorf("object %q: %w", name, err)
		}
	}
	return fc, nil
}

// decodeArcs resolves the arc table to absolute coordinates, undoing
// delta encoding when the topology is quantized.
func (t *topology) decodeArcs() ([][]orb.Point, error) {
	out := make([][]orb.Point, len(t.Arcs))
	for i, arc := range t.Arcs {
		pts := make([]orb.Point, 0, len(arc))
		var x, y float64
		for j, pos := range arc {
			if len(pos) < 2 {
				return nil, fmt.Errorf("%w: arc %d position %d has %d coordinates", ErrMalformedDataset, i, j, len(pos))
			}
			if t.Transform == nil {
				pts = append(pts, orb.Point{pos[0], pos[1]})
				continue
			}
			x += pos[0]
			y += pos[1]
			pts = append(pts, orb.Point{
				x*t.Transform.Scale[0] + t.Transform.Translate[0],
				y*t.Transform.Scale[1] + t.Transform.Translate[1],
			})
		}
		out[i] = pts
	}
	return out, nil
}

func appendFeatures(fc *geojson.FeatureCollection, g *topoGeometry, arcs [][]orb.Point) error {
	if g == nil {
		return nil
	}
	switch g.Type {
	case "GeometryCollection":
		for _, child := range g.Geometries {
			if err := appendFeatures(fc, child, arcs); err != nil {
				return err
			}
		}
		return nil
	case "Polygon":
		var idx [][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return fmt.Errorf("%w: polygon arcs: %v", ErrMalformedDataset, err)
		}
		poly, err := stitchPolygon(idx, arcs)
		if err != nil {
			return err
		}
		fc.Append(newFeature(poly, g))
		return nil
	case "MultiPolygon":
		var idx [][][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return fmt.Errorf("%w: multipolygon arcs: %v", ErrMalformedDataset, err)
		}
		mp := make(orb.MultiPolygon, 0, len(idx))
		for _, p := range idx {
			poly, err := stitchPolygon(p, arcs)
			if err != nil {
				return err
			}
			mp = append(mp, poly)
		}
		fc.Append(newFeature(mp, g))
		return nil
	default:
		// Points, lines and null geometries carry no land area.
		return nil
	}
}

func newFeature(geom orb.Geometry, g *topoGeometry) *geojson.Feature {
	f := geojson.NewFeature(geom)
	f.ID = g.ID
	for k, v := range g.Properties {
		f.Properties[k] = v
	}
	return f
}

func stitchPolygon(rings [][]int, arcs [][]orb.Point) (orb.Polygon, error) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		ring, err := stitchRing(r, arcs)
		if err != nil {
			return nil, err
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

// stitchRing concatenates arcs into one ring. Consecutive arcs share an
// endpoint, which is emitted once; a negative index (~i) walks arc i
// backwards.
func stitchRing(idx []int, arcs [][]orb.Point) (orb.Ring, error) {
	var ring orb.Ring
	for _, i := range idx {
		reverse := i < 0
		if reverse {
			i = ^i
		}
		if i >= len(arcs) {
			return nil, fmt.Errorf("%w: arc index %d out of range (%d arcs)", ErrMalformedDataset, i, len(arcs))
		}
		if len(ring) > 0 {
			ring = ring[:len(ring)-1]
		}
		arc := arcs[i]
		if reverse {
			for k := len(arc) - 1; k >= 0; k-- {
				ring = append(ring, arc[k])
			}
		} else {
			ring = append(ring, arc...)
		}
	}
	for len(ring) > 0 && len(ring) < 4 {
		ring = append(ring, ring[0])
	}
	return ring, nil
}
