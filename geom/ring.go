package geom

import "github.com/paulmach/orb"

// UnwrapRing rewrites a ring's longitudes into one continuous frame near
// refLon: every vertex is first pulled within 180° of refLon and then
// within 180° of its predecessor, so dateline-crossing rings stay
// contiguous instead of spanning the whole map.
func UnwrapRing(ring orb.Ring, refLon float64) orb.Ring {
	out := make(orb.Ring, len(ring))
	for i, p := range ring {
		lon := UnwrapLon(refLon, p.Lon())
		if i > 0 {
			lon = UnwrapLon(out[i-1].Lon(), lon)
		}
		out[i] = orb.Point{lon, p.Lat()}
	}
	return out
}

// RingBound returns the lon/lat extent of a ring as-is (no unwrapping).
func RingBound(ring orb.Ring) orb.Bound {
	if len(ring) == 0 {
		return orb.Bound{}
	}
	return ring.Bound()
}

// PointInRing is the even-odd ray casting test. Horizontal edges never
// toggle the state.
func PointInRing(pt orb.Point, ring orb.Ring) bool {
	x, y := pt.Lon(), pt.Lat()
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lon(), ring[i].Lat()
		xj, yj := ring[j].Lon(), ring[j].Lat()
		denom := yj - yi
		if denom == 0 {
			continue
		}
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/denom+xi {
			inside = !inside
		}
	}
	return inside
}

// PolygonContains reports whether pt lies inside the outer ring and
// outside every hole. Rings are used in the frame they are given in.
func PolygonContains(poly orb.Polygon, pt orb.Point) bool {
	if len(poly) == 0 || !PointInRing(pt, poly[0]) {
		return false
	}
	for _, hole := range poly[1:] {
		if PointInRing(pt, hole) {
			return false
		}
	}
	return true
}

// UnwrapPolygon unwraps every ring of poly relative to refLon.
func UnwrapPolygon(poly orb.Polygon, refLon float64) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		out[i] = UnwrapRing(r, refLon)
	}
	return out
}

// ClonePolygons deep-copies polygons so a worker never shares backing
// arrays with its caller.
func ClonePolygons(polys []orb.Polygon) []orb.Polygon {
	out := make([]orb.Polygon, len(polys))
	for i, p := range polys {
		out[i] = p.Clone()
	}
	return out
}
