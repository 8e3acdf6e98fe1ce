package geom

import "math"

// WrapLon folds any longitude into [-180, 180).
func WrapLon(lon float64) float64 {
	m := math.Mod(lon+180, 360)
	if m < 0 {
		m += 360
	}
	return m - 180
}

// UnwrapLon shifts next by ±360 when the step from prev crosses the
// antimeridian, so that |result-prev| <= 180.
func UnwrapLon(prev, next float64) float64 {
	d := next - prev
	if d > 180 {
		return next - 360
	}
	if d < -180 {
		return next + 360
	}
	return next
}

// UnwrapDelta returns the longitude step from a to b on the shorter side
// of the globe.
func UnwrapDelta(a, b float64) float64 {
	return UnwrapLon(a, b) - a
}
