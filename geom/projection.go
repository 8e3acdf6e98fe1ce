// Package geom holds the spherical math shared by the tessellators, the
// pin overlay and the scene: lon/lat projection onto the unit sphere,
// antimeridian wrapping and even-odd containment.
package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

const degToRad = math.Pi / 180

// LonLatToVec3 projects geographic degrees onto a sphere of radius r.
// The y axis points at the north pole and lon=0 faces +x.
func LonLatToVec3(lon, lat, r float64) r3.Vector {
	phi := (90 - lat) * degToRad
	theta := (lon + 180) * degToRad
	sinPhi, cosPhi := math.Sincos(phi)
	sinTheta, cosTheta := math.Sincos(theta)
	return r3.Vector{
		X: -r * sinPhi * cosTheta,
		Y: r * cosPhi,
		Z: r * sinPhi * sinTheta,
	}
}

// AppendUnit appends the unit-sphere projection of (lon, lat) to a flat
// xyz float32 buffer.
func AppendUnit(buf []float32, lon, lat float64) []float32 {
	v := LonLatToVec3(lon, lat, 1)
	return append(buf, float32(v.X), float32(v.Y), float32(v.Z))
}

// RotateY rotates v about the vertical axis by angle radians
// (right-handed, matching a scene group's rotation.y).
func RotateY(v r3.Vector, angle float64) r3.Vector {
	s, c := math.Sincos(angle)
	return r3.Vector{
		X: v.X*c + v.Z*s,
		Y: v.Y,
		Z: -v.X*s + v.Z*c,
	}
}
