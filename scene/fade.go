package scene

import (
	"math"

	"github.com/golang/geo/r3"
)

// fadeEdge is where the near hemisphere reaches full strength, in terms
// of the cosine between the view direction and the surface normal.
const fadeEdge = 0.25

// Smoothstep is the GLSL smoothstep.
func Smoothstep(edge0, edge1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-edge0)/(edge1-edge0)))
	return t * t * (3 - 2*t)
}

// HemisphereFade is 0 for points on the far side of the globe and 1 for
// points facing the camera, blending over a band near the horizon.
func HemisphereFade(camPos, p r3.Vector) float64 {
	if p.Norm() == 0 {
		return 1
	}
	ndv := camPos.Sub(p).Normalize().Dot(p.Normalize())
	return Smoothstep(0, fadeEdge, ndv)
}

// FadeAlpha scales alpha between the back-hemisphere floor and full.
func FadeAlpha(alpha, backOpacity, fade float64) float64 {
	return alpha * mix(backOpacity, 1, fade)
}

// FadeSize shrinks far-side points to 60% of their size.
func FadeSize(size, fade float64) float64 {
	return size * mix(0.6, 1, fade)
}

func mix(a, b, t float64) float64 {
	return a + (b-a)*t
}
