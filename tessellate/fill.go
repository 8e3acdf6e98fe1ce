package tessellate

import (
	"math"
	"math/rand/v2"

	"github.com/paulmach/orb"

	"github.com/security-somanos/blockchain-center/geom"
	"github.com/security-somanos/blockchain-center/model"
)

// Fill samples an offset lattice of tileDeg spacing over each polygon and
// keeps the nodes inside it. Odd rows are shifted by half a step. Rings
// are unwrapped around their own centre first so dateline-crossing
// shapes are filled like any other.
func Fill(polys []orb.Polygon, tileDeg float64) Buffer {
	step := model.ClampTileDeg(tileDeg)

	var out Buffer
	for _, poly := range polys {
		if len(poly) == 0 || len(poly[0]) == 0 {
			continue
		}
		b := geom.UnwrapRing(poly[0], 0).Bound()
		refLon := (b.Min.Lon() + b.Max.Lon()) / 2
		shape := geom.UnwrapPolygon(poly, refLon)
		out = appendLattice(out, shape, step)
	}
	return out
}

func appendLattice(out Buffer, shape orb.Polygon, step float64) Buffer {
	b := shape[0].Bound()
	latStart := math.Floor((b.Min.Lat()-1)/step) * step
	latEnd := math.Ceil((b.Max.Lat()+1)/step) * step
	lonBase := math.Floor((b.Min.Lon()-1)/step) * step
	lonEnd := math.Ceil((b.Max.Lon()+1)/step) * step

	// Rows and columns are indexed so long lattices do not drift.
	rows := int(math.Round((latEnd - latStart) / step))
	for i := 0; i <= rows; i++ {
		lat := latStart + float64(i)*step
		lonStart := lonBase
		if int(math.Round(math.Abs(lat/step)))%2 == 1 {
			lonStart += step / 2
		}
		clat := math.Max(-90, math.Min(90, lat))
		for j := 0; ; j++ {
			lon := lonStart + float64(j)*step
			if lon > lonEnd+1e-9 {
				break
			}
			if geom.PolygonContains(shape, orb.Point{lon, clat}) {
				out = geom.AppendUnit(out, geom.WrapLon(lon), clat)
			}
		}
	}
	return out
}

// Limit returns at most max points of b, picked uniformly by a
// Fisher-Yates shuffle of point indices. b is returned unchanged when it
// is already small enough. A nil rng uses the global source.
func Limit(b Buffer, max int, rng *rand.Rand) Buffer {
	n := b.Points()
	if n <= max {
		return b
	}
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := intN(i + 1)
		idx[i], idx[j] = idx[j], idx[i]
	}

	out := make(Buffer, 0, max*3)
	for _, k := range idx[:max] {
		out = append(out, b[3*k], b[3*k+1], b[3*k+2])
	}
	return out
}
