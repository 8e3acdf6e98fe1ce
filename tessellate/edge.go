package tessellate

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/security-somanos/blockchain-center/geom"
)

// Edges subdivides every ring segment so that consecutive dots are at
// most densityDeg apart in longitude and latitude. Segments crossing the
// antimeridian take the short way round. densityDeg is raised to
// MinEdgeDensityDeg.
func Edges(polys []orb.Polygon, densityDeg float64) Buffer {
	d := math.Max(MinEdgeDensityDeg, densityDeg)
	if math.IsNaN(densityDeg) {
		d = MinEdgeDensityDeg
	}

	var out Buffer
	for _, poly := range polys {
		for _, ring := range poly {
			for i := 0; i+1 < len(ring); i++ {
				out = appendSegment(out, ring[i], ring[i+1], d)
			}
		}
	}
	return out
}

func appendSegment(out Buffer, a, b orb.Point, d float64) Buffer {
	lon0, lat0 := a.Lon(), a.Lat()
	dLon := geom.UnwrapDelta(lon0, b.Lon())
	dLat := b.Lat() - lat0

	steps := int(math.Ceil(math.Max(math.Abs(dLon), math.Abs(dLat)) / d))
	if steps < 1 {
		steps = 1
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		out = geom.AppendUnit(out, geom.WrapLon(lon0+dLon*t), lat0+dLat*t)
	}
	return out
}
