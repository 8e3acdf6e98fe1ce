package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

const eps = 1e-9

func TestLonLatToVec3UnitSphere(t *testing.T) {
	for _, ll := range [][2]float64{{0, 0}, {45, 30}, {-120, -60}, {180, 89.9}, {-180, -90}} {
		v := LonLatToVec3(ll[0], ll[1], 1)
		if got := v.Norm(); math.Abs(got-1) > eps {
			t.Fatalf("|LonLatToVec3(%v, %v)| = %v, want 1", ll[0], ll[1], got)
		}
	}
}

func TestLonLatToVec3ReferencePoints(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float64
		want     [3]float64
	}{
		{name: "null island faces +x", lon: 0, lat: 0, want: [3]float64{1, 0, 0}},
		{name: "north pole", lon: 30, lat: 90, want: [3]float64{0, 1, 0}},
		{name: "lon 90 faces -z", lon: 90, lat: 0, want: [3]float64{0, 0, -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := LonLatToVec3(tc.lon, tc.lat, 1)
			got := [3]float64{v.X, v.Y, v.Z}
			for i := range got {
				if math.Abs(got[i]-tc.want[i]) > 1e-9 {
					t.Fatalf("LonLatToVec3(%v,%v) = %v, want %v", tc.lon, tc.lat, got, tc.want)
				}
			}
		})
	}
}

func TestAntimeridianProjectsToSamePoint(t *testing.T) {
	a := LonLatToVec3(180, 0, 1)
	b := LonLatToVec3(-180, 0, 1)
	if a.Distance(b) > eps {
		t.Fatalf("lon=180 and lon=-180 differ: %v vs %v", a, b)
	}
}

func TestAppendUnit(t *testing.T) {
	buf := AppendUnit(nil, 0, 0)
	buf = AppendUnit(buf, 0, 90)
	if len(buf) != 6 {
		t.Fatalf("len(buf) = %d, want 6", len(buf))
	}
	if buf[0] != 1 || buf[4] != 1 {
		t.Fatalf("unexpected buffer %v", buf)
	}
}

func TestWrapLonRange(t *testing.T) {
	for lon := -1080.0; lon <= 1080; lon += 7.25 {
		got := WrapLon(lon)
		if got < -180 || got > 180 {
			t.Fatalf("WrapLon(%v) = %v, outside [-180,180]", lon, got)
		}
		if d := math.Mod(math.Abs(got-lon), 360); d > 1e-9 && math.Abs(d-360) > 1e-9 {
			t.Fatalf("WrapLon(%v) = %v is not congruent mod 360", lon, got)
		}
	}
}

func TestUnwrapPicksShortestBranch(t *testing.T) {
	for a := -180.0; a <= 180; a += 15 {
		for b := -180.0; b <= 180; b += 15 {
			if math.Abs(a-b) <= 180 {
				if got := UnwrapLon(a, b); got != b {
					t.Fatalf("UnwrapLon(%v,%v) = %v, want unchanged", a, b, got)
				}
				continue
			}
			d := UnwrapDelta(a, b)
			for _, alt := range []float64{b - a, b + 360 - a, b - 360 - a} {
				if math.Abs(d) > math.Abs(alt)+eps {
					t.Fatalf("UnwrapDelta(%v,%v) = %v, but %v is shorter", a, b, d, alt)
				}
			}
			if math.Abs(d) > 180 {
				t.Fatalf("UnwrapDelta(%v,%v) = %v exceeds 180", a, b, d)
			}
		}
	}
}

func square(half float64) orb.Ring {
	return orb.Ring{{-half, -half}, {half, -half}, {half, half}, {-half, half}, {-half, -half}}
}

func TestPointInRingSquare(t *testing.T) {
	ring := orb.Ring{{-10, -10}, {10, -10}, {10, 10}, {-10, 10}}
	if !PointInRing(orb.Point{0, 0}, ring) {
		t.Fatalf("(0,0) should be inside the square")
	}
	if PointInRing(orb.Point{20, 20}, ring) {
		t.Fatalf("(20,20) should be outside the square")
	}
}

func TestPolygonContainsHole(t *testing.T) {
	poly := orb.Polygon{square(10), square(3)}
	tests := []struct {
		pt   orb.Point
		want bool
	}{
		{orb.Point{0, 0}, false},
		{orb.Point{5, 5}, true},
		{orb.Point{20, 20}, false},
		{orb.Point{-7, 1}, true},
	}
	for _, tc := range tests {
		if got := PolygonContains(poly, tc.pt); got != tc.want {
			t.Fatalf("PolygonContains(%v) = %v, want %v", tc.pt, got, tc.want)
		}
	}
	if PolygonContains(nil, orb.Point{0, 0}) {
		t.Fatalf("empty polygon must not contain anything")
	}
}

func TestUnwrapRingAcrossDateline(t *testing.T) {
	ring := orb.Ring{{175, -10}, {-175, -10}, {-175, 10}, {175, 10}, {175, -10}}
	un := UnwrapRing(ring, 180)
	b := un.Bound()
	if w := b.Max.Lon() - b.Min.Lon(); w > 11 {
		t.Fatalf("unwrapped ring spans %v degrees, want ~10", w)
	}
	if !PointInRing(orb.Point{180, 0}, un) {
		t.Fatalf("dateline point should be inside unwrapped ring %v", un)
	}
}

func TestRotateY(t *testing.T) {
	v := LonLatToVec3(0, 0, 1)
	r := RotateY(v, math.Pi/2)
	if math.Abs(r.X) > eps || math.Abs(r.Z+1) > eps {
		t.Fatalf("RotateY(+x, 90°) = %v, want (0,0,-1)", r)
	}
}

func TestClonePolygonsIsDeep(t *testing.T) {
	src := []orb.Polygon{{square(1)}}
	cp := ClonePolygons(src)
	cp[0][0][0] = orb.Point{99, 99}
	if src[0][0][0] == (orb.Point{99, 99}) {
		t.Fatalf("ClonePolygons shares backing arrays")
	}
}
