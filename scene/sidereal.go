package scene

import (
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// SiderealPhase returns the Greenwich mean sidereal angle at t, in
// radians. Used as the starting spin of the globe so the lit meridian
// roughly matches the real Earth.
func SiderealPhase(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	return satellite.ThetaG_JD(jd)
}
