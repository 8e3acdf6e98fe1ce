package overlay

import (
	"image/color"
	"math"
	"strconv"
	"strings"
)

// ParseColor reads "#rgb", "#rrggbb", "rgb(r,g,b)" or "rgba(r,g,b,a)".
// Anything else reads as opaque white.
func ParseColor(input string) color.NRGBA {
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	s := strings.TrimSpace(input)
	lower := strings.ToLower(s)

	if strings.HasPrefix(lower, "rgb") {
		open, end := strings.IndexByte(s, '('), strings.IndexByte(s, ')')
		if open < 0 || end < open {
			return white
		}
		parts := strings.Split(s[open+1:end], ",")
		if len(parts) < 3 {
			return white
		}
		c := white
		for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
			if err != nil {
				return white
			}
			*dst = uint8(math.Max(0, math.Min(255, math.Round(v))))
		}
		if len(parts) > 3 {
			if a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64); err == nil {
				c.A = uint8(math.Round(clamp01(a) * 255))
			}
		}
		return c
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return white
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return white
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 255}
}

// HexToRGBA renders input as a CSS rgba() with alpha a clamped to [0,1].
func HexToRGBA(input string, a float64) string {
	c := ParseColor(input)
	return "rgba(" + strconv.Itoa(int(c.R)) + "," + strconv.Itoa(int(c.G)) + "," + strconv.Itoa(int(c.B)) + "," +
		strconv.FormatFloat(clamp01(a), 'f', -1, 64) + ")"
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 1
	}
	return math.Max(0, math.Min(1, v))
}
