// Package overlay builds the pin markers and their HTML label panels and
// tracks which labels are showing.
package overlay

import (
	"fmt"
	"html"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/security-somanos/blockchain-center/geom"
	"github.com/security-somanos/blockchain-center/model"
)

// DefaultFontFamily is used when no label font is configured.
const DefaultFontFamily = "system-ui,-apple-system,Segoe UI,Roboto,sans-serif"

// LabelOffset lifts a label above its pin, in the pin's local frame.
var LabelOffset = r3.Vector{X: 0, Y: 0.08, Z: 0}

// Style is the visual configuration shared by every marker of a scene.
type Style struct {
	LabelColor       string
	PinDotColor      string
	PanelBgColor     string
	PanelBgOpacity   float64
	PanelBorderColor string
	FontFamily       string
	FontSize         float64
	PinSize          float64
	HaloScale        float64
	ShowLabels       bool
}

// StyleFromOptions extracts the marker style from scene options.
func StyleFromOptions(o model.Options) Style {
	return Style{
		LabelColor:       o.LabelColor,
		PinDotColor:      o.PinDotColor,
		PanelBgColor:     o.PinPanelBgColor,
		PanelBgOpacity:   o.PinPanelBgOpacity,
		PanelBorderColor: o.PinPanelBorderColor,
		FontFamily:       o.LabelFontFamily,
		FontSize:         o.LabelFontSize,
		PinSize:          o.PinSize,
		HaloScale:        o.HaloScale,
		ShowLabels:       o.ShowLabels,
	}
}

// Marker is the renderable form of a pin: a small sphere at Anchor, an
// additive halo around it and an optional label.
type Marker struct {
	Pin      model.Pin
	Anchor   r3.Vector // on the unit sphere
	Radius   float64
	HaloSize float64
	Color    string
	Label    *Label // nil when the pin has no text
}

// Label is an HTML panel pinned to a marker.
type Label struct {
	HTML    string
	CSS     string
	Lines   []string // plain-text rendering of HTML
	Offset  r3.Vector
	Visible bool
}

// NewMarker derives the marker for pin.
func NewMarker(pin model.Pin, s Style) *Marker {
	m := &Marker{
		Pin:      pin,
		Anchor:   geom.LonLatToVec3(pin.Lon, pin.Lat, 1),
		Radius:   s.PinSize,
		HaloSize: s.PinSize * s.HaloScale,
		Color:    s.PinDotColor,
	}
	if pin.HasLabel() {
		m.Label = &Label{
			HTML:    LabelHTML(pin),
			CSS:     PanelCSS(s),
			Lines:   labelLines(pin),
			Offset:  LabelOffset,
			Visible: s.ShowLabels || pin.AlwaysShow,
		}
	}
	return m
}

// LabelPosition returns the label's position in globe space, or the
// anchor for a marker without a label.
func (m *Marker) LabelPosition() r3.Vector {
	if m.Label == nil {
		return m.Anchor
	}
	return m.Anchor.Add(m.Label.Offset)
}

// LabelHTML renders the bold name, the address and the phone number.
// Text is escaped and newlines become <br/>.
func LabelHTML(pin model.Pin) string {
	var b strings.Builder
	if pin.Name != "" {
		b.WriteString("<b>")
		b.WriteString(nl2br(pin.Name))
		b.WriteString("</b><br/>")
	}
	if pin.Address != "" {
		b.WriteString(nl2br(pin.Address))
		b.WriteString("<br/>")
	}
	b.WriteString(nl2br(pin.Phone))
	return b.String()
}

func nl2br(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br/>")
}

func labelLines(pin model.Pin) []string {
	var lines []string
	for _, part := range []string{pin.Name, pin.Address, pin.Phone} {
		if part == "" {
			continue
		}
		lines = append(lines, strings.Split(part, "\n")...)
	}
	return lines
}

// PanelCSS renders the inline style of a label panel.
func PanelCSS(s Style) string {
	family := strings.TrimSpace(s.FontFamily)
	if family == "" {
		family = DefaultFontFamily
	}
	size := s.FontSize
	if size <= 0 {
		size = 12
	}
	return "width:280px;max-width:280px;" +
		"white-space:normal;overflow-wrap:anywhere;word-break:break-word;line-break:anywhere;hyphens:auto;" +
		"padding:12px;border-radius:8px;background:" + HexToRGBA(s.PanelBgColor, s.PanelBgOpacity) + ";backdrop-filter:blur(6px);" +
		"border:1px solid " + s.PanelBorderColor + ";color:" + s.LabelColor + ";" +
		"pointer-events:none;font-family:" + family + ";font-size:" + fmt.Sprintf("%gpx", size) + ";line-height:1.35;"
}

// LabelSet tracks label visibility across a scene's markers. It is not
// safe for concurrent use.
type LabelSet struct {
	markers []*Marker
}

// NewLabelSet collects the labels of markers.
func NewLabelSet(markers []*Marker) *LabelSet {
	return &LabelSet{markers: markers}
}

// HideAll hides every label.
func (s *LabelSet) HideAll() {
	for _, m := range s.markers {
		if m.Label != nil {
			m.Label.Visible = false
		}
	}
}

// Reveal hides every label and then shows the label of marker i, if it
// has one. An out-of-range i only hides.
func (s *LabelSet) Reveal(i int) {
	s.HideAll()
	if i < 0 || i >= len(s.markers) {
		return
	}
	if l := s.markers[i].Label; l != nil {
		l.Visible = true
	}
}

// Visible returns the indices of markers whose label is showing.
func (s *LabelSet) Visible() []int {
	var out []int
	for i, m := range s.markers {
		if m.Label != nil && m.Label.Visible {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of markers.
func (s *LabelSet) Len() int { return len(s.markers) }
