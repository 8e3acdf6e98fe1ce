package overlay

import (
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/security-somanos/blockchain-center/model"
)

func TestHexToRGBA(t *testing.T) {
	tests := []struct {
		in    string
		alpha float64
		want  string
	}{
		{"#000000", 0.9, "rgba(0,0,0,0.9)"},
		{"#fff", 1, "rgba(255,255,255,1)"},
		{"1a2B3c", 0.5, "rgba(26,43,60,0.5)"},
		{"rgb(10, 20, 30)", 2, "rgba(10,20,30,1)"},
		{"rgba(10,20,30,0.1)", -1, "rgba(10,20,30,0)"},
		{"not a colour", 0.3, "rgba(255,255,255,0.3)"},
	}
	for _, tc := range tests {
		if got := HexToRGBA(tc.in, tc.alpha); got != tc.want {
			t.Fatalf("HexToRGBA(%q, %v) = %q, want %q", tc.in, tc.alpha, got, tc.want)
		}
	}
}

func TestParseColorAlpha(t *testing.T) {
	if got := ParseColor("rgba(1,2,3,0.5)"); got != (color.NRGBA{R: 1, G: 2, B: 3, A: 128}) {
		t.Fatalf("ParseColor = %+v", got)
	}
}

func TestNewMarker(t *testing.T) {
	style := StyleFromOptions(model.DefaultOptions())
	pin := model.Pin{Lon: 0, Lat: 0, Name: "Test"}
	m := NewMarker(pin, style)

	if math.Abs(m.Anchor.Norm()-1) > 1e-12 || math.Abs(m.Anchor.X-1) > 1e-12 {
		t.Fatalf("anchor = %v, want (1,0,0)", m.Anchor)
	}
	if m.Radius != 0.012 || math.Abs(m.HaloSize-0.12) > 1e-12 {
		t.Fatalf("radius/halo = %v/%v", m.Radius, m.HaloSize)
	}
	if m.Label == nil {
		t.Fatalf("named pin has no label")
	}
	if m.Label.Offset != LabelOffset || math.Abs(m.LabelPosition().Y-0.08) > 1e-12 {
		t.Fatalf("label offset = %v, position = %v", m.Label.Offset, m.LabelPosition())
	}
	if !m.Label.Visible {
		t.Fatalf("labels should start visible when ShowLabels is set")
	}

	if NewMarker(model.Pin{Lon: 10, Lat: 10}, style).Label != nil {
		t.Fatalf("pin without text should have no label")
	}
}

func TestLabelPositionUsesLabelOffset(t *testing.T) {
	style := StyleFromOptions(model.DefaultOptions())
	m := NewMarker(model.Pin{Lon: 0, Lat: 90, Name: "Pole"}, style)
	m.Label.Offset = r3.Vector{X: 0.5, Y: 0, Z: 0}

	got := m.LabelPosition()
	want := m.Anchor.Add(m.Label.Offset)
	if got.Sub(want).Norm() > 1e-12 {
		t.Fatalf("label position = %v, want %v", got, want)
	}

	bare := NewMarker(model.Pin{Lon: 10, Lat: 10}, style)
	if bare.LabelPosition() != bare.Anchor {
		t.Fatalf("unlabeled marker position = %v, want anchor %v", bare.LabelPosition(), bare.Anchor)
	}
}

func TestInitialVisibility(t *testing.T) {
	style := StyleFromOptions(model.DefaultOptions())
	style.ShowLabels = false

	hidden := NewMarker(model.Pin{Name: "a"}, style)
	pinned := NewMarker(model.Pin{Name: "b", AlwaysShow: true}, style)
	if hidden.Label.Visible {
		t.Fatalf("label visible without ShowLabels or AlwaysShow")
	}
	if !pinned.Label.Visible {
		t.Fatalf("AlwaysShow label hidden")
	}
}

func TestLabelHTML(t *testing.T) {
	pin := model.Pin{
		Name:    "Miami <HQ>",
		Address: "Suite 1\nMiami, Florida, USA",
		Phone:   "+1 305 & co",
	}
	got := LabelHTML(pin)
	want := "<b>Miami &lt;HQ&gt;</b><br/>Suite 1<br/>Miami, Florida, USA<br/>+1 305 &amp; co"
	if got != want {
		t.Fatalf("LabelHTML = %q, want %q", got, want)
	}
	if got := LabelHTML(model.Pin{Phone: "123"}); got != "123" {
		t.Fatalf("phone-only label = %q", got)
	}
}

func TestPanelCSS(t *testing.T) {
	style := StyleFromOptions(model.DefaultOptions())
	css := PanelCSS(style)
	for _, want := range []string{
		"background:rgba(0,0,0,0.9)",
		"border:1px solid #FFFFFF",
		"font-family:Inter",
		"font-size:12px",
	} {
		if !strings.Contains(css, want) {
			t.Fatalf("css %q missing %q", css, want)
		}
	}
	style.FontFamily = " "
	if !strings.Contains(PanelCSS(style), "font-family:"+DefaultFontFamily) {
		t.Fatalf("empty font family should fall back")
	}
}

func TestLabelSetReveal(t *testing.T) {
	style := StyleFromOptions(model.DefaultOptions())
	markers := []*Marker{
		NewMarker(model.Pin{Name: "a"}, style),
		NewMarker(model.Pin{}, style),
		NewMarker(model.Pin{Name: "c"}, style),
	}
	set := NewLabelSet(markers)
	if got := set.Visible(); len(got) != 2 {
		t.Fatalf("visible = %v, want both labelled pins", got)
	}

	set.Reveal(2)
	if got := set.Visible(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("visible after Reveal(2) = %v", got)
	}
	set.Reveal(1)
	if got := set.Visible(); len(got) != 0 {
		t.Fatalf("revealing a label-less pin should leave none visible, got %v", got)
	}
	set.Reveal(0)
	set.HideAll()
	if got := set.Visible(); len(got) != 0 {
		t.Fatalf("visible after HideAll = %v", got)
	}
	set.Reveal(99)
	if set.Len() != 3 {
		t.Fatalf("Len = %d", set.Len())
	}
}
