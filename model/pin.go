package model

import "strings"

// Pin is a point of interest anchored on the globe surface.
// Pins are treated as immutable once handed to a scene.
type Pin struct {
	Lon     float64 `koanf:"lon" json:"lon"`
	Lat     float64 `koanf:"lat" json:"lat"`
	Name    string  `koanf:"name" json:"name,omitempty"`
	Address string  `koanf:"address" json:"address,omitempty"` // may contain '\n' line breaks
	Phone   string  `koanf:"phone" json:"phone,omitempty"`

	// AlwaysShow keeps the pin's label visible even when labels are
	// otherwise revealed by click only.
	AlwaysShow bool `koanf:"always_show" json:"always_show,omitempty"`
}

// HasLabel reports whether the pin carries any displayable text.
func (p Pin) HasLabel() bool {
	return strings.TrimSpace(p.Name) != "" ||
		strings.TrimSpace(p.Address) != "" ||
		strings.TrimSpace(p.Phone) != ""
}

// AnyLabels reports whether at least one pin has displayable text.
func AnyLabels(pins []Pin) bool {
	for _, p := range pins {
		if p.HasLabel() {
			return true
		}
	}
	return false
}

// DefaultPins is the office list shown when no pins are configured.
func DefaultPins() []Pin {
	return []Pin{
		{Lon: 45.0792, Lat: 23.8859, Name: "Saudi Arabia", Address: "Riyadh, Kingdom of Saudi Arabia", Phone: "+966 11 123-4567"},
		{Lon: 21.8243, Lat: 39.0742, Name: "Greece", Address: "Athens, Greece", Phone: "+30 210 123-4567"},
		{Lon: 18.6435, Lat: 60.1282, Name: "Sweden", Address: "Stockholm, Sweden", Phone: "+46 8 123-4567"},
		{Lon: 24.9668, Lat: 45.9442, Name: "Romania", Address: "Bucharest, Romania", Phone: "+40 21 123-4567"},
		{Lon: -80.1918, Lat: 25.7617, Name: "Miami", Address: "Miami, Florida, USA", Phone: "+1 305 123-4567"},
		{Lon: -74.006, Lat: 40.7128, Name: "New York", Address: "New York City, New York, USA", Phone: "+1 212 123-4567", AlwaysShow: true},
		{Lon: 36.8219, Lat: -1.2921, Name: "Nairobi", Address: "Nairobi, Kenya", Phone: "+254 20 123-4567"},
		{Lon: 55.2708, Lat: 25.2048, Name: "Dubai", Address: "Dubai, United Arab Emirates", Phone: "+971 4 123-4567"},
	}
}
