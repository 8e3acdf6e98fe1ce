package model

import (
	"fmt"
	"math"
	"strings"
)

// PreloaderTheme selects the colour scheme of the loading indicator.
type PreloaderTheme string

const (
	PreloaderDark  PreloaderTheme = "Dark"
	PreloaderLight PreloaderTheme = "Light"
)

// Rotation modes for the initial spin phase of the globe.
const (
	RotationNone     = "none"
	RotationSidereal = "sidereal" // phase follows Greenwich sidereal time
)

// Tiling density bounds, in degrees.
const (
	MinTileDeg = 0.2
	MaxTileDeg = 6.0
)

// Options is the static configuration of one globe scene.
type Options struct {
	AutoRotateSpeed float64 `koanf:"auto_rotate_speed" json:"auto_rotate_speed"` // radians per second
	PointSize       float64 `koanf:"point_size" json:"point_size"`
	TileDeg         float64 `koanf:"tile_deg" json:"tile_deg"`
	Zoom            bool    `koanf:"zoom" json:"zoom"`
	Pins            []Pin   `koanf:"pins" json:"pins"`

	PointColor          string  `koanf:"point_color" json:"point_color"`
	LabelColor          string  `koanf:"label_color" json:"label_color"`
	PinDotColor         string  `koanf:"pin_dot_color" json:"pin_dot_color"`
	PinPanelBgColor     string  `koanf:"pin_panel_bg_color" json:"pin_panel_bg_color"`
	PinPanelBgOpacity   float64 `koanf:"pin_panel_bg_opacity" json:"pin_panel_bg_opacity"`
	PinPanelBorderColor string  `koanf:"pin_panel_border_color" json:"pin_panel_border_color"`

	BackOpacity float64 `koanf:"back_opacity" json:"back_opacity"`
	FillColor   string  `koanf:"fill_color" json:"fill_color"`
	FillOpacity float64 `koanf:"fill_opacity" json:"fill_opacity"`

	ShowLabels      bool    `koanf:"show_labels" json:"show_labels"`
	PinSize         float64 `koanf:"pin_size" json:"pin_size"`
	HaloScale       float64 `koanf:"halo_scale" json:"halo_scale"`
	LabelFontFamily string  `koanf:"label_font_family" json:"label_font_family"`
	LabelFontSize   float64 `koanf:"label_font_size" json:"label_font_size"`

	PreloaderTheme PreloaderTheme `koanf:"preloader_theme" json:"preloader_theme"`
	Rotation       string         `koanf:"rotation" json:"rotation"`
}

// DefaultOptions mirrors the stock look of the marketing site globe.
func DefaultOptions() Options {
	return Options{
		AutoRotateSpeed:     0.03,
		PointSize:           0.006,
		TileDeg:             1.0,
		Zoom:                false,
		Pins:                DefaultPins(),
		PointColor:          "#FFFFFF",
		LabelColor:          "#FFFFFF",
		PinDotColor:         "#FFFFFF",
		PinPanelBgColor:     "#000000",
		PinPanelBgOpacity:   0.9,
		PinPanelBorderColor: "#FFFFFF",
		BackOpacity:         0.05,
		FillColor:           "#FFFFFF",
		FillOpacity:         0.6,
		ShowLabels:          true,
		PinSize:             0.012,
		HaloScale:           10,
		LabelFontFamily:     "Inter",
		LabelFontSize:       12,
		PreloaderTheme:      PreloaderDark,
		Rotation:            RotationNone,
	}
}

// ClampTileDeg bounds a fill lattice step to [MinTileDeg, MaxTileDeg].
// Zero and NaN fall back to one degree.
func ClampTileDeg(deg float64) float64 {
	if deg == 0 || math.IsNaN(deg) {
		deg = 1.0
	}
	return math.Max(MinTileDeg, math.Min(MaxTileDeg, deg))
}

// Validate reports options that cannot produce a usable scene.
func (o Options) Validate() error {
	if math.IsNaN(o.TileDeg) || o.TileDeg < 0 {
		return fmt.Errorf("tile_deg must be a non-negative number, got %v", o.TileDeg)
	}
	if o.PointSize <= 0 {
		return fmt.Errorf("point_size must be positive, got %v", o.PointSize)
	}
	if o.PinSize <= 0 {
		return fmt.Errorf("pin_size must be positive, got %v", o.PinSize)
	}
	for name, v := range map[string]float64{
		"back_opacity":         o.BackOpacity,
		"fill_opacity":         o.FillOpacity,
		"pin_panel_bg_opacity": o.PinPanelBgOpacity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	switch strings.ToLower(o.Rotation) {
	case "", RotationNone, RotationSidereal:
	default:
		return fmt.Errorf("unsupported rotation mode %q", o.Rotation)
	}
	for i, p := range o.Pins {
		if p.Lon < -180 || p.Lon > 180 || p.Lat < -90 || p.Lat > 90 {
			return fmt.Errorf("pin %d (%s) out of range: lon=%v lat=%v", i, p.Name, p.Lon, p.Lat)
		}
	}
	return nil
}
