package hue

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Documented Hue state ranges.
const (
	MinBrightness = 0
	MaxBrightness = 254
	MinHue        = 0
	MaxHue        = 65535
	MinSaturation = 0
	MaxSaturation = 254
	MinMired      = 153
	MaxMired      = 500
)

// RGBToXY converts an sRGB colour to CIE 1931 xy chromaticity using the
// gamma-corrected sRGB to XYZ transform. Black maps to the D65 white point.
func RGBToXY(r, g, b uint8) (x, y float64) {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	x, y, _ = c.Xyy()
	return clampFloat(x, 0, 1), clampFloat(y, 0, 1)
}

// RGBToHueSat converts an sRGB colour to Hue's hue, sat and bri scales.
func RGBToHueSat(r, g, b uint8) (hue, sat, bri int) {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, v := c.Hsv()
	hue = clampInt(int(math.Round(h/360*MaxHue)), MinHue, MaxHue)
	sat = clampInt(int(math.Round(s*MaxSaturation)), MinSaturation, MaxSaturation)
	bri = clampInt(int(math.Round(v*MaxBrightness)), MinBrightness, MaxBrightness)
	return hue, sat, bri
}

// KelvinToMired converts a colour temperature to mireds within the bulb range.
func KelvinToMired(kelvin int) int {
	if kelvin <= 0 {
		return MaxMired
	}
	return clampInt(int(math.Round(1e6/float64(kelvin))), MinMired, MaxMired)
}

// BrightnessFromPercent maps 0-100% onto 0-254.
func BrightnessFromPercent(percent float64) int {
	return clampInt(int(math.Round(percent/100*MaxBrightness)), MinBrightness, MaxBrightness)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
