// Package color converts CSS colour text into the hub's native colour model:
// a gamma-corrected chromaticity pair plus a 1..254 brightness level.
package color

import (
	"fmt"
	"math"

	"github.com/mazznoer/csscolorparser"
)

// XY is a chromaticity point, the 2-D projection of a tristimulus colour.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NeutralWhite is the D65 white point, used as a fallback when the input
// colour is pure black and the chromaticity projection would divide by zero.
var NeutralWhite = XY{X: 0.3127, Y: 0.3290}

const (
	// Native brightness range. 0 is not a legal value on the wire.
	BrightnessMin uint8 = 1
	BrightnessMax uint8 = 254
)

// Translate parses a CSS colour expression (named, hex, or functional form)
// and returns its chromaticity plus a brightness level. The alpha channel is
// repurposed as a brightness multiplier. An unparseable expression is an
// error, not a panic; the function is total and side-effect-free.
func Translate(text string) (XY, uint8, error) {
	c, err := csscolorparser.Parse(text)
	if err != nil {
		return XY{}, 0, fmt.Errorf("invalid color %q: %w", text, err)
	}

	lr := gammaExpand(c.R)
	lg := gammaExpand(c.G)
	lb := gammaExpand(c.B)

	// Wide-gamut D65 sensor matrix used by the hub's colour engine.
	x := lr*0.664511 + lg*0.154324 + lb*0.162028
	y := lr*0.283881 + lg*0.668433 + lb*0.047685
	z := lr*0.000088 + lg*0.072310 + lb*0.986039

	xy := NeutralWhite
	if sum := x + y + z; sum > 0 {
		xy = XY{X: x / sum, Y: y / sum}
	}

	return xy, Brightness(math.Max(c.R, math.Max(c.G, c.B)) * c.A), nil
}

// gammaExpand applies the sRGB transfer function: linear below the 0.04045
// threshold, power-law 2.4 above it.
func gammaExpand(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// Brightness scales a 0..1 fraction to the native 1..254 range, clamping
// out-of-range input and flooring at 1.
func Brightness(f float64) uint8 {
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	b := math.Round(f * float64(BrightnessMax))
	if b < float64(BrightnessMin) {
		return BrightnessMin
	}
	return uint8(b)
}
