package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_BlackFallsBackToNeutralWhite(t *testing.T) {
	xy, bri, err := Translate("black")
	require.NoError(t, err)
	assert.Equal(t, NeutralWhite, xy)
	assert.Equal(t, uint8(1), bri, "brightness floors at 1, never 0")
}

func TestTranslate_Invalid(t *testing.T) {
	_, _, err := Translate("not-a-color")
	assert.Error(t, err)

	_, _, err = Translate("")
	assert.Error(t, err)
}

func TestTranslate_SaturatedRed(t *testing.T) {
	xy, bri, err := Translate("rgba(255,0,0,1)")
	require.NoError(t, err)
	assert.Equal(t, uint8(254), bri)
	assert.Greater(t, xy.X, xy.Y, "saturated red sits in the x > y region")
}

func TestTranslate_NamedAndHexAgree(t *testing.T) {
	named, nb, err := Translate("red")
	require.NoError(t, err)
	hex, hb, err := Translate("#ff0000")
	require.NoError(t, err)
	assert.InDelta(t, named.X, hex.X, 1e-9)
	assert.InDelta(t, named.Y, hex.Y, 1e-9)
	assert.Equal(t, nb, hb)
}

func TestTranslate_AlphaScalesBrightness(t *testing.T) {
	_, full, err := Translate("rgba(255,255,255,1)")
	require.NoError(t, err)
	_, half, err := Translate("rgba(255,255,255,0.5)")
	require.NoError(t, err)
	assert.Equal(t, uint8(254), full)
	assert.Equal(t, uint8(127), half)
}

func TestTranslate_WhiteNearNeutral(t *testing.T) {
	xy, _, err := Translate("white")
	require.NoError(t, err)
	assert.InDelta(t, NeutralWhite.X, xy.X, 0.02)
	assert.InDelta(t, NeutralWhite.Y, xy.Y, 0.02)
}

func TestBrightness_Clamping(t *testing.T) {
	assert.Equal(t, uint8(1), Brightness(0))
	assert.Equal(t, uint8(1), Brightness(-3))
	assert.Equal(t, uint8(254), Brightness(1))
	assert.Equal(t, uint8(254), Brightness(7))
	assert.Equal(t, uint8(127), Brightness(0.5))
}
