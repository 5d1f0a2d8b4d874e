// Package palette assigns each channel a distinct, deterministic colour.
//
// Hues are spread by repeatedly stepping the golden-ratio conjugate around
// the colour wheel, which keeps neighbouring channels visually apart no
// matter how many channels are configured.
package palette

import "fmt"

const (
	goldenRatioConjugate = 0.618033988749895
	startHue             = 0.3
	saturation           = 0.9
	brightness           = 0.95
)

// RGB is an 8-bit colour.
type RGB struct {
	R, G, B uint8
}

// Hex returns the colour in #rrggbb form.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ForChannels returns one colour per channel. The same count always yields
// the same colours.
func ForChannels(n int) []RGB {
	out := make([]RGB, 0, n)
	h := startHue
	for i := 0; i < n; i++ {
		h += goldenRatioConjugate
		h -= float64(int(h))
		out = append(out, hsvToRGB(h, saturation, brightness))
	}
	return out
}

// HexForChannels is ForChannels rendered as #rrggbb strings.
func HexForChannels(n int) []string {
	colors := ForChannels(n)
	out := make([]string, len(colors))
	for i, c := range colors {
		out[i] = c.Hex()
	}
	return out
}

func hsvToRGB(h, s, v float64) RGB {
	hi := int(h * 6)
	f := h*6 - float64(hi)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch hi {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return RGB{R: channel8(r), G: channel8(g), B: channel8(b)}
}

// channel8 scales a [0, 1] component to a byte, saturating at 255.
func channel8(x float64) uint8 {
	n := int(x * 256)
	if n > 255 {
		return 255
	}
	if n < 0 {
		return 0
	}
	return uint8(n)
}
