package compositor

import (
	"image"
	"image/color"
	"math"
)

const (
	pulseMaxRadius   = 250.0
	pulseBorderWidth = 3.0
)

// Pulse is the animation state of one annotation at one instant.
type Pulse struct {
	Progress float64
	Eased    float64
	Scale    float64
	Radius   float64
	Opacity  float64
}

// PulseAt computes the pulse for progress p in [0, 1]. Radius grows along a
// cubic ease-out from 0.5x to 3.5x; opacity fades linearly from 0.9 to 0.
func PulseAt(p float64) Pulse {
	p = clamp01(p)
	eased := 1 - math.Pow(1-p, 3)
	scale := 0.5 + eased*3.0
	return Pulse{
		Progress: p,
		Eased:    eased,
		Scale:    scale,
		Radius:   pulseMaxRadius * scale / 3.5,
		Opacity:  clamp01(0.9 - p*0.9),
	}
}

// FrameProgress is the progress of an annotation starting at exactFrame and
// lasting duration seconds, evaluated at frame.
func FrameProgress(frame, exactFrame int, duration float64, frameRate int) float64 {
	span := duration * float64(frameRate)
	if span <= 0 {
		return 1
	}
	return clamp01(float64(frame-exactFrame) / span)
}

// TimeProgress is the exact-time counterpart of FrameProgress.
func TimeProgress(t, start, duration float64) float64 {
	if duration <= 0 {
		return 1
	}
	return clamp01((t - start) / duration)
}

// drawPulse paints the glow, inner disc and border of p centered at (cx, cy).
func drawPulse(dst *image.RGBA, cx, cy float64, p Pulse, st PulseStyle) {
	if p.Opacity <= 0 || p.Radius <= 0 {
		return
	}
	outer := p.Radius
	glowStart := p.Radius * 0.7
	inner := p.Radius * 0.4
	halfBorder := pulseBorderWidth / 2

	reach := outer + 1
	area := image.Rect(
		int(math.Floor(cx-reach)), int(math.Floor(cy-reach)),
		int(math.Ceil(cx+reach)), int(math.Ceil(cy+reach)),
	).Intersect(dst.Rect)

	glowAlpha := p.Opacity * 0.8
	discAlpha := p.Opacity * 0.9

	for y := area.Min.Y; y < area.Max.Y; y++ {
		dy := float64(y) + 0.5 - cy
		for x := area.Min.X; x < area.Max.X; x++ {
			dx := float64(x) + 0.5 - cx
			d := math.Sqrt(dx*dx + dy*dy)
			if d > outer+0.5 {
				continue
			}

			g := glowAlpha
			if d > glowStart {
				g *= 1 - (d-glowStart)/(outer-glowStart)
			}
			blend(dst, x, y, st.Accent, g*coverage(outer-d))

			if d <= inner+halfBorder+0.5 {
				blend(dst, x, y, st.Accent, discAlpha*coverage(inner-d))
				blend(dst, x, y, st.Border, discAlpha*coverage(halfBorder-math.Abs(d-inner)))
			}
		}
	}
}

// coverage approximates the fraction of a pixel inside an edge at signed
// distance e.
func coverage(e float64) float64 {
	return clamp01(e + 0.5)
}

// blend composites c at alpha over the premultiplied pixel (x, y).
func blend(dst *image.RGBA, x, y int, c color.NRGBA, alpha float64) {
	a := alpha * float64(c.A) / 255
	if a <= 0 {
		return
	}
	if a > 1 {
		a = 1
	}
	i := dst.PixOffset(x, y)
	px := dst.Pix[i : i+4 : i+4]
	inv := 1 - a
	px[0] = uint8(float64(c.R)*a + float64(px[0])*inv + 0.5)
	px[1] = uint8(float64(c.G)*a + float64(px[1])*inv + 0.5)
	px[2] = uint8(float64(c.B)*a + float64(px[2])*inv + 0.5)
	px[3] = uint8(255*a + float64(px[3])*inv + 0.5)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
