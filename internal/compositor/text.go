package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	titleShadowOffset = 2
	// Three box passes of this radius approximate a 10px canvas shadow blur.
	titleShadowRadius = 4
	labelFontSize     = 24.0
)

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// textRun is a rasterized string. Mask bounds are relative to the baseline
// origin of the first glyph.
type textRun struct {
	mask    *image.Alpha
	advance float64
}

func renderText(s string, size float64) (*textRun, error) {
	f, err := boldFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	defer face.Close()

	b, adv := font.BoundString(face, s)
	r := image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
	mask := image.NewAlpha(r)
	d := font.Drawer{Dst: mask, Src: image.Opaque, Face: face, Dot: fixed.Point26_6{}}
	d.DrawString(s)

	return &textRun{mask: mask, advance: float64(adv) / 64}, nil
}

// renderTitle pre-renders the start-screen title as a transparent layer
// positioned in canvas coordinates: centered horizontally with its baseline
// on the vertical center, over a blurred light shadow.
func renderTitle(title string, w, h int, st Style) (*image.RGBA, error) {
	run, err := renderText(title, math.Floor(float64(w)/10))
	if err != nil {
		return nil, err
	}

	origin := image.Pt(int(math.Round((float64(w)-run.advance)/2)), h/2)
	textRect := run.mask.Rect.Add(origin)
	shadowRect := textRect.Add(image.Pt(titleShadowOffset, titleShadowOffset))

	pad := titleShadowRadius*3 + 1
	layerRect := textRect.Union(shadowRect).Inset(-pad).Intersect(image.Rect(0, 0, w, h))
	if layerRect.Empty() {
		return image.NewRGBA(image.Rectangle{}), nil
	}

	shadow := image.NewAlpha(layerRect)
	draw.Draw(shadow, shadowRect, run.mask, run.mask.Rect.Min, draw.Src)
	for range 3 {
		boxBlur(shadow, titleShadowRadius)
	}

	layer := image.NewRGBA(layerRect)
	draw.DrawMask(layer, layerRect, image.NewUniform(st.TitleShadow), image.Point{}, shadow, layerRect.Min, draw.Over)
	draw.DrawMask(layer, textRect, image.NewUniform(st.TitleColor), image.Point{}, run.mask, run.mask.Rect.Min, draw.Over)
	return layer, nil
}

// drawCenteredText draws run centered on (cx, cy) in c at the given alpha.
func drawCenteredText(dst *image.RGBA, run *textRun, cx, cy float64, c color.NRGBA, alpha float64) {
	a := clamp01(alpha) * float64(c.A) / 255
	if a <= 0 {
		return
	}
	mb := run.mask.Rect
	ox := int(math.Round(cx - float64(mb.Min.X+mb.Max.X)/2))
	oy := int(math.Round(cy - float64(mb.Min.Y+mb.Max.Y)/2))
	target := mb.Add(image.Pt(ox, oy))
	src := image.NewUniform(color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(a*255 + 0.5)})
	draw.DrawMask(dst, target, src, image.Point{}, run.mask, mb.Min, draw.Over)
}

// boxBlur blurs m in place with a (2r+1) box, horizontally then vertically.
// Pixels outside m count as transparent.
func boxBlur(m *image.Alpha, r int) {
	b := m.Rect
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 || r <= 0 {
		return
	}
	size := 2*r + 1
	tmp := make([]uint8, len(m.Pix))

	for y := 0; y < h; y++ {
		row := m.Pix[y*m.Stride : y*m.Stride+w]
		out := tmp[y*m.Stride : y*m.Stride+w]
		sum := 0
		for x := -r; x <= r; x++ {
			if x >= 0 && x < w {
				sum += int(row[x])
			}
		}
		for x := 0; x < w; x++ {
			out[x] = uint8(sum / size)
			if in := x + r + 1; in < w {
				sum += int(row[in])
			}
			if old := x - r; old >= 0 {
				sum -= int(row[old])
			}
		}
	}

	for x := 0; x < w; x++ {
		sum := 0
		for y := -r; y <= r; y++ {
			if y >= 0 && y < h {
				sum += int(tmp[y*m.Stride+x])
			}
		}
		for y := 0; y < h; y++ {
			m.Pix[y*m.Stride+x] = uint8(sum / size)
			if in := y + r + 1; in < h {
				sum += int(tmp[in*m.Stride+x])
			}
			if old := y - r; old >= 0 {
				sum -= int(tmp[old*m.Stride+x])
			}
		}
	}
}
