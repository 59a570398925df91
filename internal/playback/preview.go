package playback

import (
	"fmt"
	"image"
	"image/png"
	"io"

	"golang.org/x/image/draw"

	"github.com/indii/reelstudio/internal/compositor"
)

// Renderer renders one live frame at an exact time.
type Renderer interface {
	RenderAt(t float64, ps compositor.PreviewState) *image.RGBA
}

// Preview renders the frame under the clock's playhead.
func Preview(c *Clock, r Renderer) (*image.RGBA, Status) {
	st := c.Status()
	img := r.RenderAt(st.Time, compositor.PreviewState{Playing: st.State == StatePlaying})
	return img, st
}

// Scale returns img resized to width, keeping the aspect ratio. A width of
// zero or one not smaller than the source returns img unchanged.
func Scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || width >= b.Dx() {
		return img
	}
	height := max(1, b.Dy()*width/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// WritePNG encodes a preview frame.
func WritePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}
