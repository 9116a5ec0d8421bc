package heightmap

import (
	"image"
	"image/color"
	"math"

	"github.com/chazu/frep/pkg/interval"
)

// DepthImage holds the height of the topmost filled voxel for every pixel,
// or -Inf where the column is empty. Pixel (x, y) is sample x of the X axis
// and sample y of the Y axis.
type DepthImage struct {
	Width, Height int
	Pix           []float64
}

// NewDepthImage returns an image with every pixel set to -Inf.
func NewDepthImage(w, h int) *DepthImage {
	d := &DepthImage{Width: w, Height: h, Pix: make([]float64, w*h)}
	for i := range d.Pix {
		d.Pix[i] = math.Inf(-1)
	}
	return d
}

// At returns pixel (x, y).
func (d *DepthImage) At(x, y int) float64 { return d.Pix[y*d.Width+x] }

// Set writes pixel (x, y).
func (d *DepthImage) Set(x, y int, z float64) { d.Pix[y*d.Width+x] = z }

// Gray16 maps depths in z linearly onto the full grey range, with empty
// pixels black. Row 0 of the result is the highest Y sample.
func (d *DepthImage) Gray16(z interval.Interval) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, d.Width, d.Height))
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width; x++ {
			v := d.At(x, y)
			if math.IsInf(v, -1) {
				continue
			}
			t := (v - z.Lo) / z.Width()
			t = max(0, min(1, t))
			img.SetGray16(x, d.Height-1-y, color.Gray16{Y: uint16(t * 0xffff)})
		}
	}
	return img
}

// NormalImage holds packed unit normals, 0xAABBGGRR with each component
// mapped from [-1, 1] onto [0, 255]. Empty pixels are 0.
type NormalImage struct {
	Width, Height int
	Pix           []uint32
}

// NewNormalImage returns a zeroed image.
func NewNormalImage(w, h int) *NormalImage {
	return &NormalImage{Width: w, Height: h, Pix: make([]uint32, w*h)}
}

// At returns pixel (x, y).
func (n *NormalImage) At(x, y int) uint32 { return n.Pix[y*n.Width+x] }

// Set writes pixel (x, y).
func (n *NormalImage) Set(x, y int, v uint32) { n.Pix[y*n.Width+x] = v }

// NRGBA unpacks the normals into an image. Row 0 of the result is the
// highest Y sample.
func (n *NormalImage) NRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, n.Width, n.Height))
	for y := 0; y < n.Height; y++ {
		for x := 0; x < n.Width; x++ {
			v := n.At(x, y)
			img.SetNRGBA(x, n.Height-1-y, color.NRGBA{
				R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: uint8(v >> 24),
			})
		}
	}
	return img
}
