package imaging

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/Skryldev/fileforge/config"
)

// Resize scales img to exactly w×h.  Nearest-neighbour maps each output
// pixel to src = min(floor(x*srcW/w), srcW-1), and likewise for y; bilinear
// uses x/image/draw whose kernel clamps at the edges.
func Resize(img image.Image, w, h int, interp config.Interpolation) image.Image {
	if w <= 0 || h <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	if interp == config.InterpolationBilinear {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		return dst
	}
	return resizeNearest(toNRGBA(img), w, h)
}

func resizeNearest(src *image.NRGBA, w, h int) *image.NRGBA {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := min(y*sh/h, sh-1)
		row := src.Pix[sy*src.Stride:]
		for x := 0; x < w; x++ {
			sx := min(x*sw/w, sw-1)
			d := y*dst.Stride + x*4
			copy(dst.Pix[d:d+4], row[sx*4:sx*4+4])
		}
	}
	return dst
}

// toNRGBA returns img as an NRGBA whose bounds start at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
