package imaging

import (
	"bytes"
	"image"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// readEXIF extracts the orientation tag and a few descriptive fields from a
// JPEG.  Missing or corrupt EXIF is not an error: it yields (0, nil).
func readEXIF(data []byte) (int, map[string]string) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, nil
	}

	orientation := 0
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
			orientation = v
		}
	}

	fields := make(map[string]string)
	for name, field := range map[string]exif.FieldName{"Make": exif.Make, "Model": exif.Model} {
		if tag, err := x.Get(field); err == nil {
			if s, err := tag.StringVal(); err == nil && s != "" {
				fields[name] = s
			}
		}
	}
	if t, err := x.DateTime(); err == nil {
		fields["DateTime"] = t.Format(time.RFC3339)
	}
	if len(fields) == 0 {
		fields = nil
	}
	return orientation, fields
}

// Orient returns img transformed so that an EXIF orientation o displays
// upright.  Orientations outside 2..8 return img unchanged.
func Orient(img image.Image, o int) image.Image {
	if o < 2 || o > 8 {
		return img
	}
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	dw, dh := w, h
	if o >= 5 {
		dw, dh = h, w
	}
	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))
	for y := 0; y < dh; y++ {
		for x := 0; x < dw; x++ {
			var sx, sy int
			switch o {
			case 2: // mirror horizontal
				sx, sy = w-1-x, y
			case 3: // rotate 180
				sx, sy = w-1-x, h-1-y
			case 4: // mirror vertical
				sx, sy = x, h-1-y
			case 5: // transpose
				sx, sy = y, x
			case 6: // rotate 90 clockwise
				sx, sy = y, h-1-x
			case 7: // transverse
				sx, sy = w-1-y, h-1-x
			case 8: // rotate 270 clockwise
				sx, sy = w-1-y, x
			}
			s := sy*src.Stride + sx*4
			d := y*dst.Stride + x*4
			copy(dst.Pix[d:d+4], src.Pix[s:s+4])
		}
	}
	return dst
}
