package core

import (
	"image"
	"time"
)

// Canonical is the decoded, format-independent form of one file.
type Canonical interface {
	Category() Category
}

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
	ColorSpaceYCC  ColorSpace = "ycbcr"
)

// ImageMeta holds information extracted while decoding an image.
type ImageMeta struct {
	Width       int
	Height      int
	ColorSpace  ColorSpace
	HasAlpha    bool
	Orientation int               // EXIF orientation as found in the source (1-8, 0 if absent)
	EXIF        map[string]string // selected EXIF fields; nil when absent
}

// Raster is the canonical image: an upright pixel grid.
type Raster struct {
	Image image.Image
	Meta  ImageMeta
}

func (*Raster) Category() Category { return CategoryImage }

// Bounds returns the pixel rectangle.
func (r *Raster) Bounds() image.Rectangle { return r.Image.Bounds() }

// PCM is the canonical audio: interleaved signed integer samples.
type PCM struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []int
}

func (*PCM) Category() Category { return CategoryAudio }

// Frames is the number of complete sample frames.
func (p *PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration is the playing time of the buffer.
func (p *PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Clip is the canonical video: a frame sequence at a constant rate.
type Clip struct {
	Width     int
	Height    int
	FrameRate float64
	Frames    []image.Image
}

func (*Clip) Category() Category { return CategoryVideo }

// Duration is the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.FrameRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Frames)) / c.FrameRate * float64(time.Second))
}

// Page is one page of a document.
type Page struct {
	Text string
}

// Document is the canonical document: an ordered page list.
type Document struct {
	Title string
	Pages []Page
}

func (*Document) Category() Category { return CategoryDocument }

// Entry is one file inside a Bundle.
type Entry struct {
	Name     string
	Data     []byte
	Modified time.Time
}

// Bundle is the canonical archive: ordered entries.
type Bundle struct {
	Entries []Entry
}

func (*Bundle) Category() Category { return CategoryArchive }
