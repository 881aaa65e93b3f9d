package domain

import (
	"fmt"
	"image"
	"image/color"
)

// PixelColor is a non-premultiplied RGBA byte tuple as read from a decoded image.
type PixelColor struct {
	R, G, B, A uint8
}

// RGB is the alpha-free part of a PixelColor. Calibration tables are keyed by it.
type RGB struct {
	R, G, B uint8
}

// Black is the legend background and the "no data" color.
var Black = RGB{}

// RGB drops the alpha channel.
func (c PixelColor) RGB() RGB {
	return RGB{R: c.R, G: c.G, B: c.B}
}

// IsBlack reports whether r, g and b are all zero. Fully transparent pixels
// decode to black as well, so this doubles as the background test.
func (c PixelColor) IsBlack() bool {
	return c.R == 0 && c.G == 0 && c.B == 0
}

// IsTransparent reports whether the alpha channel is zero.
func (c PixelColor) IsTransparent() bool {
	return c.A == 0
}

// Distance is the Manhattan distance over r, g and b.
func (c RGB) Distance(o RGB) int {
	return absDiff(c.R, o.R) + absDiff(c.G, o.G) + absDiff(c.B, o.B)
}

func (c RGB) String() string {
	return fmt.Sprintf("%d,%d,%d", c.R, c.G, c.B)
}

// MarshalText renders the color as "r,g,b" so it can key JSON objects.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Image is the pixel-addressable handle produced by the image-loading boundary.
type Image interface {
	Width() int
	Height() int
	Pixel(x, y int) PixelColor
}

// NewImage wraps a decoded image.Image. Pixels are converted to
// non-premultiplied RGBA, which is what a browser canvas reports.
func NewImage(img image.Image) Image {
	return &stdImage{img: img, bounds: img.Bounds()}
}

type stdImage struct {
	img    image.Image
	bounds image.Rectangle
}

func (s *stdImage) Width() int  { return s.bounds.Dx() }
func (s *stdImage) Height() int { return s.bounds.Dy() }

// Pixel returns transparent black for coordinates outside the image.
func (s *stdImage) Pixel(x, y int) PixelColor {
	p := image.Point{X: s.bounds.Min.X + x, Y: s.bounds.Min.Y + y}
	if !p.In(s.bounds) {
		return PixelColor{}
	}
	if nrgba, ok := s.img.(*image.NRGBA); ok {
		c := nrgba.NRGBAAt(p.X, p.Y)
		return PixelColor{R: c.R, G: c.G, B: c.B, A: c.A}
	}
	c := color.NRGBAModel.Convert(s.img.At(p.X, p.Y)).(color.NRGBA)
	return PixelColor{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Scaled presents img through a nearest-neighbour view of the given size.
// It is used to cap the sampled resolution of very tall rasters.
func Scaled(img Image, width, height int) Image {
	if width <= 0 || height <= 0 || (width == img.Width() && height == img.Height()) {
		return img
	}
	return &scaledImage{src: img, width: width, height: height}
}

type scaledImage struct {
	src           Image
	width, height int
}

func (s *scaledImage) Width() int  { return s.width }
func (s *scaledImage) Height() int { return s.height }

func (s *scaledImage) Pixel(x, y int) PixelColor {
	sx := x * s.src.Width() / s.width
	sy := y * s.src.Height() / s.height
	return s.src.Pixel(sx, sy)
}
