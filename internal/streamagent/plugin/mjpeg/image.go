package mjpeg

import (
	"image"
	"image/color"
)

// rgbaImage adapts a FrameImage's flat RGBA buffer to image.Image so it can
// be handed to image/jpeg's encoder without an extra copy into image.RGBA.
type rgbaImage struct {
	FrameImage
}

func (r *rgbaImage) ColorModel() color.Model { return color.RGBAModel }

func (r *rgbaImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.Width, r.Height)
}

func (r *rgbaImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.RGBA{}
	}
	i := (y*r.Width + x) * 4
	return color.RGBA{R: r.RGBA[i], G: r.RGBA[i+1], B: r.RGBA[i+2], A: r.RGBA[i+3]}
}
