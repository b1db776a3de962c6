package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"
)

// Decode parses PNG or JPEG bytes into an image.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// NormalizeForAPI caps an image at maxSide on its longest edge and maxPixels
// total, downscaling when needed, and re-encodes to PNG. Oversized clipboard
// captures otherwise blow the request size limits of every provider.
func NormalizeForAPI(data []byte, maxSide, maxPixels int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return data, nil
	}

	scale := 1.0
	longest := w
	if h > longest {
		longest = h
	}
	if maxSide > 0 && longest > maxSide {
		scale = math.Min(scale, float64(maxSide)/float64(longest))
	}
	if maxPixels > 0 && w*h > maxPixels {
		scale = math.Min(scale, math.Sqrt(float64(maxPixels)/float64(w*h)))
	}
	if scale >= 1.0 {
		return EncodePNG(img)
	}

	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return EncodePNG(resizeNearest(img, nw, nh))
}

func resizeNearest(src image.Image, w, h int) image.Image {
	sb := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := sb.Min.Y + y*sb.Dy()/h
		for x := 0; x < w; x++ {
			sx := sb.Min.X + x*sb.Dx()/w
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

// DarkShare reports the fraction of sampled pixels whose luminance falls
// below the given 8-bit cutoff.
func DarkShare(img image.Image, cutoff uint8) float64 {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0
	}

	step := 1
	if b.Dx()*b.Dy() > 1<<20 {
		step = 4
	}

	var dark, total int
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, _ := img.At(x, y).RGBA()
			// Rec. 601 luma on 16-bit channel values.
			luma := (299*r + 587*g + 114*bl) / 1000 >> 8
			if uint8(luma) < cutoff {
				dark++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(dark) / float64(total)
}
