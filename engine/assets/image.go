package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// LoadImage decodes a PNG or JPEG into an uncompressed RGBA8 TextureStats
// with a full mip chain generated on the CPU. DDS assets skip this path and
// carry their own pre-built mips.
func LoadImage(path string) (*TextureStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image '%s': %w", path, err)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding image '%s': %w", path, err)
	}

	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	return buildRGBA8Mips(rgba)
}

// buildRGBA8Mips packs level 0 plus successive half-size reductions into one
// contiguous payload, finest first.
func buildRGBA8Mips(base *image.RGBA) (*TextureStats, error) {
	width := uint32(base.Bounds().Dx())
	height := uint32(base.Bounds().Dy())
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has zero extent %dx%d", width, height)
	}

	var payload []byte
	mipCount := uint32(0)
	current := base
	w, h := width, height
	for {
		payload = append(payload, current.Pix...)
		mipCount++
		if w == 1 && h == 1 {
			break
		}
		nw, nh := maxU32(w/2, 1), maxU32(h/2, 1)
		next := image.NewRGBA(image.Rect(0, 0, int(nw), int(nh)))
		xdraw.CatmullRom.Scale(next, next.Bounds(), current, current.Bounds(), xdraw.Over, nil)
		current = next
		w, h = nw, nh
	}

	return &TextureStats{
		Width:      width,
		Height:     height,
		MipCount:   mipCount,
		Data:       payload,
		FormatHint: FormatHintRGBA8,
	}, nil
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
