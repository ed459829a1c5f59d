package assets

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"

	"github.com/fzipp/bmfont"
	_ "image/png"
)

// DebugTextBaker rasterizes short HUD strings (pyramid mip labels, frame
// stats) into an RGBA image using a bitmap font atlas. The result is
// uploaded once as a regular texture and composited by the debug overlay.
type DebugTextBaker struct {
	descriptor *bmfont.Descriptor
	pages      map[int]*image.RGBA
	dir        string
}

// NewDebugTextBaker loads a .fnt descriptor plus its page images from the
// same directory.
func NewDebugTextBaker(fntPath string) (*DebugTextBaker, error) {
	desc, err := bmfont.LoadDescriptor(fntPath)
	if err != nil {
		return nil, fmt.Errorf("loading bitmap font '%s': %w", fntPath, err)
	}

	baker := &DebugTextBaker{
		descriptor: desc,
		pages:      make(map[int]*image.RGBA),
		dir:        filepath.Dir(fntPath),
	}

	for id, page := range desc.Pages {
		img, err := loadPageImage(filepath.Join(baker.dir, page.File))
		if err != nil {
			return nil, err
		}
		baker.pages[id] = img
	}
	return baker, nil
}

func loadPageImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening font page '%s': %w", path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding font page '%s': %w", path, err)
	}
	rgba := image.NewRGBA(src.Bounds())
	draw.Draw(rgba, rgba.Bounds(), src, src.Bounds().Min, draw.Src)
	return rgba, nil
}

// Measure returns the pixel extent of a single-line string.
func (b *DebugTextBaker) Measure(text string) (uint32, uint32) {
	width := 0
	for _, r := range text {
		char, ok := b.descriptor.Chars[r]
		if !ok {
			continue
		}
		width += char.XAdvance
	}
	return uint32(width), uint32(b.descriptor.Common.LineHeight)
}

// Bake renders one line of text into a fresh RGBA image and wraps it as a
// TextureStats ready for the normal texture upload path.
func (b *DebugTextBaker) Bake(text string) (*TextureStats, error) {
	width, height := b.Measure(text)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("nothing to bake for %q", text)
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	penX := 0
	for _, r := range text {
		char, ok := b.descriptor.Chars[r]
		if !ok {
			continue
		}
		page, ok := b.pages[char.Page]
		if ok && char.Width > 0 && char.Height > 0 {
			srcRect := image.Rect(char.X, char.Y, char.X+char.Width, char.Y+char.Height)
			dstRect := image.Rect(penX+char.XOffset, char.YOffset,
				penX+char.XOffset+char.Width, char.YOffset+char.Height)
			draw.Draw(dst, dstRect, page, srcRect.Min, draw.Over)
		}
		penX += char.XAdvance
	}

	return &TextureStats{
		Width:      width,
		Height:     height,
		MipCount:   1,
		Data:       dst.Pix,
		FormatHint: FormatHintRGBA8,
	}, nil
}
