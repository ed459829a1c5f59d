package assets

import (
	"encoding/binary"
	"fmt"
	"os"
)

// TextureStats is the loader's contract with the renderer: dimensions, mip
// count, the raw payload, and a format hint string the renderer maps to a
// device format. The renderer never parses container bytes itself.
type TextureStats struct {
	Width      uint32
	Height     uint32
	MipCount   uint32
	Data       []byte
	FormatHint string
}

// DDS header layout constants. Only the fields the loader reads are named.
const (
	ddsMagic      = 0x20534444 // "DDS "
	ddsHeaderSize = 124

	ddsFourCCDXT1 = 0x31545844
	ddsFourCCDXT3 = 0x33545844
	ddsFourCCDXT5 = 0x35545844
	ddsFourCCDX10 = 0x30315844
)

// Format hints produced by the DDS loader.
const (
	FormatHintBC1   = "bc1"
	FormatHintBC2   = "bc2"
	FormatHintBC3   = "bc3"
	FormatHintBC7   = "bc7"
	FormatHintRGBA8 = "rgba8"
)

// LoadDDS parses a DDS container and returns its stats plus the packed mip
// payload. The caps fields are not read, so cube maps and volume textures
// are not detected; only extent, mip count and fourCC come from the header.
func LoadDDS(path string) (*TextureStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture '%s': %w", path, err)
	}
	return ParseDDS(raw)
}

// ParseDDS decodes the header out of an in-memory DDS file.
func ParseDDS(raw []byte) (*TextureStats, error) {
	// 4 bytes magic + 124 byte header.
	if len(raw) < 4+ddsHeaderSize {
		return nil, fmt.Errorf("dds: file too short (%d bytes)", len(raw))
	}
	le := binary.LittleEndian
	if le.Uint32(raw[0:4]) != ddsMagic {
		return nil, fmt.Errorf("dds: bad magic")
	}

	header := raw[4 : 4+ddsHeaderSize]
	if le.Uint32(header[0:4]) != ddsHeaderSize {
		return nil, fmt.Errorf("dds: bad header size field")
	}

	height := le.Uint32(header[8:12])
	width := le.Uint32(header[12:16])
	mipCount := le.Uint32(header[24:28])
	if mipCount == 0 {
		mipCount = 1
	}

	// Pixel format block starts at header offset 72; fourCC at 80.
	fourCC := le.Uint32(header[80:84])

	var hint string
	payloadOffset := 4 + ddsHeaderSize
	switch fourCC {
	case ddsFourCCDXT1:
		hint = FormatHintBC1
	case ddsFourCCDXT3:
		hint = FormatHintBC2
	case ddsFourCCDXT5:
		hint = FormatHintBC3
	case ddsFourCCDX10:
		// DX10 extension header: its dxgiFormat field is not read; every
		// DX10 file is treated as BC7.
		if len(raw) < payloadOffset+20 {
			return nil, fmt.Errorf("dds: truncated DX10 header")
		}
		hint = FormatHintBC7
		payloadOffset += 20
	case 0:
		// Uncompressed RGBA.
		hint = FormatHintRGBA8
	default:
		return nil, fmt.Errorf("dds: unsupported fourCC %08x", fourCC)
	}

	if width == 0 || height == 0 {
		return nil, fmt.Errorf("dds: zero extent %dx%d", width, height)
	}

	return &TextureStats{
		Width:      width,
		Height:     height,
		MipCount:   mipCount,
		Data:       raw[payloadOffset:],
		FormatHint: hint,
	}, nil
}

// MipByteSize returns the payload size of one mip for a given hint, matching
// the renderer's copy regions. Block-compressed formats round extents up to
// 4x4 blocks.
func MipByteSize(hint string, width, height uint32) uint32 {
	switch hint {
	case FormatHintBC1:
		return blockCount(width) * blockCount(height) * 8
	case FormatHintBC2, FormatHintBC3, FormatHintBC7:
		return blockCount(width) * blockCount(height) * 16
	default:
		return width * height * 4
	}
}

func blockCount(extent uint32) uint32 {
	c := (extent + 3) / 4
	if c == 0 {
		return 1
	}
	return c
}
