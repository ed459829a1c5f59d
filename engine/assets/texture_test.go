package assets

import (
	"encoding/binary"
	"testing"
)

// ddsFile assembles a minimal DDS container in memory.
func ddsFile(width, height, mipCount, fourCC uint32, payload []byte) []byte {
	raw := make([]byte, 4+ddsHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(raw[0:4], ddsMagic)
	le.PutUint32(raw[4:8], ddsHeaderSize)
	le.PutUint32(raw[12:16], height)
	le.PutUint32(raw[16:20], width)
	le.PutUint32(raw[28:32], mipCount)
	le.PutUint32(raw[84:88], fourCC)
	return append(raw, payload...)
}

func TestParseDDS(t *testing.T) {
	payload := make([]byte, 128)
	stats, err := ParseDDS(ddsFile(64, 32, 7, ddsFourCCDXT5, payload))
	if err != nil {
		t.Fatalf("ParseDDS: %v", err)
	}
	if stats.Width != 64 || stats.Height != 32 {
		t.Errorf("extent = %dx%d, want 64x32", stats.Width, stats.Height)
	}
	if stats.MipCount != 7 {
		t.Errorf("mip count = %d, want 7", stats.MipCount)
	}
	if stats.FormatHint != FormatHintBC3 {
		t.Errorf("format hint = %q, want %q", stats.FormatHint, FormatHintBC3)
	}
	if len(stats.Data) != len(payload) {
		t.Errorf("payload = %d bytes, want %d", len(stats.Data), len(payload))
	}
}

func TestParseDDSZeroMipCountMeansOne(t *testing.T) {
	stats, err := ParseDDS(ddsFile(16, 16, 0, ddsFourCCDXT1, make([]byte, 128)))
	if err != nil {
		t.Fatalf("ParseDDS: %v", err)
	}
	if stats.MipCount != 1 {
		t.Errorf("mip count = %d, want 1", stats.MipCount)
	}
}

func TestParseDDSRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"too short": make([]byte, 10),
		"bad magic": make([]byte, 4+ddsHeaderSize),
	}
	for name, raw := range cases {
		if _, err := ParseDDS(raw); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}

	// Unknown fourCC.
	if _, err := ParseDDS(ddsFile(8, 8, 1, 0x12345678, nil)); err == nil {
		t.Error("unknown fourCC: expected an error")
	}
}

func TestMipByteSize(t *testing.T) {
	tests := []struct {
		hint string
		w, h uint32
		want uint32
	}{
		{FormatHintRGBA8, 4, 4, 64},
		{FormatHintRGBA8, 1, 1, 4},
		{FormatHintBC1, 4, 4, 8},
		{FormatHintBC1, 8, 8, 32},
		{FormatHintBC3, 4, 4, 16},
		{FormatHintBC7, 1, 1, 16}, // still one full block
		{FormatHintBC1, 5, 5, 32}, // rounds up to 2x2 blocks
	}
	for _, tt := range tests {
		if got := MipByteSize(tt.hint, tt.w, tt.h); got != tt.want {
			t.Errorf("MipByteSize(%s, %d, %d) = %d, want %d", tt.hint, tt.w, tt.h, got, tt.want)
		}
	}
}
