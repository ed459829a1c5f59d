package assets

import (
	"image"
	"testing"
)

func TestBuildRGBA8Mips(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := range base.Pix {
		base.Pix[i] = 0xff
	}

	stats, err := buildRGBA8Mips(base)
	if err != nil {
		t.Fatalf("buildRGBA8Mips: %v", err)
	}

	// 8x4 -> 4x2 -> 2x1 -> 1x1.
	if stats.MipCount != 4 {
		t.Errorf("mip count = %d, want 4", stats.MipCount)
	}
	if stats.FormatHint != FormatHintRGBA8 {
		t.Errorf("format hint = %q", stats.FormatHint)
	}

	var want uint32
	w, h := uint32(8), uint32(4)
	for m := uint32(0); m < stats.MipCount; m++ {
		want += MipByteSize(FormatHintRGBA8, w, h)
		w, h = maxU32(w/2, 1), maxU32(h/2, 1)
	}
	if uint32(len(stats.Data)) != want {
		t.Errorf("payload = %d bytes, want %d", len(stats.Data), want)
	}
}

func TestBuildRGBA8MipsRejectsEmpty(t *testing.T) {
	if _, err := buildRGBA8Mips(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Error("zero-extent image must fail")
	}
}
