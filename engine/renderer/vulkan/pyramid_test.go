package vulkan

import "testing"

func TestPreviousPow2(t *testing.T) {
	tests := []struct {
		in   uint32
		want uint32
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 2},
		{1023, 512},
		{1024, 1024},
		{1280, 1024},
		{1920, 1024},
		{720, 512},
		{1080, 1024},
	}
	for _, tt := range tests {
		if got := PreviousPow2(tt.in); got != tt.want {
			t.Errorf("PreviousPow2(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPyramidExtentFor(t *testing.T) {
	tests := []struct {
		drawW, drawH uint32
		wantW, wantH uint32
	}{
		{1280, 720, 1024, 512},
		{1920, 1080, 1024, 1024},
		{800, 600, 512, 512},
		{1, 1, 1, 1},
	}
	for _, tt := range tests {
		w, h := PyramidExtentFor(tt.drawW, tt.drawH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("PyramidExtentFor(%d, %d) = (%d, %d), want (%d, %d)",
				tt.drawW, tt.drawH, w, h, tt.wantW, tt.wantH)
		}
		if w > tt.drawW || h > tt.drawH {
			t.Errorf("pyramid extent (%d, %d) exceeds draw extent (%d, %d)", w, h, tt.drawW, tt.drawH)
		}
	}
}

func TestPyramidMipCount(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{1024, 512, 11},
		{1024, 1024, 11},
		{512, 512, 10},
	}
	for _, tt := range tests {
		if got := PyramidMipCount(tt.w, tt.h); got != tt.want {
			t.Errorf("PyramidMipCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestPyramidMipExtentChain(t *testing.T) {
	// Every mip halves down to a 1x1 tail; no level hits zero.
	w0, h0 := uint32(1024), uint32(512)
	mips := PyramidMipCount(w0, h0)

	prevW, prevH := w0, h0
	for m := uint32(0); m < mips; m++ {
		w, h := PyramidMipExtent(w0, h0, m)
		if w == 0 || h == 0 {
			t.Fatalf("mip %d collapsed to zero extent", m)
		}
		if m > 0 && (w > prevW || h > prevH) {
			t.Fatalf("mip %d grew: (%d, %d) after (%d, %d)", m, w, h, prevW, prevH)
		}
		prevW, prevH = w, h
	}
	if prevW != 1 || prevH != 1 {
		t.Errorf("final mip extent = (%d, %d), want (1, 1)", prevW, prevH)
	}
}

func TestResizeIdempotent(t *testing.T) {
	// Two consecutive resizes to the same extent produce identical pyramid
	// parameters.
	w1, h1 := PyramidExtentFor(1920, 1080)
	w2, h2 := PyramidExtentFor(1920, 1080)
	if w1 != w2 || h1 != h2 {
		t.Errorf("repeated extent computation diverged: (%d,%d) vs (%d,%d)", w1, h1, w2, h2)
	}
	if PyramidMipCount(w1, h1) != PyramidMipCount(w2, h2) {
		t.Error("repeated mip count computation diverged")
	}
}

func TestDispatchGroupCount(t *testing.T) {
	tests := []struct {
		size, workgroup, want uint32
	}{
		{0, 64, 0},
		{1, 64, 1},
		{64, 64, 1},
		{65, 64, 2},
		{1024, 32, 32},
		{1025, 32, 33},
	}
	for _, tt := range tests {
		if got := dispatchGroupCount(tt.size, tt.workgroup); got != tt.want {
			t.Errorf("dispatchGroupCount(%d, %d) = %d, want %d", tt.size, tt.workgroup, got, tt.want)
		}
	}
}
