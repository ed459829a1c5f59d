package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestChoosePresentMode(t *testing.T) {
	tests := []struct {
		name       string
		available  []vk.PresentMode
		preference []string
		want       vk.PresentMode
	}{
		{
			"first preference available",
			[]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
			[]string{"mailbox", "fifo"},
			vk.PresentModeMailbox,
		},
		{
			"falls through to second preference",
			[]vk.PresentMode{vk.PresentModeFifo},
			[]string{"mailbox", "fifo"},
			vk.PresentModeFifo,
		},
		{
			"nothing preferred is supported",
			[]vk.PresentMode{vk.PresentModeFifoRelaxed},
			[]string{"mailbox", "immediate"},
			vk.PresentModeFifo,
		},
		{
			"unknown names are skipped",
			[]vk.PresentMode{vk.PresentModeImmediate},
			[]string{"vsync-triple", "immediate"},
			vk.PresentModeImmediate,
		},
		{
			"empty preference",
			[]vk.PresentMode{vk.PresentModeMailbox},
			nil,
			vk.PresentModeFifo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := choosePresentMode(tt.available, tt.preference); got != tt.want {
				t.Errorf("choosePresentMode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other, preferred}); got.Format != preferred.Format {
		t.Errorf("preferred BGRA unorm not selected, got %v", got.Format)
	}
	if got := chooseSurfaceFormat([]vk.SurfaceFormat{other}); got.Format != other.Format {
		t.Errorf("fallback should be the first supported format, got %v", got.Format)
	}
}
