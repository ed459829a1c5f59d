package vulkan

import (
	"testing"
	"unsafe"

	vk "github.com/goki/vulkan"
)

func testResources() *SceneResources {
	return &SceneResources{
		IndirectDrawBuffer:  &VulkanBuffer{},
		IndirectCountBuffer: &VulkanBuffer{},
		VisibilityBuffer:    &VulkanBuffer{},
	}
}

func TestCullPreBarriers(t *testing.T) {
	barriers := cullPreBarriers(testResources())
	if len(barriers) != 3 {
		t.Fatalf("got %d pre-barriers, want 3", len(barriers))
	}

	count := barriers[0]
	if count.SrcAccessMask != vk.AccessFlags(vk.AccessTransferWriteBit) {
		t.Errorf("count barrier src = %x, want transfer-write", count.SrcAccessMask)
	}
	wantDst := vk.AccessFlags(vk.AccessShaderReadBit) | vk.AccessFlags(vk.AccessShaderWriteBit)
	if count.DstAccessMask != wantDst {
		t.Errorf("count barrier dst = %x, want shader read|write", count.DstAccessMask)
	}

	draws := barriers[1]
	if draws.SrcAccessMask&vk.AccessFlags(vk.AccessIndirectCommandReadBit) == 0 {
		t.Error("draw barrier must cover the previous indirect read")
	}
	if draws.DstAccessMask != vk.AccessFlags(vk.AccessShaderWriteBit) {
		t.Errorf("draw barrier dst = %x, want shader-write", draws.DstAccessMask)
	}

	visibility := barriers[2]
	if visibility.SrcAccessMask != wantDst || visibility.DstAccessMask != wantDst {
		t.Error("visibility barrier must serialize read|write against read|write")
	}
}

func TestCullPostBarriers(t *testing.T) {
	barriers := cullPostBarriers(testResources())
	if len(barriers) != 3 {
		t.Fatalf("got %d post-barriers, want 3", len(barriers))
	}

	count := barriers[0]
	if count.SrcAccessMask != vk.AccessFlags(vk.AccessShaderWriteBit) {
		t.Errorf("count barrier src = %x, want shader-write", count.SrcAccessMask)
	}
	if count.DstAccessMask != vk.AccessFlags(vk.AccessIndirectCommandReadBit) {
		t.Errorf("count barrier dst = %x, want indirect-command-read", count.DstAccessMask)
	}

	draws := barriers[1]
	wantDst := vk.AccessFlags(vk.AccessIndirectCommandReadBit) | vk.AccessFlags(vk.AccessShaderReadBit)
	if draws.DstAccessMask != wantDst {
		t.Errorf("draw barrier dst = %x, want indirect-read|shader-read", draws.DstAccessMask)
	}

	for i, b := range barriers {
		if b.Size != vk.DeviceSize(vk.WholeSize) {
			t.Errorf("barrier %d does not cover the whole buffer", i)
		}
		if b.SrcQueueFamilyIndex != vk.QueueFamilyIgnored || b.DstQueueFamilyIndex != vk.QueueFamilyIgnored {
			t.Errorf("barrier %d must not transfer queue ownership", i)
		}
	}
}

func TestCullPushConstantLayout(t *testing.T) {
	// Four u32 words, matching the shader's push constant block.
	if size := unsafe.Sizeof(CullPushConstant{}); size != 16 {
		t.Errorf("CullPushConstant size = %d, want 16", size)
	}

	pc := CullPushConstant{DrawCount: 7, PostPass: 1, OcclusionEnabled: 0, LODEnabled: 1}
	words := (*[4]uint32)(unsafe.Pointer(&pc))
	want := [4]uint32{7, 1, 0, 1}
	if *words != want {
		t.Errorf("push constant words = %v, want %v", *words, want)
	}
}

func TestIndirectSlotLayout(t *testing.T) {
	// The draw call points at the embedded command, one uint32 past the
	// object id.
	if IndirectDrawCommandOffset != 4 {
		t.Errorf("IndirectDrawCommandOffset = %d, want 4", IndirectDrawCommandOffset)
	}
	if size := unsafe.Sizeof(IndirectDrawData{}); size != 24 {
		t.Errorf("IndirectDrawData size = %d, want 24", size)
	}

	if IndirectTaskCommandOffset != 12 {
		t.Errorf("IndirectTaskCommandOffset = %d, want 12", IndirectTaskCommandOffset)
	}
	if size := unsafe.Sizeof(IndirectTaskData{}); size != 24 {
		t.Errorf("IndirectTaskData size = %d, want 24", size)
	}
}

func TestBoolToU32(t *testing.T) {
	if boolToU32(true) != 1 || boolToU32(false) != 0 {
		t.Error("boolToU32 must map true->1, false->0")
	}
}
