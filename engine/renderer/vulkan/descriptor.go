package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/core"
)

// Descriptor plumbing is split in two: set 0 of every pipeline is a
// push-descriptor set written inline into the command stream each frame, and
// set 1 is the persistent bindless texture table allocated once from a pool.

// Binding indices of the cull-compute push-descriptor set. The late cull
// additionally pushes the depth pyramid at the reserved final slot.
const (
	CullBindingViewData      uint32 = 0
	CullBindingRenderObjects uint32 = 1
	CullBindingTransforms    uint32 = 2
	CullBindingIndirectDraws uint32 = 3
	CullBindingIndirectCount uint32 = 4
	CullBindingVisibility    uint32 = 5
	CullBindingSurfaces      uint32 = 6
	CullBindingDepthPyramid  uint32 = 7
)

// Binding indices of the graphics push-descriptor set. Meshlet bindings are
// only present in the mesh-task layout variant.
const (
	DrawBindingViewData      uint32 = 0
	DrawBindingVertices      uint32 = 1
	DrawBindingRenderObjects uint32 = 2
	DrawBindingTransforms    uint32 = 3
	DrawBindingMaterials     uint32 = 4
	DrawBindingIndirectDraws uint32 = 5
	DrawBindingSurfaces      uint32 = 6
	DrawBindingMeshlets      uint32 = 7
	DrawBindingMeshletData   uint32 = 8
)

// pushBinding describes one slot of a push-descriptor layout.
type pushBinding struct {
	Binding uint32
	Type    vk.DescriptorType
	Stages  vk.ShaderStageFlags
}

// NewPushDescriptorLayout builds a descriptor set layout flagged for push
// descriptors, so writes go straight into the command buffer and no pool
// allocation happens on the per-frame path.
func NewPushDescriptorLayout(context *VulkanContext, bindings []pushBinding) (vk.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: 1,
			StageFlags:      b.Stages,
		}
		layoutBindings[i].Deref()
	}

	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreatePushDescriptorBit),
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}
	createInfo.Deref()

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &createInfo, context.Allocator, &layout); res != vk.Success {
		err := fmt.Errorf("vkCreateDescriptorSetLayout (push) failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	return layout, nil
}

// TextureTable is the bindless combined-image-sampler array bound once per
// frame as set 1. Slots are written as textures finish uploading; partially
// bound descriptors keep unwritten slots legal as long as shaders never index
// them.
type TextureTable struct {
	Layout vk.DescriptorSetLayout
	Pool   vk.DescriptorPool
	Set    vk.DescriptorSet

	Capacity uint32
	Count    uint32
}

// NewTextureTable allocates the pool and the single variable-count set
// sized to capacity.
func NewTextureTable(context *VulkanContext, capacity uint32) (*TextureTable, error) {
	table := &TextureTable{Capacity: capacity}

	binding := vk.DescriptorSetLayoutBinding{
		Binding:         0,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: capacity,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}
	binding.Deref()

	bindingFlags := []vk.DescriptorBindingFlags{
		vk.DescriptorBindingFlags(vk.DescriptorBindingPartiallyBoundBit) |
			vk.DescriptorBindingFlags(vk.DescriptorBindingVariableDescriptorCountBit),
	}
	flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  1,
		PBindingFlags: bindingFlags,
	}
	flagsInfo.Deref()

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(&flagsInfo),
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}
	layoutInfo.Deref()

	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &table.Layout); res != vk.Success {
		err := fmt.Errorf("vkCreateDescriptorSetLayout (texture table) failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	poolSize := vk.DescriptorPoolSize{
		Type:            vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: capacity,
	}
	poolSize.Deref()
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes:    []vk.DescriptorPoolSize{poolSize},
	}
	poolInfo.Deref()

	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &table.Pool); res != vk.Success {
		err := fmt.Errorf("vkCreateDescriptorPool (texture table) failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}

	counts := []uint32{capacity}
	countInfo := vk.DescriptorSetVariableDescriptorCountAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetVariableDescriptorCountAllocateInfo,
		DescriptorSetCount: 1,
		PDescriptorCounts:  counts,
	}
	countInfo.Deref()

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		PNext:              unsafe.Pointer(&countInfo),
		DescriptorPool:     table.Pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{table.Layout},
	}
	allocInfo.Deref()

	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &sets[0]); res != vk.Success {
		err := fmt.Errorf("vkAllocateDescriptorSets (texture table) failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	table.Set = sets[0]

	core.LogDebug("Texture table created with %d slots.", capacity)
	return table, nil
}

// WriteTexture fills the next free slot and returns its index. The count only
// advances on success, so a failed texture upload never leaves a hole.
func (t *TextureTable) WriteTexture(context *VulkanContext, view vk.ImageView, sampler vk.Sampler) (uint32, error) {
	if t.Count >= t.Capacity {
		return 0, fmt.Errorf("texture table full (%d slots)", t.Capacity)
	}
	slot := t.Count

	imageInfo := vk.DescriptorImageInfo{
		Sampler:     sampler,
		ImageView:   view,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	imageInfo.Deref()

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.Set,
		DstBinding:      0,
		DstArrayElement: slot,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	write.Deref()

	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	t.Count++
	return slot, nil
}

func (t *TextureTable) Destroy(context *VulkanContext) {
	if t.Pool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, t.Pool, context.Allocator)
		t.Pool = vk.NullDescriptorPool
	}
	if t.Layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, t.Layout, context.Allocator)
		t.Layout = vk.NullDescriptorSetLayout
	}
}

// bufferWrite builds one push-descriptor write for a whole buffer.
func bufferWrite(binding uint32, descriptorType vk.DescriptorType, buffer *VulkanBuffer) vk.WriteDescriptorSet {
	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer.Handle,
		Offset: 0,
		Range:  vk.DeviceSize(vk.WholeSize),
	}
	bufferInfo.Deref()

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	write.Deref()
	return write
}

// imageWrite builds one push-descriptor write for a sampled or storage image.
func imageWrite(binding uint32, descriptorType vk.DescriptorType, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) vk.WriteDescriptorSet {
	imageInfo := vk.DescriptorImageInfo{
		Sampler:     sampler,
		ImageView:   view,
		ImageLayout: layout,
	}
	imageInfo.Deref()

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorType,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	write.Deref()
	return write
}
