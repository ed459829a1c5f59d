package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/core"
)

// DepthPyramid is the min-reduced mip chain of the early pass's depth
// attachment that the late cull samples for screen-space occlusion tests. Its base
// extent is the previous power of two of the draw extent, so any mip texel
// conservatively covers at least one depth texel.
type DepthPyramid struct {
	Image  *VulkanImage
	Width  uint32
	Height uint32

	// MipLevels runs until both dimensions reach 1.
	MipLevels uint32

	// Sampler performs min-reduction so a single fetch yields the
	// conservative minimum of the footprint.
	Sampler vk.Sampler

	pipeline *VulkanPipeline
	layout   vk.DescriptorSetLayout
}

// PreviousPow2 returns the largest power of two less than or equal to v, and
// 1 for v == 0.
func PreviousPow2(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	r := uint32(1)
	for r<<1 <= v && r<<1 != 0 {
		r <<= 1
	}
	return r
}

// PyramidExtentFor derives the pyramid base extent from the draw extent.
func PyramidExtentFor(drawWidth, drawHeight uint32) (uint32, uint32) {
	return PreviousPow2(drawWidth), PreviousPow2(drawHeight)
}

// PyramidMipCount counts halvings until both dimensions are 1, inclusive of
// the base level. For power-of-two inputs this is log2(max(w,h)) + 1.
func PyramidMipCount(width, height uint32) uint32 {
	count := uint32(1)
	for width > 1 || height > 1 {
		width = maxU32(width>>1, 1)
		height = maxU32(height>>1, 1)
		count++
	}
	return count
}

// PyramidMipExtent returns the extent of one mip, clamped at 1.
func PyramidMipExtent(width, height, mip uint32) (uint32, uint32) {
	return maxU32(width>>mip, 1), maxU32(height>>mip, 1)
}

// pyramidWorkgroupSize matches local_size_x/y of the reduction shader.
const pyramidWorkgroupSize uint32 = 32

// NewDepthPyramid builds the image, per-mip views, min-reduction sampler,
// and the reduction compute pipeline for the given draw extent.
func NewDepthPyramid(context *VulkanContext, drawWidth, drawHeight uint32) (*DepthPyramid, error) {
	p := &DepthPyramid{}

	if err := p.createSampler(context); err != nil {
		return nil, err
	}
	if err := p.createPipeline(context); err != nil {
		return nil, err
	}
	if err := p.createImage(context, drawWidth, drawHeight); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *DepthPyramid) createImage(context *VulkanContext, drawWidth, drawHeight uint32) error {
	p.Width, p.Height = PyramidExtentFor(drawWidth, drawHeight)
	p.MipLevels = PyramidMipCount(p.Width, p.Height)

	image, err := imageCreateMipped(
		context,
		vk.ImageType2d,
		p.Width, p.Height, p.MipLevels,
		vk.FormatR32Sfloat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageSampledBit)|vk.ImageUsageFlags(vk.ImageUsageStorageBit)|vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return fmt.Errorf("depth pyramid image: %w", err)
	}
	p.Image = image

	p.Image.MipViews = make([]vk.ImageView, p.MipLevels)
	for i := uint32(0); i < p.MipLevels; i++ {
		view, err := ImageViewCreateMip(context, p.Image, i)
		if err != nil {
			return fmt.Errorf("depth pyramid mip view %d: %w", i, err)
		}
		p.Image.MipViews[i] = view
	}

	core.LogDebug("Depth pyramid %dx%d with %d mips.", p.Width, p.Height, p.MipLevels)
	return nil
}

func (p *DepthPyramid) createSampler(context *VulkanContext) error {
	reduction := vk.SamplerReductionModeCreateInfo{
		SType:         vk.StructureTypeSamplerReductionModeCreateInfo,
		ReductionMode: vk.SamplerReductionModeMin,
	}
	reduction.Deref()

	samplerInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		PNext:        unsafe.Pointer(&reduction),
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		MinLod:       0,
		MaxLod:       16,
	}
	samplerInfo.Deref()

	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &p.Sampler); res != vk.Success {
		err := fmt.Errorf("failed to create depth pyramid sampler: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (p *DepthPyramid) createPipeline(context *VulkanContext) error {
	layout, err := NewPushDescriptorLayout(context, []pushBinding{
		{Binding: 0, Type: vk.DescriptorTypeCombinedImageSampler, Stages: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, Type: vk.DescriptorTypeStorageImage, Stages: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	})
	if err != nil {
		return err
	}
	p.layout = layout

	stages := make([]VulkanShaderStage, 1)
	if err := NewShaderModule(context, stages, "depth_pyramid", "comp", vk.ShaderStageComputeBit, 0); err != nil {
		return err
	}
	defer DestroyShaderModule(context, &stages[0])

	pipeline, err := NewComputePipeline(context, stages[0].ShaderStageCreateInfo,
		[]vk.DescriptorSetLayout{p.layout},
		[]*PushConstantRange{{Offset: 0, Size: 8, Stages: vk.ShaderStageComputeBit}})
	if err != nil {
		return err
	}
	p.pipeline = pipeline
	return nil
}

// Rebuild drops the image and per-mip views for a new draw extent; the
// sampler and pipeline survive resizes.
func (p *DepthPyramid) Rebuild(context *VulkanContext, drawWidth, drawHeight uint32) error {
	newW, newH := PyramidExtentFor(drawWidth, drawHeight)
	if p.Image != nil && newW == p.Width && newH == p.Height {
		// Same pow2 footprint, nothing to rebuild.
		return nil
	}
	if p.Image != nil {
		p.Image.ImageDestroy(context)
		p.Image = nil
	}
	return p.createImage(context, drawWidth, drawHeight)
}

// Generate records the full reduction: the depth attachment feeds mip 0 and
// each subsequent mip reads the previous one, with a write-to-read compute
// barrier between levels. On return the depth attachment is back in
// depth-attachment-optimal layout and the pyramid sits in general layout for
// the late cull to sample.
func (p *DepthPyramid) Generate(commandBuffer *VulkanCommandBuffer, depthImage *VulkanImage) {
	cb := commandBuffer.Handle

	// Depth attachment: late-fragment-test writes -> compute sampled reads.
	depthToRead := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		OldLayout:           vk.ImageLayoutDepthStencilAttachmentOptimal,
		NewLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               depthImage.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	depthToRead.Deref()

	// Pyramid: whatever the previous frame's cull read -> storage writes.
	pyramidToWrite := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessShaderWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutGeneral,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               p.Image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: p.MipLevels,
			LayerCount: 1,
		},
	}
	pyramidToWrite.Deref()

	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit)|vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		0, 0, nil, 0, nil,
		2, []vk.ImageMemoryBarrier{depthToRead, pyramidToWrite})

	vk.CmdBindPipeline(cb, vk.PipelineBindPointCompute, p.pipeline.Handle)

	for i := uint32(0); i < p.MipLevels; i++ {
		srcView := depthImage.View
		srcLayout := vk.ImageLayoutShaderReadOnlyOptimal
		if i > 0 {
			srcView = p.Image.MipViews[i-1]
			srcLayout = vk.ImageLayoutGeneral
		}

		writes := []vk.WriteDescriptorSet{
			imageWrite(0, vk.DescriptorTypeCombinedImageSampler, srcView, p.Sampler, srcLayout),
			imageWrite(1, vk.DescriptorTypeStorageImage, p.Image.MipViews[i], vk.NullSampler, vk.ImageLayoutGeneral),
		}
		vk.CmdPushDescriptorSet(cb, vk.PipelineBindPointCompute, p.pipeline.PipelineLayout, 0, uint32(len(writes)), writes)

		mipW, mipH := PyramidMipExtent(p.Width, p.Height, i)
		extent := [2]float32{float32(mipW), float32(mipH)}
		vk.CmdPushConstants(cb, p.pipeline.PipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, 8, unsafe.Pointer(&extent))

		vk.CmdDispatch(cb, dispatchGroupCount(mipW, pyramidWorkgroupSize), dispatchGroupCount(mipH, pyramidWorkgroupSize), 1)

		// The next mip reads what this dispatch wrote.
		mipBarrier := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessShaderWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
			OldLayout:           vk.ImageLayoutGeneral,
			NewLayout:           vk.ImageLayoutGeneral,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               p.Image.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:   vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel: i,
				LevelCount:   1,
				LayerCount:   1,
			},
		}
		mipBarrier.Deref()
		vk.CmdPipelineBarrier(cb,
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{mipBarrier})
	}

	// Hand the depth attachment back for the late draw pass.
	depthToAttachment := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
		DstAccessMask:       vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		OldLayout:           vk.ImageLayoutShaderReadOnlyOptimal,
		NewLayout:           vk.ImageLayoutDepthStencilAttachmentOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               depthImage.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	depthToAttachment.Deref()
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)|vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{depthToAttachment})
}

func (p *DepthPyramid) Destroy(context *VulkanContext) {
	if p.Image != nil {
		p.Image.ImageDestroy(context)
		p.Image = nil
	}
	if p.pipeline != nil {
		p.pipeline.Destroy(context)
		p.pipeline = nil
	}
	if p.layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, p.layout, context.Allocator)
		p.layout = vk.NullDescriptorSetLayout
	}
	if p.Sampler != vk.NullSampler {
		vk.DestroySampler(context.Device.LogicalDevice, p.Sampler, context.Allocator)
		p.Sampler = vk.NullSampler
	}
}

// dispatchGroupCount is ceil(size / workgroup).
func dispatchGroupCount(size, workgroup uint32) uint32 {
	return (size + workgroup - 1) / workgroup
}
