package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// CullPhase selects the two halves of the two-phase scheme: the early pass
// replays last frame's visible set without touching the pyramid; the late
// pass culls everything against the fresh pyramid and rewrites visibility.
type CullPhase uint8

const (
	CullPhaseEarly CullPhase = iota
	CullPhaseLate
)

// CullPassKind separates opaque emission from the dedicated post pass that
// only emits transparent-flagged objects.
type CullPassKind uint8

const (
	CullPassOpaque CullPassKind = iota
	CullPassPost
)

// CullPushConstant is the per-dispatch shader input. Bools travel as uint32
// so the layout matches the shader block exactly.
type CullPushConstant struct {
	DrawCount        uint32
	PostPass         uint32
	OcclusionEnabled uint32
	LODEnabled       uint32
}

// CullDispatcher owns the two culling compute pipelines and records the
// dispatches plus the buffer barrier graph around them.
type CullDispatcher struct {
	layout        vk.DescriptorSetLayout
	earlyPipeline *VulkanPipeline
	latePipeline  *VulkanPipeline
}

func NewCullDispatcher(context *VulkanContext) (*CullDispatcher, error) {
	d := &CullDispatcher{}

	computeStage := vk.ShaderStageFlags(vk.ShaderStageComputeBit)
	layout, err := NewPushDescriptorLayout(context, []pushBinding{
		{Binding: CullBindingViewData, Type: vk.DescriptorTypeUniformBuffer, Stages: computeStage},
		{Binding: CullBindingRenderObjects, Type: vk.DescriptorTypeStorageBuffer, Stages: computeStage},
		{Binding: CullBindingTransforms, Type: vk.DescriptorTypeStorageBuffer, Stages: computeStage},
		{Binding: CullBindingIndirectDraws, Type: vk.DescriptorTypeStorageBuffer, Stages: computeStage},
		{Binding: CullBindingIndirectCount, Type: vk.DescriptorTypeStorageBuffer, Stages: computeStage},
		{Binding: CullBindingVisibility, Type: vk.DescriptorTypeStorageBuffer, Stages: computeStage},
		{Binding: CullBindingSurfaces, Type: vk.DescriptorTypeStorageBuffer, Stages: computeStage},
		{Binding: CullBindingDepthPyramid, Type: vk.DescriptorTypeCombinedImageSampler, Stages: computeStage},
	})
	if err != nil {
		return nil, err
	}
	d.layout = layout

	pcRange := []*PushConstantRange{{Offset: 0, Size: uint32(unsafe.Sizeof(CullPushConstant{})), Stages: vk.ShaderStageComputeBit}}

	for _, build := range []struct {
		name string
		dst  **VulkanPipeline
	}{
		{"early_cull", &d.earlyPipeline},
		{"late_cull", &d.latePipeline},
	} {
		stages := make([]VulkanShaderStage, 1)
		if err := NewShaderModule(context, stages, build.name, "comp", vk.ShaderStageComputeBit, 0); err != nil {
			return nil, err
		}
		pipeline, err := NewComputePipeline(context, stages[0].ShaderStageCreateInfo, []vk.DescriptorSetLayout{d.layout}, pcRange)
		DestroyShaderModule(context, &stages[0])
		if err != nil {
			return nil, err
		}
		*build.dst = pipeline
	}

	return d, nil
}

// DispatchCull records one culling dispatch: count reset, pre-barriers,
// descriptor pushes, the dispatch itself, and post-barriers that hand the
// outputs to the indirect draw. The pyramid is only bound on late dispatches.
func (d *CullDispatcher) DispatchCull(
	commandBuffer *VulkanCommandBuffer,
	res *SceneResources,
	pyramid *DepthPyramid,
	frameIndex uint32,
	phase CullPhase,
	passKind CullPassKind,
	occlusionOn, lodOn bool,
	drawCount uint32,
) {
	cb := commandBuffer.Handle

	// Zero the count the previous draw consumed. The fill is a transfer
	// write, fenced on both sides.
	countToTransfer := indirectCountBarrier(res.IndirectCountBuffer,
		vk.AccessFlags(vk.AccessIndirectCommandReadBit), vk.AccessFlags(vk.AccessTransferWriteBit))
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageDrawIndirectBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		0, 0, nil, 1, []vk.BufferMemoryBarrier{countToTransfer}, 0, nil)

	vk.CmdFillBuffer(cb, res.IndirectCountBuffer.Handle, 0, 4, 0)

	preBarriers := cullPreBarriers(res)
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit)|vk.PipelineStageFlags(vk.PipelineStageDrawIndirectBit)|
			vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)|vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		0, 0, nil, uint32(len(preBarriers)), preBarriers, 0, nil)

	if phase == CullPhaseLate {
		// The pyramid was just written by the reduction dispatches; the
		// cull samples it.
		pyramidToRead := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       vk.AccessFlags(vk.AccessShaderWriteBit),
			DstAccessMask:       vk.AccessFlags(vk.AccessShaderReadBit),
			OldLayout:           vk.ImageLayoutGeneral,
			NewLayout:           vk.ImageLayoutGeneral,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               pyramid.Image.Handle,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: pyramid.MipLevels,
				LayerCount: 1,
			},
		}
		pyramidToRead.Deref()
		vk.CmdPipelineBarrier(cb,
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
			0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{pyramidToRead})
	}

	pipeline := d.earlyPipeline
	if phase == CullPhaseLate {
		pipeline = d.latePipeline
	}
	vk.CmdBindPipeline(cb, vk.PipelineBindPointCompute, pipeline.Handle)

	writes := res.CullWrites(frameIndex)
	if phase == CullPhaseLate {
		writes = append(writes, imageWrite(CullBindingDepthPyramid, vk.DescriptorTypeCombinedImageSampler,
			pyramid.Image.View, pyramid.Sampler, vk.ImageLayoutGeneral))
	}
	vk.CmdPushDescriptorSet(cb, vk.PipelineBindPointCompute, pipeline.PipelineLayout, 0, uint32(len(writes)), writes)

	pc := CullPushConstant{
		DrawCount:        drawCount,
		PostPass:         boolToU32(passKind == CullPassPost),
		OcclusionEnabled: boolToU32(occlusionOn),
		LODEnabled:       boolToU32(lodOn),
	}
	vk.CmdPushConstants(cb, pipeline.PipelineLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		0, uint32(unsafe.Sizeof(pc)), unsafe.Pointer(&pc))

	vk.CmdDispatch(cb, dispatchGroupCount(drawCount, CullWorkgroupSize), 1, 1)

	postBarriers := cullPostBarriers(res)
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		vk.PipelineStageFlags(vk.PipelineStageDrawIndirectBit)|vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit)|
			vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit),
		0, 0, nil, uint32(len(postBarriers)), postBarriers, 0, nil)
}

func (d *CullDispatcher) Destroy(context *VulkanContext) {
	if d.earlyPipeline != nil {
		d.earlyPipeline.Destroy(context)
		d.earlyPipeline = nil
	}
	if d.latePipeline != nil {
		d.latePipeline.Destroy(context)
		d.latePipeline = nil
	}
	if d.layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, d.layout, context.Allocator)
		d.layout = vk.NullDescriptorSetLayout
	}
}

// indirectCountBarrier moves the 4-byte counter between producer and
// consumer access.
func indirectCountBarrier(buffer *VulkanBuffer, src, dst vk.AccessFlags) vk.BufferMemoryBarrier {
	return wholeBufferBarrier(buffer, src, dst)
}

// cullPreBarriers hands the cull inputs and outputs to compute: the freshly
// zeroed count, the indirect slots the previous draw read, and the
// visibility flags the previous dispatch wrote.
func cullPreBarriers(res *SceneResources) []vk.BufferMemoryBarrier {
	return []vk.BufferMemoryBarrier{
		wholeBufferBarrier(res.IndirectCountBuffer,
			vk.AccessFlags(vk.AccessTransferWriteBit),
			vk.AccessFlags(vk.AccessShaderReadBit)|vk.AccessFlags(vk.AccessShaderWriteBit)),
		wholeBufferBarrier(res.IndirectDrawBuffer,
			vk.AccessFlags(vk.AccessIndirectCommandReadBit)|vk.AccessFlags(vk.AccessShaderReadBit),
			vk.AccessFlags(vk.AccessShaderWriteBit)),
		wholeBufferBarrier(res.VisibilityBuffer,
			vk.AccessFlags(vk.AccessShaderReadBit)|vk.AccessFlags(vk.AccessShaderWriteBit),
			vk.AccessFlags(vk.AccessShaderReadBit)|vk.AccessFlags(vk.AccessShaderWriteBit)),
	}
}

// cullPostBarriers publish the dispatch outputs: count and slots to the
// indirect draw (which also fetches slot data in the vertex stage), and
// visibility to the next cull dispatch.
func cullPostBarriers(res *SceneResources) []vk.BufferMemoryBarrier {
	return []vk.BufferMemoryBarrier{
		wholeBufferBarrier(res.IndirectCountBuffer,
			vk.AccessFlags(vk.AccessShaderWriteBit),
			vk.AccessFlags(vk.AccessIndirectCommandReadBit)),
		wholeBufferBarrier(res.IndirectDrawBuffer,
			vk.AccessFlags(vk.AccessShaderWriteBit),
			vk.AccessFlags(vk.AccessIndirectCommandReadBit)|vk.AccessFlags(vk.AccessShaderReadBit)),
		wholeBufferBarrier(res.VisibilityBuffer,
			vk.AccessFlags(vk.AccessShaderWriteBit),
			vk.AccessFlags(vk.AccessShaderReadBit)|vk.AccessFlags(vk.AccessShaderWriteBit)),
	}
}

func wholeBufferBarrier(buffer *VulkanBuffer, src, dst vk.AccessFlags) vk.BufferMemoryBarrier {
	barrier := vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       src,
		DstAccessMask:       dst,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buffer.Handle,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
	barrier.Deref()
	return barrier
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
