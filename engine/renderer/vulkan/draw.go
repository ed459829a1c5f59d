package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// ColorAttachmentFormat is the offscreen target the scene renders into
// before the final blit to the swapchain image.
const ColorAttachmentFormat = vk.FormatR16g16b16a16Sfloat

// DepthAttachmentFormat feeds both depth testing and the pyramid reduction.
const DepthAttachmentFormat = vk.FormatD32Sfloat

// ClearColor is the background the early opaque pass clears to.
var ClearColor = [4]float32{0.1, 0.2, 0.3, 0}

// DrawRecorder records one indirect draw pass inside a dynamic rendering
// scope. It owns the graphics pipelines for the vertex-pull path and, when
// the device supports it, the mesh-task path.
type DrawRecorder struct {
	layout vk.DescriptorSetLayout

	graphicsPipeline *VulkanPipeline
	meshPipeline     *VulkanPipeline

	// UseMeshPath is latched from device support at build time; the frame
	// driver does not change it afterwards.
	UseMeshPath bool
}

func NewDrawRecorder(context *VulkanContext, textures *TextureTable) (*DrawRecorder, error) {
	r := &DrawRecorder{
		UseMeshPath: context.Device.SupportsMeshShading,
	}

	vertexStages := vk.ShaderStageFlags(vk.ShaderStageVertexBit) | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	if r.UseMeshPath {
		vertexStages |= vk.ShaderStageFlags(vk.ShaderStageTaskBitExt) | vk.ShaderStageFlags(vk.ShaderStageMeshBitExt)
	}

	bindings := []pushBinding{
		{Binding: DrawBindingViewData, Type: vk.DescriptorTypeUniformBuffer, Stages: vertexStages},
		{Binding: DrawBindingVertices, Type: vk.DescriptorTypeStorageBuffer, Stages: vertexStages},
		{Binding: DrawBindingRenderObjects, Type: vk.DescriptorTypeStorageBuffer, Stages: vertexStages},
		{Binding: DrawBindingTransforms, Type: vk.DescriptorTypeStorageBuffer, Stages: vertexStages},
		{Binding: DrawBindingMaterials, Type: vk.DescriptorTypeStorageBuffer, Stages: vertexStages | vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
		{Binding: DrawBindingIndirectDraws, Type: vk.DescriptorTypeStorageBuffer, Stages: vertexStages},
		{Binding: DrawBindingSurfaces, Type: vk.DescriptorTypeStorageBuffer, Stages: vertexStages},
	}
	if r.UseMeshPath {
		meshStages := vk.ShaderStageFlags(vk.ShaderStageTaskBitExt) | vk.ShaderStageFlags(vk.ShaderStageMeshBitExt)
		bindings = append(bindings,
			pushBinding{Binding: DrawBindingMeshlets, Type: vk.DescriptorTypeStorageBuffer, Stages: meshStages},
			pushBinding{Binding: DrawBindingMeshletData, Type: vk.DescriptorTypeStorageBuffer, Stages: meshStages},
		)
	}

	layout, err := NewPushDescriptorLayout(context, bindings)
	if err != nil {
		return nil, err
	}
	r.layout = layout

	setLayouts := []vk.DescriptorSetLayout{r.layout, textures.Layout}

	// Vertex-pull pipeline.
	stages := make([]VulkanShaderStage, 2)
	if err := NewShaderModule(context, stages, "scene", "vert", vk.ShaderStageVertexBit, 0); err != nil {
		return nil, err
	}
	if err := NewShaderModule(context, stages, "scene", "frag", vk.ShaderStageFragmentBit, 1); err != nil {
		return nil, err
	}
	pipeline, err := NewGraphicsPipeline(context, &VulkanPipelineConfig{
		ColorFormat: ColorAttachmentFormat,
		DepthFormat: DepthAttachmentFormat,
		Stride:      0,
		DescriptorSetLayouts: setLayouts,
		Stages: []vk.PipelineShaderStageCreateInfo{
			stages[0].ShaderStageCreateInfo,
			stages[1].ShaderStageCreateInfo,
		},
		CullMode:    FaceCullModeBack,
		ShaderFlags: PipelineShaderFlagDepthTest | PipelineShaderFlagDepthWrite,
	})
	DestroyShaderModule(context, &stages[0])
	DestroyShaderModule(context, &stages[1])
	if err != nil {
		return nil, err
	}
	r.graphicsPipeline = pipeline

	if r.UseMeshPath {
		meshStages := make([]VulkanShaderStage, 3)
		if err := NewShaderModule(context, meshStages, "scene", "task", vk.ShaderStageTaskBitExt, 0); err != nil {
			return nil, err
		}
		if err := NewShaderModule(context, meshStages, "scene", "mesh", vk.ShaderStageMeshBitExt, 1); err != nil {
			return nil, err
		}
		if err := NewShaderModule(context, meshStages, "scene", "frag", vk.ShaderStageFragmentBit, 2); err != nil {
			return nil, err
		}
		meshPipeline, err := NewGraphicsPipeline(context, &VulkanPipelineConfig{
			ColorFormat: ColorAttachmentFormat,
			DepthFormat: DepthAttachmentFormat,
			Stride:      0,
			DescriptorSetLayouts: setLayouts,
			Stages: []vk.PipelineShaderStageCreateInfo{
				meshStages[0].ShaderStageCreateInfo,
				meshStages[1].ShaderStageCreateInfo,
				meshStages[2].ShaderStageCreateInfo,
			},
			CullMode:    FaceCullModeBack,
			ShaderFlags: PipelineShaderFlagDepthTest | PipelineShaderFlagDepthWrite,
		})
		for i := range meshStages {
			DestroyShaderModule(context, &meshStages[i])
		}
		if err != nil {
			return nil, err
		}
		r.meshPipeline = meshPipeline
	}

	return r, nil
}

// RecordDrawPass opens a dynamic rendering scope over the color and depth
// attachments, issues one count-driven indirect draw fed by the most recent
// cull dispatch, and closes the scope. clear selects the load op: the early
// opaque pass clears, every later pass loads.
func (r *DrawRecorder) RecordDrawPass(
	commandBuffer *VulkanCommandBuffer,
	res *SceneResources,
	textures *TextureTable,
	colorView, depthView vk.ImageView,
	width, height uint32,
	frameIndex uint32,
	clear bool,
) {
	cb := commandBuffer.Handle

	loadOp := vk.AttachmentLoadOpLoad
	if clear {
		loadOp = vk.AttachmentLoadOpClear
	}

	colorAttachments := []vk.RenderingAttachmentInfo{{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   colorView,
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      loadOp,
		StoreOp:     vk.AttachmentStoreOpStore,
		ClearValue:  vk.NewClearValue(ClearColor[:]),
	}}

	depthAttachments := []vk.RenderingAttachmentInfo{{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   depthView,
		ImageLayout: vk.ImageLayoutDepthStencilAttachmentOptimal,
		LoadOp:      loadOp,
		StoreOp:     vk.AttachmentStoreOpStore,
		// Reversed-Z clears to the far value, zero.
		ClearValue:  vk.NewClearDepthStencil(0.0, 0),
	}}

	renderingInfo := vk.RenderingInfo{
		SType: vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: width, Height: height},
		},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachments,
		PDepthAttachment:     depthAttachments,
	}

	vk.CmdBeginRendering(cb, renderingInfo)

	// Negative height flips Y so world +Y is up in clip space.
	viewport := vk.Viewport{
		X:        0,
		Y:        float32(height),
		Width:    float32(width),
		Height:   -float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{Extent: vk.Extent2D{Width: width, Height: height}}
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})

	pipeline := r.graphicsPipeline
	if r.UseMeshPath {
		pipeline = r.meshPipeline
	}
	vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pipeline.Handle)

	writes := res.DrawWrites(frameIndex, r.UseMeshPath)
	vk.CmdPushDescriptorSet(cb, vk.PipelineBindPointGraphics, pipeline.PipelineLayout, 0, uint32(len(writes)), writes)
	vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, pipeline.PipelineLayout, 1, 1,
		[]vk.DescriptorSet{textures.Set}, 0, nil)

	if r.UseMeshPath {
		vk.CmdDrawMeshTasksIndirectCount(cb,
			res.IndirectDrawBuffer.Handle, vk.DeviceSize(IndirectTaskCommandOffset),
			res.IndirectCountBuffer.Handle, 0,
			res.RenderObjectCount, uint32(unsafe.Sizeof(IndirectTaskData{})))
	} else {
		vk.CmdBindIndexBuffer(cb, res.IndexBuffer.Handle, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexedIndirectCount(cb,
			res.IndirectDrawBuffer.Handle, vk.DeviceSize(IndirectDrawCommandOffset),
			res.IndirectCountBuffer.Handle, 0,
			res.RenderObjectCount, uint32(unsafe.Sizeof(IndirectDrawData{})))
	}

	vk.CmdEndRendering(cb)
}

func (r *DrawRecorder) Destroy(context *VulkanContext) {
	if r.graphicsPipeline != nil {
		r.graphicsPipeline.Destroy(context)
		r.graphicsPipeline = nil
	}
	if r.meshPipeline != nil {
		r.meshPipeline.Destroy(context)
		r.meshPipeline = nil
	}
	if r.layout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, r.layout, context.Allocator)
		r.layout = vk.NullDescriptorSetLayout
	}
}
