package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/core"
	"github.com/anima-gfx/lucent/engine/math"
	"github.com/anima-gfx/lucent/engine/renderer/components"
)

// DrawContext is the per-frame input handed to the frame driver by the
// application layer.
type DrawContext struct {
	Camera    *components.Camera
	DrawCount uint32

	OcclusionCulling bool
	LOD              bool
	LODTarget        float32

	// DebugPyramid blits a selected pyramid mip over the color target
	// instead of the scene composite.
	DebugPyramid    bool
	DebugPyramidMip uint32

	// FreezeFrustum keeps the culling planes at their last unfrozen values
	// while the camera keeps moving, to inspect what gets culled.
	FreezeFrustum bool
}

// frameTimeout bounds every host wait in the frame path: fence waits and
// swapchain acquire both give up after a second and let the next frame
// retry.
const frameTimeout uint64 = 1_000_000_000

// DrawFrame runs the whole per-frame pipeline on one command buffer:
// acquire, view-uniform update, early cull + draw, pyramid build, late cull
// + draw, transparent pass, blit, submit, present. A zero-sized framebuffer
// suspends the pipeline; ClearFrame keeps presentation alive in that state.
func (vr *VulkanRenderer) DrawFrame(ctx *DrawContext) error {
	context := vr.context
	device := context.Device

	if vr.resources == nil || vr.draw == nil {
		return fmt.Errorf("DrawFrame called before UploadScene")
	}

	if context.RecreatingSwapchain {
		result := vk.DeviceWaitIdle(device.LogicalDevice)
		if !VulkanResultIsSuccess(result) {
			err := fmt.Errorf("DrawFrame vkDeviceWaitIdle (1) failed: '%s'", VulkanResultString(result, true))
			core.LogError(err.Error())
			return err
		}
		core.LogInfo("Recreating swapchain, booting.")
		return nil
	}

	if context.FramebufferSizeGeneration != context.FramebufferSizeLastGeneration {
		result := vk.DeviceWaitIdle(device.LogicalDevice)
		if !VulkanResultIsSuccess(result) {
			err := fmt.Errorf("DrawFrame vkDeviceWaitIdle (2) failed: '%s'", VulkanResultString(result, true))
			core.LogError(err.Error())
			return err
		}
		if !vr.recreateSwapchain() {
			// Zero-sized window; stay suspended until a real resize.
			return nil
		}
		core.LogInfo("Resized, booting.")
		return nil
	}

	ft := vr.frameTools.Current()

	if !ft.InFlightFence.FenceWait(context, frameTimeout) {
		core.LogWarn("in-flight fence wait timed out, skipping frame")
		return nil
	}

	imageIndex, ok := context.Swapchain.SwapchainAcquireNextImageIndex(context, frameTimeout, ft.ImageAcquired, vk.NullFence)
	if !ok {
		// Out of date; the swapchain was already queued for rebuild.
		return nil
	}
	context.ImageIndex = imageIndex

	ft.InFlightFence.FenceReset(context)

	cb := ft.CommandBuffer
	cb.Reset()
	if err := cb.Begin(false, false, false); err != nil {
		return err
	}

	vr.writeViewData(ctx)

	frameIndex := vr.frameTools.Index
	width := context.FramebufferWidth
	height := context.FramebufferHeight

	// Early pass: replay last frame's visible set. No pyramid involved.
	vr.cull.DispatchCull(cb, vr.resources, vr.pyramid, frameIndex,
		CullPhaseEarly, CullPassOpaque, ctx.OcclusionCulling, ctx.LOD, ctx.DrawCount)

	vr.transitionAttachmentsForDraw(cb)

	vr.draw.RecordDrawPass(cb, vr.resources, vr.resources.Textures,
		vr.colorAttachment.View, vr.depthAttachment.View, width, height, frameIndex, true)

	// The early pass depth feeds the pyramid the late pass culls against.
	vr.pyramid.Generate(cb, vr.depthAttachment)

	vr.cull.DispatchCull(cb, vr.resources, vr.pyramid, frameIndex,
		CullPhaseLate, CullPassOpaque, ctx.OcclusionCulling, ctx.LOD, ctx.DrawCount)

	vr.draw.RecordDrawPass(cb, vr.resources, vr.resources.Textures,
		vr.colorAttachment.View, vr.depthAttachment.View, width, height, frameIndex, false)

	// Transparents run as one more late cull + draw with the material flag
	// test inverted. No sorting happens; blending order is approximate.
	vr.cull.DispatchCull(cb, vr.resources, vr.pyramid, frameIndex,
		CullPhaseLate, CullPassPost, ctx.OcclusionCulling, ctx.LOD, ctx.DrawCount)

	vr.draw.RecordDrawPass(cb, vr.resources, vr.resources.Textures,
		vr.colorAttachment.View, vr.depthAttachment.View, width, height, frameIndex, false)

	if ctx.DebugPyramid {
		vr.blitPyramidMipToSwapchain(cb, ctx.DebugPyramidMip)
	} else {
		vr.blitColorToSwapchain(cb)
	}

	if err := cb.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{ft.ImageAcquired},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageAllGraphicsBit)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{ft.ReadyToPresent},
	}

	if result := vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, ft.InFlightFence.Handle); result != vk.Success {
		err := fmt.Errorf("vkQueueSubmit failed with result: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return err
	}
	cb.UpdateSubmitted()

	context.Swapchain.SwapchainPresent(context, device.GraphicsQueue, device.PresentQueue, ft.ReadyToPresent, context.ImageIndex)

	vr.frameTools.Advance()
	vr.FrameNumber++
	return nil
}

// ClearFrame presents a solid clear color without running the pipeline, used
// while the window is minimized so present cadence stays responsive.
func (vr *VulkanRenderer) ClearFrame() error {
	context := vr.context
	ft := vr.frameTools.Current()

	if !ft.InFlightFence.FenceWait(context, frameTimeout) {
		return nil
	}
	imageIndex, ok := context.Swapchain.SwapchainAcquireNextImageIndex(context, frameTimeout, ft.ImageAcquired, vk.NullFence)
	if !ok {
		return nil
	}
	context.ImageIndex = imageIndex
	ft.InFlightFence.FenceReset(context)

	cb := ft.CommandBuffer
	cb.Reset()
	if err := cb.Begin(false, false, false); err != nil {
		return err
	}

	swapImage := context.Swapchain.Images[imageIndex]
	transitionImage(cb, swapImage, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	clearValue := vk.ClearColorValue{}
	floats := (*[4]float32)(unsafe.Pointer(&clearValue))
	copy(floats[:], ClearColor[:])
	clearRange := vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
	vk.CmdClearColorImage(cb.Handle, swapImage, vk.ImageLayoutTransferDstOptimal, &clearValue, 1, []vk.ImageSubresourceRange{clearRange})

	transitionImage(cb, swapImage, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc,
		vk.AccessFlags(vk.AccessTransferWriteBit), 0,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))

	if err := cb.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{ft.ImageAcquired},
		PWaitDstStageMask:    []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageTransferBit)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{ft.ReadyToPresent},
	}
	if result := vk.QueueSubmit(context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, ft.InFlightFence.Handle); result != vk.Success {
		err := fmt.Errorf("vkQueueSubmit (clear frame) failed: %s", VulkanResultString(result, true))
		core.LogError(err.Error())
		return err
	}
	cb.UpdateSubmitted()

	context.Swapchain.SwapchainPresent(context, context.Device.GraphicsQueue, context.Device.PresentQueue, ft.ReadyToPresent, context.ImageIndex)
	vr.frameTools.Advance()
	return nil
}

// writeViewData rebuilds the mapped view uniform for the current frame slot.
// Frozen frustum planes survive from the last unfrozen frame.
func (vr *VulkanRenderer) writeViewData(ctx *DrawContext) {
	camera := ctx.Camera
	proj := camera.GetProjection()
	view := camera.GetView()
	// Row-vector convention: points transform as v * view * projection.
	viewProjection := view.Mul(proj)

	if !ctx.FreezeFrustum || !vr.frustumFrozen {
		planes := math.ExtractFrustumPlanes(viewProjection)
		for i, p := range planes {
			vr.frozenPlanes[i] = [4]float32{p.Normal.X, p.Normal.Y, p.Normal.Z, p.Distance}
		}
		vr.frustumFrozen = ctx.FreezeFrustum
	}

	p00, p11 := camera.ProjectionScale()
	data := GpuViewData{
		ViewProjection: viewProjection,
		FrustumPlanes:  vr.frozenPlanes,
		CameraPosition: [4]float32{camera.Position.X, camera.Position.Y, camera.Position.Z, 1},
		P00:            p00,
		P11:            p11,
		ZNear:          camera.NearClip,
		ZFar:           camera.FarClip,
		LodTarget:      ctx.LODTarget,
		PyramidWidth:   float32(vr.pyramid.Width),
		PyramidHeight:  float32(vr.pyramid.Height),
		DrawCount:      ctx.DrawCount,
	}
	vr.resources.WriteViewData(vr.frameTools.Index, &data)
}

// transitionAttachmentsForDraw moves the offscreen color and depth images
// from undefined into attachment layouts at the top of the frame. Contents
// are cleared by the early pass, so nothing needs preserving.
func (vr *VulkanRenderer) transitionAttachmentsForDraw(commandBuffer *VulkanCommandBuffer) {
	colorBarrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutColorAttachmentOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vr.colorAttachment.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	colorBarrier.Deref()

	depthBarrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       0,
		DstAccessMask:       vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit) | vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit),
		OldLayout:           vk.ImageLayoutUndefined,
		NewLayout:           vk.ImageLayoutDepthStencilAttachmentOptimal,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vr.depthAttachment.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	depthBarrier.Deref()

	vk.CmdPipelineBarrier(commandBuffer.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)|
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)|
			vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
		0, 0, nil, 0, nil, 2, []vk.ImageMemoryBarrier{colorBarrier, depthBarrier})
}

// blitColorToSwapchain copies the composed scene into the acquired swapchain
// image and leaves it ready to present.
func (vr *VulkanRenderer) blitColorToSwapchain(commandBuffer *VulkanCommandBuffer) {
	context := vr.context
	swapImage := context.Swapchain.Images[context.ImageIndex]

	transitionImage(commandBuffer, vr.colorAttachment.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutTransferSrcOptimal,
		vk.AccessFlags(vk.AccessColorAttachmentWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))
	transitionImage(commandBuffer, swapImage, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	vr.blitImageToSwapImage(commandBuffer, vr.colorAttachment.Handle,
		vr.colorAttachment.Width, vr.colorAttachment.Height, 0, swapImage)

	transitionImage(commandBuffer, swapImage, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc,
		vk.AccessFlags(vk.AccessTransferWriteBit), 0,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))
}

// blitPyramidMipToSwapchain shows one pyramid mip instead of the scene.
func (vr *VulkanRenderer) blitPyramidMipToSwapchain(commandBuffer *VulkanCommandBuffer, mip uint32) {
	context := vr.context
	swapImage := context.Swapchain.Images[context.ImageIndex]

	if mip >= vr.pyramid.MipLevels {
		mip = vr.pyramid.MipLevels - 1
	}
	mipW, mipH := PyramidMipExtent(vr.pyramid.Width, vr.pyramid.Height, mip)

	transitionImage(commandBuffer, vr.pyramid.Image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutGeneral, vk.ImageLayoutTransferSrcOptimal,
		vk.AccessFlags(vk.AccessShaderReadBit)|vk.AccessFlags(vk.AccessShaderWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
		vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))
	transitionImage(commandBuffer, swapImage, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	vr.blitImageToSwapImage(commandBuffer, vr.pyramid.Image.Handle, mipW, mipH, mip, swapImage)

	// The swap image still sits in transfer-dst; overlay the mip label
	// while it does.
	vr.overlayPyramidLabel(commandBuffer, swapImage, mip, mipW, mipH)

	transitionImage(commandBuffer, swapImage, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc,
		vk.AccessFlags(vk.AccessTransferWriteBit), 0,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit))
	transitionImage(commandBuffer, vr.pyramid.Image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutGeneral,
		vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit))
}

// overlayPyramidLabel blits the baked "mip N WxH" text into the top-left
// corner of the debug-pyramid view. The label only re-bakes when it
// changes; the blit is opaque, which is fine for a debug overlay.
func (vr *VulkanRenderer) overlayPyramidLabel(commandBuffer *VulkanCommandBuffer, swapImage vk.Image, mip, mipW, mipH uint32) {
	if vr.hudBaker == nil {
		return
	}

	label := fmt.Sprintf("mip %d  %dx%d", mip, mipW, mipH)
	if label != vr.hudLabel {
		if err := vr.refreshHUDLabel(label); err != nil {
			core.LogWarn("debug hud label bake failed: %s", err)
			return
		}
	}
	if vr.hudImage == nil {
		return
	}

	const margin = 8
	if vr.context.FramebufferWidth <= 2*margin || vr.context.FramebufferHeight <= 2*margin {
		return
	}
	dstW := math.Clamp(vr.hudImage.Width, 1, vr.context.FramebufferWidth-2*margin)
	dstH := math.Clamp(vr.hudImage.Height, 1, vr.context.FramebufferHeight-2*margin)

	blit := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
	}
	blit.SrcOffsets[1] = vk.Offset3D{X: int32(vr.hudImage.Width), Y: int32(vr.hudImage.Height), Z: 1}
	blit.DstOffsets[0] = vk.Offset3D{X: margin, Y: margin, Z: 0}
	blit.DstOffsets[1] = vk.Offset3D{X: margin + int32(dstW), Y: margin + int32(dstH), Z: 1}
	blit.Deref()

	vk.CmdBlitImage(commandBuffer.Handle,
		vr.hudImage.Handle, vk.ImageLayoutTransferSrcOptimal,
		swapImage, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blit}, vk.FilterNearest)
}

func (vr *VulkanRenderer) blitImageToSwapImage(commandBuffer *VulkanCommandBuffer, src vk.Image, srcW, srcH, srcMip uint32, dst vk.Image) {
	context := vr.context
	blit := vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:   srcMip,
			LayerCount: 1,
		},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
	}
	blit.SrcOffsets[1] = vk.Offset3D{X: int32(srcW), Y: int32(srcH), Z: 1}
	blit.DstOffsets[1] = vk.Offset3D{X: int32(context.FramebufferWidth), Y: int32(context.FramebufferHeight), Z: 1}
	blit.Deref()

	vk.CmdBlitImage(commandBuffer.Handle,
		src, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blit}, vk.FilterLinear)
}

// transitionImage records a single-image layout transition with explicit
// stage and access masks.
func transitionImage(commandBuffer *VulkanCommandBuffer, image vk.Image, aspect vk.ImageAspectFlags,
	oldLayout, newLayout vk.ImageLayout, srcAccess, dstAccess vk.AccessFlags, srcStage, dstStage vk.PipelineStageFlags) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: vk.RemainingMipLevels,
			LayerCount: 1,
		},
	}
	barrier.Deref()
	vk.CmdPipelineBarrier(commandBuffer.Handle, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
