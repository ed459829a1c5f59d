package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/assets"
	"github.com/anima-gfx/lucent/engine/core"
)

// formatForHint maps the loader's format hint onto a device format. The
// renderer deliberately never inspects container bytes; the hint is the
// whole contract.
func formatForHint(hint string) (vk.Format, error) {
	switch hint {
	case assets.FormatHintBC1:
		return vk.FormatBc1RgbaUnormBlock, nil
	case assets.FormatHintBC2:
		return vk.FormatBc2UnormBlock, nil
	case assets.FormatHintBC3:
		return vk.FormatBc3UnormBlock, nil
	case assets.FormatHintBC7:
		return vk.FormatBc7UnormBlock, nil
	case assets.FormatHintRGBA8:
		return vk.FormatR8g8b8a8Unorm, nil
	default:
		return vk.FormatUndefined, fmt.Errorf("unknown texture format hint %q", hint)
	}
}

// UploadTexture streams one texture through the shared staging window into a
// device-local sampled image and publishes it in the texture table. The
// table slot only advances on full success, so a failed upload leaves the
// table unchanged.
func (vr *VulkanRenderer) UploadTexture(stats *assets.TextureStats) (uint32, error) {
	context := vr.context

	format, err := formatForHint(stats.FormatHint)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	if uint64(len(stats.Data)) > uint64(vr.resources.staging.TotalSize) {
		return 0, fmt.Errorf("%w: texture payload (%d bytes) exceeds staging window (%d bytes)",
			ErrUploadFailed, len(stats.Data), vr.resources.staging.TotalSize)
	}

	image, err := imageCreateMipped(
		context,
		vk.ImageType2d,
		stats.Width, stats.Height, stats.MipCount,
		format,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageSampledBit)|vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	if err := vr.resources.staging.LoadData(context, 0, stats.Data); err != nil {
		image.ImageDestroy(context)
		return 0, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		image.ImageDestroy(context)
		return 0, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	transitionImage(cb, image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	// One copy region per mip, walking the packed payload finest-first.
	var offset uint64
	regions := make([]vk.BufferImageCopy, 0, stats.MipCount)
	w, h := stats.Width, stats.Height
	for mip := uint32(0); mip < stats.MipCount; mip++ {
		size := uint64(assets.MipByteSize(stats.FormatHint, w, h))
		if offset+size > uint64(len(stats.Data)) {
			break
		}
		region := vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(offset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:   mip,
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: w, Height: h, Depth: 1},
		}
		region.Deref()
		regions = append(regions, region)
		offset += size
		w, h = maxU32(w>>1, 1), maxU32(h>>1, 1)
	}
	vk.CmdCopyBufferToImage(cb.Handle, vr.resources.staging.Handle, image.Handle,
		vk.ImageLayoutTransferDstOptimal, uint32(len(regions)), regions)

	transitionImage(cb, image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal,
		vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit))

	if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue); err != nil {
		image.ImageDestroy(context)
		return 0, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	sampler, err := vr.textureSampler()
	if err != nil {
		image.ImageDestroy(context)
		return 0, err
	}

	slot, err := vr.resources.Textures.WriteTexture(context, image.View, sampler)
	if err != nil {
		image.ImageDestroy(context)
		return 0, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	vr.textureImages = append(vr.textureImages, image)
	core.LogDebug("Texture uploaded to slot %d (%dx%d, %d mips).", slot, stats.Width, stats.Height, stats.MipCount)
	return slot, nil
}

// refreshHUDLabel re-bakes the debug HUD text and replaces the blit-source
// image it lives in. Only runs when the label string changes, so the wait
// for the previous image to leave flight is off the steady-state path.
func (vr *VulkanRenderer) refreshHUDLabel(label string) error {
	stats, err := vr.hudBaker.Bake(label)
	if err != nil {
		return err
	}

	img, err := vr.uploadBlitSource(stats)
	if err != nil {
		return err
	}

	if vr.hudImage != nil {
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
		vr.hudImage.ImageDestroy(vr.context)
	}
	vr.hudImage = img
	vr.hudLabel = label
	return nil
}

// uploadBlitSource stages an RGBA8 payload into a device-local image left in
// transfer-src layout, ready to be blitted over another image. Used for the
// debug HUD; nothing about it enters the texture table.
func (vr *VulkanRenderer) uploadBlitSource(stats *assets.TextureStats) (*VulkanImage, error) {
	context := vr.context

	if stats.FormatHint != assets.FormatHintRGBA8 {
		return nil, fmt.Errorf("%w: blit source must be rgba8, got %q", ErrUploadFailed, stats.FormatHint)
	}
	if uint64(len(stats.Data)) > uint64(vr.resources.staging.TotalSize) {
		return nil, fmt.Errorf("%w: blit source exceeds staging window", ErrUploadFailed)
	}

	image, err := imageCreateMipped(
		context,
		vk.ImageType2d,
		stats.Width, stats.Height, 1,
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		false,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	level0 := stats.Data[:assets.MipByteSize(assets.FormatHintRGBA8, stats.Width, stats.Height)]
	if err := vr.resources.staging.LoadData(context, 0, level0); err != nil {
		image.ImageDestroy(context)
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		image.ImageDestroy(context)
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	transitionImage(cb, image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal,
		0, vk.AccessFlags(vk.AccessTransferWriteBit),
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: stats.Width, Height: stats.Height, Depth: 1},
	}
	region.Deref()
	vk.CmdCopyBufferToImage(cb.Handle, vr.resources.staging.Handle, image.Handle,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})

	transitionImage(cb, image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
		vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal,
		vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessTransferReadBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit))

	if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue); err != nil {
		image.ImageDestroy(context)
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	return image, nil
}

// textureSampler lazily builds the single anisotropic sampler shared by the
// whole texture table.
func (vr *VulkanRenderer) textureSampler() (vk.Sampler, error) {
	if vr.sharedSampler != vk.NullSampler {
		return vr.sharedSampler, nil
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        vk.FilterLinear,
		MinFilter:        vk.FilterLinear,
		MipmapMode:       vk.SamplerMipmapModeLinear,
		AddressModeU:     vk.SamplerAddressModeRepeat,
		AddressModeV:     vk.SamplerAddressModeRepeat,
		AddressModeW:     vk.SamplerAddressModeRepeat,
		AnisotropyEnable: vk.True,
		MaxAnisotropy:    8,
		MinLod:           0,
		MaxLod:           16,
	}
	samplerInfo.Deref()

	if res := vk.CreateSampler(vr.context.Device.LogicalDevice, &samplerInfo, vr.context.Allocator, &vr.sharedSampler); res != vk.Success {
		err := fmt.Errorf("failed to create texture sampler: %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return vk.NullSampler, err
	}
	return vr.sharedSampler, nil
}
