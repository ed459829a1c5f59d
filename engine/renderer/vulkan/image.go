package vulkan

import (
	"fmt"

	"github.com/anima-gfx/lucent/engine/core"
	vk "github.com/goki/vulkan"
)

type VulkanImage struct {
	Handle     vk.Image
	Memory     vk.DeviceMemory
	View       vk.ImageView
	Width      uint32
	Height     uint32
	MipLevels  uint32
	Format     vk.Format
	MipViews   []vk.ImageView
}

// ImageCreate allocates a 2D image with an optional default view spanning all
// mip levels. The color and depth attachments (backend.go) go through this
// helper; the Hi-Z pyramid (pyramid.go) and textures use imageCreateMipped.
func ImageCreate(
	context *VulkanContext,
	imageType vk.ImageType,
	width, height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspectFlags vk.ImageAspectFlags,
) (*VulkanImage, error) {
	return imageCreateMipped(context, imageType, width, height, 1, format, tiling, usage, memoryFlags, createView, viewAspectFlags)
}

func imageCreateMipped(
	context *VulkanContext,
	imageType vk.ImageType,
	width, height, mipLevels uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspectFlags vk.ImageAspectFlags,
) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:     width,
		Height:    height,
		MipLevels: mipLevels,
		Format:    format,
	}

	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	createInfo.Deref()

	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create image")
		core.LogError(err.Error())
		return nil, err
	}
	image.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryTypeIndex := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryTypeIndex == -1 {
		err := fmt.Errorf("required memory type not found, image not valid")
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryTypeIndex),
	}
	allocateInfo.Deref()

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		err := fmt.Errorf("failed to allocate image memory")
		core.LogError(err.Error())
		return nil, err
	}
	image.Memory = memory

	if res := vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		err := fmt.Errorf("failed to bind image memory")
		core.LogError(err.Error())
		return nil, err
	}

	if createView {
		view, err := imageViewCreate(context, image.Handle, format, viewAspectFlags, 0, mipLevels)
		if err != nil {
			return nil, err
		}
		image.View = view
	}

	return image, nil
}

func imageViewCreate(context *VulkanContext, handle vk.Image, format vk.Format, aspectFlags vk.ImageAspectFlags, baseMip, levelCount uint32) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   baseMip,
			LevelCount:     levelCount,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	viewInfo.Deref()

	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view); res != vk.Success {
		err := fmt.Errorf("failed to create image view")
		core.LogError(err.Error())
		return nil, err
	}
	return view, nil
}

// ImageViewCreateMip creates a single-mip view into an existing image, used
// by the Hi-Z pyramid to bind one mip at a time as a storage image.
func ImageViewCreateMip(context *VulkanContext, image *VulkanImage, mip uint32) (vk.ImageView, error) {
	return imageViewCreate(context, image.Handle, image.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit), mip, 1)
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	for _, v := range vi.MipViews {
		if v != nil {
			vk.DestroyImageView(context.Device.LogicalDevice, v, context.Allocator)
		}
	}
	vi.MipViews = nil

	if vi.View != nil {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}
