package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/core"
)

type VulkanBuffer struct {
	Handle    vk.Buffer
	Memory    vk.DeviceMemory
	TotalSize vk.DeviceSize
	Usage     vk.BufferUsageFlags
	// Mapped is non-nil while the buffer is persistently mapped
	// (host-visible buffers only).
	Mapped unsafe.Pointer
}

// BufferCreate allocates a buffer and binds device memory with the requested
// property flags. Storage buffers that the shaders address through
// buffer-device-address must include the shader-device-address usage bit; the
// allocate-info is chained with the device-address flag whenever that bit is
// present.
func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		TotalSize: vk.DeviceSize(size),
		Usage:     usage,
	}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	createInfo.Deref()

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("vkCreateBuffer failed with %s: %w", VulkanResultString(res, true), ErrAllocationFailed)
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Handle = handle

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryTypeIndex := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryTypeIndex == -1 {
		err := fmt.Errorf("required memory type not found, buffer not valid: %w", ErrAllocationFailed)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryTypeIndex),
	}

	// Device-address-capable buffers need the matching allocate flag on
	// their backing memory.
	var flagsInfo vk.MemoryAllocateFlagsInfo
	if usage&vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit) != 0 {
		flagsInfo = vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		}
		flagsInfo.Deref()
		allocateInfo.PNext = unsafe.Pointer(&flagsInfo)
	}
	allocateInfo.Deref()

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		err := fmt.Errorf("vkAllocateMemory failed with %s: %w", VulkanResultString(res, true), ErrAllocationFailed)
		core.LogError(err.Error())
		return nil, err
	}
	buffer.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, buffer.Handle, buffer.Memory, 0); res != vk.Success {
		err := fmt.Errorf("vkBindBufferMemory failed with %s: %w", VulkanResultString(res, true), ErrAllocationFailed)
		core.LogError(err.Error())
		return nil, err
	}

	return buffer, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Mapped != nil {
		b.UnmapMemory(context)
	}
	if b.Memory != nil {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = nil
	}
	b.TotalSize = 0
}

// MapMemory maps the whole buffer and remembers the pointer. Host-visible
// buffers that live for the whole run (view uniforms, staging) stay mapped.
func (b *VulkanBuffer) MapMemory(context *VulkanContext) (unsafe.Pointer, error) {
	if b.Mapped != nil {
		return b.Mapped, nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, b.TotalSize, 0, &ptr); res != vk.Success {
		err := fmt.Errorf("vkMapMemory failed with %s", VulkanResultString(res, true))
		core.LogError(err.Error())
		return nil, err
	}
	b.Mapped = ptr
	return ptr, nil
}

func (b *VulkanBuffer) UnmapMemory(context *VulkanContext) {
	if b.Mapped == nil {
		return
	}
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	b.Mapped = nil
}

// LoadData copies host bytes into a mapped region at offset. The buffer must
// be host-visible; coherent memory is assumed (both staging and view-data
// buffers request it).
func (b *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, data []byte) error {
	if uint64(len(data))+offset > uint64(b.TotalSize) {
		return fmt.Errorf("buffer load of %d bytes at offset %d overruns size %d", len(data), offset, b.TotalSize)
	}
	ptr, err := b.MapMemory(context)
	if err != nil {
		return err
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr)+uintptr(offset))), len(data))
	copy(dst, data)
	return nil
}

// CopyTo records a buffer-to-buffer copy into an already-recording command
// buffer. Submission and synchronization belong to the caller.
func (b *VulkanBuffer) CopyTo(commandBuffer *VulkanCommandBuffer, srcOffset uint64, dest *VulkanBuffer, destOffset, size uint64) {
	copyRegion := vk.BufferCopy{
		SrcOffset: vk.DeviceSize(srcOffset),
		DstOffset: vk.DeviceSize(destOffset),
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(commandBuffer.Handle, b.Handle, dest.Handle, 1, []vk.BufferCopy{copyRegion})
}
