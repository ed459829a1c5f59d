package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/core"
)

// FrameTools is the per-frame toolkit: a resettable command pool with one
// primary command buffer, the in-flight fence (created signaled so the first
// wait falls through), and the two binary semaphores that bracket a frame on
// the GPU timeline.
type FrameTools struct {
	CommandPool   vk.CommandPool
	CommandBuffer *VulkanCommandBuffer

	InFlightFence *VulkanFence

	// ImageAcquired is signaled by the swapchain acquire and waited on by
	// the frame's submission.
	ImageAcquired vk.Semaphore
	// ReadyToPresent is signaled by the frame's submission and waited on by
	// the present.
	ReadyToPresent vk.Semaphore
}

// FrameToolsRing holds one FrameTools per in-flight frame. Index advances
// modulo the ring size after each submission.
type FrameToolsRing struct {
	Frames [VulkanMaxFramesInFlight]FrameTools
	Index  uint32
}

func NewFrameToolsRing(context *VulkanContext) (*FrameToolsRing, error) {
	ring := &FrameToolsRing{}

	for i := range ring.Frames {
		ft := &ring.Frames[i]

		poolCreateInfo := vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
			Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		}
		if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &ft.CommandPool); res != vk.Success {
			err := fmt.Errorf("failed to create frame command pool %d: %s", i, VulkanResultString(res, true))
			core.LogError(err.Error())
			return nil, err
		}

		cb, err := NewVulkanCommandBuffer(context, ft.CommandPool, true)
		if err != nil {
			return nil, err
		}
		ft.CommandBuffer = cb

		fence, err := NewFence(context, true)
		if err != nil {
			return nil, err
		}
		ft.InFlightFence = fence

		semaphoreCreateInfo := vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		}
		if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &ft.ImageAcquired); res != vk.Success {
			err := fmt.Errorf("failed to create image-acquired semaphore %d", i)
			core.LogError(err.Error())
			return nil, err
		}
		if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &ft.ReadyToPresent); res != vk.Success {
			err := fmt.Errorf("failed to create ready-to-present semaphore %d", i)
			core.LogError(err.Error())
			return nil, err
		}
	}

	core.LogDebug("Frame tools ring created (%d frames in flight).", VulkanMaxFramesInFlight)
	return ring, nil
}

// Current returns the tools for the frame being recorded.
func (r *FrameToolsRing) Current() *FrameTools {
	return &r.Frames[r.Index]
}

// Advance moves to the next slot after a submission.
func (r *FrameToolsRing) Advance() {
	r.Index = (r.Index + 1) % VulkanMaxFramesInFlight
}

func (r *FrameToolsRing) Destroy(context *VulkanContext) {
	for i := range r.Frames {
		ft := &r.Frames[i]
		if ft.ImageAcquired != vk.NullSemaphore {
			vk.DestroySemaphore(context.Device.LogicalDevice, ft.ImageAcquired, context.Allocator)
			ft.ImageAcquired = vk.NullSemaphore
		}
		if ft.ReadyToPresent != vk.NullSemaphore {
			vk.DestroySemaphore(context.Device.LogicalDevice, ft.ReadyToPresent, context.Allocator)
			ft.ReadyToPresent = vk.NullSemaphore
		}
		if ft.InFlightFence != nil {
			ft.InFlightFence.FenceDestroy(context)
			ft.InFlightFence = nil
		}
		if ft.CommandBuffer != nil && ft.CommandBuffer.Handle != nil {
			ft.CommandBuffer.Free(context, ft.CommandPool)
			ft.CommandBuffer = nil
		}
		if ft.CommandPool != vk.NullCommandPool {
			vk.DestroyCommandPool(context.Device.LogicalDevice, ft.CommandPool, context.Allocator)
			ft.CommandPool = vk.NullCommandPool
		}
	}
}
