package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/core"
)

// VulkanContext carries the process-wide Vulkan state: instance, surface,
// device, and swapchain. It is threaded explicitly through every helper; no
// package-level handle exists.
type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match
	// FramebufferSizeLastGeneration, the swapchain and its dependent
	// resources need rebuilding.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when it was last created. Set to
	// FramebufferSizeGeneration when updated.
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain *VulkanSwapchain

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool

	// Config is the loaded engine.toml, consulted for swapchain
	// present-mode preference and staging-buffer sizing.
	Config *core.EngineConfig
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
