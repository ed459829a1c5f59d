package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/assets"
	"github.com/anima-gfx/lucent/engine/core"
	"github.com/anima-gfx/lucent/engine/platform"
	"github.com/anima-gfx/lucent/engine/scene"
)

// VulkanRenderer drives the whole GPU pipeline: device bring-up, static
// scene upload, and the per-frame cull/draw/present loop in frame.go.
type VulkanRenderer struct {
	platform    *platform.Platform
	FrameNumber uint64
	context     *VulkanContext

	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	frameTools *FrameToolsRing
	resources  *SceneResources
	pyramid    *DepthPyramid
	cull       *CullDispatcher
	draw       *DrawRecorder

	// Offscreen targets; the swapchain image only ever receives the final
	// blit.
	colorAttachment *VulkanImage
	depthAttachment *VulkanImage

	// Device-local texture images backing the texture table slots, plus
	// the one sampler they all share.
	textureImages []*VulkanImage
	sharedSampler vk.Sampler

	// Debug HUD: the baker renders the pyramid-mip label to an image that
	// is re-uploaded whenever the label changes and blitted over the
	// debug-pyramid view.
	hudBaker *assets.DebugTextBaker
	hudImage *VulkanImage
	hudLabel string

	frozenPlanes  [6][4]float32
	frustumFrozen bool

	// resizeRequested distinguishes a window-resize rebuild (cached sizes
	// are authoritative) from an out-of-date rebuild at the current size.
	resizeRequested bool

	debug bool
}

func New(p *platform.Platform, config *core.EngineConfig) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		context: &VulkanContext{
			Allocator: nil,
			Config:    config,
			Device:    &VulkanDevice{},
		},
		debug: config == nil || config.Validation,
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogFatal(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogFatal("failed to initialize vk: %s", err)
		return err
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	// Instance.
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 3, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Lucent Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}

	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugUtilsExtensionName, vk.ExtDebugReportExtensionName)
		core.LogInfo("Required extensions:")
		for i := 0; i < len(requiredExtensions); i++ {
			core.LogInfo(requiredExtensions[i])
		}
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	// Validation layers only exist on debug builds.
	requiredValidationLayerNames := []string{}
	if vr.debug {
		core.LogInfo("Validation layers enabled. Enumerating...")
		requiredValidationLayerNames = []string{"VK_LAYER_KHRONOS_validation"}

		if runtime.GOOS == "darwin" {
			createInfo.Flags |= 1
		}

		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			return fmt.Errorf("failed to enumerate instance layers: %s", VulkanResultString(res, true))
		}

		for i := range requiredValidationLayerNames {
			found := false
			for j := range availableLayers {
				availableLayers[j].Deref()
				end := FindFirstZeroInByteArray(availableLayers[j].LayerName[:])
				if requiredValidationLayerNames[i] == vk.ToString(availableLayers[j].LayerName[:end+1]) {
					found = true
					break
				}
			}
			if !found {
				err := fmt.Errorf("required validation layer is missing: %s", requiredValidationLayerNames[i])
				core.LogFatal(err.Error())
				return err
			}
		}
		core.LogInfo("All required validation layers are present.")
	}

	createInfo.EnabledLayerCount = uint32(len(requiredValidationLayerNames))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(requiredValidationLayerNames)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("failed in creating the Vulkan Instance with error `%s`", VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return err
	}
	core.LogInfo("Vulkan Instance created.")

	// Debugger. The renderer pointer rides along as callback user data so
	// the handler never needs package state.
	if vr.debug {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
			PUserData:   unsafe.Pointer(vr),
		}

		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	// Surface.
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.CreateVulkanSurface(vr.context.Instance)
	if err != nil {
		core.LogError("Failed to create platform surface!")
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	// Device.
	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}

	// Swapchain.
	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	if err := vr.createAttachments(); err != nil {
		return err
	}

	vr.pyramid, err = NewDepthPyramid(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		return err
	}

	vr.frameTools, err = NewFrameToolsRing(vr.context)
	if err != nil {
		return err
	}

	vr.cull, err = NewCullDispatcher(vr.context)
	if err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

// UploadScene performs the one-time static upload and builds the graphics
// pipelines (they reference the texture table layout, so they come last).
func (vr *VulkanRenderer) UploadScene(scn *scene.Scene) error {
	res, err := NewSceneResources(vr.context, scn)
	if err != nil {
		return err
	}
	vr.resources = res

	vr.draw, err = NewDrawRecorder(vr.context, res.Textures)
	if err != nil {
		return err
	}
	return nil
}

// Textures exposes the table so the asset layer can stream texture uploads
// into it.
func (vr *VulkanRenderer) Textures() *TextureTable {
	return vr.resources.Textures
}

// Context exposes the device context to the asset layer's image uploads.
func (vr *VulkanRenderer) Context() *VulkanContext {
	return vr.context
}

// StagingBuffer returns the shared upload window.
func (vr *VulkanRenderer) StagingBuffer() *VulkanBuffer {
	return vr.resources.staging
}

// SetDebugTextBaker installs the bitmap-font baker used to label the
// debug-pyramid view. Optional; without it the debug blit shows the bare
// mip.
func (vr *VulkanRenderer) SetDebugTextBaker(baker *assets.DebugTextBaker) {
	vr.hudBaker = baker
}

func (vr *VulkanRenderer) createAttachments() error {
	width := vr.context.FramebufferWidth
	height := vr.context.FramebufferHeight

	color, err := ImageCreate(
		vr.context,
		vk.ImageType2d,
		width, height,
		ColorAttachmentFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return fmt.Errorf("color attachment: %w", err)
	}
	vr.colorAttachment = color

	// The depth attachment doubles as the pyramid's mip-0 source, hence
	// the sampled usage.
	depth, err := ImageCreate(
		vr.context,
		vk.ImageType2d,
		width, height,
		DepthAttachmentFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return fmt.Errorf("depth attachment: %w", err)
	}
	vr.depthAttachment = depth
	return nil
}

func (vr *VulkanRenderer) destroyAttachments() {
	if vr.colorAttachment != nil {
		vr.colorAttachment.ImageDestroy(vr.context)
		vr.colorAttachment = nil
	}
	if vr.depthAttachment != nil {
		vr.depthAttachment.ImageDestroy(vr.context)
		vr.depthAttachment = nil
	}
}

func (vr *VulkanRenderer) Shutdown() error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	// Destroy in the opposite order of creation; frame tools go first so
	// nothing is in flight while resources die.
	if vr.frameTools != nil {
		vr.frameTools.Destroy(vr.context)
		vr.frameTools = nil
	}
	if vr.draw != nil {
		vr.draw.Destroy(vr.context)
		vr.draw = nil
	}
	if vr.cull != nil {
		vr.cull.Destroy(vr.context)
		vr.cull = nil
	}
	if vr.hudImage != nil {
		vr.hudImage.ImageDestroy(vr.context)
		vr.hudImage = nil
	}
	for _, img := range vr.textureImages {
		img.ImageDestroy(vr.context)
	}
	vr.textureImages = nil
	if vr.sharedSampler != vk.NullSampler {
		vk.DestroySampler(vr.context.Device.LogicalDevice, vr.sharedSampler, vr.context.Allocator)
		vr.sharedSampler = vk.NullSampler
	}
	if vr.resources != nil {
		vr.resources.Destroy(vr.context)
		vr.resources = nil
	}
	if vr.pyramid != nil {
		vr.pyramid.Destroy(vr.context)
		vr.pyramid = nil
	}
	vr.destroyAttachments()

	if vr.context.Swapchain != nil {
		vr.context.Swapchain.SwapchainDestroy(vr.context)
		vr.context.Swapchain = nil
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.debug {
		core.LogDebug("Destroying Vulkan debugger...")
		if vr.context.debugMessenger != vk.NullDebugReportCallback {
			vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		}
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	return nil
}

// Resized is the window-event entry point; the actual rebuild happens at the
// top of the next DrawFrame.
func (vr *VulkanRenderer) Resized(width, height uint16) error {
	vr.cachedFramebufferWidth = uint32(width)
	vr.cachedFramebufferHeight = uint32(height)
	vr.resizeRequested = true
	vr.context.FramebufferSizeGeneration++

	core.LogInfo("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

// Suspended reports whether the window has collapsed to zero area, in which
// case the frame driver only runs ClearFrame.
func (vr *VulkanRenderer) Suspended() bool {
	return vr.context.FramebufferWidth == 0 || vr.context.FramebufferHeight == 0
}

// recreateSwapchain tears down the extent-dependent resources and rebuilds
// them at the cached size. The pyramid keeps its sampler and pipeline; the
// new extents reach the shaders through the next frame's view uniform.
func (vr *VulkanRenderer) recreateSwapchain() bool {
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called when already recreating. Booting.")
		return false
	}

	width := vr.cachedFramebufferWidth
	height := vr.cachedFramebufferHeight
	if !vr.resizeRequested {
		// Out-of-date rebuild at the current extent.
		width = vr.context.FramebufferWidth
		height = vr.context.FramebufferHeight
	}
	if width == 0 || height == 0 {
		core.LogDebug("recreateSwapchain called when window is < 1 in a dimension. Booting.")
		return false
	}

	vr.context.RecreatingSwapchain = true

	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	DeviceQuerySwapchainSupport(vr.context.Device.PhysicalDevice, vr.context.Surface, vr.context.Device.SwapchainSupport)

	sc, err := vr.context.Swapchain.SwapchainRecreate(vr.context, width, height)
	if err != nil {
		vr.context.RecreatingSwapchain = false
		return false
	}
	vr.context.Swapchain = sc

	vr.context.FramebufferWidth = width
	vr.context.FramebufferHeight = height
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0
	vr.resizeRequested = false
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	vr.destroyAttachments()
	if err := vr.createAttachments(); err != nil {
		core.LogFatal("failed to recreate attachments after resize: %s", err)
		vr.context.RecreatingSwapchain = false
		return false
	}

	if err := vr.pyramid.Rebuild(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight); err != nil {
		core.LogFatal("failed to rebuild depth pyramid after resize: %s", err)
		vr.context.RecreatingSwapchain = false
		return false
	}

	vr.context.RecreatingSwapchain = false
	return true
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
