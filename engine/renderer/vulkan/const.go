package vulkan

// VulkanMaxFramesInFlight bounds the frame-tools ring: command pool/buffer,
// fence and semaphore pair per slot, indexed modulo this value.
const VulkanMaxFramesInFlight uint32 = 2

// VULKAN_SHADER_MAX_BINDINGS bounds descriptor bindings tracked per shader
// descriptor-set state.
const VULKAN_SHADER_MAX_BINDINGS uint32 = 32

// Static scene upload limits. Counts are generous upper bounds for a
// single static scene, not hard device limits.
const (
	VulkanMaxSurfaceCount      uint32 = 1 << 16
	VulkanMaxRenderObjectCount uint32 = 1 << 20
	VulkanMaxMaterialCount     uint32 = 4096
	VulkanMaxTextureCount      uint32 = 4096
)

// StagingBufferSize is the default size of the reusable host-visible
// staging buffer; larger resources stream through it in chunks.
const StagingBufferSize uint64 = 128 * 1024 * 1024

// CullWorkgroupSize is the local_size_x of the culling compute shaders;
// dispatch count is ceil(draw_count / CullWorkgroupSize).
const CullWorkgroupSize uint32 = 64

// lockPool serializes access to Vulkan object-creation/destruction calls that
// are not internally synchronized, grouped by concern (see pool.go).
var lockPool = NewVulkanLockPool()
