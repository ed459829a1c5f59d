package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"golang.org/x/exp/slices"

	"github.com/anima-gfx/lucent/engine/core"
	"github.com/anima-gfx/lucent/engine/scene"
)

// SceneResources owns every GPU buffer the cull/draw pipeline reads: the
// static scene data uploaded once at setup, the per-frame transient buffers
// the cull shaders write, and the per-in-flight view uniforms. Push-descriptor
// writes are rebuilt on every CullWrites/DrawWrites call; only the view-data
// entry differs between frame slots.
type SceneResources struct {
	VertexBuffer      *VulkanBuffer
	IndexBuffer       *VulkanBuffer
	SurfaceBuffer     *VulkanBuffer
	RenderObjectBuf   *VulkanBuffer
	TransformBuffer   *VulkanBuffer
	MaterialBuffer    *VulkanBuffer
	MeshletBuffer     *VulkanBuffer
	MeshletDataBuffer *VulkanBuffer

	// Written by the cull compute, consumed by indirect draws.
	IndirectDrawBuffer  *VulkanBuffer
	IndirectCountBuffer *VulkanBuffer
	VisibilityBuffer    *VulkanBuffer

	// One mapped GpuViewData per in-flight frame.
	ViewDataBuffers [VulkanMaxFramesInFlight]*VulkanBuffer

	Textures *TextureTable

	// staging is the reusable host-visible upload window; large resources
	// stream through it in chunks.
	staging     *VulkanBuffer
	stagingSize uint64

	RenderObjectCount uint32
	IndexCount        uint32
	MeshShadingData   bool
}

// staticUpload pairs one destination buffer with its source bytes during
// setup.
type staticUpload struct {
	name string
	dst  **VulkanBuffer
	data []byte
	use  vk.BufferUsageFlags
}

func stagingBufferSize(context *VulkanContext) uint64 {
	if context.Config != nil && context.Config.StagingBufferSizeBytes > 0 {
		return context.Config.StagingBufferSizeBytes
	}
	return StagingBufferSize
}

// NewSceneResources uploads a validated scene. Destination buffers are
// device-local; everything streams through the shared staging buffer on the
// graphics queue and the call blocks until the copies land.
func NewSceneResources(context *VulkanContext, scn *scene.Scene) (*SceneResources, error) {
	if err := scn.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, err)
	}
	if uint32(len(scn.RenderObjects)) > VulkanMaxRenderObjectCount {
		return nil, fmt.Errorf("%w: %d render objects exceed the %d cap", ErrValidationFailed, len(scn.RenderObjects), VulkanMaxRenderObjectCount)
	}
	if uint32(len(scn.Surfaces)) > VulkanMaxSurfaceCount {
		return nil, fmt.Errorf("%w: %d surfaces exceed the %d cap", ErrValidationFailed, len(scn.Surfaces), VulkanMaxSurfaceCount)
	}
	if uint32(len(scn.Materials)) > VulkanMaxMaterialCount {
		return nil, fmt.Errorf("%w: %d materials exceed the %d cap", ErrValidationFailed, len(scn.Materials), VulkanMaxMaterialCount)
	}
	if uint32(len(scn.Textures)) > VulkanMaxTextureCount {
		return nil, fmt.Errorf("%w: %d textures exceed the %d slot table", ErrValidationFailed, len(scn.Textures), VulkanMaxTextureCount)
	}

	res := &SceneResources{
		RenderObjectCount: uint32(len(scn.RenderObjects)),
		IndexCount:        uint32(len(scn.Indices)),
		MeshShadingData:   len(scn.Meshlets) > 0,
		stagingSize:       stagingBufferSize(context),
	}

	// Draw locality: group instances of the same surface (and material
	// within it) so consecutive indirect slots hit the same index ranges.
	sorted := slices.Clone(scn.RenderObjects)
	slices.SortFunc(sorted, func(a, b scene.RenderObject) int {
		if a.SurfaceID != b.SurfaceID {
			return int(a.SurfaceID) - int(b.SurfaceID)
		}
		return int(a.MaterialID) - int(b.MaterialID)
	})

	vertices := make([]GpuVertex, len(scn.Vertices))
	for i := range scn.Vertices {
		vertices[i] = PackVertex(&scn.Vertices[i])
	}
	surfaces := make([]GpuSurface, len(scn.Surfaces))
	for i := range scn.Surfaces {
		surfaces[i] = PackSurface(&scn.Surfaces[i])
	}
	objects := make([]GpuRenderObject, len(sorted))
	for i := range sorted {
		objects[i] = PackRenderObject(&sorted[i])
		if scn.Materials[sorted[i].MaterialID].Flags&scene.MaterialFlagTransparent != 0 {
			objects[i].Flags |= uint32(scene.RenderObjectFlagTransparent)
		}
	}
	transforms := make([]GpuTransform, len(scn.Transforms))
	for i := range scn.Transforms {
		transforms[i] = PackTransform(&scn.Transforms[i])
	}
	materials := make([]GpuMaterial, len(scn.Materials))
	for i := range scn.Materials {
		materials[i] = PackMaterial(&scn.Materials[i])
	}
	meshlets := make([]GpuMeshlet, len(scn.Meshlets))
	for i := range scn.Meshlets {
		meshlets[i] = PackMeshlet(&scn.Meshlets[i])
	}

	staging, err := BufferCreate(context, res.stagingSize,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	res.staging = staging

	storageDst := vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit) |
		vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) |
		vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	deviceLocal := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)

	uploads := []staticUpload{
		{"vertex", &res.VertexBuffer, sliceBytes(vertices), storageDst},
		{"index", &res.IndexBuffer, sliceBytes(scn.Indices), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit) | vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)},
		{"surface", &res.SurfaceBuffer, sliceBytes(surfaces), storageDst},
		{"render-object", &res.RenderObjectBuf, sliceBytes(objects), storageDst},
		{"transform", &res.TransformBuffer, sliceBytes(transforms), storageDst},
		{"material", &res.MaterialBuffer, sliceBytes(materials), storageDst},
	}
	if res.MeshShadingData {
		uploads = append(uploads,
			staticUpload{"meshlet", &res.MeshletBuffer, sliceBytes(meshlets), storageDst},
			staticUpload{"meshlet-data", &res.MeshletDataBuffer, sliceBytes(scn.MeshletData), storageDst},
		)
	}

	for _, u := range uploads {
		size := uint64(len(u.data))
		if size == 0 {
			// Empty scenes still get 4-byte placeholders so every binding
			// has a valid buffer behind it.
			size = 4
		}
		buf, err := BufferCreate(context, size, u.use, deviceLocal)
		if err != nil {
			return nil, fmt.Errorf("creating %s buffer: %w", u.name, err)
		}
		*u.dst = buf
	}

	// Transient cull outputs. One indirect slot per render object; the
	// count-driven draw never reads past what the cull shader produced.
	slotSize := uint64(unsafe.Sizeof(IndirectDrawData{}))
	if res.MeshShadingData {
		taskSize := uint64(unsafe.Sizeof(IndirectTaskData{}))
		if taskSize > slotSize {
			slotSize = taskSize
		}
	}
	indirectSize := slotSize * uint64(maxU32(res.RenderObjectCount, 1))
	res.IndirectDrawBuffer, err = BufferCreate(context, indirectSize,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)|vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit),
		deviceLocal)
	if err != nil {
		return nil, err
	}
	res.IndirectCountBuffer, err = BufferCreate(context, 4,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)|vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit)|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		deviceLocal)
	if err != nil {
		return nil, err
	}
	res.VisibilityBuffer, err = BufferCreate(context, 4*uint64(maxU32(res.RenderObjectCount, 1)),
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		deviceLocal)
	if err != nil {
		return nil, err
	}

	for i := range res.ViewDataBuffers {
		res.ViewDataBuffers[i], err = BufferCreate(context, uint64(unsafe.Sizeof(GpuViewData{})),
			vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit)|vk.MemoryPropertyFlags(vk.MemoryPropertyHostCoherentBit))
		if err != nil {
			return nil, err
		}
		if _, err := res.ViewDataBuffers[i].MapMemory(context); err != nil {
			return nil, err
		}
	}

	if err := res.uploadStatic(context, uploads); err != nil {
		return nil, err
	}

	res.Textures, err = NewTextureTable(context, VulkanMaxTextureCount)
	if err != nil {
		return nil, err
	}

	core.LogInfo("Scene uploaded: %d objects, %d surfaces, %d vertices, %d indices, %d meshlets.",
		len(scn.RenderObjects), len(scn.Surfaces), len(scn.Vertices), len(scn.Indices), len(scn.Meshlets))
	return res, nil
}

// uploadStatic streams every source blob through the staging window and
// zero-fills the visibility buffer, all in one submission per staging pass.
// Resources larger than the window loop; the queue is drained between loops
// so the window can be reused.
func (res *SceneResources) uploadStatic(context *VulkanContext, uploads []staticUpload) error {
	cb, err := AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}

	flushAndRestart := func() error {
		if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue); err != nil {
			return err
		}
		cb, err = AllocateAndBeginSingleUse(context, context.Device.GraphicsCommandPool)
		return err
	}

	var used uint64
	for _, u := range uploads {
		data := u.data
		var dstOffset uint64
		for len(data) > 0 {
			if used == res.stagingSize {
				if err := flushAndRestart(); err != nil {
					return fmt.Errorf("%w: %s", ErrUploadFailed, err)
				}
				used = 0
			}
			chunk := uint64(len(data))
			if chunk > res.stagingSize-used {
				chunk = res.stagingSize - used
			}
			if err := res.staging.LoadData(context, used, data[:chunk]); err != nil {
				return fmt.Errorf("%w: staging %s: %s", ErrUploadFailed, u.name, err)
			}
			res.staging.CopyTo(cb, used, *u.dst, dstOffset, chunk)
			used += chunk
			dstOffset += chunk
			data = data[chunk:]
		}
	}

	// First frame starts with nothing marked visible; the early pass draws
	// nothing and the late pass seeds the history.
	vk.CmdFillBuffer(cb.Handle, res.VisibilityBuffer.Handle, 0, vk.DeviceSize(vk.WholeSize), 0)

	if err := cb.EndSingleUse(context, context.Device.GraphicsCommandPool, context.Device.GraphicsQueue); err != nil {
		return fmt.Errorf("%w: %s", ErrUploadFailed, err)
	}
	return nil
}

// CullWrites returns the push-descriptor writes for a cull dispatch of frame
// slot frameIndex. The writes for the static buffers are rebuilt from the
// same template each call; only the view-data entry varies by frame.
func (res *SceneResources) CullWrites(frameIndex uint32) []vk.WriteDescriptorSet {
	return []vk.WriteDescriptorSet{
		bufferWrite(CullBindingViewData, vk.DescriptorTypeUniformBuffer, res.ViewDataBuffers[frameIndex]),
		bufferWrite(CullBindingRenderObjects, vk.DescriptorTypeStorageBuffer, res.RenderObjectBuf),
		bufferWrite(CullBindingTransforms, vk.DescriptorTypeStorageBuffer, res.TransformBuffer),
		bufferWrite(CullBindingIndirectDraws, vk.DescriptorTypeStorageBuffer, res.IndirectDrawBuffer),
		bufferWrite(CullBindingIndirectCount, vk.DescriptorTypeStorageBuffer, res.IndirectCountBuffer),
		bufferWrite(CullBindingVisibility, vk.DescriptorTypeStorageBuffer, res.VisibilityBuffer),
		bufferWrite(CullBindingSurfaces, vk.DescriptorTypeStorageBuffer, res.SurfaceBuffer),
	}
}

// DrawWrites returns the push-descriptor writes for a draw pass of frame
// slot frameIndex. The mesh-task path appends the meshlet streams.
func (res *SceneResources) DrawWrites(frameIndex uint32, meshPath bool) []vk.WriteDescriptorSet {
	writes := []vk.WriteDescriptorSet{
		bufferWrite(DrawBindingViewData, vk.DescriptorTypeUniformBuffer, res.ViewDataBuffers[frameIndex]),
		bufferWrite(DrawBindingVertices, vk.DescriptorTypeStorageBuffer, res.VertexBuffer),
		bufferWrite(DrawBindingRenderObjects, vk.DescriptorTypeStorageBuffer, res.RenderObjectBuf),
		bufferWrite(DrawBindingTransforms, vk.DescriptorTypeStorageBuffer, res.TransformBuffer),
		bufferWrite(DrawBindingMaterials, vk.DescriptorTypeStorageBuffer, res.MaterialBuffer),
		bufferWrite(DrawBindingIndirectDraws, vk.DescriptorTypeStorageBuffer, res.IndirectDrawBuffer),
		bufferWrite(DrawBindingSurfaces, vk.DescriptorTypeStorageBuffer, res.SurfaceBuffer),
	}
	if meshPath && res.MeshletBuffer != nil {
		writes = append(writes,
			bufferWrite(DrawBindingMeshlets, vk.DescriptorTypeStorageBuffer, res.MeshletBuffer),
			bufferWrite(DrawBindingMeshletData, vk.DescriptorTypeStorageBuffer, res.MeshletDataBuffer),
		)
	}
	return writes
}

// WriteViewData copies the frame's view uniform into the mapped slot for
// frameIndex.
func (res *SceneResources) WriteViewData(frameIndex uint32, view *GpuViewData) {
	dst := (*GpuViewData)(res.ViewDataBuffers[frameIndex].Mapped)
	*dst = *view
}

func (res *SceneResources) Destroy(context *VulkanContext) {
	if res.Textures != nil {
		res.Textures.Destroy(context)
		res.Textures = nil
	}
	for i := range res.ViewDataBuffers {
		if res.ViewDataBuffers[i] != nil {
			res.ViewDataBuffers[i].Destroy(context)
			res.ViewDataBuffers[i] = nil
		}
	}
	buffers := []**VulkanBuffer{
		&res.VisibilityBuffer, &res.IndirectCountBuffer, &res.IndirectDrawBuffer,
		&res.MeshletDataBuffer, &res.MeshletBuffer, &res.MaterialBuffer,
		&res.TransformBuffer, &res.RenderObjectBuf, &res.SurfaceBuffer,
		&res.IndexBuffer, &res.VertexBuffer, &res.staging,
	}
	for _, b := range buffers {
		if *b != nil {
			(*b).Destroy(context)
			*b = nil
		}
	}
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
