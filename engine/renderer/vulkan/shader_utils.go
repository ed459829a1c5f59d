package vulkan

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/core"
)

// ShaderDebugBuild selects the debug shader variant (unoptimized, full debug
// info) instead of the release one. renderer.New sets this from the config's
// validation flag before device bring-up.
var ShaderDebugBuild = false

// ShaderSourceDir is the fixed relative path shader binaries are loaded
// from.
const ShaderSourceDir = "VulkanShaders"

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The shader module creation info. */
	CreateInfo vk.ShaderModuleCreateInfo
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func shaderSpvPath(name, typeStr string) string {
	variant := "release"
	if ShaderDebugBuild {
		variant = "debug"
	}
	return filepath.Join(ShaderSourceDir, variant, fmt.Sprintf("%s.%s.spv", name, typeStr))
}

// readSpirV loads a .spv file and validates it decodes into whole 32-bit
// words, matching VkShaderModuleCreateInfo's pCode requirement.
func readSpirV(path string) ([]uint32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read shader module '%s': %w", path, err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("shader module '%s' is not a whole number of 32-bit words", path)
	}
	code := make([]uint32, len(raw)/4)
	for i := range code {
		code[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}
	return code, nil
}

// NewShaderModule loads "VulkanShaders/{release,debug}/<name>.<typeStr>.spv"
// and creates the shader module plus its pipeline-stage-create-info at
// stageIndex within shaderStages (shaderStages must already be sized to hold
// every stage of the owning shader).
func NewShaderModule(context *VulkanContext, shaderStages []VulkanShaderStage, name string, typeStr string, shaderStageFlag vk.ShaderStageFlagBits, stageIndex uint32) error {
	path := shaderSpvPath(name, typeStr)
	code, err := readSpirV(path)
	if err != nil {
		core.LogError(err.Error())
		return err
	}

	shaderStages[stageIndex].CreateInfo = vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	shaderStages[stageIndex].CreateInfo.Deref()

	if res := vk.CreateShaderModule(
		context.Device.LogicalDevice,
		&shaderStages[stageIndex].CreateInfo,
		context.Allocator,
		&shaderStages[stageIndex].Handle); res != vk.Success {
		err := fmt.Errorf("failed to create shader module '%s': %s", path, VulkanResultString(res, true))
		core.LogError(err.Error())
		return err
	}

	shaderStages[stageIndex].ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageFlag,
		Module: shaderStages[stageIndex].Handle,
		PName:  "main\x00",
	}
	shaderStages[stageIndex].ShaderStageCreateInfo.Deref()

	return nil
}

// DestroyShaderModule releases a previously created shader module.
func DestroyShaderModule(context *VulkanContext, stage *VulkanShaderStage) {
	if stage.Handle != nil {
		vk.DestroyShaderModule(context.Device.LogicalDevice, stage.Handle, context.Allocator)
		stage.Handle = nil
	}
}
