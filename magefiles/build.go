//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Shader sources live under VulkanShaders/src; compiled binaries land in
// VulkanShaders/release (optimized) and VulkanShaders/debug (with debug
// info), matching what the renderer loads at runtime.
const (
	shaderSrcDir     = "VulkanShaders/src"
	shaderReleaseDir = "VulkanShaders/release"
	shaderDebugDir   = "VulkanShaders/debug"
)

// Shaders compiles every GLSL source into both variants with glslc.
func (Build) Shaders() error {
	return buildShaders()
}

// Binary builds the testbed executable; shaders first so a fresh checkout
// runs.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	if _, err := executeCmd("go", withArgs("build", "-o", "lucent", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Vet runs go vet across the module.
func (Build) Vet() error {
	if _, err := executeCmd("go", withArgs("vet", "./..."), withStream()); err != nil {
		return err
	}
	return nil
}

func buildShaders() error {
	entries, err := os.ReadDir(shaderSrcDir)
	if err != nil {
		return fmt.Errorf("reading shader sources: %w", err)
	}

	for _, dir := range []string{shaderReleaseDir, shaderDebugDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isShaderSource(name) {
			continue
		}
		src := filepath.Join(shaderSrcDir, name)
		out := name + ".spv"

		if _, err := executeCmd("glslc",
			withArgs("--target-env=vulkan1.3", "-O", src, "-o", filepath.Join(shaderReleaseDir, out)),
			withStream()); err != nil {
			return err
		}
		if _, err := executeCmd("glslc",
			withArgs("--target-env=vulkan1.3", "-g", "-O0", src, "-o", filepath.Join(shaderDebugDir, out)),
			withStream()); err != nil {
			return err
		}
	}
	return nil
}

func isShaderSource(name string) bool {
	for _, ext := range []string{".vert", ".frag", ".comp", ".task", ".mesh"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
