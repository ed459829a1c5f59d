package vulkan

import "errors"

// Sentinel error classes for the failure families the renderer can hit.
// Callers wrap a
// concrete cause with fmt.Errorf("...: %w", ErrX) and discriminate with
// errors.Is/errors.As, matching device.go's existing "log then return err"
// idiom.
var (
	// ErrCapabilityUnsupported means a required device feature, extension, or
	// format is missing. Fatal: there is no frame to drive without it.
	ErrCapabilityUnsupported = errors.New("vulkan: required capability unsupported")

	// ErrAllocationFailed covers buffer/image/memory allocation failures.
	ErrAllocationFailed = errors.New("vulkan: allocation failed")

	// ErrSwapchainOutOfDate names the out-of-date present class. The frame
	// driver does not return it: acquire and present schedule the swapchain
	// (and Hi-Z pyramid) rebuild by bumping the framebuffer size generation.
	ErrSwapchainOutOfDate = errors.New("vulkan: swapchain out of date")

	// ErrValidationFailed covers invariant violations caught before issuing
	// Vulkan calls (e.g. scene data model bounds checks).
	ErrValidationFailed = errors.New("vulkan: validation failed")

	// ErrUploadFailed covers failures in the staged-upload path.
	ErrUploadFailed = errors.New("vulkan: upload failed")
)
