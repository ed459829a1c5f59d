package vulkan

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	vk "github.com/goki/vulkan"
	"github.com/anima-gfx/lucent/engine/containers"
	"github.com/anima-gfx/lucent/engine/core"
)

// ShaderWatcher observes the active shader binary directory and queues the
// names of modules that changed on disk. Debug builds poll it once per frame
// and rebuild pipelines when anything landed; release builds never construct
// one.
type ShaderWatcher struct {
	watcher *fsnotify.Watcher
	pending *containers.RingQueue
}

// NewShaderWatcher watches the variant directory matching the running build.
func NewShaderWatcher() (*ShaderWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	variant := "release"
	if ShaderDebugBuild {
		variant = "debug"
	}
	dir := filepath.Join(ShaderSourceDir, variant)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}

	sw := &ShaderWatcher{
		watcher: w,
		pending: containers.NewRingQueue(64),
	}
	go sw.run()

	core.LogDebug("Shader watcher active on '%s'.", dir)
	return sw, nil
}

func (sw *ShaderWatcher) run() {
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".spv") {
				continue
			}
			if err := sw.pending.Enqueue(filepath.Base(event.Name)); err != nil {
				// Queue full; a reload is already due, dropping is fine.
				continue
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("shader watcher: %s", err)
		}
	}
}

// Drain empties the pending queue and reports whether anything changed.
func (sw *ShaderWatcher) Drain() []string {
	var changed []string
	for {
		v, err := sw.pending.Dequeue()
		if err != nil {
			break
		}
		changed = append(changed, v.(string))
	}
	return changed
}

func (sw *ShaderWatcher) Close() {
	sw.watcher.Close()
}

// ReloadShaders waits the device idle and rebuilds every pipeline from the
// binaries currently on disk. Static resources and attachments survive; the
// cull and draw pipelines are rebuilt and the depth pyramid is recreated
// whole (image, views, sampler and pipeline).
func (vr *VulkanRenderer) ReloadShaders() error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	if vr.cull != nil {
		vr.cull.Destroy(vr.context)
		cull, err := NewCullDispatcher(vr.context)
		if err != nil {
			return err
		}
		vr.cull = cull
	}

	if vr.draw != nil && vr.resources != nil {
		vr.draw.Destroy(vr.context)
		draw, err := NewDrawRecorder(vr.context, vr.resources.Textures)
		if err != nil {
			return err
		}
		vr.draw = draw
	}

	if vr.pyramid != nil {
		width := vr.context.FramebufferWidth
		height := vr.context.FramebufferHeight
		vr.pyramid.Destroy(vr.context)
		pyramid, err := NewDepthPyramid(vr.context, width, height)
		if err != nil {
			return err
		}
		vr.pyramid = pyramid
	}

	core.LogInfo("Shader pipelines reloaded.")
	return nil
}
