package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/anima-gfx/lucent/engine/core"
)

// AssetManager resolves and caches texture loads under a root directory.
// Loads are cached by logical name so repeated scene references share one
// decode.
type AssetManager struct {
	root string

	mu       sync.Mutex
	textures map[string]*TextureStats
}

func NewAssetManager() (*AssetManager, error) {
	return &AssetManager{
		textures: make(map[string]*TextureStats),
	}, nil
}

func (am *AssetManager) Initialize(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("asset root '%s': %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("asset root '%s' is not a directory", root)
	}
	am.root = root
	core.LogInfo("Asset manager rooted at '%s'.", root)
	return nil
}

// LoadTexture resolves name under <root>/textures, picking the loader by
// extension. DDS carries its own mips; everything else decodes through the
// image path with CPU-generated mips.
func (am *AssetManager) LoadTexture(name string) (*TextureStats, error) {
	am.mu.Lock()
	if cached, ok := am.textures[name]; ok {
		am.mu.Unlock()
		return cached, nil
	}
	am.mu.Unlock()

	path := filepath.Join(am.root, "textures", name)

	var stats *TextureStats
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".dds":
		stats, err = LoadDDS(path)
	case ".png", ".jpg", ".jpeg":
		stats, err = LoadImage(path)
	default:
		err = fmt.Errorf("no texture loader for '%s'", name)
	}
	if err != nil {
		return nil, err
	}

	am.mu.Lock()
	am.textures[name] = stats
	am.mu.Unlock()

	core.LogDebug("Loaded texture '%s' (%dx%d, %d mips, %s).", name, stats.Width, stats.Height, stats.MipCount, stats.FormatHint)
	return stats, nil
}

// LoadedTextureNames reports the cached set in stable order, for debug
// output and tests.
func (am *AssetManager) LoadedTextureNames() []string {
	am.mu.Lock()
	defer am.mu.Unlock()
	names := maps.Keys(am.textures)
	slices.Sort(names)
	return names
}
