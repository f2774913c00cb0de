// Package filecache is the on-disk half of spec §4.2's compilation
// cache: a directory of zstd-compressed, serialized CompiledCodeImage
// objects keyed by the xxhash content hash of the originating Wasm
// binary (internal/enginecache.Key), so a module compiled in a previous
// process run can be relinked for free instead of re-translated and
// re-compiled.
package filecache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/JonasKruckenberg/k23VM-sub000/internal/compiler"
	"github.com/JonasKruckenberg/k23VM-sub000/internal/enginecache"
)

// Cache reads and writes compressed CompiledCodeImage entries under a
// directory on disk.
type Cache struct {
	dir string
}

// New returns a Cache rooted at dir, creating it if it does not exist.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filecache: create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func (c *Cache) path(key enginecache.Key) string {
	return filepath.Join(c.dir, fmt.Sprintf("%016x.k23obj.zst", uint64(key)))
}

// Load reads and decompresses the entry for key, if present, and relinks
// it into a CompiledCodeImage without re-running translation or
// compilation.
func (c *Cache) Load(key enginecache.Key) (*compiler.CompiledCodeImage, bool, error) {
	compressed, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("filecache: read: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, false, fmt.Errorf("filecache: new decoder: %w", err)
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("filecache: decompress: %w", err)
	}
	img, err := compiler.LoadCached(raw)
	if err != nil {
		return nil, false, fmt.Errorf("filecache: load cached image: %w", err)
	}
	return img, true, nil
}

// Store compresses raw (the bytes produced by an Object's Serialize,
// i.e. the same bytes that were published as the module's CodeMemory)
// and writes it under key.
func (c *Cache) Store(key enginecache.Key, raw []byte) error {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("filecache: new encoder: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw, nil)
	tmp := c.path(key) + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("filecache: write: %w", err)
	}
	return os.Rename(tmp, c.path(key))
}
