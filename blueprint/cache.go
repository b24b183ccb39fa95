package blueprint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/soypat/softbody"
)

// ErrCacheMiss is returned by Cache.Load when no blueprint is stored
// under a key.
var ErrCacheMiss = errors.New("blueprint cache miss")

// Key returns the cache key of baking m with cfg. m must not be nil.
func Key(m *softbody.Mesh, cfg Config) uint64 {
	h := xxhash.New()
	e := encoder{w: h}
	e.write(uint32(version))
	e.write(uint64(len(m.Vertices)))
	e.write(m.Vertices)
	e.write(uint64(len(m.Normals)))
	e.write(m.Normals)
	e.ints(m.Triangles)
	e.write([]uint8{uint8(cfg.SurfaceSampling), uint8(cfg.VolumeSampling)})
	e.write([]int64{int64(cfg.SurfaceResolution), int64(cfg.VolumeResolution), int64(cfg.ShapeResolution)})
	e.write([]float64{cfg.MaxAnisotropy, cfg.Smoothing})
	e.write(cfg.Scale)
	e.write(cfg.Rotation)
	e.write(cfg.BoneRotation)
	for _, b := range cfg.Skeleton.Walk() {
		e.str(b.Name)
		e.write(b.Position)
		e.write(uint64(len(b.Children)))
	}
	return h.Sum64()
}

// Cache stores encoded blueprints in a directory, one file per key.
type Cache struct {
	dir string
}

// NewCache returns a cache in dir. The directory is created on the first
// Store.
func NewCache(dir string) *Cache { return &Cache{dir: dir} }

func (c *Cache) path(key uint64) string {
	return filepath.Join(c.dir, fmt.Sprintf("%016x.sbbp", key))
}

// Load returns the blueprint stored under key.
func (c *Cache) Load(key uint64) (*Blueprint, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCacheMiss
	} else if err != nil {
		return nil, err
	}
	bp := new(Blueprint)
	if err := bp.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("cached blueprint %016x: %w", key, err)
	}
	return bp, nil
}

// Store writes bp under key, replacing any previous entry.
func (c *Cache) Store(key uint64, bp *Blueprint) error {
	data, err := bp.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, "*.tmp")
	if err != nil {
		return err
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}
