// Command softbody-bake bakes a softbody blueprint from a triangle mesh.
//
//	softbody-bake -config bake.toml -o bunny.sbbp -glb bunny.glb bunny.stl
//
// The blueprint is cached by a hash of the mesh and the bake config so
// unchanged inputs are not baked twice. With -watch the mesh and config
// files are watched and the blueprint rebaked on every change.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/soypat/softbody/blueprint"
	"github.com/soypat/softbody/export"
	"github.com/soypat/softbody/meshio"
	"github.com/soypat/softbody/stage"
	"github.com/soypat/softbody/voxel"
)

type flags struct {
	config string
	out    string
	glb    string
	png    string
	voxels string
	cache  string
	watch  bool
	debug  bool
}

func main() {
	var f flags
	flag.StringVar(&f.config, "config", "", "bake config file (.toml, .yaml)")
	flag.StringVar(&f.out, "o", "", "output blueprint file (.sbbp)")
	flag.StringVar(&f.glb, "glb", "", "write particle ellipsoids to this glTF binary file")
	flag.StringVar(&f.png, "png", "", "write a preview render of the particles to this PNG file")
	flag.StringVar(&f.voxels, "voxels", "", "write boundary voxels of the surface grid to this STL file")
	flag.StringVar(&f.cache, "cache", "~/.cache/softbody", "blueprint cache directory, empty to disable")
	flag.BoolVar(&f.watch, "watch", false, "rebake when the mesh or config changes")
	flag.BoolVar(&f.debug, "v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] mesh.{stl,obj,ply}\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := run(ctx, log, f, flag.Arg(0))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bake failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, f flags, meshPath string) error {
	if err := expandPaths(&f); err != nil {
		return err
	}
	err := bake(ctx, log, f, meshPath)
	if !f.watch {
		return err
	}
	if err != nil {
		log.Error("bake failed", "err", err)
	}
	return watch(ctx, log, f, meshPath)
}

func expandPaths(f *flags) (err error) {
	for _, p := range []*string{&f.config, &f.out, &f.glb, &f.png, &f.voxels, &f.cache} {
		if *p == "" {
			continue
		}
		*p, err = homedir.Expand(*p)
		if err != nil {
			return err
		}
	}
	return nil
}

func bake(ctx context.Context, log *slog.Logger, f flags, meshPath string) error {
	start := time.Now()
	cfg, err := loadConfig(f.config)
	if err != nil {
		return err
	}
	m, err := meshio.Load(meshPath)
	if err != nil {
		return err
	}
	log.Info("mesh loaded", "file", meshPath, "vertices", len(m.Vertices), "triangles", m.TriangleCount())

	var cache *blueprint.Cache
	key := blueprint.Key(m, cfg)
	if f.cache != "" {
		if err := os.MkdirAll(f.cache, 0o755); err != nil {
			return err
		}
		cache = blueprint.NewCache(f.cache)
	}

	var (
		bp      *blueprint.Blueprint
		surface *voxel.Grid
	)
	if cache != nil {
		bp, err = cache.Load(key)
		switch {
		case err == nil:
			log.Info("blueprint cache hit", "key", fmt.Sprintf("%016x", key))
		case errors.Is(err, blueprint.ErrCacheMiss):
			bp = nil
		default:
			log.Warn("ignoring unreadable cache entry", "err", err)
			bp = nil
		}
	}
	if bp == nil {
		b := blueprint.NewBuilder(m, cfg, log)
		var msg string
		err = stage.Run(ctx, b, func(p stage.Progress) {
			if p.Message != msg {
				msg = p.Message
				log.Info(p.Message)
			}
		})
		if err != nil {
			return err
		}
		bp, err = b.Blueprint()
		if err != nil {
			return err
		}
		_, surface, _ = b.Grids()
		if cache != nil {
			if err := cache.Store(key, bp); err != nil {
				log.Warn("could not cache blueprint", "err", err)
			}
		}
	}
	log.Info("blueprint ready", "particles", bp.Len(), "clusters", bp.Clusters.Len(), "batches", len(bp.Batches), "elapsed", time.Since(start).Round(time.Millisecond))
	return writeOutputs(log, f, bp, surface)
}

func writeOutputs(log *slog.Logger, f flags, bp *blueprint.Blueprint, surface *voxel.Grid) error {
	if f.out != "" {
		data, err := bp.MarshalBinary()
		if err != nil {
			return err
		}
		if err := os.WriteFile(f.out, data, 0o644); err != nil {
			return err
		}
		log.Info("wrote blueprint", "file", f.out, "bytes", len(data))
	}
	if f.glb != "" {
		err := createFile(f.glb, func(fp *os.File) error { return export.WriteGLB(fp, bp) })
		if err != nil {
			return err
		}
		log.Info("wrote particles", "file", f.glb)
	}
	if f.png != "" {
		ellipsoids := export.Ellipsoids(bp)
		err := createFile(f.png, func(fp *os.File) error {
			return export.WritePNG(fp, ellipsoids, export.DefaultView())
		})
		if err != nil {
			return err
		}
		log.Info("wrote preview", "file", f.png)
	}
	if f.voxels != "" {
		if surface == nil {
			log.Warn("voxels not written, surface grid unavailable for cached blueprints")
			return nil
		}
		if err := export.CreateVoxelSTL(f.voxels, surface, voxel.Boundary); err != nil {
			return err
		}
		log.Info("wrote voxels", "file", f.voxels)
	}
	return nil
}

func createFile(path string, write func(*os.File) error) error {
	fp, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(fp); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// watch rebakes on every write to the mesh or config until ctx is done.
// Directories are watched so editors that replace files on save are seen.
func watch(ctx context.Context, log *slog.Logger, f flags, meshPath string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	watched := map[string]bool{}
	for _, p := range []string{meshPath, f.config} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		watched[abs] = true
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}
	log.Info("watching for changes", "files", len(watched))

	const settle = 200 * time.Millisecond
	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-w.Errors:
			log.Warn("watch error", "err", err)
		case ev := <-w.Events:
			abs, _ := filepath.Abs(ev.Name)
			if watched[abs] && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				log.Debug("file changed", "file", ev.Name, "op", ev.Op)
				timer.Reset(settle)
			}
		case <-timer.C:
			if err := bake(ctx, log, f, meshPath); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				log.Error("bake failed", "err", err)
			}
		}
	}
}
