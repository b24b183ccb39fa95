package blueprint

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	"github.com/soypat/softbody"
	"github.com/soypat/softbody/cluster"
	"github.com/soypat/softbody/sample"
	"github.com/soypat/softbody/stage"
	"github.com/soypat/softbody/voxel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func unitCube() *softbody.Mesh {
	return softbody.NewBoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
}

// sphere returns a marching cubes sphere of radius r.
func sphere(t testing.TB, r float64, cells int) *softbody.Mesh {
	t.Helper()
	s, err := sdf.Sphere3D(r)
	require.NoError(t, err)
	m := &softbody.Mesh{}
	for _, tri := range render.ToTriangles(s, render.NewMarchingCubesUniform(cells)) {
		for j := 0; j < 3; j++ {
			m.Triangles = append(m.Triangles, len(m.Vertices))
			m.Vertices = append(m.Vertices, r3.Vec{X: tri[j].X, Y: tri[j].Y, Z: tri[j].Z})
		}
	}
	require.NotZero(t, m.TriangleCount())
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SurfaceResolution = 8
	cfg.ShapeResolution = 16
	return cfg
}

func build(t *testing.T, m *softbody.Mesh, cfg Config) *Blueprint {
	t.Helper()
	bp, err := Build(context.Background(), m, cfg, nil, nil)
	require.NoError(t, err)
	return bp
}

func checkBatches(t *testing.T, bp *Blueprint) {
	t.Helper()
	colors := make([]int, bp.Clusters.Len())
	seen := 0
	for color, batch := range bp.Batches {
		for _, ci := range batch {
			colors[ci] = color
			seen++
		}
	}
	require.Equal(t, bp.Clusters.Len(), seen, "every cluster in exactly one batch")
	require.Equal(t, colors, bp.ClusterColors, "cluster colors disagree with batches")
	require.NoError(t, cluster.Validate(&bp.Clusters, colors))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SurfaceVoxels, cfg.SurfaceSampling)
	assert.Equal(t, VolumeNone, cfg.VolumeSampling)
	assert.Equal(t, 48, cfg.ShapeResolution)

	bad := []func(*Config){
		func(c *Config) { c.SurfaceResolution = 1 },
		func(c *Config) { c.VolumeResolution = 129 },
		func(c *Config) { c.MaxAnisotropy = 0.5 },
		func(c *Config) { c.Smoothing = math.NaN() },
		func(c *Config) { c.Scale.Y = 0 },
		func(c *Config) { c.SurfaceSampling = 7 },
	}
	for i, mod := range bad {
		c := DefaultConfig()
		mod(&c)
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestSamplingText(t *testing.T) {
	var s SurfaceSampling
	require.NoError(t, s.UnmarshalText([]byte("vertices")))
	assert.Equal(t, SurfaceVertices, s)
	assert.Error(t, s.UnmarshalText([]byte("faces")))
	var v VolumeSampling
	require.NoError(t, v.UnmarshalText([]byte("voxels")))
	text, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "voxels", string(text))
}

func TestBuildCubeSurface(t *testing.T) {
	bp := build(t, unitCube(), testConfig())

	n := bp.Len()
	assert.Greater(t, n, 384)
	assert.LessOrEqual(t, n, 512)
	require.Equal(t, n, bp.Clusters.Len(), "one cluster per particle")
	for i := 0; i < n; i++ {
		require.Equal(t, i, bp.Clusters.Center(i))
	}
	checkBatches(t, bp)

	radius := math.Sqrt(3) * 0.5 * 0.125
	assert.InDelta(t, radius, bp.ParticleRadius, 1e-12)
	for i := 0; i < n; i++ {
		assert.Equal(t, sample.Surface, bp.Types[i])
		assert.Equal(t, bp.Positions[i], bp.RestPositions[i])
		assert.Equal(t, uint32(0xffff0002), bp.Filters[i])
		assert.Equal(t, 1.0, bp.InvMasses[i])
		assert.InDelta(t, 1, quat.Abs(quat.Number(bp.Orientations[i])), 1e-9)
		r := bp.Radii[i]
		assert.InDelta(t, radius, r.X, 1e-9)
		assert.GreaterOrEqual(t, r.Z, radius/3-1e-9)
		assert.LessOrEqual(t, r.Z, r.Y+1e-9)
	}
	require.Len(t, bp.VertexToParticle, 8)
	for _, p := range bp.VertexToParticle {
		assert.True(t, p >= 0 && p < n)
	}
}

func TestBuildVolumeAndSkeleton(t *testing.T) {
	cfg := testConfig()
	cfg.VolumeSampling = VolumeVoxels
	cfg.VolumeResolution = 4
	cfg.Skeleton = &sample.Joint{Name: "root", Children: []*sample.Joint{
		{Name: "tip", Position: r3.Vec{Y: 0.4}},
	}}
	bp := build(t, unitCube(), cfg)

	counts := map[sample.ParticleType]int{}
	for _, typ := range bp.Types {
		counts[typ]++
	}
	assert.NotZero(t, counts[sample.Surface])
	assert.NotZero(t, counts[sample.Volume])
	// spacing 1/4 over a 0.4 bone: root plus one intermediate, plus the tip.
	assert.Equal(t, 3, counts[sample.Bone])
	require.Len(t, bp.Groups, 2)
	assert.Equal(t, "root", bp.Groups[0].Name)

	// Two volume passes over all particles plus the surface pass and one
	// cluster per bone particle.
	surface := counts[sample.Surface]
	all := surface + counts[sample.Volume]
	assert.Equal(t, surface+2*all+counts[sample.Bone], bp.Clusters.Len())
	checkBatches(t, bp)
}

func TestBuildVertices(t *testing.T) {
	cfg := testConfig()
	cfg.SurfaceSampling = SurfaceVertices
	bp := build(t, unitCube(), cfg)
	// box corners are farther apart than the minimum distance.
	require.Equal(t, 8, bp.Len())
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, bp.VertexToParticle)
	require.Equal(t, 8, bp.Clusters.Len())
	for i := 0; i < 8; i++ {
		assert.Greater(t, len(bp.Clusters.At(i)), 1)
	}
	checkBatches(t, bp)
}

func TestBuildSphereAnisotropy(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAnisotropy = 2
	cfg.VolumeSampling = VolumeVoxels
	cfg.VolumeResolution = 6
	bp := build(t, sphere(t, 1, 24), cfg)
	require.NotZero(t, bp.Len())
	for i, r := range bp.Radii {
		require.LessOrEqual(t, r.X/r.Z, cfg.MaxAnisotropy+1e-9, "particle %d radii %v", i, r)
		require.True(t, r.X >= r.Y && r.Y >= r.Z, "particle %d radii %v", i, r)
	}
	checkBatches(t, bp)
}

func TestBuildInvalidMesh(t *testing.T) {
	_, err := Build(context.Background(), nil, DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, softbody.ErrEmptyMesh)

	m := unitCube()
	m.Triangles[4] = 99
	b := NewBuilder(m, DefaultConfig(), nil)
	_, err = b.Step()
	assert.ErrorIs(t, err, softbody.ErrIndexOutOfRange)
	_, err = b.Blueprint()
	assert.ErrorIs(t, err, softbody.ErrIndexOutOfRange)
	shape, surface, volume := b.Grids()
	assert.Nil(t, shape)
	assert.Nil(t, surface)
	assert.Nil(t, volume)

	m = unitCube()
	m.Vertices[0].X = math.Inf(1)
	_, err = Build(context.Background(), m, DefaultConfig(), nil, nil)
	assert.ErrorIs(t, err, softbody.ErrNonFinite)
}

func TestBuilderProgress(t *testing.T) {
	b := NewBuilder(unitCube(), testConfig(), nil)
	_, err := b.Blueprint()
	assert.ErrorIs(t, err, ErrNotFinished)

	var msgs []string
	err = stage.Run(context.Background(), b, func(p stage.Progress) {
		assert.True(t, p.Fraction >= 0 && p.Fraction <= 1, "fraction %v", p.Fraction)
		if len(msgs) == 0 || msgs[len(msgs)-1] != p.Message {
			msgs = append(msgs, p.Message)
		}
	})
	require.NoError(t, err)
	assert.Contains(t, msgs, "voxelizing mesh...")
	assert.Contains(t, msgs, "generating shape matching clusters...")
	assert.Contains(t, msgs, "generating particles...")
	assert.Equal(t, "batching constraints...", msgs[len(msgs)-1])
	_, err = b.Blueprint()
	assert.NoError(t, err)
}

func TestBuildTinyMeshWarns(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	side := voxel.MinVoxelSize * 4
	m := softbody.NewBoxMesh(r3.Vec{}, r3.Vec{X: side, Y: side, Z: side})
	b := NewBuilder(m, testConfig(), logger)
	_, err := b.Step()
	require.NoError(t, err)
	out := logs.String()
	assert.Contains(t, out, "voxel size clamped")
	assert.Contains(t, out, "grid=shape")
	assert.Contains(t, out, "grid=surface")

	logs.Reset()
	b = NewBuilder(unitCube(), testConfig(), logger)
	_, err = b.Step()
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "clamped")
}

func TestBuildCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	steps := 0
	_, err := Build(ctx, unitCube(), testConfig(), nil, func(stage.Progress) {
		steps++
		if steps == 3 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, steps)
}

func TestCacheRoundTrip(t *testing.T) {
	m, cfg := unitCube(), testConfig()
	cfg.Skeleton = &sample.Joint{Name: "root"}
	bp := build(t, m, cfg)

	cache := NewCache(t.TempDir())
	key := Key(m, cfg)
	_, err := cache.Load(key)
	require.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Store(key, bp))
	got, err := cache.Load(key)
	require.NoError(t, err)
	assert.Equal(t, bp, got)

	var bad Blueprint
	assert.Error(t, bad.UnmarshalBinary([]byte("not a blueprint at all")))
}

func TestKey(t *testing.T) {
	m, cfg := unitCube(), DefaultConfig()
	k := Key(m, cfg)
	assert.Equal(t, k, Key(unitCube(), DefaultConfig()))

	cfg.Smoothing = 0.5
	assert.NotEqual(t, k, Key(m, cfg))

	m.Vertices[3].Z += 1e-9
	assert.NotEqual(t, k, Key(m, DefaultConfig()))
}
