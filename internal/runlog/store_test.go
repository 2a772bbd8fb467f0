package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/terrain.diffusion/internal/grid"
	"github.com/banshee-data/terrain.diffusion/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_MigratesSchema(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	id, err := s.Record(context.Background(), Run{Kind: KindGenerate, Seed: 1}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	r, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.Seed)
}

func TestRecord_RoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	heights, err := grid.FromRows([][]float64{{0, 0.25, 0.5}, {0.75, 1, 0.125}})
	require.NoError(t, err)

	id, err := s.Record(context.Background(), Run{
		Kind:          KindInterpolate,
		Seed:          42,
		Steps:         10,
		StartingStep:  2,
		ConfigJSON:    `{"diffusion_steps":10}`,
		DenoiserCalls: 8,
		Duration:      1500 * time.Millisecond,
		CreatedAt:     created,
	}, heights)
	require.NoError(t, err)
	assert.Len(t, id, 36, "uuid string")

	r, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, KindInterpolate, r.Kind)
	assert.Equal(t, 3, r.Width)
	assert.Equal(t, 2, r.Height)
	assert.Equal(t, 10, r.Steps)
	assert.Equal(t, 2, r.StartingStep)
	assert.Equal(t, 8, r.DenoiserCalls)
	assert.Equal(t, 1500*time.Millisecond, r.Duration)
	assert.JSONEq(t, `{"diffusion_steps":10}`, r.ConfigJSON)
	assert.True(t, r.HasHeights)
	assert.True(t, created.Equal(r.CreatedAt))
	assert.Equal(t, heights.Stats(), r.Stats)

	got, err := s.LoadHeights(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, got.Equal(heights))
}

func TestRecord_WithoutHeights(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id, err := s.Record(context.Background(), Run{ID: "fixed-id", Kind: KindLattice, Width: 4, Height: 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	r, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, r.HasHeights)
	assert.Equal(t, "{}", r.ConfigJSON)

	_, err = s.LoadHeights(context.Background(), id)
	assert.Error(t, err)

	_, err = s.Record(context.Background(), Run{ID: "fixed-id", Kind: KindLattice}, nil)
	assert.Error(t, err, "duplicate id")
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadHeights(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.Record(context.Background(), Run{
			Kind:      KindGenerate,
			Seed:      int64(i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}, nil)
		require.NoError(t, err)
	}

	runs, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []int64{2, 1, 0}, []int64{runs[0].Seed, runs[1].Seed, runs[2].Seed})

	runs, err = s.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	id, err := s.Record(context.Background(), Run{Kind: KindGenerate}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), id))
	_, err = s.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Delete(context.Background(), id))
}

func TestDecodeHeights_Malformed(t *testing.T) {
	t.Parallel()
	_, err := decodeHeights([]byte{1, 2})
	assert.Error(t, err)

	raw := encodeHeights(grid.Populated(1, 2, 2))
	_, err = decodeHeights(raw[:len(raw)-1])
	assert.Error(t, err)
}
