package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudscore/internal/encode"
	"github.com/mbd888/fraudscore/internal/gbdt"
	"github.com/mbd888/fraudscore/internal/logging"
	"github.com/mbd888/fraudscore/internal/pipeline"
	"github.com/mbd888/fraudscore/internal/testutil"
	"github.com/mbd888/fraudscore/internal/uid"
)

// testArtifact is a structurally complete artifact with a single one-leaf
// model.
func testArtifact(runID string) *pipeline.Artifact {
	return &pipeline.Artifact{
		FormatVersion: pipeline.FormatVersion,
		RunID:         runID,
		CreatedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Config:        pipeline.DefaultConfig(),
		Required:      []string{"TransactionID"},
		Resolver:      &uid.Model{Config: uid.DefaultConfig()},
		Population:    &encode.PopulationStatistics{Rows: 10},
		Features:      []string{"C1"},
		Families: []pipeline.FamilyModel{{
			Name:   "gbdt",
			Models: []*gbdt.Booster{{Names: []string{"C1"}, BaseScore: -1.5}},
		}},
		Reference: []float64{0.1, 0.2, 0.9},
		OOFAUC:    0.91,
	}
}

func TestEncodeDecode(t *testing.T) {
	art := testArtifact("run_a")
	blob, err := Encode(art)
	require.NoError(t, err)

	got, err := Decode(blob)
	require.NoError(t, err)
	assert.Equal(t, art.RunID, got.RunID)
	assert.Equal(t, art.Features, got.Features)
	assert.Equal(t, art.Reference, got.Reference)
	assert.Equal(t, art.OOFAUC, got.OOFAUC)
	assert.True(t, art.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Families, 1)
	assert.Equal(t, -1.5, got.Families[0].Models[0].BaseScore)
}

func TestDecodeRejects(t *testing.T) {
	_, err := Decode([]byte("not zstd"))
	assert.ErrorIs(t, err, ErrCorrupt)

	art := testArtifact("run_a")
	art.FormatVersion = pipeline.FormatVersion + 1
	blob, err := Encode(art)
	require.NoError(t, err)
	_, err = Decode(blob)
	assert.ErrorIs(t, err, pipeline.ErrIncompatibleArtifact)
}

// storeContract exercises the behavior every Store shares.
func storeContract(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Latest(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = Load(ctx, s, 0)
	require.ErrorIs(t, err, ErrNotFound)

	first, err := Publish(ctx, s, testArtifact("run_1"))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.NotEmpty(t, first.ID)

	second, err := Publish(ctx, s, testArtifact("run_2"))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	art, rec, err := Load(ctx, s, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
	assert.Equal(t, "run_2", art.RunID)

	art, rec, err = Load(ctx, s, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, "run_1", art.RunID)
	assert.InDelta(t, 0.91, float64(rec.OOFAUC), 1e-12)

	_, err = s.Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Version)
	assert.Equal(t, 1, list[1].Version)
	assert.Nil(t, list[0].Blob)

	require.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStore_ConcurrentSaves(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := Publish(context.Background(), s, testArtifact("run"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 20)
	for i, r := range list {
		assert.Equal(t, 20-i, r.Version)
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), 0, logging.Discard())
	require.NoError(t, err)
	storeContract(t, s)
}

func TestFileStore_Retention(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 2, logging.Discard())
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := Publish(ctx, s, testArtifact("run"))
		require.NoError(t, err)
	}

	for v, want := range map[int]bool{1: false, 2: false, 3: true, 4: true} {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("model_v%d.art.zst", v)))
		assert.Equal(t, want, err == nil, "version %d", v)
	}
	pointer, err := os.ReadFile(filepath.Join(dir, "latest"))
	require.NoError(t, err)
	assert.Equal(t, "4\n", string(pointer))

	_, err = s.Get(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	// Versions keep increasing past pruned ones after a restart.
	reopened, err := NewFileStore(dir, 2, logging.Discard())
	require.NoError(t, err)
	rec, err := Publish(ctx, reopened, testArtifact("run"))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Version)
}

func TestFileStore_CorruptPointer(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, 0, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest"), []byte("x"), 0o600))
	_, err = s.Latest(context.Background())
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestPostgresStore(t *testing.T) {
	storeContract(t, NewPostgresStore(testutil.PGTest(t)))
}
