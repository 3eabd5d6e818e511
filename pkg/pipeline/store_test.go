package pipeline_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ravi-parthasarathy/drafter/pkg/pipeline"
)

func TestStore_DispatchAndSnapshot(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := pipeline.NewStore(newReducer(), pipeline.WithLogger(logger))

	require.NoError(t, store.Dispatch(pipeline.AddStage{Stage: handStage("a", "A", emptyType, frameType)}))
	snap := store.Snapshot()
	require.Len(t, snap.Stages, 1)

	// Snapshots are independent copies.
	st := snap.Stages["a"]
	st.Name = "mutated"
	snap.Stages["a"] = st
	assert.Equal(t, "A", store.Snapshot().Stages["a"].Name)

	err := store.Dispatch(pipeline.UpdateStage{StageID: "nonexistent", Name: ptr("x")})
	require.ErrorIs(t, err, pipeline.ErrStageNotFound)
	assert.Len(t, store.Snapshot().Actions, 1, "rejected actions are not recorded")

	out := logs.String()
	assert.Contains(t, out, "action applied")
	assert.Contains(t, out, "action rejected")
	assert.Contains(t, out, "action=UpdateStage")
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	store := pipeline.NewStore(pipeline.Reducer{}, pipeline.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Dispatch(pipeline.AddStage{Stage: pipeline.Stage{Name: "S"}})
			_ = store.Snapshot()
		}()
	}
	wg.Wait()
	s := store.Snapshot()
	assert.Len(t, s.Stages, 20)
	assert.Len(t, s.Actions, 20)
	assert.Empty(t, pipeline.Validate(s))
}

func TestStore_Checkpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solution.json")

	store := pipeline.NewStore(newReducer())
	require.NoError(t, store.Dispatch(pipeline.CreateAsset{Name: "Source", Image: "org/source:latest", Source: "source"}))
	require.NoError(t, store.Dispatch(pipeline.AddStage{Stage: handStage("a", "A", emptyType, frameType)}))
	require.NoError(t, store.SaveCheckpoint(path))

	restored := pipeline.NewStore(newReducer())
	require.NoError(t, restored.LoadCheckpoint(path))
	assert.Equal(t, store.Snapshot(), restored.Snapshot())

	err := restored.LoadCheckpoint(filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, pipeline.ErrFileInput)
	assert.Equal(t, store.Snapshot(), restored.Snapshot(), "failed load leaves the state alone")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"version":1}`), 0o600))
	err = restored.LoadCheckpoint(bad)
	require.ErrorIs(t, err, pipeline.ErrParsing)
}

func TestStore_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := pipeline.NewMetrics(reg)
	store := pipeline.NewStore(newReducer(), pipeline.WithMetrics(m))

	require.NoError(t, store.Dispatch(pipeline.AddStage{Stage: handStage("a", "A", emptyType, frameType)}))
	require.NoError(t, store.Dispatch(pipeline.AddStage{Stage: handStage("b", "B", frameType, emptyType)}))
	require.Error(t, store.Dispatch(pipeline.DeleteStage{StageID: "ghost"}))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Applied.WithLabelValues("AddStage")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejected.WithLabelValues("DeleteStage", "StageNotFound")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Entities.WithLabelValues("stages")))

	expected := `
# HELP drafter_actions_applied_total Actions applied to the design state, by kind.
# TYPE drafter_actions_applied_total counter
drafter_actions_applied_total{kind="AddStage"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "drafter_actions_applied_total"))
}

func TestStore_WithState(t *testing.T) {
	seed := twoStageState(t, newReducer())
	store := pipeline.NewStore(newReducer(), pipeline.WithState(seed))
	assert.Equal(t, seed, store.Snapshot())
}

func TestDomainError_Format(t *testing.T) {
	err := &pipeline.DomainError{Kind: pipeline.KindStageNotFound, ID: "abc", Message: "gone"}
	assert.Equal(t, `StageNotFound "abc": gone`, err.Error())
	assert.Equal(t, pipeline.KindStageNotFound, pipeline.KindOf(err))
	assert.Empty(t, pipeline.KindOf(os.ErrNotExist))
	assert.NotErrorIs(t, err, pipeline.ErrAssetNotFound)
}
