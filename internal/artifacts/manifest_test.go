package artifacts

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIO_LoadMissing(t *testing.T) {
	io := NewIO(filepath.Join(t.TempDir(), "manifest.json"))

	manifest, err := io.Load()
	require.NoError(t, err)
	assert.Empty(t, manifest.Runs)
}

func TestIO_AppendAccumulates(t *testing.T) {
	io := NewIO(filepath.Join(t.TempDir(), "reports", "manifest.json"))

	first := RunRecord{RunID: "run-1", Mode: "returns", StartedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
	first.Add("heatmap", "reports/figures/corr_heatmap_returns_120_2024-06-01.csv")
	require.NoError(t, io.Append(first))

	second := RunRecord{RunID: "run-2", Mode: "returns", StartedAt: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, io.Append(second))

	manifest, err := io.Load()
	require.NoError(t, err)
	require.Len(t, manifest.Runs, 2)
	assert.Equal(t, "run-1", manifest.Runs[0].RunID)
	require.Len(t, manifest.Runs[0].Artifacts, 1)
	assert.Equal(t, "heatmap", manifest.Runs[0].Artifacts[0].Kind)
	assert.Equal(t, "run-2", manifest.Runs[1].RunID)
}
