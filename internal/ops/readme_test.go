package ops

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampReadme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte("# MacroCorr\n\nLast updated: 2024-01-01\n"), 0644))

	require.NoError(t, StampReadme(path, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Last updated: 2024-06-30")
	assert.NotContains(t, string(raw), "2024-01-01")
}

func TestStampReadme_MissingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte("# MacroCorr\n"), 0644))

	assert.Error(t, StampReadme(path, time.Now()))
}
