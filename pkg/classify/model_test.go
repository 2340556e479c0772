package classify

import (
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

// Missing weights/config must fail fast with ErrModelUnavailable, and the
// failure must be cached: every subsequent call fails without retrying.
// The config load fails before any ONNX runtime initialization, so this runs
// without onnxruntime installed.
func TestModelLoadFailure(t *testing.T) {
	dir := t.TempDir()
	m := NewModel(logs.NewTestingLog(t), filepath.Join(dir, "missing.onnx"), filepath.Join(dir, "missing.json"), "")

	err := m.Load()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.False(t, m.Loaded())
	require.Nil(t, m.Classes())

	// Second call returns the cached failure
	err2 := m.Load()
	require.ErrorIs(t, err2, ErrModelUnavailable)
	require.Equal(t, err, err2)

	// Predict triggers the lazy load and surfaces the same failure
	_, err = m.Predict(nil)
	require.ErrorIs(t, err, ErrModelUnavailable)
	require.False(t, m.Loaded())
}
