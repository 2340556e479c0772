package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float32{1, 2, 3})
	require.Len(t, probs, 3)
	sum := float32(0)
	for _, p := range probs {
		require.Greater(t, p, float32(0))
		sum += p
	}
	require.InDelta(t, 1.0, sum, 1e-5)
	require.Greater(t, probs[2], probs[1])
	require.Greater(t, probs[1], probs[0])

	// Large logits must not overflow
	probs = Softmax([]float32{1000, 1001, 999})
	require.InDelta(t, 1.0, probs[0]+probs[1]+probs[2], 1e-5)
	require.Greater(t, probs[1], probs[0])

	require.Nil(t, Softmax(nil))
}

func TestDeriveResult(t *testing.T) {
	classes := []string{"healthy", "cavity", "gum_disease"}
	res := deriveResult(classes, []float32{0.1, 0.7, 0.2})
	require.Equal(t, "cavity", res.Label)
	require.Equal(t, float32(0.7), res.Confidence)
	require.Equal(t, float32(0.2), res.Score("gum_disease"))
	require.Equal(t, float32(0), res.Score("no_such_class"))
}

func writeConfig(t *testing.T, content string) string {
	filename := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0644))
	return filename
}

func TestLoadModelConfig(t *testing.T) {
	cfg, err := LoadModelConfig(writeConfig(t, `{
		"input_name": "input",
		"output_name": "output",
		"input_shape": [1, 3, 224, 224],
		"output_shape": [1, 3],
		"classes": ["healthy", "cavity", "gum_disease"],
		"raw_logits": true
	}`))
	require.NoError(t, err)
	require.True(t, cfg.ChannelsFirst())
	require.True(t, cfg.RawLogits)
	require.Equal(t, 3, len(cfg.Classes))

	cfg, err = LoadModelConfig(writeConfig(t, `{
		"input_name": "input",
		"output_name": "output",
		"input_shape": [1, 224, 224, 3],
		"output_shape": [1, 3],
		"classes": ["healthy", "cavity", "gum_disease"]
	}`))
	require.NoError(t, err)
	require.False(t, cfg.ChannelsFirst())
}

func TestLoadModelConfigErrors(t *testing.T) {
	_, err := LoadModelConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = LoadModelConfig(writeConfig(t, `{not json`))
	require.Error(t, err)

	// Missing tensor names
	_, err = LoadModelConfig(writeConfig(t, `{
		"input_shape": [1, 3, 224, 224],
		"output_shape": [1, 3],
		"classes": ["a", "b", "c"]
	}`))
	require.Error(t, err)

	// Class count disagrees with output shape
	_, err = LoadModelConfig(writeConfig(t, `{
		"input_name": "input",
		"output_name": "output",
		"input_shape": [1, 3, 224, 224],
		"output_shape": [1, 4],
		"classes": ["a", "b", "c"]
	}`))
	require.Error(t, err)

	// Not an image shape
	_, err = LoadModelConfig(writeConfig(t, `{
		"input_name": "input",
		"output_name": "output",
		"input_shape": [1, 10],
		"output_shape": [1, 3],
		"classes": ["a", "b", "c"]
	}`))
	require.Error(t, err)
}
