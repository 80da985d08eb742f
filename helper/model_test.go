package helper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedModelDir creates a fake downloaded model so PrepareModel takes the
// existing-model path without touching the network
func seedModelDir(t *testing.T, sanitizedName string) string {
	t.Helper()

	modelPath := filepath.Join("./models", sanitizedName)
	err := os.MkdirAll(modelPath, 0750)
	require.NoError(t, err, "Expected model directory creation to succeed")
	t.Cleanup(func() { os.RemoveAll(modelPath) })

	return modelPath
}

func TestPrepareModel(t *testing.T) {
	t.Run("Download model when it doesn't exist", func(t *testing.T) {
		modelName := "sentence-transformers/all-MiniLM-L6-v2"

		// Remove a leftover copy so the download path is exercised
		os.RemoveAll(filepath.Join("./models", "sentence-transformers_all-MiniLM-L6-v2"))

		path, err := PrepareModel(modelName, "onnx/model.onnx")

		// Success depends on network and disk space, so only the error shape
		// is pinned down
		if err != nil {
			assert.Contains(t, err.Error(), "failed to", "Expected error to be about download failure")
		} else {
			assert.NotEmpty(t, path, "Expected model path to be returned")
			assert.DirExists(t, path, "Expected model directory to exist")
		}
	})

	t.Run("Return existing model path without downloading", func(t *testing.T) {
		modelPath := seedModelDir(t, "intfloat_e5-small-v2")

		path, err := PrepareModel("intfloat/e5-small-v2", "")

		assert.NoError(t, err, "Expected PrepareModel to not return an error for existing model")
		assert.Equal(t, modelPath, path, "Expected returned path to match existing model path")
	})

	t.Run("Model name with slash is sanitized", func(t *testing.T) {
		modelPath := seedModelDir(t, "BAAI_bge-small-en")

		path, err := PrepareModel("BAAI/bge-small-en", "")

		assert.NoError(t, err, "Expected PrepareModel to not return an error")
		assert.Equal(t, modelPath, path, "Expected path to use the sanitized name")
	})

	t.Run("Model name without slash is used directly", func(t *testing.T) {
		modelPath := seedModelDir(t, "minilm-local")

		path, err := PrepareModel("minilm-local", "")

		assert.NoError(t, err, "Expected PrepareModel to not return an error")
		assert.Equal(t, modelPath, path, "Expected path to use the model name directly")
	})

	t.Run("Onnx file path is accepted for existing models", func(t *testing.T) {
		seedModelDir(t, "local_onnx-embedder")

		path, err := PrepareModel("local/onnx-embedder", "onnx/model.onnx")

		assert.NoError(t, err, "Expected PrepareModel with onnx path to not return an error")
		assert.NotEmpty(t, path, "Expected model path to be returned")
	})

	t.Run("Empty onnx file path is accepted", func(t *testing.T) {
		seedModelDir(t, "local_plain-embedder")

		path, err := PrepareModel("local/plain-embedder", "")

		assert.NoError(t, err, "Expected PrepareModel with empty onnx path to not return an error")
		assert.NotEmpty(t, path, "Expected model path to be returned")
	})
}
