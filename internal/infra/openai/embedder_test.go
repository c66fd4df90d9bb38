package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedderOptionsOverrideDefaults(t *testing.T) {
	embedder := NewEmbedder("dummy-key",
		WithEmbeddingModel("custom-model"),
		WithEmbeddingDimension(42),
	)

	assert.Equal(t, "custom-model", embedder.ModelName())
	assert.Equal(t, 42, embedder.Dimension())
}

func TestEmbedBlankTextReturnsZeroVector(t *testing.T) {
	embedder := NewEmbedder("dummy-key", WithEmbeddingDimension(8))

	vector, err := embedder.Embed(context.Background(), "   \n\t ")
	require.NoError(t, err)

	assert.Len(t, vector, 8)
	for _, v := range vector {
		assert.Zero(t, v)
	}
}
