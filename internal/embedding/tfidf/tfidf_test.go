package tfidf

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolerag/internal/domain"
)

func TestEmbedBeforePrepare(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "x")
	assert.True(t, errors.Is(err, domain.ErrNotPrepared))
}

func TestEmbedNormalized(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"quarterly revenue grew", "employee leave policy", "revenue forecast 2024"}))
	assert.Equal(t, 8, e.Dimension())

	vec, err := e.Embed(context.Background(), "What was the revenue in 2024?")
	require.NoError(t, err)
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEmbedUnknownTermsIsZero(t *testing.T) {
	e := NewEmbedder()
	require.NoError(t, e.Prepare([]string{"alpha beta"}))
	vec, err := e.Embed(context.Background(), "gamma")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestPrepareRejectsEmpty(t *testing.T) {
	assert.Error(t, NewEmbedder().Prepare(nil))
	assert.Error(t, NewEmbedder().Prepare([]string{"the and of"}))
}
