package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolerag/internal/domain"
	"rolerag/internal/embedding/tfidf"
)

func records() []domain.TaggedRecord {
	return []domain.TaggedRecord{
		{ID: "finance_q1_0", Text: "quarterly revenue grew ten percent", Metadata: domain.Metadata{"department": "finance"}},
		{ID: "hr_policy_0", Text: "employee leave policy", Metadata: domain.Metadata{"department": "hr"}},
	}
}

func TestQueryOrdersByDistance(t *testing.T) {
	ctx := context.Background()
	o := New(tfidf.NewEmbedder())
	require.NoError(t, o.Upsert(ctx, records()))

	got, err := o.Query(ctx, "How much quarterly revenue grew?", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "finance_q1_0", got[0].ID)
	assert.Less(t, got[0].Distance, 0.5)
	assert.InDelta(t, 1.0, got[1].Distance, 1e-9)
	assert.Equal(t, "finance", got[0].Metadata["department"])
}

func TestQueryLimitsToK(t *testing.T) {
	ctx := context.Background()
	o := New(tfidf.NewEmbedder())
	require.NoError(t, o.Upsert(ctx, records()))

	got, err := o.Query(ctx, "revenue", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = o.Query(ctx, "revenue", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertIsIdempotentByID(t *testing.T) {
	ctx := context.Background()
	o := New(tfidf.NewEmbedder())
	require.NoError(t, o.Upsert(ctx, records()))
	require.NoError(t, o.Upsert(ctx, records()))
	assert.Equal(t, 2, o.Len())

	replaced := domain.TaggedRecord{ID: "hr_policy_0", Text: "employee revenue bonus"}
	require.NoError(t, o.Upsert(ctx, []domain.TaggedRecord{replaced}))
	assert.Equal(t, 2, o.Len())

	got, err := o.Query(ctx, "bonus", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "employee revenue bonus", got[0].Text)
}

func TestQueryEmptyOracle(t *testing.T) {
	got, err := New(tfidf.NewEmbedder()).Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUpsertRejectsMissingID(t *testing.T) {
	err := New(tfidf.NewEmbedder()).Upsert(context.Background(), []domain.TaggedRecord{{Text: "x"}})
	assert.Error(t, err)
}

func TestDeleteDropsRecords(t *testing.T) {
	ctx := context.Background()
	o := New(tfidf.NewEmbedder())
	require.NoError(t, o.Upsert(ctx, records()))
	require.NoError(t, o.Delete(ctx, []string{"hr_policy_0", "missing"}))
	assert.Equal(t, 1, o.Len())

	got, err := o.Query(ctx, "employee leave policy", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "finance_q1_0", got[0].ID)
}
