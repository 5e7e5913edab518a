package tagger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolerag/internal/domain"
	"rolerag/internal/roles"
)

func TestTagHRChunk(t *testing.T) {
	tg := New(roles.Default())
	rec, err := tg.Tag(domain.Chunk{Section: "HR Policy", Content: []string{"Leave is 20 days."}}, "hr", "handbook.json", 3)
	require.NoError(t, err)

	assert.Equal(t, "hr_handbook_3", rec.ID)
	assert.Equal(t, "Leave is 20 days.", rec.Text)
	assert.Equal(t, true, rec.Metadata["role_HR_Team"])
	assert.Equal(t, true, rec.Metadata["role_God_Tier_Admins"])
	assert.NotContains(t, rec.Metadata, "role_Finance_Team")
	assert.Equal(t, "HR_Team,God_Tier_Admins", rec.Metadata[domain.MetaAllowedRoles])
	assert.Equal(t, "handbook.json", rec.Metadata[domain.MetaSource])
	assert.Equal(t, "HR Policy", rec.Metadata[domain.MetaSection])
	assert.Equal(t, "hr", rec.Metadata[domain.MetaDepartment])
	assert.Equal(t, "hr_handbook_3", rec.Metadata[domain.MetaChunkID])
	assert.NotContains(t, rec.Metadata, domain.MetaSubHierarchy)
}

func TestTagNeverStoresNil(t *testing.T) {
	rec, err := New(nil).Tag(domain.Chunk{Content: []string{"x"}}, "general", "a.json", 0)
	require.NoError(t, err)
	for k, v := range rec.Metadata {
		assert.NotNil(t, v, "key %s", k)
	}
	assert.NotContains(t, rec.Metadata, domain.MetaSection)
	assert.Equal(t, "N/A", rec.Metadata.Section())
}

func TestTagUnknownDepartment(t *testing.T) {
	_, err := New(roles.Default()).Tag(domain.Chunk{Section: "S"}, "sales", "a.json", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnknownDepartment))
}

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		chunk domain.Chunk
		want  string
	}{
		{
			name:  "cleans lines",
			chunk: domain.Chunk{Content: []string{"  a  ", "", "```", "b---c", "d"}},
			want:  "a d",
		},
		{
			name:  "falls back to headings",
			chunk: domain.Chunk{Section: "S", Subsubsection: "T", Content: []string{"```", "   "}},
			want:  "S T",
		},
		{
			name:  "fence with language is kept",
			chunk: domain.Chunk{Section: "S", Content: []string{"```go"}},
			want:  "```go",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.chunk))
		})
	}
}

func TestSubHierarchy(t *testing.T) {
	assert.Equal(t, "A > B", SubHierarchy(domain.Chunk{Subsection: "A", Subsubsection: "B"}))
	assert.Equal(t, "A", SubHierarchy(domain.Chunk{Subsection: "A"}))
	assert.Equal(t, "B", SubHierarchy(domain.Chunk{Subsubsection: "B"}))
	assert.Equal(t, "", SubHierarchy(domain.Chunk{}))
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "finance_q1.report_0", RecordID("finance", "/data/finance/chunked_reports/q1.report.json", 0))
	assert.Equal(t, "hr_notes_12", RecordID("hr", "notes", 12))
}

func TestTagAllIndexes(t *testing.T) {
	recs, err := New(nil).TagAll([]domain.Chunk{
		{Section: "A", Content: []string{"one"}},
		{Section: "B", Content: []string{"two"}},
	}, "finance", "q.json")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "finance_q_0", recs[0].ID)
	assert.Equal(t, "finance_q_1", recs[1].ID)
}
