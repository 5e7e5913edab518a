package chunker

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolerag/internal/domain"
)

func TestSegmentBasicHierarchy(t *testing.T) {
	got := NewSegmenter().Segment("# Finance\nBody text\n## Q1\nDetails\n")
	want := []domain.Chunk{
		{Section: "Finance", Content: []string{"Body text"}},
		{Section: "Finance", Subsection: "Q1", Content: []string{"Details"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
	}
}

func TestSegmentHeadingRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []domain.Chunk
	}{
		{
			name: "colon heading underlined by dashes",
			text: "# Report\nintro\nRevenue:\n--------\n100 units\n",
			want: []domain.Chunk{
				{Section: "Report", Content: []string{"intro"}},
				{Section: "Report", Subsection: "Revenue", Content: []string{"100 units"}},
			},
		},
		{
			name: "colon without underline is content",
			text: "# Report\nNote:\nplain\n",
			want: []domain.Chunk{
				{Section: "Report", Content: []string{"Note:", "plain"}},
			},
		},
		{
			name: "subsubsection cleared by new subsection",
			text: "# A\n## B\n### C\nc body\n## D\nd body\n",
			want: []domain.Chunk{
				{Section: "A", Subsection: "B", Subsubsection: "C", Content: []string{"c body"}},
				{Section: "A", Subsection: "D", Content: []string{"d body"}},
			},
		},
		{
			name: "new section clears deeper levels",
			text: "# A\n## B\n### C\nx\n# E\ny\n",
			want: []domain.Chunk{
				{Section: "A", Subsection: "B", Subsubsection: "C", Content: []string{"x"}},
				{Section: "E", Content: []string{"y"}},
			},
		},
		{
			name: "decorative separators dropped",
			text: "# A\n=====\nkeep\n***\n———\n─────\n__\n",
			want: []domain.Chunk{
				{Section: "A", Content: []string{"keep", "__"}},
			},
		},
		{
			name: "heading with no body emits nothing",
			text: "# A\n# B\nbody\n",
			want: []domain.Chunk{
				{Section: "B", Content: []string{"body"}},
			},
		},
		{
			name: "blank lines are content",
			text: "# A\none\n\ntwo\n",
			want: []domain.Chunk{
				{Section: "A", Content: []string{"one", "", "two"}},
			},
		},
		{
			name: "crlf endings and trailing spaces",
			text: "# A\r\nline one   \r\n",
			want: []domain.Chunk{
				{Section: "A", Content: []string{"line one"}},
			},
		},
		{
			name: "unicode trailing spaces",
			text: "# A\nline\u00a0\u2003\nRevenue:\u00a0\n---\nx\n",
			want: []domain.Chunk{
				{Section: "A", Content: []string{"line"}},
				{Section: "A", Subsection: "Revenue", Content: []string{"x"}},
			},
		},
		{
			name: "bare hash is not a heading",
			text: "# A\n#\n",
			want: []domain.Chunk{
				{Section: "A", Content: []string{"#"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSegmenter().Segment(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("chunks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegmentDiscardsPreHeadingContent(t *testing.T) {
	text := "secret preamble\n## Early sub\nstill before\n# Real\nvisible\n"
	chunks := NewSegmenter().Segment(text)
	require.Len(t, chunks, 1)
	for _, c := range chunks {
		for _, ln := range c.Content {
			assert.NotContains(t, ln, "preamble")
			assert.NotContains(t, ln, "still before")
		}
	}
	assert.Equal(t, "Real", chunks[0].Section)
	assert.Empty(t, chunks[0].Subsection)
}

func TestSegmentReconstruction(t *testing.T) {
	text := strings.Join([]string{
		"# One",
		"alpha",
		"",
		"beta",
		"## Two",
		"gamma",
		"### Three",
		"delta",
		"# Four",
		"epsilon",
	}, "\n") + "\n"

	var rebuilt []string
	for _, c := range NewSegmenter().Segment(text) {
		rebuilt = append(rebuilt, c.Content...)
	}
	assert.Equal(t, []string{"alpha", "", "beta", "gamma", "delta", "epsilon"}, rebuilt)
}

func TestSegmentIdempotent(t *testing.T) {
	text := "# A\nx\nSub:\n---\ny\n### Z\nz\n"
	s := NewSegmenter()
	if diff := cmp.Diff(s.Segment(text), s.Segment(text)); diff != "" {
		t.Fatalf("segmenting twice differs:\n%s", diff)
	}
}

func TestSegmentEmptyInput(t *testing.T) {
	assert.Empty(t, NewSegmenter().Segment(""))
	assert.Empty(t, NewSegmenter().Segment("no headings at all\n"))
}

func TestStateTransitions(t *testing.T) {
	m := &machine{}
	assert.Equal(t, NoSection, m.state)
	m.enterSubsection("early")
	assert.Equal(t, NoSection, m.state, "subsection before a section keeps the guard")
	m.enterSection("A")
	assert.Equal(t, InSection, m.state)
	m.enterSubsubsection("C")
	assert.Equal(t, InSubsubsection, m.state)
	m.enterSubsection("B")
	assert.Equal(t, InSubsection, m.state)
	assert.Empty(t, m.subsubsection)
	assert.Equal(t, "InSubsection", m.state.String())
}

func TestChunkFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "q1.json")
	chunks := []domain.Chunk{
		{Section: "Finance", Content: []string{"Body <b>", "x"}},
		{Section: "Finance", Subsection: "Q1", Subsubsection: "Detail", Content: []string{"y"}},
	}
	require.NoError(t, WriteFile(path, chunks))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"subsection": null`)
	assert.Contains(t, string(raw), "<b>")

	got, err := ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(chunks, got); diff != "" {
		t.Fatalf("round trip mismatch:\n%s", diff)
	}
}

func TestUnmarshalSingleObject(t *testing.T) {
	got, err := Unmarshal([]byte(`{"section":"S","subsection":null,"subsubsection":null,"content":["a"]}`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "S", got[0].Section)
}

func TestUnmarshalMalformed(t *testing.T) {
	for _, in := range []string{"", "not json", "42", "null", `[{"section": 7}]`, `[1, 2]`} {
		_, err := Unmarshal([]byte(in))
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, domain.ErrMalformedChunkFile), "input %q", in)
	}
}
