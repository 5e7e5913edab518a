package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rolerag/internal/domain"
)

type fakeOracle struct {
	candidates []domain.Candidate
	err        error
	lastK      int
}

func (f *fakeOracle) Name() string { return "fake" }

func (f *fakeOracle) Query(_ context.Context, _ string, k int) ([]domain.Candidate, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.candidates) {
		return f.candidates[:k], nil
	}
	return f.candidates, nil
}

func (f *fakeOracle) Upsert(context.Context, []domain.TaggedRecord) error { return nil }

func cand(id, source string, dist float64, roles ...string) domain.Candidate {
	meta := domain.Metadata{domain.MetaSource: source}
	for _, r := range roles {
		meta[domain.RoleFlag(r)] = true
	}
	return domain.Candidate{ID: id, Text: "text of " + id, Metadata: meta, Distance: dist}
}

func TestRetrieveOverFetch(t *testing.T) {
	o := &fakeOracle{}
	_, err := NewFilter(o, Options{}).Retrieve(context.Background(), "q", "r", 4)
	require.NoError(t, err)
	assert.Equal(t, 20, o.lastK)

	_, err = NewFilter(o, Options{OverFetch: 3}).Retrieve(context.Background(), "q", "r", 4)
	require.NoError(t, err)
	assert.Equal(t, 12, o.lastK)
}

func TestRetrieveNoCandidates(t *testing.T) {
	res, err := NewFilter(&fakeOracle{}, Options{}).Retrieve(context.Background(), "q", "HR_Team", 5)
	require.NoError(t, err)
	assert.Equal(t, NoMatches, res.Status)
	assert.Equal(t, NoInformation, res.Context)
	assert.Empty(t, res.Sources)
	assert.Empty(t, res.Chunks)
}

func TestRetrieveDistanceThreshold(t *testing.T) {
	o := &fakeOracle{candidates: []domain.Candidate{
		cand("near", "a.json", 0.3, "HR_Team"),
		cand("far", "b.json", 0.6, "HR_Team"),
	}}
	res, err := NewFilter(o, Options{}).Retrieve(context.Background(), "q", "HR_Team", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"text of near"}, res.Chunks)
	assert.Equal(t, []string{"a.json"}, res.Sources)
	for _, h := range res.Hits {
		assert.LessOrEqual(t, h.Distance, DefaultMaxDistance)
	}
}

func TestRetrieveBoundaryDistanceAccepted(t *testing.T) {
	o := &fakeOracle{candidates: []domain.Candidate{cand("edge", "a.json", 0.5, "R")}}
	res, err := NewFilter(o, Options{}).Retrieve(context.Background(), "q", "R", 5)
	require.NoError(t, err)
	assert.Equal(t, Found, res.Status)
}

func TestRetrieveAccessControl(t *testing.T) {
	o := &fakeOracle{candidates: []domain.Candidate{
		cand("fin", "fin.json", 0.1, "Finance_Team"),
		cand("hr", "hr.json", 0.2, "HR_Team"),
		cand("gen", "gen.json", 0.3, "HR_Team", "Finance_Team"),
	}}
	res, err := NewFilter(o, Options{}).Retrieve(context.Background(), "q", "HR_Team", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"text of hr", "text of gen"}, res.Chunks)
	for _, h := range res.Hits {
		c := findCandidate(o.candidates, h.ID)
		assert.True(t, c.Metadata.HasRole("HR_Team"))
	}
	assert.Equal(t, "text of hr\n\ntext of gen", res.Context)
}

func TestRetrieveFalseFlagIsDenied(t *testing.T) {
	c := cand("x", "x.json", 0.1)
	c.Metadata[domain.RoleFlag("R")] = false
	res, err := NewFilter(&fakeOracle{candidates: []domain.Candidate{c}}, Options{}).Retrieve(context.Background(), "q", "R", 5)
	require.NoError(t, err)
	assert.Equal(t, NoAccessibleMatches, res.Status)
}

func TestRetrieveSentinelsAreDistinct(t *testing.T) {
	empty, err := NewFilter(&fakeOracle{}, Options{}).Retrieve(context.Background(), "q", "Employee_Level", 5)
	require.NoError(t, err)

	o := &fakeOracle{candidates: []domain.Candidate{cand("secret", "s.json", 0.1, "Finance_Team")}}
	denied, err := NewFilter(o, Options{}).Retrieve(context.Background(), "q", "Employee_Level", 5)
	require.NoError(t, err)

	assert.NotEqual(t, empty.Context, denied.Context)
	assert.Equal(t, NotAuthorized("Employee_Level"), denied.Context)
	assert.Equal(t, "No accessible information found for role 'Employee_Level' regarding this query.", denied.Context)
	assert.Empty(t, denied.Sources)
}

func TestRetrieveEarlyStopAndSourceDedup(t *testing.T) {
	var cs []domain.Candidate
	for i := 0; i < 10; i++ {
		cs = append(cs, cand(fmt.Sprintf("c%d", i), fmt.Sprintf("s%d.json", i%2), 0.1, "R"))
	}
	res, err := NewFilter(&fakeOracle{candidates: cs}, Options{}).Retrieve(context.Background(), "q", "R", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"text of c0", "text of c1", "text of c2"}, res.Chunks)
	assert.Equal(t, []string{"s0.json", "s1.json"}, res.Sources)
}

func TestRetrieveSkippedDoNotCountTowardQuota(t *testing.T) {
	o := &fakeOracle{candidates: []domain.Candidate{
		cand("d1", "a.json", 0.1, "Other"),
		cand("f1", "a.json", 0.9, "R"),
		cand("ok1", "a.json", 0.2, "R"),
		cand("d2", "a.json", 0.2, "Other"),
		cand("ok2", "b.json", 0.3, "R"),
		cand("ok3", "c.json", 0.4, "R"),
	}}
	res, err := NewFilter(o, Options{}).Retrieve(context.Background(), "q", "R", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"text of ok1", "text of ok2"}, res.Chunks)
}

func TestRetrieveMissingSourceDefaults(t *testing.T) {
	c := domain.Candidate{ID: "x", Text: "t", Metadata: domain.Metadata{"role_R": true}, Distance: 0.1}
	res, err := NewFilter(&fakeOracle{candidates: []domain.Candidate{c}}, Options{}).Retrieve(context.Background(), "q", "R", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"unknown"}, res.Sources)
	assert.Equal(t, "N/A", res.Hits[0].Section)
}

func TestRetrieveOracleError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewFilter(&fakeOracle{err: boom}, Options{}).Retrieve(context.Background(), "q", "R", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestRetrieveZeroThresholdKeepsExactMatches(t *testing.T) {
	zero := 0.0
	o := &fakeOracle{candidates: []domain.Candidate{
		cand("exact", "a.md", 0, "R"),
		cand("close", "b.md", 0.01, "R"),
	}}
	res, err := NewFilter(o, Options{MaxDistance: &zero}).Retrieve(context.Background(), "q", "R", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"text of exact"}, res.Chunks)
}

func TestRetrieveRejectsNaNDistance(t *testing.T) {
	o := &fakeOracle{candidates: []domain.Candidate{cand("nan", "a.md", math.NaN(), "R")}}
	res, err := NewFilter(o, Options{}).Retrieve(context.Background(), "q", "R", 5)
	require.NoError(t, err)
	assert.Equal(t, NoAccessibleMatches, res.Status)
}

func findCandidate(cs []domain.Candidate, id string) domain.Candidate {
	for _, c := range cs {
		if c.ID == id {
			return c
		}
	}
	return domain.Candidate{}
}
