// Package retrieval filters nearest-neighbor candidates by distance and role.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"rolerag/internal/domain"
	"rolerag/internal/logging"
)

const (
	DefaultNResults    = 5
	DefaultOverFetch   = 5
	DefaultMaxDistance = 0.5
)

// NoInformation is returned when the oracle has no candidates at all.
const NoInformation = "No information found for this query."

// NotAuthorized formats the message for candidates that exist but none are usable by role.
func NotAuthorized(role string) string {
	return fmt.Sprintf("No accessible information found for role '%s' regarding this query.", role)
}

// Status tells the caller why a result is empty or not.
type Status int

const (
	Found Status = iota
	NoMatches
	NoAccessibleMatches
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NoMatches:
		return "no_matches"
	case NoAccessibleMatches:
		return "no_accessible_matches"
	}
	return "unknown"
}

// Hit is the structured view of an accepted candidate.
type Hit struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Section      string  `json:"section"`
	SubHierarchy string  `json:"sub_hierarchy"`
	Department   string  `json:"department"`
	Distance     float64 `json:"distance"`
	AllowedRoles string  `json:"allowed_roles"`
	Text         string  `json:"text"`
}

// Result is the outcome of a retrieval.
type Result struct {
	Status  Status
	Context string
	Sources []string
	Chunks  []string
	Hits    []Hit
}

// Options tune the filter. Zero values fall back to the defaults.
type Options struct {
	OverFetch   int
	// MaxDistance is inclusive. nil means DefaultMaxDistance; 0 keeps exact matches only.
	MaxDistance *float64
	Logger      *zap.Logger
}

// Filter consults the oracle and keeps role-accessible candidates.
type Filter struct {
	oracle      domain.Oracle
	overFetch   int
	maxDistance float64
	log         *zap.Logger
}

func NewFilter(oracle domain.Oracle, opts Options) *Filter {
	if opts.OverFetch <= 0 {
		opts.OverFetch = DefaultOverFetch
	}
	maxDistance := DefaultMaxDistance
	if opts.MaxDistance != nil && *opts.MaxDistance >= 0 {
		maxDistance = *opts.MaxDistance
	}
	return &Filter{oracle: oracle, overFetch: opts.OverFetch, maxDistance: maxDistance, log: logging.OrNop(opts.Logger)}
}

// Retrieve returns up to nResults accessible chunks for role, in oracle rank order.
// Oracle failures are returned as errors.
func (f *Filter) Retrieve(ctx context.Context, query, role string, nResults int) (Result, error) {
	if nResults <= 0 {
		nResults = DefaultNResults
	}
	candidates, err := f.oracle.Query(ctx, query, nResults*f.overFetch)
	if err != nil {
		return Result{}, fmt.Errorf("oracle query: %w", err)
	}
	if len(candidates) == 0 {
		return Result{Status: NoMatches, Context: NoInformation, Sources: []string{}, Chunks: []string{}}, nil
	}

	var (
		chunks  []string
		sources []string
		hits    []Hit
		seen    = map[string]struct{}{}
		tooFar  int
		denied  int
	)
	for _, c := range candidates {
		if math.IsNaN(c.Distance) || c.Distance > f.maxDistance {
			tooFar++
			continue
		}
		if !c.Metadata.HasRole(role) {
			denied++
			continue
		}
		chunks = append(chunks, c.Text)
		src := c.Metadata.Source()
		if _, ok := seen[src]; !ok {
			seen[src] = struct{}{}
			sources = append(sources, src)
		}
		hits = append(hits, Hit{
			ID:           c.ID,
			Source:       src,
			Section:      c.Metadata.Section(),
			SubHierarchy: c.Metadata.SubHierarchy(),
			Department:   c.Metadata.Department(),
			Distance:     c.Distance,
			AllowedRoles: c.Metadata.String(domain.MetaAllowedRoles, ""),
			Text:         c.Text,
		})
		if len(chunks) >= nResults {
			break
		}
	}

	f.log.Debug("retrieval filtered",
		zap.String("role", role),
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(chunks)),
		zap.Int("over_threshold", tooFar),
		zap.Int("denied", denied))

	if len(chunks) == 0 {
		return Result{Status: NoAccessibleMatches, Context: NotAuthorized(role), Sources: []string{}, Chunks: []string{}}, nil
	}
	return Result{
		Status:  Found,
		Context: strings.Join(chunks, "\n\n"),
		Sources: sources,
		Chunks:  chunks,
		Hits:    hits,
	}, nil
}
