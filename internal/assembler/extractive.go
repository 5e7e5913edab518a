package assembler

import (
	"regexp"
	"sort"
	"strings"
)

const (
	maxExtracts     = 3
	defaultExtracts = 2
)

const (
	noQueryTermsHeader  = "Relevant extracts from documents:"
	lowConfidenceHeader = "Low confidence: none of the extracts share terms with the question. The first extracts are shown as-is:"
	noGeneratorHeader   = "No generative model is configured. The most relevant extracts are:"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Extractive builds a deterministic answer from the chunks that share the most
// words with query. chunks must already be normalized.
func Extractive(chunks []string, query string) string {
	qset := tokenSet(query)
	if len(qset) == 0 {
		return noQueryTermsHeader + "\n\n" + strings.Join(firstN(chunks, defaultExtracts), "\n\n")
	}

	type pair struct {
		idx   int
		score int
	}
	scores := make([]pair, len(chunks))
	for i, c := range chunks {
		scores[i] = pair{i, overlap(qset, tokenSet(c))}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	var picked []string
	for _, p := range scores {
		if p.score <= 0 || len(picked) == maxExtracts {
			break
		}
		picked = append(picked, chunks[p.idx])
	}
	if len(picked) == 0 {
		return lowConfidenceHeader + "\n\n" + strings.Join(firstN(chunks, defaultExtracts), "\n\n")
	}
	return noGeneratorHeader + "\n\n" + strings.Join(picked, "\n\n")
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func overlap(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}

func firstN(items []string, n int) []string {
	if len(items) < n {
		return items
	}
	return items[:n]
}
