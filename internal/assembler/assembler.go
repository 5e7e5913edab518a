// Package assembler packs retrieved chunks into a bounded context and produces
// the final answer, either from a generator or by extraction.
package assembler

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"rolerag/internal/domain"
	"rolerag/internal/logging"
)

const (
	DefaultContextBudget = 12000
	DefaultMinChunkChars = 20
)

// NoDocuments is the answer for an empty chunk list.
const NoDocuments = "No documents available to generate an answer."

// Kind tells a generated answer apart from a degraded one.
type Kind int

const (
	Generated Kind = iota
	Fallback
	Empty
)

func (k Kind) String() string {
	switch k {
	case Generated:
		return "generated"
	case Fallback:
		return "fallback"
	case Empty:
		return "empty"
	}
	return "unknown"
}

// Answer is the outcome of Synthesize. Reason is set for Fallback answers.
type Answer struct {
	Kind   Kind
	Text   string
	Reason string
}

func (a Answer) IsFallback() bool { return a.Kind == Fallback }

// Options configure an Assembler. Zero values use the defaults.
type Options struct {
	ContextBudget int
	MinChunkChars int
	Logger        *zap.Logger
}

// Assembler turns retrieved chunks into an answer. Generator may be nil.
type Assembler struct {
	gen      domain.Generator
	budget   int
	minChars int
	log      *zap.Logger
}

func New(gen domain.Generator, opts Options) *Assembler {
	if opts.ContextBudget <= 0 {
		opts.ContextBudget = DefaultContextBudget
	}
	if opts.MinChunkChars <= 0 {
		opts.MinChunkChars = DefaultMinChunkChars
	}
	return &Assembler{gen: gen, budget: opts.ContextBudget, minChars: opts.MinChunkChars, log: logging.OrNop(opts.Logger)}
}

// Synthesize answers query from chunks. It never returns an error: generator
// failures degrade to an extractive answer carrying the failure reason.
func (a *Assembler) Synthesize(ctx context.Context, chunks []string, query string) Answer {
	if len(chunks) == 0 {
		return Answer{Kind: Empty, Text: NoDocuments}
	}
	normalized := Normalize(chunks, a.minChars)
	if len(normalized) == 0 {
		return Answer{Kind: Empty, Text: NoDocuments}
	}
	packed := Pack(normalized, a.budget)

	if a.gen == nil {
		return Answer{Kind: Fallback, Text: Extractive(normalized, query), Reason: "no generative model configured"}
	}

	out, err := a.gen.Complete(ctx, BuildPrompt(packed, query))
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("empty completion")
	}
	if err != nil {
		a.log.Warn("generation failed, using extractive answer",
			zap.String("generator", a.gen.Name()),
			zap.Error(err))
		reason := err.Error()
		text := fmt.Sprintf("Note: answer generation failed (%s); showing an extractive answer instead.\n\n%s",
			reason, Extractive(normalized, query))
		return Answer{Kind: Fallback, Text: text, Reason: reason}
	}
	return Answer{Kind: Generated, Text: strings.TrimSpace(out)}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize collapses whitespace, drops chunks shorter than minChars and
// removes exact duplicates keeping the first occurrence.
func Normalize(chunks []string, minChars int) []string {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		n := strings.TrimSpace(whitespaceRe.ReplaceAllString(c, " "))
		if len([]rune(n)) < minChars {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Pack formats chunks as labeled blocks and stops at the first block that
// would push the total over budget characters.
func Pack(chunks []string, budget int) string {
	var b strings.Builder
	total := 0
	for i, c := range chunks {
		block := fmt.Sprintf("[Chunk %d]\n%s\n", i+1, c)
		size := len([]rune(block))
		if total+size > budget {
			break
		}
		b.WriteString(block)
		total += size
	}
	return b.String()
}
