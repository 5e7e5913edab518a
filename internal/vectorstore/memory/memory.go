// Package memory is an in-process oracle using brute-force cosine distance.
package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"rolerag/internal/domain"
)

var (
	_ domain.Oracle = (*Oracle)(nil)
	_ domain.Pruner = (*Oracle)(nil)
)

type entry struct {
	record domain.TaggedRecord
	vector []float64
}

// Oracle keeps records in insertion order. Corpus-dependent embedders are
// re-prepared on the first query after an upsert, and every vector is rebuilt.
type Oracle struct {
	embedder domain.Embedder

	mu      sync.RWMutex
	order   []string
	entries map[string]*entry
	dirty   bool
}

// New creates an empty oracle backed by embedder.
func New(embedder domain.Embedder) *Oracle {
	return &Oracle{embedder: embedder, entries: make(map[string]*entry)}
}

func (o *Oracle) Name() string { return "memory" }

// Len returns the number of stored records.
func (o *Oracle) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.order)
}

// Upsert stores records, replacing any with the same id in place.
func (o *Oracle) Upsert(_ context.Context, records []domain.TaggedRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			return errors.New("record without id")
		}
		if e, ok := o.entries[r.ID]; ok {
			e.record = r
			e.vector = nil
		} else {
			o.entries[r.ID] = &entry{record: r}
			o.order = append(o.order, r.ID)
		}
		o.dirty = true
	}
	return nil
}

// Delete drops the records with the given ids.
func (o *Oracle) Delete(_ context.Context, ids []string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := o.entries[id]; ok {
			drop[id] = struct{}{}
			delete(o.entries, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := o.order[:0]
	for _, id := range o.order {
		if _, ok := drop[id]; !ok {
			kept = append(kept, id)
		}
	}
	o.order = kept
	o.dirty = true
	return nil
}

// Query returns up to k records closest to text, ascending by 1 - cosine.
func (o *Oracle) Query(ctx context.Context, text string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	if err := o.refresh(ctx); err != nil {
		return nil, err
	}
	if o.Len() == 0 {
		return nil, nil
	}
	q, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	o.mu.RLock()
	out := make([]domain.Candidate, 0, len(o.order))
	for _, id := range o.order {
		e := o.entries[id]
		out = append(out, domain.Candidate{
			ID:       e.record.ID,
			Text:     e.record.Text,
			Metadata: e.record.Metadata,
			Distance: 1 - cosine(q, e.vector),
		})
	}
	o.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (o *Oracle) refresh(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.dirty {
		return nil
	}
	if len(o.order) == 0 {
		o.dirty = false
		return nil
	}
	corpus := make([]string, len(o.order))
	for i, id := range o.order {
		corpus[i] = o.entries[id].record.Text
	}
	if err := o.embedder.Prepare(corpus); err != nil {
		return fmt.Errorf("prepare %s: %w", o.embedder.Name(), err)
	}
	for i, id := range o.order {
		vec, err := o.embedder.Embed(ctx, corpus[i])
		if err != nil {
			return fmt.Errorf("embed %s: %w", id, err)
		}
		o.entries[id].vector = vec
	}
	o.dirty = false
	return nil
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
