package domain

import "context"

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Oracle is the nearest-neighbor store the pipeline queries and ingests into.
// Query returns at most k candidates in ascending distance order.
// Upsert is idempotent per record id.
type Oracle interface {
	Name() string
	Query(ctx context.Context, text string, k int) ([]Candidate, error)
	Upsert(ctx context.Context, records []TaggedRecord) error
}

// Generator is an opaque text-completion model. It may fail.
type Generator interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Pruner is implemented by oracles that can drop records by id.
// Unknown ids are ignored.
type Pruner interface {
	Delete(ctx context.Context, ids []string) error
}
