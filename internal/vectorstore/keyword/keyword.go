// Package keyword is a lexical oracle over an in-memory bleve index.
package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"rolerag/internal/domain"
)

var (
	_ domain.Oracle = (*Oracle)(nil)
	_ domain.Pruner = (*Oracle)(nil)
)

const (
	fieldText     = "text"
	fieldRecordID = "record_id"
	fieldMeta     = "metadata"
)

// Oracle ranks records by bleve match score. Scores are unbounded and depend on
// corpus size, so distance is measured against the best hit of the same search:
// the top hit sits at 0 and a hit scoring half as well sits at 0.5.
type Oracle struct {
	index bleve.Index
}

// New creates an empty in-memory index.
func New() (*Oracle, error) {
	idx, err := bleve.NewMemOnly(indexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Oracle{index: idx}, nil
}

func indexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Store = true
	text.Index = true

	id := bleve.NewTextFieldMapping()
	id.Store = true
	id.Index = true
	id.Analyzer = "keyword"
	id.IncludeInAll = false

	// metadata is kept as one JSON blob so boolean role flags round-trip
	meta := bleve.NewTextFieldMapping()
	meta.Store = true
	meta.Index = false
	meta.IncludeInAll = false

	docMapping.AddFieldMappingsAt(fieldText, text)
	docMapping.AddFieldMappingsAt(fieldRecordID, id)
	docMapping.AddFieldMappingsAt(fieldMeta, meta)
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func (o *Oracle) Name() string { return "keyword" }

// Len returns the number of indexed records.
func (o *Oracle) Len() int {
	n, err := o.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

func (o *Oracle) Close() error { return o.index.Close() }

// Upsert indexes records under their ids; re-indexing an id replaces it.
func (o *Oracle) Upsert(_ context.Context, records []domain.TaggedRecord) error {
	batch := o.index.NewBatch()
	for _, r := range records {
		meta, err := json.Marshal(r.Metadata.Compact())
		if err != nil {
			return fmt.Errorf("encode metadata of %s: %w", r.ID, err)
		}
		doc := map[string]any{
			fieldText:     r.Text,
			fieldRecordID: r.ID,
			fieldMeta:     string(meta),
		}
		if err := batch.Index(r.ID, doc); err != nil {
			return err
		}
	}
	return o.index.Batch(batch)
}

func (o *Oracle) Delete(_ context.Context, ids []string) error {
	batch := o.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return o.index.Batch(batch)
}

func (o *Oracle) Query(_ context.Context, text string, k int) ([]domain.Candidate, error) {
	text = strings.TrimSpace(text)
	if k <= 0 || text == "" {
		return nil, nil
	}
	q := bleve.NewMatchQuery(text)
	q.SetField(fieldText)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"*"}

	res, err := o.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]domain.Candidate, 0, len(res.Hits))
	for _, h := range res.Hits {
		c := domain.Candidate{
			ID:       h.ID,
			Distance: scoreDistance(h.Score, res.MaxScore),
		}
		if s, ok := h.Fields[fieldText].(string); ok {
			c.Text = s
		}
		if s, ok := h.Fields[fieldMeta].(string); ok && s != "" {
			if err := json.Unmarshal([]byte(s), &c.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of %s: %w", h.ID, err)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func scoreDistance(score, best float64) float64 {
	if best <= 0 || score <= 0 {
		return 1
	}
	return 1 - math.Min(score/best, 1)
}
