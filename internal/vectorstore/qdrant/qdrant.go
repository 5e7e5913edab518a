// Package qdrant is an oracle backed by the Qdrant REST API.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"rolerag/internal/domain"
)

var (
	_ domain.Oracle = (*Oracle)(nil)
	_ domain.Pruner = (*Oracle)(nil)
)

const (
	payloadText     = "text"
	payloadRecordID = "record_id"
	payloadMeta     = "metadata"
)

// Oracle embeds records client-side and stores them as points with cosine distance.
// The collection is created on the first upsert.
type Oracle struct {
	url        string
	apiKey     string
	collection string
	embedder   domain.Embedder
	client     *http.Client

	mu      sync.Mutex
	created bool
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func New(cfg Config, embedder domain.Embedder) *Oracle {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Oracle{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		embedder:   embedder,
		client:     &http.Client{Timeout: timeout},
	}
}

func (o *Oracle) Name() string { return "qdrant" }

// PointID maps a record id to a stable point UUID, since Qdrant only accepts
// unsigned integers and UUIDs as ids.
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func (o *Oracle) Upsert(ctx context.Context, records []domain.TaggedRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]map[string]any, len(records))
	for i, r := range records {
		vec, err := o.embedder.Embed(ctx, r.Text)
		if err != nil {
			return fmt.Errorf("embed %s: %w", r.ID, err)
		}
		if i == 0 {
			if err := o.ensureCollection(ctx, len(vec)); err != nil {
				return err
			}
		}
		points[i] = map[string]any{
			"id":     PointID(r.ID),
			"vector": vec,
			"payload": map[string]any{
				payloadText:     r.Text,
				payloadRecordID: r.ID,
				payloadMeta:     r.Metadata.Compact(),
			},
		}
	}
	body := map[string]any{"points": points}
	return o.send(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s/points?wait=true", o.url, o.collection), body, nil)
}

// Delete removes the points of the given record ids.
func (o *Oracle) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}
	body := map[string]any{"points": points}
	return o.send(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", o.url, o.collection), body, nil)
}

func (o *Oracle) Query(ctx context.Context, text string, k int) ([]domain.Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := o.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				Text     string          `json:"text"`
				RecordID string          `json:"record_id"`
				Metadata domain.Metadata `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := o.send(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", o.url, o.collection), req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.Candidate{
			ID:       r.Payload.RecordID,
			Text:     r.Payload.Text,
			Metadata: r.Payload.Metadata,
			Distance: 1 - r.Score,
		})
	}
	return out, nil
}

// Clear drops the collection.
func (o *Oracle) Clear(ctx context.Context) error {
	o.mu.Lock()
	o.created = false
	o.mu.Unlock()
	return o.send(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", o.url, o.collection), nil, nil)
}

func (o *Oracle) ensureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.created {
		return nil
	}
	url := fmt.Sprintf("%s/collections/%s", o.url, o.collection)
	err := o.send(ctx, http.MethodGet, url, nil, nil)
	var se *statusError
	switch {
	case err == nil:
	case errors.As(err, &se) && se.code == http.StatusNotFound:
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		if err := o.send(ctx, http.MethodPut, url, body, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	default:
		return err
	}
	o.created = true
	return nil
}

type statusError struct {
	method, url string
	code        int
	status      string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (o *Oracle) send(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if o.apiKey != "" {
		req.Header.Set("api-key", o.apiKey)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
