package chunker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rolerag/internal/domain"
)

// fileChunk is the persisted shape of a chunk; absent headings are JSON null.
type fileChunk struct {
	Section       *string  `json:"section"`
	Subsection    *string  `json:"subsection"`
	Subsubsection *string  `json:"subsubsection"`
	Content       []string `json:"content"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Marshal encodes chunks as an indented JSON array without HTML escaping.
func Marshal(chunks []domain.Chunk) ([]byte, error) {
	out := make([]fileChunk, len(chunks))
	for i, c := range chunks {
		content := c.Content
		if content == nil {
			content = []string{}
		}
		out[i] = fileChunk{
			Section:       optional(c.Section),
			Subsection:    optional(c.Subsection),
			Subsubsection: optional(c.Subsubsection),
			Content:       content,
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a chunk file. A single object is accepted as a one-element array.
func Unmarshal(data []byte) ([]domain.Chunk, error) {
	trimmed := bytes.TrimSpace(data)
	var raw []fileChunk
	switch {
	case len(trimmed) > 0 && trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedChunkFile, err)
		}
	case len(trimmed) > 0 && trimmed[0] == '{':
		var one fileChunk
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedChunkFile, err)
		}
		raw = []fileChunk{one}
	default:
		return nil, fmt.Errorf("%w: expected JSON array or object", domain.ErrMalformedChunkFile)
	}
	chunks := make([]domain.Chunk, len(raw))
	for i, fc := range raw {
		chunks[i] = domain.Chunk{
			Section:       deref(fc.Section),
			Subsection:    deref(fc.Subsection),
			Subsubsection: deref(fc.Subsubsection),
			Content:       fc.Content,
		}
	}
	return chunks, nil
}

// WriteFile persists chunks to path, creating parent directories.
func WriteFile(path string, chunks []domain.Chunk) error {
	data, err := Marshal(chunks)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile loads a persisted chunk file.
func ReadFile(path string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	chunks, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return chunks, nil
}
