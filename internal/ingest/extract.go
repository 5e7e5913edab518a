// Package ingest turns department markdown into chunk files and loads them into an oracle.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"rolerag/internal/chunker"
	"rolerag/internal/logging"
)

// ChunkDir is the per-department directory holding chunk files.
const ChunkDir = "chunked_reports"

// ChunkFilePath maps <dept>/<stem>.md to <dept>/chunked_reports/<stem>.json.
func ChunkFilePath(mdPath string) string {
	base := filepath.Base(mdPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(mdPath), ChunkDir, stem+".json")
}

// Extractor segments markdown reports into chunk files.
type Extractor struct {
	seg *chunker.Segmenter
	log *zap.Logger
}

func NewExtractor(log *zap.Logger) *Extractor {
	return &Extractor{seg: chunker.NewSegmenter(), log: logging.OrNop(log)}
}

// Run extracts every <dataDir>/<dept>/*.md and returns the chunk files written.
// A file that cannot be read is logged and skipped.
func (e *Extractor) Run(ctx context.Context, dataDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, "*", "*.md"))
	if err != nil {
		return nil, fmt.Errorf("discover markdown: %w", err)
	}
	sort.Strings(matches)

	written := make([]string, 0, len(matches))
	for _, md := range matches {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		out, n, err := e.ExtractFile(md)
		if err != nil {
			e.log.Error("skipping markdown file", zap.String("path", md), zap.Error(err))
			continue
		}
		e.log.Info("extracted", zap.String("path", md), zap.String("chunk_file", out), zap.Int("chunks", n))
		written = append(written, out)
	}
	return written, nil
}

// ExtractFile segments one markdown file and writes its chunk file.
func (e *Extractor) ExtractFile(mdPath string) (string, int, error) {
	chunks, err := e.seg.SegmentFile(mdPath)
	if err != nil {
		return "", 0, fmt.Errorf("segment %s: %w", mdPath, err)
	}
	out := ChunkFilePath(mdPath)
	if err := chunker.WriteFile(out, chunks); err != nil {
		return "", 0, err
	}
	return out, len(chunks), nil
}
