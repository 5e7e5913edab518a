package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rolerag/internal/chunker"
	"rolerag/internal/domain"
	"rolerag/internal/logging"
	"rolerag/internal/tagger"
)

const (
	DefaultWorkers   = 4
	DefaultBatchSize = 64
)

// ChunkFile is one discovered chunk file and the department that owns it.
type ChunkFile struct {
	Department string
	Path       string
}

// Skipped records a chunk file that was not ingested.
type Skipped struct {
	Path string
	Err  error
}

// Report summarizes one ingestion pass.
type Report struct {
	Processed []string
	Skipped   []Skipped
	Records   int
}

type Options struct {
	Workers   int
	BatchSize int
	Logger    *zap.Logger
}

// Pipeline tags chunk files and upserts the records.
type Pipeline struct {
	tagger    *tagger.Tagger
	oracle    domain.Oracle
	workers   int
	batchSize int
	log       *zap.Logger

	mu     sync.Mutex
	counts map[string]int // chunk file path -> records last tagged from it
}

func NewPipeline(t *tagger.Tagger, oracle domain.Oracle, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Pipeline{
		tagger:    t,
		oracle:    oracle,
		workers:   opts.Workers,
		batchSize: opts.BatchSize,
		log:       logging.OrNop(opts.Logger),
		counts:    make(map[string]int),
	}
}

// Discover lists <dataDir>/<dept>/chunked_reports/*.json ordered by department, then file name.
func Discover(dataDir string) ([]ChunkFile, error) {
	matches, err := filepath.Glob(filepath.Join(dataDir, "*", ChunkDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("discover chunk files: %w", err)
	}
	files := make([]ChunkFile, 0, len(matches))
	for _, m := range matches {
		files = append(files, ChunkFile{Department: departmentOf(m), Path: m})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Department != files[j].Department {
			return files[i].Department < files[j].Department
		}
		return filepath.Base(files[i].Path) < filepath.Base(files[j].Path)
	})
	return files, nil
}

// departmentOf returns <dept> for <dataDir>/<dept>/chunked_reports/<file>.json.
func departmentOf(chunkPath string) string {
	return filepath.Base(filepath.Dir(filepath.Dir(chunkPath)))
}

type fileResult struct {
	records []domain.TaggedRecord
	err     error
}

// Collect tags every chunk file under dataDir. Files are processed concurrently
// but the records come back in Discover order. Bad files are skipped and logged.
func (p *Pipeline) Collect(ctx context.Context, dataDir string) ([]domain.TaggedRecord, Report, error) {
	files, err := Discover(dataDir)
	if err != nil {
		return nil, Report{}, err
	}

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := p.tagFile(f)
			results[i] = fileResult{records: recs, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Report{}, err
	}

	var (
		report  Report
		records []domain.TaggedRecord
	)
	for i, r := range results {
		path := files[i].Path
		if r.err != nil {
			p.log.Error("skipping chunk file",
				zap.String("path", path),
				zap.String("department", files[i].Department),
				zap.Error(r.err))
			report.Skipped = append(report.Skipped, Skipped{Path: path, Err: r.err})
			continue
		}
		report.Processed = append(report.Processed, path)
		records = append(records, r.records...)
		p.remember(path, len(r.records))
	}
	report.Records = len(records)
	return records, report, nil
}

// Run collects every record under dataDir and upserts them in batches.
func (p *Pipeline) Run(ctx context.Context, dataDir string) (Report, error) {
	records, report, err := p.Collect(ctx, dataDir)
	if err != nil {
		return report, err
	}
	if err := p.upsert(ctx, records); err != nil {
		return report, err
	}
	p.log.Info("ingestion complete",
		zap.String("oracle", p.oracle.Name()),
		zap.Int("files", len(report.Processed)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("records", report.Records))
	return report, nil
}

// IngestFile tags and upserts a single chunk file. When the file now yields
// fewer chunks than last time, the trailing records are deleted from oracles
// that support it.
func (p *Pipeline) IngestFile(ctx context.Context, chunkPath string) (int, error) {
	dept := departmentOf(chunkPath)
	recs, err := p.tagFile(ChunkFile{Department: dept, Path: chunkPath})
	if err != nil {
		return 0, err
	}
	if err := p.upsert(ctx, recs); err != nil {
		return 0, err
	}
	if prev := p.remember(chunkPath, len(recs)); prev > len(recs) {
		if err := p.prune(ctx, dept, chunkPath, len(recs), prev); err != nil {
			return len(recs), err
		}
	}
	return len(recs), nil
}

// RemoveFile deletes every record previously ingested from chunkPath.
func (p *Pipeline) RemoveFile(ctx context.Context, chunkPath string) error {
	p.mu.Lock()
	prev := p.counts[chunkPath]
	delete(p.counts, chunkPath)
	p.mu.Unlock()
	if prev == 0 {
		return nil
	}
	return p.prune(ctx, departmentOf(chunkPath), chunkPath, 0, prev)
}

// remember stores the record count of chunkPath and returns the previous one.
func (p *Pipeline) remember(chunkPath string, n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.counts[chunkPath]
	p.counts[chunkPath] = n
	return prev
}

// prune deletes the records with indexes [from, to) of chunkPath.
func (p *Pipeline) prune(ctx context.Context, dept, chunkPath string, from, to int) error {
	pr, ok := p.oracle.(domain.Pruner)
	if !ok {
		p.log.Warn("oracle cannot delete stale records",
			zap.String("oracle", p.oracle.Name()),
			zap.String("path", chunkPath),
			zap.Int("stale", to-from))
		return nil
	}
	ids := make([]string, 0, to-from)
	for i := from; i < to; i++ {
		ids = append(ids, tagger.RecordID(dept, chunkPath, i))
	}
	if err := pr.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete stale records from %s: %w", p.oracle.Name(), err)
	}
	p.log.Debug("deleted stale records", zap.String("path", chunkPath), zap.Int("count", len(ids)))
	return nil
}

func (p *Pipeline) tagFile(f ChunkFile) ([]domain.TaggedRecord, error) {
	chunks, err := chunker.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return p.tagger.TagAll(chunks, f.Department, f.Path)
}

func (p *Pipeline) upsert(ctx context.Context, records []domain.TaggedRecord) error {
	for start := 0; start < len(records); start += p.batchSize {
		end := min(start+p.batchSize, len(records))
		if err := p.oracle.Upsert(ctx, records[start:end]); err != nil {
			return fmt.Errorf("upsert into %s: %w", p.oracle.Name(), err)
		}
	}
	return nil
}
