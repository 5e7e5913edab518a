package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"rolerag/internal/logging"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher re-extracts changed markdown and re-ingests changed chunk files
// under a data directory, once events have been quiet for the debounce period.
type Watcher struct {
	extractor *Extractor
	pipeline  *Pipeline
	dataDir   string
	fsw       *fsnotify.Watcher
	debounce  time.Duration
	log       *zap.Logger
	onFlush   func(Report)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.log = logging.OrNop(l) }
}

// WithOnFlush registers a callback run after each debounced batch.
func WithOnFlush(fn func(Report)) WatcherOption {
	return func(w *Watcher) { w.onFlush = fn }
}

func NewWatcher(ex *Extractor, p *Pipeline, dataDir string, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		extractor: ex,
		pipeline:  p,
		dataDir:   dataDir,
		fsw:       fsw,
		debounce:  defaultDebounce,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if err := addRecursive(fsw, dataDir); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()
}

// Stop cancels the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.fsw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	pending := make(map[string]struct{})
	var timer *time.Timer
	timerC := func() <-chan time.Time {
		if timer == nil {
			return nil
		}
		return timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addRecursive(w.fsw, ev.Name)
					continue
				}
			}
			if !w.relevant(ev) {
				continue
			}
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-timerC():
			timer = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			pending = make(map[string]struct{})
			sort.Strings(paths)
			w.flush(ctx, paths)
		}
	}
}

func (w *Watcher) flush(ctx context.Context, paths []string) {
	var report Report
	ingested := make(map[string]struct{})
	ingest := func(chunkPath string) {
		if _, done := ingested[chunkPath]; done {
			return
		}
		ingested[chunkPath] = struct{}{}
		n, err := w.pipeline.IngestFile(ctx, chunkPath)
		if err != nil {
			w.log.Error("skipping chunk file", zap.String("path", chunkPath), zap.Error(err))
			report.Skipped = append(report.Skipped, Skipped{Path: chunkPath, Err: err})
			return
		}
		report.Processed = append(report.Processed, chunkPath)
		report.Records += n
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			// a removed chunk file takes its records with it; a removed .md
			// leaves its chunk file, and so its records, in place
			if strings.EqualFold(filepath.Ext(p), ".json") {
				if err := w.pipeline.RemoveFile(ctx, p); err != nil {
					w.log.Error("removing records failed", zap.String("path", p), zap.Error(err))
				}
			}
			continue
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".md":
			out, _, err := w.extractor.ExtractFile(p)
			if err != nil {
				w.log.Error("skipping markdown file", zap.String("path", p), zap.Error(err))
				continue
			}
			ingest(out)
		case ".json":
			ingest(p)
		}
	}
	w.log.Info("watcher reingested",
		zap.Int("files", len(report.Processed)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("records", report.Records))
	if w.onFlush != nil {
		w.onFlush(report)
	}
}

// relevant accepts <dataDir>/<dept>/*.md and <dataDir>/<dept>/chunked_reports/*.json.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	rel, err := filepath.Rel(w.dataDir, ev.Name)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	ext := strings.ToLower(filepath.Ext(ev.Name))
	switch {
	case len(parts) == 2 && ext == ".md":
		return true
	case len(parts) == 3 && parts[1] == ChunkDir && ext == ".json":
		return true
	}
	return false
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return nil
			}
		}
		return nil
	})
}
