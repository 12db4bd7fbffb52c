// Package indexer walks conversation logs and keeps the vector store in
// sync with them.
//
// Logs are append-only JSONL files, so incremental runs resume from the
// per-file byte offset recorded after the previous run. State is persisted
// only after vectors are durably written; a crash between the two at worst
// reprocesses lines whose point IDs are deterministic, so no duplicates
// appear.
package indexer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/recallmcp/recall/internal/embed"
	"github.com/recallmcp/recall/internal/extract"
	"github.com/recallmcp/recall/internal/state"
	"github.com/recallmcp/recall/internal/vecstore"
)

// DefaultBatchSize is the number of records embedded and upserted per flush.
const DefaultBatchSize = 64

// Config contains configuration for the indexer.
type Config struct {
	BatchSize int          // Records per embed/upsert flush (default: DefaultBatchSize)
	Logger    *slog.Logger // Defaults to slog.Default()
}

// Summary reports the outcome of one indexing run.
type Summary struct {
	Project        string
	FilesProcessed int      // Files with new content consumed
	RecordsIndexed int      // Records embedded and upserted
	RecordsSkipped int      // Lines consumed that produced no record
	Errors         []string // Per-file failures; the run continues past them
	Duration       time.Duration
}

// Indexer coordinates the pipeline: read new lines, extract, embed, upsert,
// then commit state.
type Indexer struct {
	states   *state.Store
	store    vecstore.Store
	embedder embed.Embedder
	logsDir  string

	batchSize int
	logger    *slog.Logger
	locks     *projectLocks
}

// New creates an Indexer. logsDir is the root holding one subdirectory of
// JSONL files per project.
func New(states *state.Store, store vecstore.Store, embedder embed.Embedder, logsDir string, cfg *Config) *Indexer {
	batchSize := DefaultBatchSize
	logger := slog.Default()
	if cfg != nil {
		if cfg.BatchSize > 0 {
			batchSize = cfg.BatchSize
		}
		if cfg.Logger != nil {
			logger = cfg.Logger
		}
	}
	return &Indexer{
		states:    states,
		store:     store,
		embedder:  embedder,
		logsDir:   logsDir,
		batchSize: batchSize,
		logger:    logger,
		locks:     newProjectLocks(),
	}
}

// Index brings the project's collection up to date with its log files.
// With full set, the collection is dropped and every file is reprocessed
// from the start. Concurrent runs for the same project serialize; different
// projects proceed in parallel.
func (idx *Indexer) Index(ctx context.Context, project string, full bool) (*Summary, error) {
	if project == "" {
		return nil, fmt.Errorf("project is required")
	}

	lock := idx.locks.get(project)
	lock.Lock()
	defer lock.Unlock()

	fileLock := NewFileLock(idx.states.LockPath(project))
	if err := fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("lock project %s: %w", project, err)
	}
	defer func() {
		if err := fileLock.Unlock(); err != nil {
			idx.logger.Warn("failed to release index lock", "project", project, "error", err)
		}
	}()

	start := time.Now()
	summary := &Summary{Project: project}

	ps, err := idx.states.Load(project)
	if err != nil {
		return nil, fmt.Errorf("load state for %s: %w", project, err)
	}

	if full {
		if err := idx.store.DropCollection(ctx, ps.Collection); err != nil {
			return nil, fmt.Errorf("drop collection %s: %w", ps.Collection, err)
		}
		ps = &state.ProjectState{
			Version:    state.SchemaVersion,
			Collection: state.CollectionName(project),
			Files:      make(map[string]*state.FileState),
		}
		if err := idx.states.Save(project, ps); err != nil {
			return nil, fmt.Errorf("reset state for %s: %w", project, err)
		}
	}

	if err := idx.store.EnsureCollection(ctx, ps.Collection, idx.embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", ps.Collection, err)
	}

	files, err := idx.logFiles(project)
	if err != nil {
		return nil, err
	}

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		indexed, skipped, err := idx.indexFile(ctx, project, ps.Collection, path)
		summary.RecordsIndexed += indexed
		summary.RecordsSkipped += skipped
		if err != nil {
			// A partially indexed file is safe: state covers exactly the
			// flushed lines, so the next run resumes there.
			idx.logger.Warn("indexing file failed", "project", project, "file", path, "error", err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if indexed > 0 || skipped > 0 {
			summary.FilesProcessed++
		}
	}

	summary.Duration = time.Since(start)
	idx.logger.Info("index run complete",
		"project", project,
		"full", full,
		"files", summary.FilesProcessed,
		"indexed", summary.RecordsIndexed,
		"skipped", summary.RecordsSkipped,
		"errors", len(summary.Errors),
		"duration", summary.Duration)
	return summary, nil
}

// logFiles lists the project's JSONL files in stable order.
func (idx *Indexer) logFiles(project string) ([]string, error) {
	dir := filepath.Join(idx.logsDir, project)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project directory %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// indexFile processes all complete new lines of one file and commits state
// after each flushed batch.
func (idx *Indexer) indexFile(ctx context.Context, project, collection, path string) (indexed, skipped int, err error) {
	ps, err := idx.states.Load(project)
	if err != nil {
		return 0, 0, err
	}
	fs := ps.File(path)
	offset := fs.Offset
	lineNo := fs.LineCount

	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("stat: %w", err)
	}

	// A file shorter than its recorded offset was truncated or replaced.
	// Restart it from the beginning; deterministic point IDs make the
	// overlapping lines overwrite their old points.
	if info.Size() < offset {
		idx.logger.Info("file shrank, reindexing from start", "file", path, "size", info.Size(), "offset", offset)
		if err := idx.states.ResetFile(project, path); err != nil {
			return 0, 0, fmt.Errorf("reset state: %w", err)
		}
		offset = 0
		lineNo = 0
	}
	if info.Size() == offset {
		return 0, 0, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, 0, fmt.Errorf("seek: %w", err)
	}

	reader := bufio.NewReader(f)
	var batch []extract.Record

	flush := func() error {
		added := len(batch)
		if added > 0 {
			if err := idx.upsertBatch(ctx, project, collection, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
		if err := idx.states.UpdateFile(project, path, offset, lineNo, added); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}
		indexed += added
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return indexed, skipped, err
		}

		line, readErr := reader.ReadString('\n')
		if readErr == io.EOF {
			// A trailing fragment without a newline may still be mid-write.
			// Leave it unconsumed; the next run picks it up once complete.
			break
		}
		if readErr != nil {
			return indexed, skipped, fmt.Errorf("read: %w", readErr)
		}

		offset += int64(len(line))
		lineNo++

		rec, ok := extract.ParseLine([]byte(line), path, lineNo)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, rec)

		if len(batch) >= idx.batchSize {
			if err := flush(); err != nil {
				return indexed, skipped, err
			}
		}
	}

	if err := flush(); err != nil {
		return indexed, skipped, err
	}
	return indexed, skipped, nil
}

// upsertBatch embeds a batch and writes it to the vector store. State is
// only advanced by the caller after this returns, so vectors are always
// durable before the offset that covers them.
func (idx *Indexer) upsertBatch(ctx context.Context, project, collection string, batch []extract.Record) error {
	texts := make([]string, len(batch))
	for i, r := range batch {
		texts[i] = embed.Truncate(r.Text)
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch of %d: %w", len(batch), err)
	}

	points := make([]vecstore.Point, len(batch))
	for i, r := range batch {
		points[i] = vecstore.Point{
			ID:     vecstore.PointID(r.FilePath, r.Line),
			Vector: vectors[i],
			Payload: vecstore.Payload{
				Project:   project,
				FilePath:  r.FilePath,
				Line:      r.Line,
				Role:      string(r.Role),
				Preview:   vecstore.MakePreview(r.Text),
				SessionID: r.SessionID,
				Timestamp: r.Timestamp,
			},
		}
	}

	if err := idx.store.Upsert(ctx, collection, points); err != nil {
		return fmt.Errorf("upsert batch of %d: %w", len(points), err)
	}
	return nil
}

// Status describes a project's committed index.
type Status struct {
	Project      string
	Collection   string
	FilesTracked int
	TotalIndexed int
	VectorCount  int
}

// Status reports the committed index state for a project. VectorCount is 0
// when the collection does not exist yet.
func (idx *Indexer) Status(ctx context.Context, project string) (*Status, error) {
	stats, err := idx.states.Stats(project)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Project:      stats.Project,
		Collection:   stats.Collection,
		FilesTracked: stats.FilesTracked,
		TotalIndexed: stats.TotalIndexed,
	}

	count, err := idx.store.Count(ctx, stats.Collection)
	if err != nil && !errors.Is(err, vecstore.ErrCollectionNotFound) {
		return nil, err
	}
	st.VectorCount = count
	return st, nil
}

// Projects lists project directories under the logs root that contain at
// least one JSONL file.
func (idx *Indexer) Projects() ([]string, error) {
	entries, err := os.ReadDir(idx.logsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read logs directory %s: %w", idx.logsDir, err)
	}

	var projects []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := idx.logFiles(e.Name())
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			projects = append(projects, e.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}
