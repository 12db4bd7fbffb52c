// Package state persists per-project indexing progress.
//
// Each project owns one state.json under <baseDir>/<project>/ recording, per
// conversation file, the byte offset fully processed and the number of
// logical lines consumed. Saves are atomic (write-to-temp-then-rename) so a
// concurrent reader never observes a half-written record.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// SchemaVersion marks the on-disk state format. Readers default unknown or
// missing fields rather than failing, so bumps are forward-readable.
const SchemaVersion = 1

// FileState tracks indexing progress for a single conversation file.
type FileState struct {
	// Offset is the byte offset up to which the file has been fully
	// processed. Monotonically non-decreasing except on truncation reset.
	Offset int64 `json:"offset"`

	// LineCount is the number of physical lines consumed up to Offset.
	// Line numbers for newly appended content continue from here.
	LineCount int `json:"line_count"`

	// IndexedCount is the cumulative number of records embedded from this
	// file.
	IndexedCount int `json:"indexed_count"`

	LastIndexed time.Time `json:"last_indexed,omitzero"`
}

// ProjectState is the unit of persistence: one per project, read and written
// atomically.
type ProjectState struct {
	Version    int                   `json:"version"`
	Collection string                `json:"collection"`
	Files      map[string]*FileState `json:"files"`
}

// File returns the state for path, creating an empty entry if absent.
func (ps *ProjectState) File(path string) *FileState {
	if ps.Files == nil {
		ps.Files = make(map[string]*FileState)
	}
	fs, ok := ps.Files[path]
	if !ok {
		fs = &FileState{}
		ps.Files[path] = fs
	}
	return fs
}

// Stats summarizes a project's indexing progress.
type Stats struct {
	Project      string
	Collection   string
	FilesTracked int
	TotalIndexed int
}

// Store manages state files under a base directory. Saves for the same
// project serialize; different projects never contend.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at baseDir. The directory is created
// lazily on first save.
func NewStore(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// BaseDir returns the state root directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// ProjectDir returns the state directory for a project.
func (s *Store) ProjectDir(project string) string {
	return filepath.Join(s.baseDir, Sanitize(project))
}

// LockPath returns the cross-process lock file guarding a project's indexing.
func (s *Store) LockPath(project string) string {
	return filepath.Join(s.ProjectDir(project), ".index.lock")
}

func (s *Store) statePath(project string) string {
	return filepath.Join(s.ProjectDir(project), "state.json")
}

// projectLock returns the in-process mutex serializing saves for one project.
func (s *Store) projectLock(project string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[project]
	if !ok {
		l = &sync.Mutex{}
		s.locks[project] = l
	}
	return l
}

// Load reads a project's state, returning a fresh default when none exists.
// A missing project is never an error.
func (s *Store) Load(project string) (*ProjectState, error) {
	data, err := os.ReadFile(s.statePath(project))
	if os.IsNotExist(err) {
		return defaultState(project), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state for %s: %w", project, err)
	}

	ps := &ProjectState{}
	if err := json.Unmarshal(data, ps); err != nil {
		return nil, fmt.Errorf("parse state for %s: %w", project, err)
	}
	if ps.Collection == "" {
		ps.Collection = CollectionName(project)
	}
	if ps.Files == nil {
		ps.Files = make(map[string]*FileState)
	}
	return ps, nil
}

// Save atomically replaces a project's persisted state. The temp file lands
// in the same directory so the rename never crosses filesystems.
func (s *Store) Save(project string, ps *ProjectState) error {
	lock := s.projectLock(project)
	lock.Lock()
	defer lock.Unlock()
	return s.saveLocked(project, ps)
}

func (s *Store) saveLocked(project string, ps *ProjectState) error {
	dir := s.ProjectDir(project)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir for %s: %w", project, err)
	}

	ps.Version = SchemaVersion
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state for %s: %w", project, err)
	}

	tmp, err := os.CreateTemp(dir, "state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp state for %s: %w", project, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state for %s: %w", project, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state for %s: %w", project, err)
	}
	if err := os.Rename(tmpName, s.statePath(project)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state for %s: %w", project, err)
	}
	return nil
}

// UpdateFile records progress for one file after its records have been
// durably upserted: load-modify-save under the project lock so interleaved
// per-file updates from the same process never lose each other's writes.
func (s *Store) UpdateFile(project, path string, offset int64, lineCount, added int) error {
	lock := s.projectLock(project)
	lock.Lock()
	defer lock.Unlock()

	ps, err := s.Load(project)
	if err != nil {
		return err
	}
	fs := ps.File(path)
	fs.Offset = offset
	fs.LineCount = lineCount
	fs.IndexedCount += added
	fs.LastIndexed = time.Now().UTC()
	return s.saveLocked(project, ps)
}

// ResetFile zeroes a file's recorded progress and persists the reset. Used
// when a file is found shorter than its recorded offset; the cumulative
// indexed count must restart with the file or status totals drift from the
// vector count.
func (s *Store) ResetFile(project, path string) error {
	lock := s.projectLock(project)
	lock.Lock()
	defer lock.Unlock()

	ps, err := s.Load(project)
	if err != nil {
		return err
	}
	fs := ps.File(path)
	fs.Offset = 0
	fs.LineCount = 0
	fs.IndexedCount = 0
	return s.saveLocked(project, ps)
}

// ListProjects returns every project with persisted state, sorted.
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list state dir: %w", err)
	}

	var projects []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.baseDir, e.Name(), "state.json")); err == nil {
			projects = append(projects, e.Name())
		}
	}
	sort.Strings(projects)
	return projects, nil
}

// Stats aggregates a project's per-file progress.
func (s *Store) Stats(project string) (*Stats, error) {
	ps, err := s.Load(project)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		Project:      project,
		Collection:   ps.Collection,
		FilesTracked: len(ps.Files),
	}
	for _, fs := range ps.Files {
		st.TotalIndexed += fs.IndexedCount
	}
	return st, nil
}

// CollectionName derives the vector collection identifier for a project.
func CollectionName(project string) string {
	name := strings.ReplaceAll(Sanitize(project), "-", "_")
	return "recall_" + strings.TrimLeft(name, "_")
}

func defaultState(project string) *ProjectState {
	return &ProjectState{
		Version:    SchemaVersion,
		Collection: CollectionName(project),
		Files:      make(map[string]*FileState),
	}
}

// Sanitize makes a project identifier safe to use as a directory name. It is
// idempotent, so callers can key lookups on it regardless of whether a name
// came from the logs directory or the state directory.
func Sanitize(project string) string {
	return strings.TrimLeft(strings.ReplaceAll(project, "/", "-"), "-")
}
