package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/banshee-data/geko/internal/fsutil"
	"github.com/banshee-data/geko/internal/monitoring"
	"github.com/banshee-data/geko/internal/timeutil"
)

// Extension is the canonical checkpoint file extension.
const Extension = ".gck"

// ResolvePath appends Extension when path does not already carry it.
func ResolvePath(path string) string {
	if strings.HasSuffix(path, Extension) {
		return path
	}
	return path + Extension
}

// Store reads and writes checkpoint containers through a FileSystem.
type Store struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
}

// NewStore returns a Store backed by fsys. A nil fsys uses the OS filesystem.
func NewStore(fsys fsutil.FileSystem) *Store {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Store{fs: fsys, clock: timeutil.RealClock{}}
}

// WithClock sets the clock used to stamp created_at on Write.
func (s *Store) WithClock(c timeutil.Clock) *Store {
	s.clock = c
	return s
}

// Open loads and validates the checkpoint at path (extension optional).
//
// A missing file yields an error matching ErrNotFound. A file that cannot be
// decoded, lacks the metadata or payload keys, or repeats a model index yields
// a *CorruptionError.
func (s *Store) Open(path string) (*Checkpoint, error) {
	resolved := ResolvePath(path)

	if _, err := s.fs.Stat(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, resolved)
		}
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}

	blob, err := s.fs.ReadFile(resolved)
	if err != nil {
		return nil, &CorruptionError{Path: resolved, Err: err}
	}
	c, err := decode(blob)
	if err != nil {
		return nil, &CorruptionError{Path: resolved, Err: err}
	}

	if c.Schema == SchemaLegacy {
		monitoring.Logf("checkpoint %s predates normalization tracking", resolved)
	}
	return c, nil
}

// Write stores c at path (extension optional) and returns the resolved path.
// An empty CreatedAt is stamped from the store clock; c itself is not modified.
func (s *Store) Write(path string, c *Checkpoint) (string, error) {
	if c == nil {
		return "", errors.New("checkpoint: nil checkpoint")
	}
	if err := validate(c); err != nil {
		return "", err
	}

	out := *c
	if out.Metadata.CreatedAt == "" {
		out.Metadata.CreatedAt = timeutil.FormatCreatedAt(s.clock.Now())
	}
	blob, err := encode(&out)
	if err != nil {
		return "", err
	}

	resolved := ResolvePath(path)
	if err := s.fs.WriteFile(resolved, blob, 0644); err != nil {
		return "", fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return resolved, nil
}

// Open loads a checkpoint from the OS filesystem.
func Open(path string) (*Checkpoint, error) {
	return NewStore(nil).Open(path)
}
