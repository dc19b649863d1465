// Package store keeps the service's on-disk state: spooled uploads while
// a recovery runs and .smf archives once it finishes. Entries are
// uuid-named, so ids are filename-safe by construction.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/salvor/internal/logger"
	"github.com/samcharles93/salvor/pkg/smf"
)

// ErrNotFound reports an id with no stored result.
var ErrNotFound = errors.New("store: recovery not found")

const (
	resultExt = ".smf"
	spoolExt  = ".spool"
	tmpExt    = ".tmp"
)

// Store manages one directory of spool files and recovery archives.
type Store struct {
	dir string
	ttl time.Duration
	log logger.Logger
}

// New opens (creating if needed) the store directory. A zero ttl keeps
// entries forever.
func New(dir string, ttl time.Duration, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Discard()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir, ttl: ttl, log: log}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string { return s.dir }

// NewID returns a fresh recovery id.
func NewID() string { return uuid.NewString() }

// checkID rejects anything that is not a uuid, which also keeps path
// traversal out of the file lookups.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: bad id %q", ErrNotFound, id)
	}
	return nil
}

func (s *Store) resultPath(id string) string { return filepath.Join(s.dir, id+resultExt) }
func (s *Store) spoolPath(id string) string  { return filepath.Join(s.dir, id+spoolExt) }

// Spool drains r into a fresh uuid-named spool file and returns the new
// id along with the file's path and size.
func (s *Store) Spool(r io.Reader) (id, path string, size int64, err error) {
	id = NewID()
	path = s.spoolPath(id)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", 0, fmt.Errorf("create spool: %w", err)
	}
	size, err = io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", "", 0, fmt.Errorf("write spool: %w", err)
	}
	return id, path, size, nil
}

// RemoveSpool drops the spool file for id. Missing files are not an
// error; recovery may already have cleaned up.
func (s *Store) RemoveSpool(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := os.Remove(s.spoolPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SaveArchive persists a finished recovery under id. The archive lands in
// a temp file first and renames into place, so readers never observe a
// partial result.
func (s *Store) SaveArchive(id string, a *smf.Archive) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	final := s.resultPath(id)
	tmp := final + tmpExt
	if err := smf.WriteFile(tmp, a); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return final, nil
}

// Entry describes one stored recovery result.
type Entry struct {
	ID      string
	Path    string
	Size    int64
	ModTime time.Time
}

// Get stats the stored result for id.
func (s *Store) Get(id string) (Entry, error) {
	if err := checkID(id); err != nil {
		return Entry{}, err
	}
	path := s.resultPath(id)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Entry{}, err
	}
	return Entry{ID: id, Path: path, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// OpenArchive loads the stored archive for id into memory.
func (s *Store) OpenArchive(id string) (*smf.Archive, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return smf.ReadFile(e.Path)
}

// Manifest reads just the provenance record of a stored archive, leaving
// the geometry sections untouched.
func (s *Store) Manifest(id string) (*smf.Manifest, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	f, err := smf.Open(s.resultPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	sec := f.Section(smf.SectionManifest)
	if sec == nil {
		return nil, fmt.Errorf("%w: missing manifest section", smf.ErrCorruptFile)
	}
	return smf.ParseManifest(f.SectionData(sec))
}

// List returns all stored results, newest first.
func (s *Store) List() ([]Entry, error) {
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, de := range des {
		name := de.Name()
		if de.IsDir() || filepath.Ext(name) != resultExt {
			continue
		}
		id := name[:len(name)-len(resultExt)]
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			ID:      id,
			Path:    filepath.Join(s.dir, name),
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Remove deletes the result (and any leftover spool) for id.
func (s *Store) Remove(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	_ = os.Remove(s.spoolPath(id))
	if err := os.Remove(s.resultPath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// Sweep removes results, spools and stray temp files whose mtime is
// older than the TTL. A zero TTL disables sweeping.
func (s *Store) Sweep(now time.Time) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-s.ttl)
	des, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, de := range des {
		if de.IsDir() {
			continue
		}
		switch filepath.Ext(de.Name()) {
		case resultExt, spoolExt, tmpExt:
		default:
			continue
		}
		fi, err := de.Info()
		if err != nil {
			continue
		}
		if !fi.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, de.Name())
		if err := os.Remove(path); err != nil {
			s.log.Warn("janitor: remove failed", "path", path, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartJanitor sweeps on the given interval until ctx is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := s.Sweep(now)
				if err != nil {
					s.log.Warn("janitor sweep failed", "error", err)
				} else if n > 0 {
					s.log.Info("janitor removed expired entries", "count", n)
				}
			}
		}
	}()
}
