package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"qa-chatbot/internal/domain"
)

const (
	filePrefix = "chat_"
	fileExt    = ".json"
)

// FileStore keeps one JSON file per archive record in a dedicated directory,
// named chat_<id>.json. The directory is created on first save; a missing
// directory reads as zero archives.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory does not need
// to exist yet.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("archive: directory must not be empty")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, filePrefix+id+fileExt)
}

// Save writes the record as chat_<id>.json. The write goes through a temp
// file in the same directory and a rename, so readers never observe a partial
// record. Saving an existing id overwrites it.
func (s *FileStore) Save(_ context.Context, rec domain.ArchiveRecord) error {
	if rec.ID == "" {
		return errors.New("archive: record id must not be empty")
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("archive: create directory %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, filePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("archive: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("archive: write record %q: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("archive: close record %q: %w", rec.ID, err)
	}
	if err := os.Rename(tmpName, s.path(rec.ID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("archive: commit record %q: %w", rec.ID, err)
	}
	return nil
}

// List returns summaries for up to limit records, newest id first. Files that
// do not follow the chat_<id>.json naming convention are ignored.
func (s *FileStore) List(_ context.Context, limit int) ([]domain.ArchiveSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive: read directory %s: %w", s.dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	// Timestamp ids sort lexicographically, so descending order is
	// most-recent-first.
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	summaries := make([]domain.ArchiveSummary, 0, len(ids))
	for _, id := range ids {
		rec, err := s.read(id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.ArchiveSummary{ID: id, TurnCount: len(rec.Turns)})
	}
	return summaries, nil
}

// Load reconstructs the record stored under id.
func (s *FileStore) Load(_ context.Context, id string) (domain.ArchiveRecord, error) {
	if strings.TrimSpace(id) == "" {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: empty id: %w", ErrNotFound)
	}
	return s.read(id)
}

func (s *FileStore) read(id string) (domain.ArchiveRecord, error) {
	// ids never contain path separators; anything else cannot name a record
	if strings.ContainsAny(id, `/\`) {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: record %q: %w", id, ErrNotFound)
	}
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: record %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.ArchiveRecord{}, fmt.Errorf("archive: read record %q: %w", id, err)
	}
	return decodeRecord(id, data)
}
