package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harulog/haru/internal/haru/record"
)

// Local stores one JSON document per record under <root>/<owner>/<id>.json.
// The owner directory is the partition boundary: listings and lookups never
// leave it.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed and returns the file store.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create local root %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

// path returns the file location for (owner, id). Both components are
// sanitised to bare names so a crafted id cannot escape the owner directory.
func (l *Local) path(owner, id string) string {
	return filepath.Join(l.root, filepath.Base(owner), filepath.Base(id)+".json")
}

// Save writes the record to its owner partition atomically (temp file +
// rename), so a crash mid-write never leaves a truncated document.
func (l *Local) Save(rec *record.Record) error {
	dir := filepath.Join(l.root, filepath.Base(rec.OwnerID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create owner dir: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode record %s: %w", rec.ID, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(rec.ID)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("store: write record %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path(rec.OwnerID, rec.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store: rename record %s: %w", rec.ID, err)
	}
	return nil
}

// Get reads a record from the owner partition. Returns ErrNotFound when the
// file does not exist.
func (l *Local) Get(owner, id string) (*record.Record, error) {
	data, err := os.ReadFile(l.path(owner, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: read record %s: %w", id, err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("store: decode record %s: %w", id, err)
	}
	return &rec, nil
}

// Delete removes the record file. Returns ErrNotFound when it never existed.
func (l *Local) Delete(owner, id string) error {
	err := os.Remove(l.path(owner, id))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: delete record %s: %w", id, err)
	}
	return nil
}

// List returns the owner's complete records, newest first. Unreadable or
// corrupt files are skipped rather than failing the whole listing.
func (l *Local) List(owner string) ([]*record.Record, error) {
	dir := filepath.Join(l.root, filepath.Base(owner))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list owner dir: %w", err)
	}

	var recs []*record.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		rec, err := l.Get(owner, id)
		if err != nil {
			continue
		}
		if !rec.Complete() {
			continue
		}
		recs = append(recs, rec)
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}
