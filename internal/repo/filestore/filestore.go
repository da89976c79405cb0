package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

const ext = ".json"

// Store keeps one JSON document per record under <dir>/<kind>/<id>.json.
// Writes go through a temp file and a rename so readers never see a
// half-written document.
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(kind, id string) (string, error) {
	if err := safeName(kind); err != nil {
		return "", fmt.Errorf("kind: %w", err)
	}
	if err := safeName(id); err != nil {
		return "", fmt.Errorf("id: %w", err)
	}
	return filepath.Join(s.dir, kind, id+ext), nil
}

func safeName(n string) error {
	if n == "" || n == "." || n == ".." || strings.ContainsAny(n, `/\`) {
		return fmt.Errorf("invalid name %q", n)
	}
	return nil
}

func (s *Store) List(ctx context.Context, kind string) ([]string, error) {
	if err := safeName(kind); err != nil {
		return nil, fmt.Errorf("kind: %w", err)
	}
	entries, err := os.ReadDir(filepath.Join(s.dir, kind))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, ext))
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Read(ctx context.Context, kind, id string) (repo.Record, error) {
	p, err := s.path(kind, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", kind, id, repo.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s/%s: %w", kind, id, err)
	}
	var rec repo.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse %s/%s: %w", kind, id, err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, kind, id string, rec repo.Record) error {
	p, err := s.path(kind, id)
	if err != nil {
		return err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", kind, id, repo.ErrNotFound)
		}
		return fmt.Errorf("stat %s/%s: %w", kind, id, err)
	}
	return writeAtomic(p, rec)
}

func (s *Store) Create(ctx context.Context, kind, id string, rec repo.Record) error {
	p, err := s.path(kind, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("ensure %s directory: %w", kind, err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s/%s: %w", kind, id, repo.ErrExists)
		}
		return fmt.Errorf("create %s/%s: %w", kind, id, err)
	}
	err = f.Close()
	if err == nil {
		err = writeAtomic(p, rec)
	}
	if err != nil {
		// an empty placeholder would read as a corrupt record and block a retry
		_ = os.Remove(p)
		return fmt.Errorf("create %s/%s: %w", kind, id, err)
	}
	return nil
}

func writeAtomic(path string, rec repo.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace record file: %w", err)
	}
	return nil
}

var (
	_ repo.RecordStore = (*Store)(nil)
	_ repo.Writer      = (*Store)(nil)
)
