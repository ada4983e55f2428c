// Package submissions keeps a small on-disk registry of prepared
// submissions, one JSON file per sbatch id next to the scripts it describes.
package submissions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

// Store persists and loads Records from a directory.
//
// Directory layout:
//
//	<root>/sb-<sbatch_id>.json
//	<root>/sb-<sbatch_id>.sh
//
// Root is normally the slurm scripts dir.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: strings.TrimSpace(root)}
}

func (s *Store) RootDir() string {
	return s.root
}

func (s *Store) RecordPath(sbatchID int) string {
	return filepath.Join(s.root, fmt.Sprintf("sb-%04d.json", sbatchID))
}

// NewRunID returns a fresh id correlating a record with its log lines.
func NewRunID() string {
	return uuid.New().String()
}

func (s *Store) ensureRoot() error {
	if s.root == "" {
		return fmt.Errorf("submission registry root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Exists reports whether a record for sbatchID is already stored.
func (s *Store) Exists(sbatchID int) bool {
	_, err := os.Stat(s.RecordPath(sbatchID))
	return err == nil
}

// Write stores record atomically, replacing any previous record for the
// same sbatch id. A missing RunID is filled in.
func (s *Store) Write(record *Record) error {
	if record == nil {
		return fmt.Errorf("submission record is nil")
	}
	if record.SbatchID < 0 {
		return fmt.Errorf("sbatch_id must not be negative")
	}
	if record.RunID == "" {
		record.RunID = NewRunID()
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submission record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(s.root, "sb.json.tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp submission file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp submission file: %w", err)
	}

	if err := os.Rename(tmpName, s.RecordPath(record.SbatchID)); err != nil {
		return fmt.Errorf("rename submission file: %w", err)
	}
	return nil
}

func (s *Store) Get(sbatchID int) (*Record, error) {
	return readRecord(s.RecordPath(sbatchID))
}

func readRecord(path string) (*Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" {
		return nil, fmt.Errorf("%s is empty", filepath.Base(path))
	}

	var record Record
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &record, nil
}

// List returns every readable record, newest first. Unreadable files are skipped.
func (s *Store) List() ([]Record, error) {
	if s.root == "" {
		return nil, fmt.Errorf("submission registry root dir is empty")
	}
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(s.root), "sb-????.json")
	if err != nil {
		return nil, fmt.Errorf("list submission records: %w", err)
	}

	out := make([]Record, 0, len(matches))
	for _, name := range matches {
		r, err := readRecord(filepath.Join(s.root, name))
		if err != nil {
			continue
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].SbatchID > out[j].SbatchID
	})
	return out, nil
}
