package script

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob patterns for prepared submission scripts.
const (
	SubmissionPattern = "sb-????.sh"
	ElementPattern    = "sb-????-???.sh"
)

// Prepared groups the scripts found for one sbatch id.
type Prepared struct {
	SbatchID int    `json:"sbatch_id"`
	Path     string `json:"path,omitempty"`
	// Elements are the array indices of parcel wrappers, ascending.
	Elements []int `json:"elements,omitempty"`
}

// IsArray reports whether the submission has parcel wrappers.
func (p Prepared) IsArray() bool {
	return len(p.Elements) > 0
}

// ListPrepared scans dir for submission scripts and array element wrappers.
// A missing dir yields an empty list.
func ListPrepared(dir string) ([]Prepared, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	fsys := os.DirFS(dir)

	byID := make(map[int]*Prepared)
	get := func(id int) *Prepared {
		p, ok := byID[id]
		if !ok {
			p = &Prepared{SbatchID: id}
			byID[id] = p
		}
		return p
	}

	top, err := doublestar.Glob(fsys, SubmissionPattern)
	if err != nil {
		return nil, fmt.Errorf("list submission scripts: %w", err)
	}
	for _, name := range top {
		id, _, ok := ParseName(name)
		if !ok {
			continue
		}
		get(id).Path = filepath.Join(dir, name)
	}

	elems, err := doublestar.Glob(fsys, ElementPattern)
	if err != nil {
		return nil, fmt.Errorf("list array element scripts: %w", err)
	}
	for _, name := range elems {
		id, idx, ok := ParseName(name)
		if !ok {
			continue
		}
		p := get(id)
		p.Elements = append(p.Elements, idx)
	}

	out := make([]Prepared, 0, len(byID))
	for _, p := range byID {
		sort.Ints(p.Elements)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SbatchID < out[j].SbatchID })
	return out, nil
}

// ElementLogs returns the array element logs (sb-XXXX-*.txt) of sbatchID in
// dir, sorted by name.
func ElementLogs(dir string, sbatchID int) ([]string, error) {
	pattern := filepath.Join(dir, Name(sbatchID)+"-*.txt")
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list element logs: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}
