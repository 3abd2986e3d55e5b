// Package store persists measurement datasets as a single JSON state
// file. A dataset is an ordered list of rows; the scratch slot "_"
// collects the progress trail and outcome of the most recent
// measurement until it is blessed into a named dataset.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Scratch is the reserved dataset name for the latest measurement.
const Scratch = "_"

// ErrNotFound reports a dataset name with no rows behind it.
var ErrNotFound = fmt.Errorf("dataset not found")

// Row is one dataset entry: a progress event or a measurement record.
type Row = map[string]any

// Store holds the dataset map and knows how to persist it.
type Store struct {
	path string

	mu   sync.Mutex
	data map[string][]Row
}

// Load reads the state file at path. A missing file yields an empty
// store; a corrupt one is an error rather than silent data loss.
func Load(path string) (*Store, error) {
	s := &Store{path: path, data: map[string][]Row{}}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return s, nil
}

// Save writes the state file atomically: temp file in the same
// directory, then rename over the target.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// List returns all dataset names, sorted, with row counts.
func (s *Store) List() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.data))
	for name, rows := range s.data {
		out[name] = len(rows)
	}
	return out
}

// Names returns the dataset names in sorted order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a copy of a dataset's rows.
func (s *Store) Get(name string) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out, nil
}

// ResetScratch discards the scratch slot before a new measurement.
func (s *Store) ResetScratch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, Scratch)
}

// AppendProgress records a progress event in the scratch trail.
func (s *Store) AppendProgress(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[Scratch] = append(s.data[Scratch], Row{
		"at":    time.Now().Format(time.RFC3339),
		"event": event,
	})
}

// SetScratch appends the measurement outcome to the scratch slot. The
// value goes through a JSON round trip so rows stay plain maps.
func (s *Store) SetScratch(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[Scratch] = append(s.data[Scratch], row)
	return nil
}

// Bless promotes the scratch slot to a named dataset and clears the
// scratch. Blessing onto an existing name overwrites it.
func (s *Store) Bless(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[Scratch]
	if !ok || len(rows) == 0 {
		return fmt.Errorf("%w: nothing to bless", ErrNotFound)
	}
	s.data[name] = rows
	delete(s.data, Scratch)
	return nil
}

// Remove deletes a dataset.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.data, name)
	return nil
}

// Copy duplicates src into dst, replacing dst. A non-empty filter of
// the form "field=regexp" keeps only the rows whose field matches.
func (s *Store) Copy(src, dst, filter string) error {
	if err := validName(dst); err != nil {
		return err
	}
	match, err := compileFilter(filter)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[src]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, src)
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if match(row) {
			out = append(out, row)
		}
	}
	s.data[dst] = out
	return nil
}

// Move renames src to dst, replacing dst.
func (s *Store) Move(src, dst string) error {
	if err := validName(dst); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.data[src]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, src)
	}
	s.data[dst] = rows
	delete(s.data, src)
	return nil
}

// compileFilter turns "field=regexp" into a row predicate. An empty
// filter keeps everything.
func compileFilter(filter string) (func(Row) bool, error) {
	if filter == "" {
		return func(Row) bool { return true }, nil
	}
	field, pattern, ok := strings.Cut(filter, "=")
	if !ok || field == "" {
		return nil, fmt.Errorf("filter must be field=regexp, got %q", filter)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("filter pattern: %w", err)
	}
	return func(row Row) bool {
		v, ok := row[field]
		if !ok {
			return false
		}
		return re.MatchString(fmt.Sprint(v))
	}, nil
}

func validName(name string) error {
	if name == "" {
		return fmt.Errorf("dataset name must not be empty")
	}
	if name == Scratch {
		return fmt.Errorf("%q is reserved for the scratch slot", Scratch)
	}
	return nil
}
