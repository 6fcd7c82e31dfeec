// Package dualstore implements the file-backed record store underneath
// every entity type. Each store keeps one CSV file and one JSON file in
// sync: a mutation commits to both formats or to neither, so the two
// serializations always reconcile to the same record set.
package dualstore

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Record is implemented by every entity persisted through a Store.
type Record interface {
	RecordID() string
	SetRecordID(id string)
	IsArchived() bool
	SetArchived(archived bool)
	Validate() error
}

// Codec converts a record to and from its CSV row representation. The
// JSON side is handled by the record's own struct tags.
type Codec[T Record] struct {
	Header []string
	Encode func(T) []string
	Decode func(row []string) (T, error)
}

type Store[T Record] struct {
	mu       sync.RWMutex
	name     string
	csvPath  string
	jsonPath string
	codec    Codec[T]
	records  map[string]T
	lastCSV  []byte
	closed   bool

	// writeFn performs an atomic file write. Replaced in tests to
	// simulate partial dual-write failures.
	writeFn func(path string, data []byte) error
}

// Open loads (or creates) the CSV and JSON files for the named entity
// type under dir. When both files exist they must reconcile to the same
// record set.
func Open[T Record](dir, name string, codec Codec[T]) (*Store[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}

	s := &Store[T]{
		name:     name,
		csvPath:  filepath.Join(dir, name+".csv"),
		jsonPath: filepath.Join(dir, name+".json"),
		codec:    codec,
		records:  make(map[string]T),
		writeFn:  writeAtomic,
	}

	csvData, csvErr := os.ReadFile(s.csvPath)
	jsonData, jsonErr := os.ReadFile(s.jsonPath)

	switch {
	case os.IsNotExist(csvErr) && os.IsNotExist(jsonErr):
		// Fresh store: write empty files so both formats exist from
		// the start.
		if err := s.commit("init"); err != nil {
			return nil, err
		}
		return s, nil
	case csvErr != nil:
		return nil, &PersistenceError{Op: "open", Err: fmt.Errorf("%s: csv and json files out of sync: %w", name, csvErr)}
	case jsonErr != nil:
		return nil, &PersistenceError{Op: "open", Err: fmt.Errorf("%s: csv and json files out of sync: %w", name, jsonErr)}
	}

	if err := json.Unmarshal(jsonData, &s.records); err != nil {
		return nil, &PersistenceError{Op: "open", Err: fmt.Errorf("decode %s: %w", s.jsonPath, err)}
	}
	fromCSV, err := s.decodeCSV(csvData)
	if err != nil {
		return nil, &PersistenceError{Op: "open", Err: err}
	}
	if err := s.reconcile(s.records, fromCSV); err != nil {
		return nil, &PersistenceError{Op: "open", Err: fmt.Errorf("%s: %w", name, err)}
	}

	s.lastCSV = csvData
	return s, nil
}

// Put validates the record, assigns an id when it has none, and commits
// it to both persisted formats. Updates reuse the existing id. The
// store keeps its own copy, so a failed commit restores the previous
// record even when the caller mutated one obtained from Get.
func (s *Store[T]) Put(rec T) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}

	id := rec.RecordID()
	if id == "" {
		id = uuid.New().String()
		rec.SetRecordID(id)
	}

	prev, existed := s.records[id]
	s.records[id] = s.clone(rec)

	if err := s.commit("put"); err != nil {
		if existed {
			s.records[id] = prev
		} else {
			delete(s.records, id)
		}
		return "", err
	}
	return id, nil
}

// Get returns a copy of the record with the given id, archived or not.
func (s *Store[T]) Get(id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if s.closed {
		return zero, ErrClosed
	}
	rec, ok := s.records[id]
	if !ok {
		return zero, ErrNotFound
	}
	return s.clone(rec), nil
}

// List returns a fresh snapshot of non-archived records matching the
// filter, sorted by id. A nil filter matches everything. Re-querying
// reflects the state at that moment.
func (s *Store[T]) List(filter func(T) bool) []T {
	return s.snapshot(filter, false)
}

// ListAll is List including archived records.
func (s *Store[T]) ListAll(filter func(T) bool) []T {
	return s.snapshot(filter, true)
}

func (s *Store[T]) snapshot(filter func(T) bool, includeArchived bool) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.records))
	for _, rec := range s.records {
		if rec.IsArchived() && !includeArchived {
			continue
		}
		if filter != nil && !filter(rec) {
			continue
		}
		out = append(out, s.clone(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID() < out[j].RecordID() })
	return out
}

// Delete soft-archives the record, preserving it for referential
// history. Archiving an already-archived record is a no-op.
func (s *Store[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.IsArchived() {
		return nil
	}

	rec.SetArchived(true)
	if err := s.commit("delete"); err != nil {
		rec.SetArchived(false)
		return err
	}
	return nil
}

// Close marks the store closed. Further operations fail with ErrClosed.
// All committed state is already on disk.
func (s *Store[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// commit serializes the full record set to both formats and writes them
// out. Caller holds the write lock. A failure on the second write rolls
// back the first so the on-disk formats never diverge.
func (s *Store[T]) commit(op string) error {
	newCSV, err := s.encodeCSV()
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	newJSON, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return &PersistenceError{Op: op, Err: err}
	}

	if err := s.writeFn(s.csvPath, newCSV); err != nil {
		return &PersistenceError{Op: op, Err: err}
	}
	if err := s.writeFn(s.jsonPath, newJSON); err != nil {
		// Restore the previous CSV content so the two formats stay
		// reconcilable. Best effort: the store is reported unavailable
		// either way.
		if s.lastCSV != nil {
			_ = s.writeFn(s.csvPath, s.lastCSV)
		}
		return &PersistenceError{Op: op, Err: err}
	}

	s.lastCSV = newCSV
	return nil
}

func (s *Store[T]) encodeCSV() ([]byte, error) {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(s.codec.Header); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := w.Write(s.codec.Encode(s.records[id])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store[T]) decodeCSV(data []byte) (map[string]T, error) {
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.csvPath, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("decode %s: missing header row", s.csvPath)
	}
	if !equalRow(rows[0], s.codec.Header) {
		return nil, fmt.Errorf("decode %s: unexpected header %v", s.csvPath, rows[0])
	}

	out := make(map[string]T, len(rows)-1)
	for _, row := range rows[1:] {
		rec, err := s.codec.Decode(row)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.csvPath, err)
		}
		out[rec.RecordID()] = rec
	}
	return out, nil
}

// clone round-trips a record through the codec so callers never share
// memory with the stored object.
func (s *Store[T]) clone(rec T) T {
	c, err := s.codec.Decode(s.codec.Encode(rec))
	if err != nil {
		return rec
	}
	return c
}

// reconcile verifies both persisted formats decode to the same record
// set, field for field, by comparing their codec rows.
func (s *Store[T]) reconcile(fromJSON, fromCSV map[string]T) error {
	if len(fromJSON) != len(fromCSV) {
		return fmt.Errorf("csv holds %d records, json holds %d", len(fromCSV), len(fromJSON))
	}
	for id, jrec := range fromJSON {
		crec, ok := fromCSV[id]
		if !ok {
			return fmt.Errorf("record %s present in json but not in csv", id)
		}
		if !equalRow(s.codec.Encode(jrec), s.codec.Encode(crec)) {
			return fmt.Errorf("record %s differs between csv and json", id)
		}
	}
	return nil
}

func equalRow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
