package dualstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type note struct {
	ID       string `json:"id"`
	Body     string `json:"body"`
	Archived bool   `json:"archived"`
}

func (n *note) RecordID() string          { return n.ID }
func (n *note) SetRecordID(id string)     { n.ID = id }
func (n *note) IsArchived() bool          { return n.Archived }
func (n *note) SetArchived(archived bool) { n.Archived = archived }

func (n *note) Validate() error {
	if n.Body == "" {
		return &ValidationError{Fields: []string{"body"}}
	}
	return nil
}

func noteCodec() Codec[*note] {
	return Codec[*note]{
		Header: []string{"id", "body", "archived"},
		Encode: func(n *note) []string {
			return []string{n.ID, n.Body, strconv.FormatBool(n.Archived)}
		},
		Decode: func(row []string) (*note, error) {
			if len(row) != 3 {
				return nil, fmt.Errorf("note row has %d columns, want 3", len(row))
			}
			archived, err := strconv.ParseBool(row[2])
			if err != nil {
				return nil, err
			}
			return &note{ID: row[0], Body: row[1], Archived: archived}, nil
		},
	}
}

func openNoteStore(t *testing.T, dir string) *Store[*note] {
	t.Helper()
	s, err := Open(dir, "notes", noteCodec())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenCreatesBothFiles(t *testing.T) {
	dir := t.TempDir()
	s := openNoteStore(t, dir)
	defer s.Close()

	for _, name := range []string{"notes.csv", "notes.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestPutAssignsIDAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := openNoteStore(t, dir)

	id, err := s.Put(&note{Body: "first"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if id == "" {
		t.Fatal("Put returned empty id")
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Body != "first" {
		t.Errorf("Body = %q, want %q", got.Body, "first")
	}

	// Reopen from disk and verify both formats reload cleanly.
	s.Close()
	s2 := openNoteStore(t, dir)
	defer s2.Close()

	got, err = s2.Get(id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Body != "first" {
		t.Errorf("Body after reopen = %q, want %q", got.Body, "first")
	}
}

func TestPutRejectsInvalidRecord(t *testing.T) {
	s := openNoteStore(t, t.TempDir())
	defer s.Close()

	_, err := s.Put(&note{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Put error = %v, want ValidationError", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0] != "body" {
		t.Errorf("Fields = %v, want [body]", verr.Fields)
	}
	if len(s.List(nil)) != 0 {
		t.Error("invalid record was stored")
	}
}

func TestDualWriteFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	s := openNoteStore(t, dir)
	defer s.Close()

	if _, err := s.Put(&note{Body: "kept"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	csvBefore, err := os.ReadFile(filepath.Join(dir, "notes.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	// Fail the second (JSON) write of the dual commit.
	boom := errors.New("disk full")
	var csvWrites int
	s.writeFn = func(path string, data []byte) error {
		if filepath.Ext(path) == ".json" {
			return boom
		}
		csvWrites++
		return writeAtomic(path, data)
	}

	_, err = s.Put(&note{Body: "lost"})
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Put error = %v, want PersistenceError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("PersistenceError does not wrap the write failure: %v", err)
	}

	// In-memory state rolled back.
	if got := len(s.List(nil)); got != 1 {
		t.Fatalf("List returned %d records after failed put, want 1", got)
	}

	// CSV restored to the pre-commit content.
	csvAfter, err := os.ReadFile(filepath.Join(dir, "notes.csv"))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if string(csvAfter) != string(csvBefore) {
		t.Error("csv content changed despite rolled-back commit")
	}
	// Both the failed write and its restore go through the write hook.
	if csvWrites != 2 {
		t.Errorf("csv write hook called %d times, want 2 (write + restore)", csvWrites)
	}

	// The store stays reconcilable on reopen.
	s.writeFn = writeAtomic
	s.Close()
	if _, err := Open(dir, "notes", noteCodec()); err != nil {
		t.Fatalf("reopen after rollback: %v", err)
	}
}

func TestFailedUpdateRollsBackMemory(t *testing.T) {
	dir := t.TempDir()
	s := openNoteStore(t, dir)
	defer s.Close()

	id, err := s.Put(&note{Body: "original"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Body = "mutated"

	boom := errors.New("disk full")
	s.writeFn = func(path string, data []byte) error {
		if filepath.Ext(path) == ".json" {
			return boom
		}
		return writeAtomic(path, data)
	}

	if _, err := s.Put(got); !errors.Is(err, boom) {
		t.Fatalf("Put = %v, want the injected write failure", err)
	}
	s.writeFn = writeAtomic

	// The failed update must not leak through Get: memory and disk
	// both still hold the previous record.
	reread, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get after failed update: %v", err)
	}
	if reread.Body != "original" {
		t.Errorf("Body after failed update = %q, want %q", reread.Body, "original")
	}

	s.Close()
	s2 := openNoteStore(t, dir)
	defer s2.Close()
	fromDisk, err := s2.Get(id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if fromDisk.Body != "original" {
		t.Errorf("Body on disk = %q, want %q", fromDisk.Body, "original")
	}
}

func TestGetAndListReturnCopies(t *testing.T) {
	s := openNoteStore(t, t.TempDir())
	defer s.Close()

	id, err := s.Put(&note{Body: "stable"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got.Body = "scribbled"

	listed := s.List(nil)
	if len(listed) != 1 {
		t.Fatalf("List returned %d records, want 1", len(listed))
	}
	listed[0].Body = "also scribbled"

	reread, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reread.Body != "stable" {
		t.Errorf("stored record mutated through a returned copy: Body = %q", reread.Body)
	}
}

func TestOpenRejectsDivergentContent(t *testing.T) {
	dir := t.TempDir()
	s := openNoteStore(t, dir)
	if _, err := s.Put(&note{Body: "original"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	// Same id in both files, different field content.
	csvPath := filepath.Join(dir, "notes.csv")
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	tampered := strings.Replace(string(data), "original", "tampered", 1)
	if tampered == string(data) {
		t.Fatal("tampering had no effect")
	}
	if err := os.WriteFile(csvPath, []byte(tampered), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	_, err = Open(dir, "notes", noteCodec())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Open with divergent content = %v, want PersistenceError", err)
	}
}

func TestOpenRejectsMissingCounterpartFile(t *testing.T) {
	dir := t.TempDir()
	s := openNoteStore(t, dir)
	if _, err := s.Put(&note{Body: "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	if err := os.Remove(filepath.Join(dir, "notes.json")); err != nil {
		t.Fatalf("remove json: %v", err)
	}

	_, err := Open(dir, "notes", noteCodec())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Open error = %v, want PersistenceError", err)
	}
}

func TestDeleteSoftArchives(t *testing.T) {
	s := openNoteStore(t, t.TempDir())
	defer s.Close()

	id, err := s.Put(&note{Body: "archive me"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Idempotent.
	if err := s.Delete(id); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	got, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get archived: %v", err)
	}
	if !got.Archived {
		t.Error("record not marked archived")
	}

	if n := len(s.List(nil)); n != 0 {
		t.Errorf("List returned %d records, want 0", n)
	}
	if n := len(s.ListAll(nil)); n != 1 {
		t.Errorf("ListAll returned %d records, want 1", n)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	s := openNoteStore(t, t.TempDir())
	defer s.Close()

	if err := s.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete unknown id = %v, want ErrNotFound", err)
	}
}

func TestListSnapshotsAreIndependent(t *testing.T) {
	s := openNoteStore(t, t.TempDir())
	defer s.Close()

	if _, err := s.Put(&note{Body: "a"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	first := s.List(nil)

	if _, err := s.Put(&note{Body: "b"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	second := s.List(nil)

	if len(first) != 1 {
		t.Errorf("earlier snapshot grew to %d records", len(first))
	}
	if len(second) != 2 {
		t.Errorf("fresh snapshot has %d records, want 2", len(second))
	}
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	s := openNoteStore(t, t.TempDir())
	id, err := s.Put(&note{Body: "x"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	if _, err := s.Put(&note{Body: "y"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Put after close = %v, want ErrClosed", err)
	}
	if _, err := s.Get(id); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after close = %v, want ErrClosed", err)
	}
	if err := s.Delete(id); !errors.Is(err, ErrClosed) {
		t.Errorf("Delete after close = %v, want ErrClosed", err)
	}
}

func TestUpdatePreservesID(t *testing.T) {
	s := openNoteStore(t, t.TempDir())
	defer s.Close()

	id, err := s.Put(&note{Body: "v1"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	id2, err := s.Put(&note{ID: id, Body: "v2"})
	if err != nil {
		t.Fatalf("update Put: %v", err)
	}
	if id2 != id {
		t.Errorf("update returned id %s, want %s", id2, id)
	}

	got, _ := s.Get(id)
	if got.Body != "v2" {
		t.Errorf("Body = %q, want v2", got.Body)
	}
	if n := len(s.List(nil)); n != 1 {
		t.Errorf("List returned %d records, want 1", n)
	}
}
