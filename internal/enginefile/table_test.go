// internal/enginefile/table_test.go
package enginefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestTable(t *testing.T) (string, map[uint64][]Candidate) {
	t.Helper()
	path := filepath.Join(t.TempDir(), TableFileName(0))
	w := NewTableWriter(0, 1)

	want := map[uint64][]Candidate{}
	add := func(ctx []int32, candidates []Candidate) {
		hash := HashContext(ctx)
		if err := w.Add(hash, len(ctx), candidates); err != nil {
			t.Fatalf("Add error: %v", err)
		}
		want[hash] = candidates
	}

	add([]int32{}, []Candidate{{ID: 1, Score: 5}, {ID: 4, Score: 1}})
	add([]int32{4}, []Candidate{{ID: 5, Score: 3}})
	add([]int32{2, 3, 4}, []Candidate{{ID: 5, Score: 9}, {ID: 1, Score: 2}, {ID: 3, Score: 0.5}})

	if _, err := w.WriteFile(path); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	return path, want
}

func TestTableRoundTrip(t *testing.T) {
	path, want := writeTestTable(t)

	r, err := OpenTable(path)
	if err != nil {
		t.Fatalf("OpenTable error: %v", err)
	}
	defer r.Close()

	if r.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", r.Len())
	}
	if r.ShardIndex() != 0 || r.ShardCount() != 1 {
		t.Fatalf("unexpected shard header %d of %d", r.ShardIndex(), r.ShardCount())
	}

	for _, ctx := range [][]int32{{}, {4}, {2, 3, 4}} {
		hash := HashContext(ctx)
		got, ok := r.Lookup(hash, len(ctx))
		if !ok {
			t.Fatalf("Lookup missed context %v", ctx)
		}
		expected := want[hash]
		if len(got) != len(expected) {
			t.Fatalf("context %v: got %d candidates, want %d", ctx, len(got), len(expected))
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Fatalf("context %v candidate %d: got %+v want %+v", ctx, i, got[i], expected[i])
			}
		}
	}
}

func TestTableLookupMiss(t *testing.T) {
	path, _ := writeTestTable(t)

	r, err := OpenTable(path)
	if err != nil {
		t.Fatalf("OpenTable error: %v", err)
	}
	defer r.Close()

	if _, ok := r.Lookup(HashContext([]int32{9, 9}), 2); ok {
		t.Fatal("expected miss for absent context")
	}
	// Same hash, wrong order must miss too.
	if _, ok := r.Lookup(HashContext([]int32{4}), 2); ok {
		t.Fatal("expected miss for mismatched order")
	}
}

func TestTableWriterRejectsDuplicateKey(t *testing.T) {
	w := NewTableWriter(0, 1)
	hash := HashContext([]int32{1})
	if err := w.Add(hash, 1, []Candidate{{ID: 1, Score: 1}}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if err := w.Add(hash, 1, []Candidate{{ID: 2, Score: 2}}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	_, err := w.WriteFile(filepath.Join(t.TempDir(), TableFileName(0)))
	if err == nil {
		t.Fatal("expected error for duplicate key")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate in error, got %v", err)
	}
}

func TestTableWriterRejectsEmptyCandidates(t *testing.T) {
	w := NewTableWriter(0, 1)
	if err := w.Add(1, 0, nil); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestOpenTableBadMagic(t *testing.T) {
	path, _ := writeTestTable(t)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[0] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := OpenTable(path); err == nil {
		t.Fatal("expected error for corrupted magic")
	}
}

func TestOpenTableTruncated(t *testing.T) {
	path, _ := writeTestTable(t)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-5], 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err = OpenTable(path)
	if err == nil {
		t.Fatal("expected error for truncated table")
	}
	if !strings.Contains(err.Error(), "header implies") {
		t.Fatalf("expected size mismatch error, got %v", err)
	}
}

func TestOpenTableMissingFile(t *testing.T) {
	if _, err := OpenTable(filepath.Join(t.TempDir(), "absent.dat")); err == nil {
		t.Fatal("expected error for missing table file")
	}
}
