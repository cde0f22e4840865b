// internal/enginefile/enginefile_test.go
package enginefile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/paragon/internal/layerspec"
)

func TestHashContextDeterministic(t *testing.T) {
	a := HashContext([]int32{1, 2, 3})
	b := HashContext([]int32{1, 2, 3})
	if a != b {
		t.Fatalf("hash not deterministic: %x != %x", a, b)
	}
}

func TestHashContextOrderSensitive(t *testing.T) {
	if HashContext([]int32{1, 2}) == HashContext([]int32{2, 1}) {
		t.Fatal("expected different hashes for reordered contexts")
	}
}

func TestHashContextEmpty(t *testing.T) {
	// FNV-1a offset basis; the empty context is the unigram fallback key.
	if HashContext(nil) != HashContext([]int32{}) {
		t.Fatal("expected nil and empty context to hash equal")
	}
}

func TestVocabRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.dat")
	tokens := []string{"<unk>", "the", "capital", "naïve", ""}

	if err := WriteVocab(path, tokens); err != nil {
		t.Fatalf("WriteVocab error: %v", err)
	}
	got, err := ReadVocab(path)
	if err != nil {
		t.Fatalf("ReadVocab error: %v", err)
	}
	if len(got) != len(tokens) {
		t.Fatalf("expected %d tokens, got %d", len(tokens), len(got))
	}
	for i := range tokens {
		if got[i] != tokens[i] {
			t.Fatalf("token %d: got %q want %q", i, got[i], tokens[i])
		}
	}
}

func TestReadVocabBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.dat")
	if err := WriteVocab(path, []string{"<unk>"}); err != nil {
		t.Fatalf("WriteVocab error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[0] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err = ReadVocab(path)
	if err == nil {
		t.Fatal("expected error for corrupted magic")
	}
	if !strings.Contains(err.Error(), "magic") {
		t.Fatalf("expected magic in error, got %v", err)
	}
}

func TestReadVocabTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.dat")
	if err := WriteVocab(path, []string{"<unk>", "capital"}); err != nil {
		t.Fatalf("WriteVocab error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-3], 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := ReadVocab(path); err == nil {
		t.Fatal("expected error for truncated vocab")
	}
}

func testManifest() *Manifest {
	return &Manifest{
		Name:            "falcon-tiny",
		Family:          "falcon",
		BuildID:         "ab9172c4-0000-4000-8000-000000000000",
		CreatedAt:       time.Now().UTC(),
		Version:         FormatVersion,
		TPSize:          2,
		PPSize:          1,
		ShardCount:      2,
		MaxOrder:        3,
		VocabSize:       6,
		MaxBatchSize:    8,
		MaxInputTokens:  256,
		MaxOutputTokens: 128,
		LayerSpec:       layerspec.FalconLayerSpec(),
		Shards: []ShardInfo{
			{File: TableFileName(0), Records: 10, Bytes: 300},
			{File: TableFileName(1), Records: 12, Bytes: 340},
		},
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := testManifest()

	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest error: %v", err)
	}
	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest error: %v", err)
	}
	if got.Name != m.Name || got.Family != m.Family {
		t.Fatalf("manifest identity changed: %+v", got)
	}
	if got.LayerSpec.PostSelfAttnLayerNorm != layerspec.FusedLayerNorm {
		t.Fatalf("layer spec did not survive the round trip: %+v", got.LayerSpec)
	}
	if len(got.Shards) != 2 {
		t.Fatalf("expected 2 shards, got %d", len(got.Shards))
	}
}

func TestReadManifestMissing(t *testing.T) {
	if _, err := ReadManifest(t.TempDir()); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestReadManifestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"version", func(m *Manifest) { m.Version = 99 }},
		{"identity", func(m *Manifest) { m.Name = "" }},
		{"shard count", func(m *Manifest) { m.ShardCount = 3 }},
		{"parallelism", func(m *Manifest) { m.TPSize = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m := testManifest()
			tt.mutate(m)
			if err := WriteManifest(dir, m); err != nil {
				t.Fatalf("WriteManifest error: %v", err)
			}
			if _, err := ReadManifest(dir); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestShardFor(t *testing.T) {
	for shards := 1; shards <= 4; shards++ {
		for _, hash := range []uint64{0, 1, 42, 1 << 63} {
			got := ShardFor(hash, shards)
			if got < 0 || got >= shards {
				t.Fatalf("ShardFor(%d, %d) = %d out of range", hash, shards, got)
			}
		}
	}
	if ShardFor(7, 1) != 0 {
		t.Fatal("single shard must absorb every hash")
	}
}
