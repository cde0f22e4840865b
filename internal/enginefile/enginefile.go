// internal/enginefile/enginefile.go
// Package enginefile defines the on-disk layout of a compiled engine:
// manifest.json describing the build, vocab.dat holding the token strings,
// and one table-NN.dat per shard holding hashed context records with their
// scored continuations. Table files are memory-mapped on open; records are
// sorted by (hash, order) so lookups binary-search the mapped region.
package enginefile

import (
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	// VocabMagic is "PGVC" read as a little-endian uint32.
	VocabMagic = 0x43564750
	// TableMagic is "PGTB" read as a little-endian uint32.
	TableMagic = 0x42544750
	// FormatVersion is bumped whenever the binary layout changes.
	FormatVersion = 1
)

// ManifestFile names the build descriptor inside an engine directory.
const ManifestFile = "manifest.json"

// VocabFile names the vocabulary file inside an engine directory.
const VocabFile = "vocab.dat"

// PromptTableFile names the prompt table baked into an engine directory.
const PromptTableFile = "prompt_table.json"

// LoRAFileName returns the adapter file name for a uid.
func LoRAFileName(uid string) string {
	return fmt.Sprintf("lora-%s.json", uid)
}

var byteOrder = binary.LittleEndian

// Candidate is one scored continuation stored in a table file.
type Candidate struct {
	ID    uint32
	Score float32
}

// RankCandidates orders candidates best-first: score descending, ties
// broken by the lower token id so builds and lookups are reproducible.
func RankCandidates(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates
}

// ShardFor routes a context hash to its shard.
func ShardFor(hash uint64, shards int) int {
	return int(hash % uint64(shards))
}
