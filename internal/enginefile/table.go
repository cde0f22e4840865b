// internal/enginefile/table.go
package enginefile

import (
	"fmt"
	"math"
	"os"
	"sort"

	"golang.org/x/exp/mmap"
)

const (
	tableHeaderSize = 20
	recordSize      = 16
	candidateSize   = 8
)

// Record locates one context's candidates inside a table file. Offset is
// relative to the start of the candidate pool. Order is the context length
// in tokens; it disambiguates the rare case of two contexts of different
// length hashing equal.
type Record struct {
	Hash   uint64
	Offset uint32
	Count  uint16
	Order  uint16
}

// TableFileName returns the file name of a shard's table.
func TableFileName(shard int) string {
	return fmt.Sprintf("table-%02d.dat", shard)
}

type tableEntry struct {
	hash       uint64
	order      uint16
	candidates []Candidate
}

// TableWriter accumulates records for one shard and writes them sorted.
type TableWriter struct {
	shardIndex int
	shardCount int
	entries    []tableEntry
}

// NewTableWriter creates a writer for shard shardIndex of shardCount.
func NewTableWriter(shardIndex, shardCount int) *TableWriter {
	return &TableWriter{shardIndex: shardIndex, shardCount: shardCount}
}

// Add queues one context record. Candidates must already be in the order
// the engine should consider them (highest score first).
func (w *TableWriter) Add(hash uint64, order int, candidates []Candidate) error {
	if order < 0 || order > math.MaxUint16 {
		return fmt.Errorf("context order %d exceeds the format limit", order)
	}
	if len(candidates) == 0 {
		return fmt.Errorf("record 0x%016x has no candidates", hash)
	}
	if len(candidates) > math.MaxUint16 {
		return fmt.Errorf("record 0x%016x has %d candidates, exceeding the format limit", hash, len(candidates))
	}
	w.entries = append(w.entries, tableEntry{hash: hash, order: uint16(order), candidates: candidates})
	return nil
}

// Len returns the number of queued records.
func (w *TableWriter) Len() int {
	return len(w.entries)
}

// WriteFile sorts the queued records by (hash, order) and writes the shard
// file, returning its size in bytes.
func (w *TableWriter) WriteFile(path string) (int64, error) {
	sort.Slice(w.entries, func(i, j int) bool {
		if w.entries[i].hash != w.entries[j].hash {
			return w.entries[i].hash < w.entries[j].hash
		}
		return w.entries[i].order < w.entries[j].order
	})

	poolBytes := 0
	for i, e := range w.entries {
		if i > 0 && e.hash == w.entries[i-1].hash && e.order == w.entries[i-1].order {
			return 0, fmt.Errorf("duplicate table key 0x%016x order %d", e.hash, e.order)
		}
		poolBytes += len(e.candidates) * candidateSize
	}
	if poolBytes > math.MaxUint32 {
		return 0, fmt.Errorf("candidate pool of %d bytes exceeds the format limit", poolBytes)
	}

	buf := make([]byte, tableHeaderSize+len(w.entries)*recordSize+poolBytes)
	byteOrder.PutUint32(buf[0:], TableMagic)
	byteOrder.PutUint32(buf[4:], FormatVersion)
	byteOrder.PutUint16(buf[8:], uint16(w.shardIndex))
	byteOrder.PutUint16(buf[10:], uint16(w.shardCount))
	byteOrder.PutUint32(buf[12:], uint32(len(w.entries)))
	byteOrder.PutUint32(buf[16:], uint32(poolBytes))

	recOff := tableHeaderSize
	poolStart := tableHeaderSize + len(w.entries)*recordSize
	poolOff := 0
	for _, e := range w.entries {
		byteOrder.PutUint64(buf[recOff:], e.hash)
		byteOrder.PutUint32(buf[recOff+8:], uint32(poolOff))
		byteOrder.PutUint16(buf[recOff+12:], uint16(len(e.candidates)))
		byteOrder.PutUint16(buf[recOff+14:], e.order)
		recOff += recordSize
		for _, c := range e.candidates {
			byteOrder.PutUint32(buf[poolStart+poolOff:], c.ID)
			byteOrder.PutUint32(buf[poolStart+poolOff+4:], math.Float32bits(c.Score))
			poolOff += candidateSize
		}
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

// TableReader provides read access to one shard's table via memory mapping.
type TableReader struct {
	path       string
	mmap       *mmap.ReaderAt
	data       []byte
	shardIndex int
	shardCount int
	records    []Record
	pool       []byte
}

// OpenTable opens a table file and memory-maps it.
func OpenTable(path string) (*TableReader, error) {
	mmapReader, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap table %q: %w", path, err)
	}

	data := make([]byte, mmapReader.Len())
	if _, err := mmapReader.ReadAt(data, 0); err != nil {
		mmapReader.Close()
		return nil, fmt.Errorf("read table %q: %w", path, err)
	}

	r := &TableReader{path: path, mmap: mmapReader, data: data}
	if err := r.parse(); err != nil {
		r.Close()
		return nil, fmt.Errorf("parse table %q: %w", path, err)
	}
	return r, nil
}

// Close closes the reader and unmaps the file.
func (r *TableReader) Close() error {
	if r.mmap == nil {
		return nil
	}
	err := r.mmap.Close()
	r.mmap = nil
	return err
}

func (r *TableReader) parse() error {
	if len(r.data) < tableHeaderSize {
		return fmt.Errorf("file too small for header")
	}
	if magic := byteOrder.Uint32(r.data[0:]); magic != TableMagic {
		return fmt.Errorf("invalid magic: 0x%08x", magic)
	}
	if version := byteOrder.Uint32(r.data[4:]); version != FormatVersion {
		return fmt.Errorf("unsupported version: %d", version)
	}
	r.shardIndex = int(byteOrder.Uint16(r.data[8:]))
	r.shardCount = int(byteOrder.Uint16(r.data[10:]))
	if r.shardCount == 0 || r.shardIndex >= r.shardCount {
		return fmt.Errorf("invalid shard header %d of %d", r.shardIndex, r.shardCount)
	}
	recordCount := int(byteOrder.Uint32(r.data[12:]))
	poolSize := int(byteOrder.Uint32(r.data[16:]))
	if want := tableHeaderSize + recordCount*recordSize + poolSize; len(r.data) != want {
		return fmt.Errorf("file is %d bytes, header implies %d", len(r.data), want)
	}

	r.records = make([]Record, recordCount)
	offset := tableHeaderSize
	for i := range r.records {
		rec := Record{
			Hash:   byteOrder.Uint64(r.data[offset:]),
			Offset: byteOrder.Uint32(r.data[offset+8:]),
			Count:  byteOrder.Uint16(r.data[offset+12:]),
			Order:  byteOrder.Uint16(r.data[offset+14:]),
		}
		offset += recordSize
		if int(rec.Offset)+int(rec.Count)*candidateSize > poolSize {
			return fmt.Errorf("record %d overruns the candidate pool", i)
		}
		if i > 0 {
			prev := r.records[i-1]
			if rec.Hash < prev.Hash || (rec.Hash == prev.Hash && rec.Order <= prev.Order) {
				return fmt.Errorf("records are not sorted at %d", i)
			}
		}
		r.records[i] = rec
	}
	r.pool = r.data[tableHeaderSize+recordCount*recordSize:]
	return nil
}

// ShardIndex returns which shard this table holds.
func (r *TableReader) ShardIndex() int { return r.shardIndex }

// ShardCount returns how many shards the engine was built with.
func (r *TableReader) ShardCount() int { return r.shardCount }

// Len returns the number of records in the table.
func (r *TableReader) Len() int { return len(r.records) }

// Lookup returns the candidates stored for a context hash and order.
func (r *TableReader) Lookup(hash uint64, order int) ([]Candidate, bool) {
	i := sort.Search(len(r.records), func(i int) bool {
		if r.records[i].Hash != hash {
			return r.records[i].Hash >= hash
		}
		return int(r.records[i].Order) >= order
	})
	if i >= len(r.records) || r.records[i].Hash != hash || int(r.records[i].Order) != order {
		return nil, false
	}

	rec := r.records[i]
	out := make([]Candidate, rec.Count)
	offset := int(rec.Offset)
	for j := range out {
		out[j].ID = byteOrder.Uint32(r.pool[offset:])
		out[j].Score = math.Float32frombits(byteOrder.Uint32(r.pool[offset+4:]))
		offset += candidateSize
	}
	return out, true
}
