// internal/enginefile/hash.go
package enginefile

import "hash/fnv"

// HashContext hashes a token-id context with FNV-1a 64, feeding each id as
// four little-endian bytes. The writer and every reader must agree on this,
// so it is the only place contexts are hashed.
func HashContext(ids []int32) uint64 {
	h := fnv.New64a()
	var b [4]byte
	for _, id := range ids {
		byteOrder.PutUint32(b[:], uint32(id))
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}
