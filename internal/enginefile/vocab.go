// internal/enginefile/vocab.go
package enginefile

import (
	"bytes"
	"fmt"
	"math"
	"os"
)

const vocabHeaderSize = 12

// WriteVocab writes the vocabulary file: a header (magic, version, token
// count) followed by length-prefixed token strings.
func WriteVocab(path string, tokens []string) error {
	if len(tokens) > math.MaxUint32 {
		return fmt.Errorf("vocabulary of %d tokens exceeds the format limit", len(tokens))
	}

	var buf bytes.Buffer
	var header [vocabHeaderSize]byte
	byteOrder.PutUint32(header[0:], VocabMagic)
	byteOrder.PutUint32(header[4:], FormatVersion)
	byteOrder.PutUint32(header[8:], uint32(len(tokens)))
	buf.Write(header[:])

	var lenBuf [2]byte
	for i, token := range tokens {
		if len(token) > math.MaxUint16 {
			return fmt.Errorf("token %d is %d bytes, exceeding the format limit", i, len(token))
		}
		byteOrder.PutUint16(lenBuf[:], uint16(len(token)))
		buf.Write(lenBuf[:])
		buf.WriteString(token)
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadVocab reads and validates a vocabulary file.
func ReadVocab(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocab %q: %w", path, err)
	}

	if len(data) < vocabHeaderSize {
		return nil, fmt.Errorf("vocab %q: file too small for header", path)
	}
	if magic := byteOrder.Uint32(data[0:]); magic != VocabMagic {
		return nil, fmt.Errorf("vocab %q: invalid magic: 0x%08x", path, magic)
	}
	if version := byteOrder.Uint32(data[4:]); version != FormatVersion {
		return nil, fmt.Errorf("vocab %q: unsupported version: %d", path, version)
	}
	count := int(byteOrder.Uint32(data[8:]))

	tokens := make([]string, 0, count)
	offset := vocabHeaderSize
	for i := 0; i < count; i++ {
		if offset+2 > len(data) {
			return nil, fmt.Errorf("vocab %q: truncated at token %d", path, i)
		}
		n := int(byteOrder.Uint16(data[offset:]))
		offset += 2
		if offset+n > len(data) {
			return nil, fmt.Errorf("vocab %q: truncated at token %d", path, i)
		}
		tokens = append(tokens, string(data[offset:offset+n]))
		offset += n
	}
	if offset != len(data) {
		return nil, fmt.Errorf("vocab %q: %d trailing bytes", path, len(data)-offset)
	}
	return tokens, nil
}
