package badger

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Key prefixes for different data types
const (
	collectionPrefix = "col:"
	recordPrefix     = "rec:"
	recordIDPrefix   = "rid:"
	sequencePrefix   = "seq:"
	keySeparator     = "\x00"
)

// validateCollectionName rejects names that would break key layout.
func validateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if strings.Contains(name, keySeparator) {
		return fmt.Errorf("collection name %q contains a NUL byte", name)
	}
	return nil
}

// makeCollectionKey generates the key holding a collection's metadata.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makeRecordPrefix generates the prefix shared by all records of a collection.
// Format: prefix:name\x00
func makeRecordPrefix(name string) []byte {
	return []byte(recordPrefix + name + keySeparator)
}

// makeRecordKey generates the key of a record by insertion sequence.
// Format: prefix:name\x00seq
func makeRecordKey(name string, seq uint64) []byte {
	prefix := makeRecordPrefix(name)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort follows insertion order
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeRecordIDKey generates the index key mapping a record id to its sequence.
// Format: prefix:name\x00id
func makeRecordIDKey(name, id string) []byte {
	return []byte(recordIDPrefix + name + keySeparator + id)
}

// makeSequenceKey generates the key of a collection's insertion sequence.
func makeSequenceKey(name string) []byte {
	return []byte(sequencePrefix + name)
}

// encodeSeq serializes a sequence number stored in the id index.
func encodeSeq(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

// decodeSeq deserializes a sequence number from the id index.
func decodeSeq(val []byte) (uint64, error) {
	if len(val) != 8 {
		return 0, fmt.Errorf("invalid sequence value length %d", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}
