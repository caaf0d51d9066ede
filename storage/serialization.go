// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docpipe/core"
)

// Metadata value tags.
const (
	tagString = iota + 1
	tagInt
	tagFloat
	tagBool
)

// MarshalRecord serializes a Record to bytes.
func MarshalRecord(record *core.Record) []byte {
	buf := make([]byte, RecordMUS.Size(*record))
	RecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalRecord deserializes a Record from bytes.
func UnmarshalRecord(data []byte) (*core.Record, error) {
	record, _, err := RecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalMetadata serializes a metadata mapping to bytes.
func MarshalMetadata(meta core.Metadata) []byte {
	buf := make([]byte, sizeMetadata(meta))
	marshalMetadata(meta, buf)
	return buf
}

// UnmarshalMetadata deserializes a metadata mapping from bytes.
func UnmarshalMetadata(data []byte) (core.Metadata, error) {
	meta, _, err := unmarshalMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return meta, nil
}

// RecordMUS is the MUS serializer for core.Record. Absent fields are encoded
// with a presence flag so nil and empty values survive a round trip.
var RecordMUS = recordMUS{}

type recordMUS struct{}

func (recordMUS) Marshal(r core.Record, bs []byte) (n int) {
	n = marshalOptString(r.ID, bs)
	n += marshalOptString(r.TextChunk, bs[n:])
	n += marshalMetadata(r.Metadata, bs[n:])
	n += marshalEmbedding(r.Embedding, bs[n:])
	return
}

func (recordMUS) Unmarshal(bs []byte) (r core.Record, n int, err error) {
	var n1 int
	if r.ID, n, err = unmarshalOptString(bs); err != nil {
		return
	}
	if r.TextChunk, n1, err = unmarshalOptString(bs[n:]); err != nil {
		return
	}
	n += n1
	if r.Metadata, n1, err = unmarshalMetadata(bs[n:]); err != nil {
		return
	}
	n += n1
	r.Embedding, n1, err = unmarshalEmbedding(bs[n:])
	n += n1
	return
}

func (recordMUS) Size(r core.Record) (size int) {
	size = sizeOptString(r.ID)
	size += sizeOptString(r.TextChunk)
	size += sizeMetadata(r.Metadata)
	return size + sizeEmbedding(r.Embedding)
}

func marshalOptString(s *string, bs []byte) (n int) {
	n = ord.Bool.Marshal(s != nil, bs)
	if s != nil {
		n += ord.String.Marshal(*s, bs[n:])
	}
	return
}

func unmarshalOptString(bs []byte) (*string, int, error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return nil, n, err
	}
	s, n1, err := ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return nil, n, err
	}
	return &s, n, nil
}

func sizeOptString(s *string) int {
	size := ord.Bool.Size(s != nil)
	if s != nil {
		size += ord.String.Size(*s)
	}
	return size
}

// Metadata is encoded as a signed count (-1 for nil) followed by key, tag and
// value triples in key order.
func marshalMetadata(meta core.Metadata, bs []byte) (n int) {
	if meta == nil {
		return varint.Int.Marshal(-1, bs)
	}
	n = varint.Int.Marshal(len(meta), bs)
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		n += ord.String.Marshal(k, bs[n:])
		switch v := meta[k].(type) {
		case string:
			n += varint.Int.Marshal(tagString, bs[n:])
			n += ord.String.Marshal(v, bs[n:])
		case int64:
			n += varint.Int.Marshal(tagInt, bs[n:])
			n += varint.Int64.Marshal(v, bs[n:])
		case float64:
			n += varint.Int.Marshal(tagFloat, bs[n:])
			n += raw.Float64.Marshal(v, bs[n:])
		case bool:
			n += varint.Int.Marshal(tagBool, bs[n:])
			n += ord.Bool.Marshal(v, bs[n:])
		default:
			n += varint.Int.Marshal(tagString, bs[n:])
			n += ord.String.Marshal(fmt.Sprint(v), bs[n:])
		}
	}
	return
}

func sizeMetadata(meta core.Metadata) int {
	if meta == nil {
		return varint.Int.Size(-1)
	}
	size := varint.Int.Size(len(meta))
	for k, val := range meta {
		size += ord.String.Size(k)
		switch v := val.(type) {
		case string:
			size += varint.Int.Size(tagString) + ord.String.Size(v)
		case int64:
			size += varint.Int.Size(tagInt) + varint.Int64.Size(v)
		case float64:
			size += varint.Int.Size(tagFloat) + raw.Float64.Size(v)
		case bool:
			size += varint.Int.Size(tagBool) + ord.Bool.Size(v)
		default:
			size += varint.Int.Size(tagString) + ord.String.Size(fmt.Sprint(v))
		}
	}
	return size
}

func unmarshalMetadata(bs []byte) (meta core.Metadata, n int, err error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil || count < 0 {
		return nil, n, err
	}
	meta = make(core.Metadata, count)
	for range count {
		key, n1, err := ord.String.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		tag, n1, err := varint.Int.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		var value any
		switch tag {
		case tagString:
			value, n1, err = ord.String.Unmarshal(bs[n:])
		case tagInt:
			value, n1, err = varint.Int64.Unmarshal(bs[n:])
		case tagFloat:
			value, n1, err = raw.Float64.Unmarshal(bs[n:])
		case tagBool:
			value, n1, err = ord.Bool.Unmarshal(bs[n:])
		default:
			return nil, n, fmt.Errorf("unknown metadata tag %d", tag)
		}
		n += n1
		if err != nil {
			return nil, n, err
		}
		meta[key] = value
	}
	return meta, n, nil
}

func marshalEmbedding(emb []float32, bs []byte) (n int) {
	if emb == nil {
		return varint.Int.Marshal(-1, bs)
	}
	n = varint.Int.Marshal(len(emb), bs)
	for _, f := range emb {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return
}

func sizeEmbedding(emb []float32) int {
	if emb == nil {
		return varint.Int.Size(-1)
	}
	size := varint.Int.Size(len(emb))
	for _, f := range emb {
		size += raw.Float32.Size(f)
	}
	return size
}

func unmarshalEmbedding(bs []byte) ([]float32, int, error) {
	count, n, err := varint.Int.Unmarshal(bs)
	if err != nil || count < 0 {
		return nil, n, err
	}
	emb := make([]float32, count)
	for i := range emb {
		f, n1, err := raw.Float32.Unmarshal(bs[n:])
		n += n1
		if err != nil {
			return nil, n, err
		}
		emb[i] = f
	}
	return emb, n, nil
}
