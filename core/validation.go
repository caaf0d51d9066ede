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

package core

import "fmt"

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - ID, when present, must not be empty
//   - Metadata values must be string, int64, float64 or bool
//
// NOT validated:
//   - TextChunk (only chunking and doc-hash ids require it)
//   - Embedding dimensionality (fixed per collection, not per record)
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.ID != nil && *record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyID)
	}

	if err := ValidateMetadata(record.Metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}

	return nil
}

// ValidateMetadata checks that every value has a supported scalar type.
func ValidateMetadata(meta Metadata) error {
	for k, v := range meta {
		switch v.(type) {
		case string, int64, float64, bool:
		default:
			return fmt.Errorf("%w: key %q has unsupported type %T", ErrInvalidMetadata, k, v)
		}
	}
	return nil
}
