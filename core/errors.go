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

import (
	"errors"
	"fmt"
)

// Domain validation errors
var (
	// ErrMissingField indicates a required key is absent from a raw record.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidFieldType indicates a raw value cannot be mapped onto a Record field.
	ErrInvalidFieldType = errors.New("invalid field type")

	// ErrInvalidMetadata indicates a metadata mapping failed to decode or validate.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidFeatureMap indicates a feature map is incomplete.
	ErrInvalidFeatureMap = errors.New("invalid feature map")

	// ErrEmptyID indicates an id that is present but empty.
	ErrEmptyID = errors.New("id cannot be empty")
)

// MissingFieldError names the key that a remap required but did not find.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", e.Field)
}

// Is matches ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
