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

package connection

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScheme indicates a URI scheme other than http, https or file.
	ErrUnsupportedScheme = errors.New("unsupported scheme")

	// ErrMissingHost indicates a remote URI without a hostname.
	ErrMissingHost = errors.New("missing hostname")

	// ErrMissingCollection indicates that no collection was named.
	ErrMissingCollection = errors.New("missing collection")

	// ErrUnknownDistance indicates an unrecognized distance function.
	ErrUnknownDistance = errors.New("unknown distance function")

	// ErrUnknownEngine indicates an unrecognized local engine.
	ErrUnknownEngine = errors.New("unknown engine")

	// ErrNonPositive indicates a size that must be greater than zero.
	ErrNonPositive = errors.New("must be positive")
)

// ParseError names the URI field that could not be resolved.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("connection uri: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnsupportedSchemeError reports a scheme the resolver does not handle.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("connection uri: unsupported scheme %q, must be http, https or file", e.Scheme)
}

// Is matches ErrUnsupportedScheme.
func (e *UnsupportedSchemeError) Is(target error) bool {
	return target == ErrUnsupportedScheme
}
