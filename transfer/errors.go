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

package transfer

import "errors"

var (
	// ErrInvalidBatchSize indicates a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrInvalidMaxThreads indicates a worker count below one.
	ErrInvalidMaxThreads = errors.New("max threads must be positive")

	// ErrInvalidMaxAttempts indicates that maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be greater than 0")

	// ErrMissingText indicates a record without text where embedding needs one.
	ErrMissingText = errors.New("record has no text to embed")
)
