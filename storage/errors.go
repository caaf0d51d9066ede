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

import "errors"

var (
	// ErrNotFound indicates that the requested collection was not found.
	ErrNotFound = errors.New("collection not found")

	// ErrCollectionExists indicates a create for a name that is taken.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDuplicateKey indicates a duplicate record id.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrMissingID indicates a write of a record without an id.
	ErrMissingID = errors.New("record has no id")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid query parameters or filters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrRemote indicates a remote store rejected a request.
	ErrRemote = errors.New("remote store error")
)
