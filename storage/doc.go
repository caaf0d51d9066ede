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

// Package storage defines the vector store abstraction used by docpipe.
//
// A Client opens named collections; a Collection counts, pages through and
// writes records. Three implementations exist:
//
//   - storage/badger: embedded key-value store for file:// locations
//   - storage/sqlite: embedded SQL store for file:// locations with engine=sqlite
//   - storage/chroma: HTTP client for remote Chroma servers
//
// # Filters
//
// Get accepts metadata (Where) and document (WhereDocument) filters written in
// Chroma's JSON syntax:
//
//	{"source": "wiki"}
//	{"$and": [{"year": {"$gte": 2020}}, {"lang": {"$in": ["en", "de"]}}]}
//	{"$contains": "vector"}
//
// Filters are parsed once and evaluated locally by the embedded stores; the
// HTTP client forwards the original JSON.
//
// # Ordering
//
// Embedded stores return records in insertion order, so offset/limit paging
// is stable. Upserting an existing id keeps its position.
//
// # Thread Safety
//
// Clients and collections must be safe for concurrent use; the transfer
// engine shares one collection handle across its workers.
package storage
