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

// Package transfer moves records between a vector store collection and a
// line-delimited JSON stream.
//
// Export splits the selected range of a collection into fetch tasks of
// BatchSize records, runs them on a worker pool and forwards each page to a
// sink as it completes. Import groups input lines into batches and writes
// them on a worker pool, embedding texts first when an embedder is set.
//
// Both directions fail fast: the first worker error stops new work and is
// returned once the running tasks finish.
package transfer
