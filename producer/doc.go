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

// Package producer loads documents from outside sources and emits them as
// records. Every loader implements pipeline.Producer and honours an
// offset/limit window over the documents it finds.
//
// Loaders:
//   - Text: one record per matching file in a directory tree
//   - PDF: one record per page of each PDF file
//   - CSV: one record per row of a delimited file
//   - URL: one record per crawled HTML page
//   - Qdrant: one record per point scrolled from a Qdrant collection
//   - Synthetic: generated records with numeric and word metadata, plus
//     filter queries whose result counts are known
package producer
