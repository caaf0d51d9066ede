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

// Package dataset moves records between JSONL streams and dataset hubs.
//
// A hub stores each split of a named dataset as one JSONL object at
// <name>/<split>.jsonl, either under a local directory or in an S3 bucket.
// Rows are flat objects; a feature map names the columns that hold the
// document, id and embedding, and the remaining projected columns become
// metadata.
//
// Dataset URIs look like
//
//	file:///data/hub/articles?split=train&limit=100
//	s3://bucket/prefix/articles?region=eu-west-1&private=true
package dataset
