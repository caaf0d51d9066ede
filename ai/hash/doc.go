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

// Package hash provides the "default" embedding provider.
//
// Vectors are derived from a BLAKE2b digest of the text and normalized to
// unit length, so equal texts always embed to equal vectors and no network
// access is needed. Importing the package registers the provider with ai.New.
//
// # Usage Example
//
//	import _ "github.com/poiesic/docpipe/ai/hash"
//
//	embedder, err := ai.New(ctx, ai.NewConfig(ai.WithDimensions(384)))
package hash
