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

// Package pipeline composes record stages between a producer and a consumer.
//
// A Producer emits records, each Processor maps one record onto zero or more
// records, and a Consumer receives what comes out of the last stage. Run
// drives all stages on the calling goroutine, so stages need no locking of
// their own. Stages that buffer records implement Flusher and are drained
// in order once the producer is done.
//
// The stages shipped here are:
//   - Chunker: splits text into windows (character, recursive or markdown)
//   - IDAssigner: replaces ids according to an IDStrategy
//   - MetaEditor: removes and adds metadata keys
//   - EmojiCleaner: strips emoji from text and string metadata
//   - EmbedProcessor: embeds records in batches
package pipeline
