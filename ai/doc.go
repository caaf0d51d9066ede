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

// Package ai defines the embedding abstraction used by docpipe.
//
// An Embedder turns texts into vectors. Providers live in sub-packages and
// register themselves with New when imported:
//
//   - ai/hash: deterministic hash vectors; serves the "default" provider
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/gemini: the Gemini API through google.golang.org/genai
//
// ai/cache wraps any Embedder with an expiring LRU cache. ai/mock holds the
// test double.
//
// # Constructor Return Type Pattern
//
// Production constructors return the ai.Embedder interface. Test doubles in
// ai/mock return concrete types so tests can inject behavior and inspect
// call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderOpenAI),
//	    ai.WithEnv(os.LookupEnv),
//	)
//	embedder, err := ai.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vectors, err := embedder.EmbedTexts(ctx, texts)
package ai
