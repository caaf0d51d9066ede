// Package mock provides a deterministic ai.Embedder.
//
// Unless a behavior is injected, MockEmbedder returns the same vectors as
// the "default" provider in ai/hash, so expected values can be computed
// with hash.Vector.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("boom")
//	}
//	count := embedder.CallCount()
package mock
