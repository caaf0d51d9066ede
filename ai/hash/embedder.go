package hash

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docpipe/ai"
)

func init() {
	ai.Register(ai.ProviderDefault, func(_ context.Context, cfg *ai.Config) (ai.Embedder, error) {
		return New(cfg.Dimensions), nil
	})
}

// Embedder produces dim-sized unit vectors from text digests.
type Embedder struct {
	dim int
}

var _ ai.Embedder = (*Embedder)(nil)

// New returns an Embedder producing vectors of length dim.
func New(dim int) *Embedder {
	return &Embedder{dim: dim}
}

// Dimensions returns the vector length.
func (e *Embedder) Dimensions() int {
	return e.dim
}

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Vector(text, e.dim), nil
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = Vector(text, e.dim)
	}
	return out, nil
}

// Vector derives a unit vector of length dim from text. Equal texts
// always produce equal vectors.
func Vector(text string, dim int) []float32 {
	if dim <= 0 {
		return []float32{}
	}
	vector := make([]float32, dim)
	var block [4]byte
	for i := 0; i < dim; i += 16 {
		// Each 64-byte digest yields 16 components.
		h, _ := blake2b.New(64, nil)
		binary.LittleEndian.PutUint32(block[:], uint32(i/16))
		h.Write(block[:])
		h.Write([]byte(text))
		sum := h.Sum(nil)
		for j := 0; j < 16 && i+j < dim; j++ {
			u := binary.LittleEndian.Uint32(sum[j*4:])
			vector[i+j] = float32(u)/float32(math.MaxUint32)*2 - 1
		}
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}
