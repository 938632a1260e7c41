package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
)

// FakeEmbedder is a deterministic ai.Embedder for tests: the vector
// for a text depends only on the text, so identical inputs always land
// at the same point and similarity comparisons are stable.
type FakeEmbedder struct {
	Dim int
}

// NewFakeEmbedder returns a FakeEmbedder with the given dimension.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	if dim <= 0 {
		dim = 768
	}
	return &FakeEmbedder{Dim: dim}
}

// Embed derives one pseudo-random unit-scale vector per text from a
// hash of its content.
func (f *FakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		vec := make([]float32, f.Dim)
		for j := range vec {
			// Cycle through the digest for dims beyond its length.
			word := binary.BigEndian.Uint32(sum[(j*4)%28:]) + uint32(j)
			vec[j] = float32(word%2000)/1000 - 1
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured vector dimension.
func (f *FakeEmbedder) Dimension() int { return f.Dim }
