package vecmath

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// SimilarityIndex holds a set of vectors flattened into one row-major matrix
// so that the cosine similarities of a query against every row come out of a
// single matrix-vector product. Rows are stored normalized; a zero-magnitude
// or wrong-length row stays all-zero and scores 0 against everything.
// Results are clamped to [-1, 1], matching Cosine.
//
// This is the batch engine behind full-graph rebuilds: computing one row of
// the n x n similarity matrix is one Gemv call instead of n scalar loops.
type SimilarityIndex struct {
	flat []float32
	dim  int
	n    int
}

// NewSimilarityIndex builds an index over the given vectors. Vectors whose
// length differs from the first non-empty vector's length are treated as
// absent (their rows score 0).
func NewSimilarityIndex(vectors [][]float32) *SimilarityIndex {
	n := len(vectors)
	if n == 0 {
		return &SimilarityIndex{}
	}

	dim := 0
	for _, v := range vectors {
		if len(v) > 0 {
			dim = len(v)
			break
		}
	}
	if dim == 0 {
		return &SimilarityIndex{n: n}
	}

	flat := make([]float32, n*dim)
	for i, v := range vectors {
		if len(v) != dim {
			continue
		}
		normalized, mag := NormalizeCopy(v)
		if mag == 0 {
			continue
		}
		copy(flat[i*dim:], normalized)
	}
	return &SimilarityIndex{flat: flat, dim: dim, n: n}
}

// Len returns the number of rows in the index.
func (idx *SimilarityIndex) Len() int {
	return idx.n
}

// Dim returns the vector dimensionality of the index.
func (idx *SimilarityIndex) Dim() int {
	return idx.dim
}

// Similarities writes the cosine similarity of query against every row into
// out, which must have length Len(). A degenerate query zero-fills out.
func (idx *SimilarityIndex) Similarities(query []float32, out []float32) {
	if idx.n == 0 {
		return
	}
	if len(query) != idx.dim || idx.dim == 0 {
		clear(out)
		return
	}

	normalized, mag := NormalizeCopy(query)
	if mag == 0 {
		clear(out)
		return
	}

	blas32.Gemv(
		blas.NoTrans, 1.0,
		blas32.General{Rows: idx.n, Cols: idx.dim, Stride: idx.dim, Data: idx.flat},
		blas32.Vector{N: idx.dim, Inc: 1, Data: normalized}, 0.0,
		blas32.Vector{N: idx.n, Inc: 1, Data: out},
	)
	clampUnitAll(out)
}

// Row returns the similarity of row i against every row in the index.
// Returns nil when i is out of range.
func (idx *SimilarityIndex) Row(i int) []float32 {
	if i < 0 || i >= idx.n {
		return nil
	}
	out := make([]float32, idx.n)
	if idx.dim == 0 {
		return out
	}
	row := idx.flat[i*idx.dim : (i+1)*idx.dim]
	// Rows are already normalized, so Gemv against the raw row is exact.
	blas32.Gemv(
		blas.NoTrans, 1.0,
		blas32.General{Rows: idx.n, Cols: idx.dim, Stride: idx.dim, Data: idx.flat},
		blas32.Vector{N: idx.dim, Inc: 1, Data: row}, 0.0,
		blas32.Vector{N: idx.n, Inc: 1, Data: out},
	)
	clampUnitAll(out)
	return out
}

// clampUnitAll pins every similarity to [-1, 1]. Normalized float32 rows can
// still Gemv to 1.0000001 against themselves, and downstream edge validation
// treats weight > 1 as corrupt.
func clampUnitAll(out []float32) {
	for i, v := range out {
		if v > 1 {
			out[i] = 1
		} else if v < -1 {
			out[i] = -1
		}
	}
}
