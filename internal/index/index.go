// Package index builds an in-memory vector index over a document and
// answers exact nearest-neighbour queries by cosine distance.
package index

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/dgallion1/pdfchat/internal/embedding"
	"github.com/dgallion1/pdfchat/internal/rag"
	"golang.org/x/sync/errgroup"
)

// Unit is one embedded text with its provenance.
type Unit struct {
	Text   string
	Page   int
	Offset int
}

// Hit is a ranked query result. Lower Distance is closer.
type Hit struct {
	Unit
	Position int // insertion position in the index
	Distance float64
}

// Options tunes index construction.
type Options struct {
	BatchSize   int // texts per embedding request
	Concurrency int // embedding requests in flight
}

// Index is immutable once built and safe for concurrent queries.
type Index struct {
	embedder embedding.Embedder
	units    []Unit
	vectors  [][]float32 // unit-normalised
	dims     int
}

// Build embeds every unit and returns a searchable index. Any embedding
// failure or malformed vector aborts the build.
func Build(ctx context.Context, emb embedding.Embedder, units []Unit, opts Options) (*Index, error) {
	const op = "index.build"
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	raw := make([][]float32, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for start := 0; start < len(units); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(units))
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, u := range units[start:end] {
				texts = append(texts, u.Text)
			}
			vecs, err := emb.EmbedBatch(gctx, texts)
			if err != nil {
				return rag.E(rag.KindEmbedding, op, err)
			}
			if len(vecs) != len(texts) {
				return rag.Errorf(rag.KindEmbedding, op, "got %d vectors for %d texts", len(vecs), len(texts))
			}
			copy(raw[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dims := emb.Dimensions()
	if dims == 0 && len(raw) > 0 {
		dims = len(raw[0])
	}
	ix := &Index{
		embedder: emb,
		units:    slices.Clone(units),
		vectors:  make([][]float32, len(raw)),
		dims:     dims,
	}
	for i, v := range raw {
		if err := ix.check(v); err != nil {
			return nil, rag.Errorf(rag.KindEmbedding, op, "unit %d: %v", i, err)
		}
		ix.vectors[i] = normalize(v)
	}
	return ix, nil
}

// Query embeds text and returns at most k hits, closest first.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	const op = "index.query"
	vecs, err := ix.embedder.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, rag.E(rag.KindEmbedding, op, err)
	}
	if len(vecs) != 1 {
		return nil, rag.Errorf(rag.KindEmbedding, op, "got %d vectors for 1 text", len(vecs))
	}
	if err := ix.check(vecs[0]); err != nil {
		return nil, rag.E(rag.KindEmbedding, op, err)
	}
	return ix.Search(vecs[0], k), nil
}

// Search ranks every unit against vec by cosine distance. Equal distances
// keep insertion order.
func (ix *Index) Search(vec []float32, k int) []Hit {
	if k <= 0 || len(ix.units) == 0 || len(vec) != ix.dims {
		return nil
	}
	q := normalize(vec)
	hits := make([]Hit, len(ix.units))
	for i, v := range ix.vectors {
		hits[i] = Hit{Unit: ix.units[i], Position: i, Distance: 1 - dot(q, v)}
	}
	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Len returns the number of indexed units.
func (ix *Index) Len() int { return len(ix.units) }

// Dimensions returns the vector size of the index.
func (ix *Index) Dimensions() int { return ix.dims }

func (ix *Index) check(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("empty vector")
	}
	if len(v) != ix.dims {
		return fmt.Errorf("vector has %d dimensions, want %d", len(v), ix.dims)
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("vector contains non-finite values")
		}
	}
	return nil
}

// normalize returns v scaled to unit length. A zero vector stays zero,
// which places it at distance 1 from everything.
func normalize(v []float32) []float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
