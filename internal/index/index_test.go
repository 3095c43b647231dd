package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/dgallion1/pdfchat/internal/embedding"
	"github.com/dgallion1/pdfchat/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []Unit{
	{Text: "Quarterly revenue grew by twelve percent.", Page: 1},
	{Text: "The capital of France is Paris.", Page: 2},
	{Text: "Employees receive twenty vacation days.", Page: 3},
	{Text: "The office closes at six on Fridays.", Page: 3, Offset: 180},
}

func buildCorpus(t *testing.T, opts Options) *Index {
	t.Helper()
	ix, err := Build(context.Background(), embedding.NewHash(512), corpus, opts)
	require.NoError(t, err)
	return ix
}

func TestBuild_IndexesEveryUnit(t *testing.T) {
	ix := buildCorpus(t, Options{BatchSize: 1, Concurrency: 3})
	assert.Equal(t, len(corpus), ix.Len())
	assert.Equal(t, 512, ix.Dimensions())
}

func TestQuery_OwnTextRanksFirst(t *testing.T) {
	ix := buildCorpus(t, Options{})
	for i, u := range corpus {
		hits, err := ix.Query(context.Background(), u.Text, 2)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		assert.Equal(t, i, hits[0].Position, "unit %d should be its own best match", i)
		assert.InDelta(t, 0, hits[0].Distance, 1e-6)
	}
}

func TestQuery_SortedAndBoundedByK(t *testing.T) {
	ix := buildCorpus(t, Options{})

	hits, err := ix.Query(context.Background(), "What is the capital of France?", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 2, hits[0].Page)
	assert.Contains(t, hits[0].Text, "Paris")
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}

	hits, err = ix.Query(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Len(t, hits, len(corpus))

	hits, err = ix.Query(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	units := []Unit{{Text: "same words"}, {Text: "other"}, {Text: "same words"}, {Text: "words same"}}
	ix, err := Build(context.Background(), embedding.NewHash(128), units, Options{})
	require.NoError(t, err)

	hits, err := ix.Query(context.Background(), "same words", 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{hits[0].Position, hits[1].Position, hits[2].Position})
}

func TestQuery_Reproducible(t *testing.T) {
	a := buildCorpus(t, Options{BatchSize: 2})
	b := buildCorpus(t, Options{BatchSize: 3, Concurrency: 1})

	ha, err := a.Query(context.Background(), "vacation days on Fridays", 4)
	require.NoError(t, err)
	hb, err := b.Query(context.Background(), "vacation days on Fridays", 4)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestSearch_WrongDimensionReturnsNothing(t *testing.T) {
	ix := buildCorpus(t, Options{})
	assert.Empty(t, ix.Search([]float32{1, 2, 3}, 2))
}

func TestBuild_EmptyUnits(t *testing.T) {
	ix, err := Build(context.Background(), embedding.NewHash(8), nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
	hits, err := ix.Query(context.Background(), "q", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

type badEmbedder struct {
	dims    int
	vectors func(n int) [][]float32
	err     error
	calls   atomic.Int32
}

func (b *badEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	b.calls.Add(1)
	if b.err != nil {
		return nil, b.err
	}
	return b.vectors(len(texts)), nil
}
func (b *badEmbedder) Dimensions() int   { return b.dims }
func (b *badEmbedder) ModelName() string { return "bad" }

func TestBuild_EmbeddingFailures(t *testing.T) {
	cases := map[string]*badEmbedder{
		"service error": {dims: 2, err: errors.New("connection refused")},
		"wrong dimensionality": {dims: 3, vectors: func(n int) [][]float32 {
			out := make([][]float32, n)
			for i := range out {
				out[i] = []float32{1, 0}
			}
			return out
		}},
		"missing vectors": {dims: 2, vectors: func(n int) [][]float32 {
			return [][]float32{{1, 0}}
		}},
		"nil vector": {dims: 2, vectors: func(n int) [][]float32 {
			return make([][]float32, n)
		}},
	}
	for name, emb := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(context.Background(), emb, corpus, Options{BatchSize: 2})
			require.Error(t, err)
			assert.Equal(t, rag.KindEmbedding, rag.KindOf(err), "got %v", err)
		})
	}
}

func TestBuild_TimeoutClassified(t *testing.T) {
	emb := &badEmbedder{dims: 2, err: fmt.Errorf("post: %w", context.DeadlineExceeded)}
	_, err := Build(context.Background(), emb, corpus, Options{})
	assert.Equal(t, rag.KindTimeout, rag.KindOf(err))
}

// switchEmbedder embeds with the hash embedder until fail is set.
type switchEmbedder struct {
	*embedding.Hash
	fail func(texts []string) ([][]float32, error)
}

func (s *switchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.fail != nil {
		return s.fail(texts)
	}
	return s.Hash.EmbedBatch(ctx, texts)
}

func TestQuery_EmbeddingFailures(t *testing.T) {
	cases := map[string]func(texts []string) ([][]float32, error){
		"service error": func([]string) ([][]float32, error) {
			return nil, errors.New("connection refused")
		},
		"no vectors": func([]string) ([][]float32, error) {
			return nil, nil
		},
		"too many vectors": func([]string) ([][]float32, error) {
			return [][]float32{make([]float32, 16), make([]float32, 16)}, nil
		},
		"wrong dimensionality": func([]string) ([][]float32, error) {
			return [][]float32{{1, 0, 0}}, nil
		},
		"non-finite values": func([]string) ([][]float32, error) {
			v := make([]float32, 16)
			v[3] = float32(math.NaN())
			return [][]float32{v}, nil
		},
	}
	for name, fail := range cases {
		t.Run(name, func(t *testing.T) {
			emb := &switchEmbedder{Hash: embedding.NewHash(16)}
			ix, err := Build(context.Background(), emb, corpus, Options{})
			require.NoError(t, err)

			emb.fail = fail
			hits, err := ix.Query(context.Background(), "What is the capital of France?", 3)
			require.Error(t, err)
			assert.Nil(t, hits)
			assert.Equal(t, rag.KindEmbedding, rag.KindOf(err), "got %v", err)
		})
	}
}

func TestQuery_TimeoutClassified(t *testing.T) {
	emb := &switchEmbedder{Hash: embedding.NewHash(16)}
	ix, err := Build(context.Background(), emb, corpus, Options{})
	require.NoError(t, err)

	emb.fail = func([]string) ([][]float32, error) {
		return nil, fmt.Errorf("post: %w", context.DeadlineExceeded)
	}
	_, err = ix.Query(context.Background(), "q", 1)
	assert.Equal(t, rag.KindTimeout, rag.KindOf(err))
}
