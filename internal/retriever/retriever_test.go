package retriever

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/pdfchat/internal/embedding"
	"github.com/dgallion1/pdfchat/internal/index"
	"github.com/dgallion1/pdfchat/internal/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T) *index.Index {
	t.Helper()
	units := []index.Unit{
		{Text: "Welcome to the annual report.", Page: 1},
		{Text: "The capital of France is Paris.", Page: 2},
		{Text: "Revenue grew in every region.", Page: 3},
		{Text: "Appendix with tables.", Page: 4},
	}
	ix, err := index.Build(context.Background(), embedding.NewHash(256), units, index.Options{})
	require.NoError(t, err)
	return ix
}

func TestTool_Describes(t *testing.T) {
	tool := New(nil, 0, nil)
	assert.Equal(t, "pdf_search", tool.Name())
	assert.Equal(t, "Use this tool when answering the questions.", tool.Description())
	assert.Equal(t, DefaultK, tool.K())

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.Parameters(), &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestTool_CallJoinsTopK(t *testing.T) {
	tool := New(buildIndex(t), 3, nil)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"What is the capital of France?"}`))
	require.NoError(t, err)
	parts := strings.Split(out, "\n\n")
	require.Len(t, parts, 3)
	assert.Equal(t, "The capital of France is Paris.", parts[0])

	hits, err := tool.Search(context.Background(), "capital of France")
	require.NoError(t, err)
	assert.Equal(t, 2, hits[0].Page)
}

func TestTool_BadArguments(t *testing.T) {
	tool := New(buildIndex(t), 3, nil)
	for _, args := range []string{`{"query":""}`, `{}`, `[1,2]`} {
		_, err := tool.Call(context.Background(), json.RawMessage(args))
		require.Error(t, err, args)
		assert.Equal(t, rag.KindAgent, rag.KindOf(err), args)
	}
}

type failingSearcher struct{ err error }

func (f failingSearcher) Query(context.Context, string, int) ([]index.Hit, error) {
	return nil, f.err
}

func TestTool_SearchErrorPropagates(t *testing.T) {
	tool := New(failingSearcher{err: rag.E(rag.KindEmbedding, "index.query", errors.New("down"))}, 3, nil)
	_, err := tool.Call(context.Background(), json.RawMessage(`{"query":"x"}`))
	assert.Equal(t, rag.KindEmbedding, rag.KindOf(err))
}
