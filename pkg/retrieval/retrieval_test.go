package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRetriever_RanksByTermOverlap(t *testing.T) {
	r := NewLocalRetriever(Config{ChunkSize: 200, DefaultTopK: 2})
	r.Ingest("recursion.md", "Recursion is a function calling itself until a base case stops it.")
	r.Ingest("sorting.md", "Quicksort partitions a slice around a pivot and sorts each half.")

	passages, err := r.Retrieve(context.Background(), "what is recursion and its base case", 2)
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Equal(t, "recursion.md", passages[0].Source)
	if len(passages) > 1 {
		assert.GreaterOrEqual(t, passages[0].Score, passages[1].Score)
	}
}

func TestLocalRetriever_RespectsTopKAndMinScore(t *testing.T) {
	r := NewLocalRetriever(Config{ChunkSize: 100, DefaultTopK: 3, DefaultMinScore: 0.9})
	r.Ingest("a.md", "entirely unrelated prose about gardening")
	r.Ingest("b.md", "more prose about cooking")

	passages, err := r.Retrieve(context.Background(), "distributed consensus protocols", 3)
	require.NoError(t, err)
	assert.Empty(t, passages, "nothing clears a 0.9 overlap score")
}

func TestLocalRetriever_ChunksLongDocuments(t *testing.T) {
	r := NewLocalRetriever(Config{ChunkSize: 10, ChunkOverlap: 2, DefaultTopK: 50})

	text := "abcdefghijklmnopqrstuvwxyz"
	r.Ingest("alphabet.txt", text)

	passages, err := r.Retrieve(context.Background(), text, 50)
	require.NoError(t, err)
	assert.Greater(t, len(passages), 1, "a document longer than ChunkSize must produce multiple chunks")
	for _, p := range passages {
		assert.LessOrEqual(t, len(p.Content), 10)
	}
}

func TestLocalRetriever_EmptyIndexReturnsNothing(t *testing.T) {
	r := NewLocalRetriever(Config{})
	passages, err := r.Retrieve(context.Background(), "anything", 0)
	require.NoError(t, err)
	assert.Empty(t, passages)
}
