// Package retrieval provides the knowledge-retrieval hook an agent may
// consult before its first stage of a sequence.
package retrieval

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dialogcore/engine/pkg/models"
)

// Retriever answers a query with the topK best-scoring passages it holds.
// A nil Retriever bound to an agent is valid and means "no retrieval" —
// callers must check for nil before invoking it.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.Passage, error)
}

// Config bounds a LocalRetriever's ingestion and answer shape.
type Config struct {
	ChunkSize        int
	ChunkOverlap     int
	DefaultTopK      int
	DefaultMinScore  float64
	MaxContextTokens int
}

// LocalRetriever is a lexical-overlap retriever over in-memory chunks. It
// exists to exercise the Retriever contract end to end without depending on
// an external vector store.
type LocalRetriever struct {
	cfg Config

	mu     sync.RWMutex
	chunks []chunk
}

type chunk struct {
	id     string
	source string
	text   string
	terms  map[string]int
}

// NewLocalRetriever constructs an empty retriever ready for Ingest calls.
func NewLocalRetriever(cfg Config) *LocalRetriever {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 3
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 800
	}
	return &LocalRetriever{cfg: cfg}
}

// Ingest splits text into overlapping chunks (by rune count) and indexes
// each chunk's term frequencies for lexical scoring.
func (r *LocalRetriever) Ingest(source, text string) {
	runes := []rune(text)
	step := r.cfg.ChunkSize - r.cfg.ChunkOverlap
	if step <= 0 {
		step = r.cfg.ChunkSize
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for start := 0; start < len(runes); start += step {
		end := start + r.cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		body := string(runes[start:end])
		r.chunks = append(r.chunks, chunk{
			id:     idFor(source, len(r.chunks)),
			source: source,
			text:   body,
			terms:  termFreq(body),
		})
		if end == len(runes) {
			break
		}
	}
}

// Retrieve scores every ingested chunk against query by term overlap and
// returns the topK passages at or above Config.DefaultMinScore.
func (r *LocalRetriever) Retrieve(ctx context.Context, query string, topK int) ([]models.Passage, error) {
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}
	queryTerms := termFreq(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	scored := make([]models.Passage, 0, len(r.chunks))
	for _, c := range r.chunks {
		score := overlapScore(queryTerms, c.terms)
		if score < r.cfg.DefaultMinScore {
			continue
		}
		scored = append(scored, models.Passage{
			ID:      c.id,
			Content: c.text,
			Score:   score,
			Source:  c.source,
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

func termFreq(text string) map[string]int {
	freq := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if word == "" {
			continue
		}
		freq[word]++
	}
	return freq
}

func overlapScore(query, doc map[string]int) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	var matched int
	for term := range query {
		if _, ok := doc[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

func idFor(source string, index int) string {
	return source + "#" + strconv.Itoa(index)
}
