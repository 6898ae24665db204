// Package memory ranks stored long-term memories against a query and
// decides when a chat exchange is worth remembering.
package memory

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/veritaslocal/veritas/internal/store"
)

// Embedder turns texts into vectors. llm.BoundEmbedder satisfies it.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Store is the slice of the persistence layer the searcher needs.
type Store interface {
	ListMemories(ctx context.Context, category string, limit int) ([]*store.Memory, error)
	AddMemory(ctx context.Context, m *store.Memory) (int64, error)
}

// Result is one ranked memory.
type Result struct {
	Memory *store.Memory
	Score  float64
}

// Searcher ranks memories by embedding similarity, degrading to keyword
// overlap when no embedder is configured or the embedding call fails.
// Search never fails because of the embedder; recall quality degrades
// instead.
type Searcher struct {
	store    Store
	embedder Embedder
	logger   *log.Logger
}

// NewSearcher builds a searcher. embedder may be nil.
func NewSearcher(st Store, embedder Embedder, logger *log.Logger) *Searcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[memory] ", log.LstdFlags)
	}
	return &Searcher{store: st, embedder: embedder, logger: logger}
}

// scanLimit bounds how many memories brute-force ranking considers.
const scanLimit = 1000

// Search returns the top memories for the query, best first.
func (s *Searcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}
	memories, err := s.store.ListMemories(ctx, "", scanLimit)
	if err != nil {
		return nil, err
	}
	if len(memories) == 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	scored := s.rankByEmbedding(ctx, query, memories)
	if scored == nil {
		scored = rankByKeywords(query, memories)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	out := make([]Result, 0, limit)
	for _, r := range scored {
		if r.Score <= 0 {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// rankByEmbedding returns nil when embedding ranking is unavailable, which
// signals the caller to fall back to keyword scoring.
func (s *Searcher) rankByEmbedding(ctx context.Context, query string, memories []*store.Memory) []Result {
	if s.embedder == nil {
		return nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		s.logger.Printf("embedding query failed, using keyword fallback: %v", err)
		return nil
	}
	queryVec := vecs[0]

	withVectors := false
	results := make([]Result, 0, len(memories))
	for _, m := range memories {
		if len(m.Embedding) == 0 {
			continue
		}
		withVectors = true
		results = append(results, Result{Memory: m, Score: cosineSimilarity(queryVec, m.Embedding)})
	}
	if !withVectors {
		return nil
	}
	return results
}

// rankByKeywords scores by token overlap between query and memory content.
func rankByKeywords(query string, memories []*store.Memory) []Result {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []Result{}
	}

	results := make([]Result, 0, len(memories))
	for _, m := range memories {
		memTokens := tokenize(m.Content)
		if len(memTokens) == 0 {
			continue
		}
		overlap := 0
		for tok := range queryTokens {
			if _, ok := memTokens[tok]; ok {
				overlap++
			}
		}
		results = append(results, Result{
			Memory: m,
			Score:  float64(overlap) / float64(len(queryTokens)),
		})
	}
	return results
}

func tokenize(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(strings.ToLower(text)) {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) < 3 {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// cosineSimilarity computes cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
