package memory

import (
	"context"
	"strings"

	"github.com/veritaslocal/veritas/internal/store"
)

// Candidate is a memory synthesized from a user message.
type Candidate struct {
	Content    string
	Category   string
	Confidence float64
}

var identityCues = []string{"my name is", "call me", "i am a ", "i am an ", "i work at", "i work as", "i live in"}

var preferenceCues = []string{"i prefer", "i like", "i love", "i hate", "i dislike", "my favorite", "my favourite"}

// Extract decides whether a user message carries something worth keeping
// long term. Explicit "remember ..." requests always qualify; identity and
// preference statements qualify heuristically.
func Extract(userMessage string) (Candidate, bool) {
	msg := strings.TrimSpace(userMessage)
	if msg == "" {
		return Candidate{}, false
	}
	lower := strings.ToLower(msg)

	for _, marker := range []string{"remember that ", "remember: ", "remember "} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			content := strings.TrimSpace(msg[idx+len(marker):])
			if content == "" {
				break
			}
			return Candidate{Content: content, Category: "fact", Confidence: 1.0}, true
		}
	}

	for _, cue := range identityCues {
		if strings.Contains(lower, cue) {
			return Candidate{Content: msg, Category: "identity", Confidence: 0.9}, true
		}
	}
	for _, cue := range preferenceCues {
		if strings.Contains(lower, cue) {
			return Candidate{Content: msg, Category: "preference", Confidence: 0.9}, true
		}
	}

	return Candidate{}, false
}

// Recorder persists auto-extracted memories, embedding them when possible.
type Recorder struct {
	store    Store
	embedder Embedder
}

// NewRecorder builds a recorder. embedder may be nil.
func NewRecorder(st Store, embedder Embedder) *Recorder {
	return &Recorder{store: st, embedder: embedder}
}

// Record evaluates the user message and stores a memory when it qualifies.
// It reports whether a memory was stored. Embedding failures are not
// fatal; the memory is stored without a vector.
func (r *Recorder) Record(ctx context.Context, userMessage string) (bool, error) {
	cand, ok := Extract(userMessage)
	if !ok {
		return false, nil
	}

	m := &store.Memory{
		Content:    cand.Content,
		Category:   cand.Category,
		Source:     "auto",
		Confidence: cand.Confidence,
	}
	if r.embedder != nil {
		if vecs, err := r.embedder.Embed(ctx, []string{cand.Content}); err == nil && len(vecs) == 1 {
			m.Embedding = vecs[0]
		}
	}
	if _, err := r.store.AddMemory(ctx, m); err != nil {
		return false, err
	}
	return true, nil
}
