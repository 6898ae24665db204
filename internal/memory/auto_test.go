package memory

import (
	"context"
	"testing"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name     string
		message  string
		ok       bool
		category string
		content  string
	}{
		{"explicit remember", "Please remember that my dog is called Rex", true, "fact", "my dog is called Rex"},
		{"remember prefix", "remember the deploy window is Friday", true, "fact", "the deploy window is Friday"},
		{"identity name", "My name is Ada", true, "identity", "My name is Ada"},
		{"identity work", "I work at a hospital in Munich", true, "identity", "I work at a hospital in Munich"},
		{"preference", "I prefer short answers", true, "preference", "I prefer short answers"},
		{"plain question", "What is the capital of France?", false, "", ""},
		{"empty", "   ", false, "", ""},
		{"bare remember", "remember ", false, "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cand, ok := Extract(tc.message)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if cand.Category != tc.category {
				t.Errorf("category = %q, want %q", cand.Category, tc.category)
			}
			if cand.Content != tc.content {
				t.Errorf("content = %q, want %q", cand.Content, tc.content)
			}
		})
	}
}

func TestRecorder_StoresWithEmbedding(t *testing.T) {
	st := &fakeStore{}
	emb := &fakeEmbedder{vectors: map[string][]float32{
		"I prefer short answers": {0.5, 0.5},
	}}
	r := NewRecorder(st, emb)

	stored, err := r.Record(context.Background(), "I prefer short answers")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !stored {
		t.Fatal("expected memory to be stored")
	}
	if len(st.added) != 1 {
		t.Fatalf("added = %d", len(st.added))
	}
	m := st.added[0]
	if m.Category != "preference" || m.Source != "auto" {
		t.Errorf("stored memory = %+v", m)
	}
	if len(m.Embedding) != 2 {
		t.Errorf("expected embedding, got %v", m.Embedding)
	}
}

func TestRecorder_EmbeddingFailureIsNotFatal(t *testing.T) {
	st := &fakeStore{}
	r := NewRecorder(st, &fakeEmbedder{err: context.DeadlineExceeded})

	stored, err := r.Record(context.Background(), "remember that the API key rotates monthly")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !stored || len(st.added) != 1 {
		t.Fatal("expected memory stored without embedding")
	}
	if len(st.added[0].Embedding) != 0 {
		t.Errorf("expected no embedding, got %v", st.added[0].Embedding)
	}
}

func TestRecorder_SkipsOrdinaryMessages(t *testing.T) {
	st := &fakeStore{}
	r := NewRecorder(st, nil)

	stored, err := r.Record(context.Background(), "What time is it in Tokyo?")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if stored || len(st.added) != 0 {
		t.Fatal("ordinary question must not be stored")
	}
}
