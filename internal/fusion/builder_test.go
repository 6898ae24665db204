package fusion

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/veritaslocal/veritas/internal/memory"
	"github.com/veritaslocal/veritas/internal/store"
	"github.com/veritaslocal/veritas/internal/validate"
	"github.com/veritaslocal/veritas/internal/websearch"
)

type fakeStore struct {
	rules       *store.Rules
	attachments []*store.Attachment
	messages    []*store.Message
}

func (f *fakeStore) GetRules(_ context.Context, sessionID string) (*store.Rules, error) {
	if f.rules != nil {
		return f.rules, nil
	}
	defaults := store.DefaultRules(sessionID)
	return &defaults, nil
}

func (f *fakeStore) ListAttachments(context.Context, string) ([]*store.Attachment, error) {
	return f.attachments, nil
}

func (f *fakeStore) ListMessages(context.Context, string, int) ([]*store.Message, error) {
	return f.messages, nil
}

type fakeMemories struct {
	results []memory.Result
	err     error
}

func (f *fakeMemories) Search(context.Context, string, int) ([]memory.Result, error) {
	return f.results, f.err
}

type fakeWeb struct {
	results []websearch.Result
	err     error
	calls   int
}

func (f *fakeWeb) Search(context.Context, string, int) ([]websearch.Result, error) {
	f.calls++
	return f.results, f.err
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func kinds(sources []validate.SourceRecord) []validate.SourceKind {
	out := make([]validate.SourceKind, len(sources))
	for i, s := range sources {
		out[i] = s.Kind
	}
	return out
}

func TestBuilder_AssemblesAllSourceKinds(t *testing.T) {
	st := &fakeStore{
		attachments: []*store.Attachment{
			{Filename: "report.txt", Text: "Revenue was $2M in Q3."},
		},
		messages: []*store.Message{
			{Role: "user", Content: "How did Q3 go?"},
			{Role: "assistant", Content: "Q3 revenue was $2M."},
		},
	}
	mem := &fakeMemories{results: []memory.Result{
		{Memory: &store.Memory{ID: 7, Content: "User runs a bakery"}, Score: 0.8},
	}}
	web := &fakeWeb{results: []websearch.Result{
		{Title: "Industry report", Snippet: "Bakeries grew 4%.", URL: "https://example.com/r"},
	}}

	b := NewBuilder(st, mem, web, quietLogger())
	bundle, err := b.Build(context.Background(), "s1", "What was revenue?", Options{UseWeb: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []validate.SourceKind{
		validate.SourceFile,
		validate.SourceMemory,
		validate.SourceWeb,
		validate.SourceHistory,
		validate.SourceFollowUp,
	}
	got := kinds(bundle.Sources)
	if len(got) != len(want) {
		t.Fatalf("source kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("source order = %v, want %v", got, want)
		}
	}

	byID := map[string]validate.SourceRecord{}
	for _, s := range bundle.Sources {
		byID[s.ID] = s
	}
	if byID["file:report.txt"].Text != "Revenue was $2M in Q3." {
		t.Errorf("file source = %+v", byID["file:report.txt"])
	}
	if byID["memory:7"].Relevance != 0.8 {
		t.Errorf("memory relevance = %v", byID["memory:7"].Relevance)
	}
	if !strings.Contains(byID["web:https://example.com/r"].Text, "Bakeries grew 4%.") {
		t.Errorf("web source = %+v", byID["web:https://example.com/r"])
	}
	if byID["follow_up"].Text != "Q3 revenue was $2M." {
		t.Errorf("follow_up = %+v", byID["follow_up"])
	}

	if !strings.Contains(bundle.Prompt, "[FILE] file:report.txt:") {
		t.Errorf("prompt missing file block:\n%s", bundle.Prompt)
	}
	if !strings.Contains(bundle.Prompt, "not citable") {
		t.Errorf("prompt must mark contextual blocks:\n%s", bundle.Prompt)
	}
	if !strings.HasSuffix(bundle.Prompt, "Question: What was revenue?") {
		t.Errorf("prompt must end with the question:\n%s", bundle.Prompt)
	}

	// The assembled bundle must be valid pipeline input.
	p, err := validate.NewPipeline(validate.DefaultConfig())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	if _, err := p.Evaluate(context.Background(), "Revenue was $2M.", "", bundle.ContextBundle); err != nil {
		t.Fatalf("bundle rejected by pipeline: %v", err)
	}
}

func TestBuilder_WebDisabledByOptions(t *testing.T) {
	web := &fakeWeb{results: []websearch.Result{{Title: "x", URL: "https://x"}}}
	b := NewBuilder(&fakeStore{}, nil, web, quietLogger())

	bundle, err := b.Build(context.Background(), "s1", "q", Options{UseWeb: false})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if web.calls != 0 {
		t.Error("web searcher must not be called when disabled")
	}
	for _, s := range bundle.Sources {
		if s.Kind == validate.SourceWeb {
			t.Fatalf("unexpected web source: %+v", s)
		}
	}
}

func TestBuilder_RetrievalFailuresDegrade(t *testing.T) {
	st := &fakeStore{
		attachments: []*store.Attachment{{Filename: "a.txt", Text: "content"}},
	}
	mem := &fakeMemories{err: errors.New("embedder down")}
	web := &fakeWeb{err: errors.New("network down")}

	b := NewBuilder(st, mem, web, quietLogger())
	bundle, err := b.Build(context.Background(), "s1", "q", Options{UseWeb: true})
	if err != nil {
		t.Fatalf("retrieval failures must degrade, not fail: %v", err)
	}
	got := kinds(bundle.Sources)
	if len(got) != 1 || got[0] != validate.SourceFile {
		t.Fatalf("sources = %v, want file only", got)
	}
}

func TestBuilder_FileLimitRespected(t *testing.T) {
	st := &fakeStore{
		rules: &store.Rules{SessionID: "s1", FileLimit: 1, HistoryLimit: 0},
		attachments: []*store.Attachment{
			{Filename: "one.txt", Text: "first"},
			{Filename: "two.txt", Text: "second"},
		},
	}
	b := NewBuilder(st, nil, nil, quietLogger())
	bundle, err := b.Build(context.Background(), "s1", "q", Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(bundle.Sources) != 1 || bundle.Sources[0].ID != "file:one.txt" {
		t.Fatalf("sources = %+v, want first file only", bundle.Sources)
	}
}

func TestBuilder_FollowUpDisabled(t *testing.T) {
	st := &fakeStore{
		rules: &store.Rules{SessionID: "s1", HistoryLimit: 5, FollowUp: false},
		messages: []*store.Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}
	b := NewBuilder(st, nil, nil, quietLogger())
	bundle, err := b.Build(context.Background(), "s1", "q", Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, s := range bundle.Sources {
		if s.Kind == validate.SourceFollowUp {
			t.Fatalf("follow_up source present despite disabled rule: %+v", s)
		}
	}
}

func TestBuilder_EmptyContextStillPrompts(t *testing.T) {
	st := &fakeStore{rules: &store.Rules{SessionID: "s1", HistoryLimit: 0}}
	b := NewBuilder(st, nil, nil, quietLogger())

	bundle, err := b.Build(context.Background(), "s1", "Just say hi", Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(bundle.Sources) != 0 {
		t.Fatalf("sources = %+v, want none", bundle.Sources)
	}
	if bundle.Prompt != "Question: Just say hi" {
		t.Errorf("prompt = %q", bundle.Prompt)
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	got := truncate(long, 100)
	if len(got) > 110 {
		t.Fatalf("truncate left %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("expected ellipsis suffix, got %q", got)
	}
	if truncate("short", 100) != "short" {
		t.Error("short strings must pass through")
	}
}
