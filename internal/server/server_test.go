package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/veritaslocal/veritas/internal/chat"
	"github.com/veritaslocal/veritas/internal/store"
)

type fakeChat struct {
	events    []chat.Event
	err       error
	sessionID string
	content   string
	opts      chat.Options
}

func (f *fakeChat) StreamReply(_ context.Context, sessionID, content string, opts chat.Options, emit func(chat.Event)) error {
	f.sessionID = sessionID
	f.content = content
	f.opts = opts
	for _, e := range f.events {
		emit(e)
	}
	return f.err
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func newTestServer(t *testing.T, chatSvc ChatService, embedder Embedder) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := NewServer(Config{
		Store:    st,
		Chat:     chatSvc,
		Embedder: embedder,
		Logger:   log.New(io.Discard, "", 0),
	})
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

func mustCreateSession(t *testing.T, h http.Handler, title string) string {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/sessions", map[string]string{"title": title})
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", w.Code, w.Body.String())
	}
	var resp sessionResponse
	decode(t, w, &resp)
	return resp.ID
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	w := doJSON(t, srv.Router(), http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
}

func TestSessionEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	router := srv.Router()

	id := mustCreateSession(t, router, "Quarterly numbers")

	w := doJSON(t, router, http.MethodGet, "/api/sessions", nil)
	var list struct {
		Sessions []sessionResponse `json:"sessions"`
	}
	decode(t, w, &list)
	if len(list.Sessions) != 1 || list.Sessions[0].Title != "Quarterly numbers" {
		t.Fatalf("sessions = %+v", list.Sessions)
	}

	w = doJSON(t, router, http.MethodPatch, "/api/sessions/"+id, map[string]string{"title": "Q3 numbers"})
	if w.Code != http.StatusOK {
		t.Fatalf("rename: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/sessions/"+id, nil)
	var detail struct {
		Session  sessionResponse   `json:"session"`
		Messages []messageResponse `json:"messages"`
	}
	decode(t, w, &detail)
	if detail.Session.Title != "Q3 numbers" {
		t.Errorf("title = %q", detail.Session.Title)
	}
	if len(detail.Messages) != 0 {
		t.Errorf("messages = %+v", detail.Messages)
	}

	w = doJSON(t, router, http.MethodDelete, "/api/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w = doJSON(t, router, http.MethodGet, "/api/sessions/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get deleted: %d", w.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPatch, "/api/sessions/nope", map[string]string{"title": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("rename missing: %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/api/sessions/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing: %d", w.Code)
	}
}

func TestRulesRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	router := srv.Router()
	id := mustCreateSession(t, router, "t")

	w := doJSON(t, router, http.MethodGet, "/api/sessions/"+id+"/rules", nil)
	var rules rulesPayload
	decode(t, w, &rules)
	if rules.HistoryLimit != 10 || !rules.FollowUp {
		t.Fatalf("default rules = %+v", rules)
	}

	update := rulesPayload{HistoryLimit: 3, MemoryLimit: 2, WebLimit: 1, FileLimit: 1, CustomInstructions: "Be brief.", FollowUp: false}
	w = doJSON(t, router, http.MethodPut, "/api/sessions/"+id+"/rules", update)
	if w.Code != http.StatusOK {
		t.Fatalf("put rules: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/sessions/"+id+"/rules", nil)
	decode(t, w, &rules)
	if rules != update {
		t.Fatalf("rules = %+v, want %+v", rules, update)
	}

	w = doJSON(t, router, http.MethodPut, "/api/sessions/"+id+"/rules", rulesPayload{HistoryLimit: -1})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative limit: %d", w.Code)
	}
}

func TestMemoryEndpoints(t *testing.T) {
	embedder := &fakeEmbedder{}
	srv, st := newTestServer(t, &fakeChat{}, embedder)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/memories", map[string]string{
		"content":  "User prefers metric units",
		"category": "preference",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add memory: %d %s", w.Code, w.Body.String())
	}
	if embedder.calls != 1 {
		t.Errorf("embedder calls = %d", embedder.calls)
	}

	stored, err := st.ListMemories(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	if len(stored) != 1 || stored[0].Source != "manual" || len(stored[0].Embedding) != 2 {
		t.Fatalf("stored = %+v", stored)
	}

	w = doJSON(t, router, http.MethodGet, "/api/memories?category=preference", nil)
	var list struct {
		Memories []memoryResponse `json:"memories"`
	}
	decode(t, w, &list)
	if len(list.Memories) != 1 || list.Memories[0].Content != "User prefers metric units" {
		t.Fatalf("memories = %+v", list.Memories)
	}

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/memories/%d", list.Memories[0].ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete memory: %d", w.Code)
	}
	w = doJSON(t, router, http.MethodDelete, "/api/memories/notanumber", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad memory id: %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/api/memories", map[string]string{"content": "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank content: %d", w.Code)
	}
}

func TestMemoryEmbedderFailureStillStores(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("ollama down")}
	srv, st := newTestServer(t, &fakeChat{}, embedder)

	w := doJSON(t, srv.Router(), http.MethodPost, "/api/memories", map[string]string{"content": "fact"})
	if w.Code != http.StatusCreated {
		t.Fatalf("add memory: %d %s", w.Code, w.Body.String())
	}
	stored, _ := st.ListMemories(context.Background(), "", 10)
	if len(stored) != 1 || len(stored[0].Embedding) != 0 {
		t.Fatalf("stored = %+v", stored)
	}
}

func uploadFile(t *testing.T, h http.Handler, path, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAttachmentEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	router := srv.Router()
	id := mustCreateSession(t, router, "t")

	w := uploadFile(t, router, "/api/sessions/"+id+"/attachments", "notes.txt", []byte("Revenue was $2M."))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodGet, "/api/sessions/"+id+"/attachments", nil)
	var list struct {
		Attachments []attachmentResponse `json:"attachments"`
	}
	decode(t, w, &list)
	if len(list.Attachments) != 1 || list.Attachments[0].Filename != "notes.txt" {
		t.Fatalf("attachments = %+v", list.Attachments)
	}

	w = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/attachments/%d", list.Attachments[0].ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete attachment: %d", w.Code)
	}
}

func TestAttachmentRejectsBinaryAndUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	router := srv.Router()
	id := mustCreateSession(t, router, "t")

	w := uploadFile(t, router, "/api/sessions/"+id+"/attachments", "blob.bin", []byte{0xff, 0xfe, 0x00, 0x01})
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("binary upload: %d", w.Code)
	}

	w = uploadFile(t, router, "/api/sessions/missing/attachments", "a.txt", []byte("x"))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session: %d", w.Code)
	}
}

func TestChatStream(t *testing.T) {
	chatSvc := &fakeChat{events: []chat.Event{
		{Type: chat.EventToken, Token: "Hello"},
		{Type: chat.EventAnswerComplete, Text: "Hello"},
		{Type: chat.EventDone, Text: "Hello"},
	}}
	srv, _ := newTestServer(t, chatSvc, nil)
	router := srv.Router()
	id := mustCreateSession(t, router, "t")

	w := doJSON(t, router, http.MethodPost, "/api/chat/stream", map[string]any{
		"session_id": id,
		"message":    "hi",
		"use_web":    true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("stream: %d %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}

	body := w.Body.String()
	for _, want := range []string{
		"event: token\n",
		`data: {"type":"token","token":"Hello"}`,
		"event: done\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}

	if chatSvc.sessionID != id || chatSvc.content != "hi" || !chatSvc.opts.UseWeb {
		t.Errorf("chat call = %q %q %+v", chatSvc.sessionID, chatSvc.content, chatSvc.opts)
	}
}

func TestChatStreamValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/api/chat/stream", map[string]any{"message": "hi"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing session_id: %d", w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/api/chat/stream", map[string]any{
		"session_id": "missing", "message": "hi",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown session: %d", w.Code)
	}
}

func TestStats(t *testing.T) {
	srv, _ := newTestServer(t, &fakeChat{}, nil)
	router := srv.Router()
	mustCreateSession(t, router, "t")

	w := doJSON(t, router, http.MethodGet, "/api/stats", nil)
	var stats struct {
		Sessions int64 `json:"sessions"`
	}
	decode(t, w, &stats)
	if stats.Sessions != 1 {
		t.Errorf("sessions = %d", stats.Sessions)
	}
}
