// Package mcp provides a Model Context Protocol server for Veritas.
//
// It exposes the validation pipeline and the memory layer as MCP tools so
// other agents can verify their own answers against a set of sources and
// read or write long-term memories. Stdio transport only.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/veritaslocal/veritas/internal/memory"
	"github.com/veritaslocal/veritas/internal/store"
	"github.com/veritaslocal/veritas/internal/validate"
)

// MemorySearcher ranks stored memories for a query. memory.Searcher
// satisfies it.
type MemorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]memory.Result, error)
}

// Embedder vectorizes added memories. Optional.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Store    store.Store
	Pipeline *validate.Pipeline
	Searcher MemorySearcher
	Embedder Embedder
	Version  string
}

// dbMu serializes tool calls that touch the database. The mcp-go library
// dispatches handlers concurrently, and SQLite supports one writer at a
// time.
var dbMu sync.Mutex

// NewServer creates a configured MCP server with all Veritas tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Veritas",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerValidateTool(s, cfg.Pipeline)
	registerMemorySearchTool(s, cfg.Searcher)
	registerMemoryAddTool(s, cfg.Store, cfg.Embedder)
	registerStatsTool(s, cfg.Store)

	registerStatsResource(s, cfg.Store)
	registerRecentMemoriesResource(s, cfg.Store)

	return s
}

// toolSource is the wire shape of one source in the validate tool input.
type toolSource struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
}

func registerValidateTool(s *server.MCPServer, pipeline *validate.Pipeline) {
	tool := mcp.NewTool("veritas_validate",
		mcp.WithDescription("Validate an answer against a set of sources. Runs entity verification, hedging detection, factual grounding and conflict checks, and returns a confidence record with a final score in [0,1]."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("answer",
			mcp.Required(),
			mcp.Description("The answer text to validate"),
		),
		mcp.WithString("reasoning",
			mcp.Description("Optional reasoning or self-explanation behind the answer; hedging here also counts"),
		),
		mcp.WithString("sources",
			mcp.Required(),
			mcp.Description(`JSON array of sources: [{"id":"file:notes.txt","kind":"file","text":"...","relevance":1.0}]. Kinds: file, memory, web, history, follow_up.`),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		answer, err := req.RequireString("answer")
		if err != nil {
			return mcp.NewToolResultError("answer is required"), nil
		}

		rawSources, err := req.RequireString("sources")
		if err != nil {
			return mcp.NewToolResultError("sources is required"), nil
		}
		var decoded []toolSource
		if err := json.Unmarshal([]byte(rawSources), &decoded); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("sources is not a JSON array: %v", err)), nil
		}

		bundle := validate.ContextBundle{}
		for _, src := range decoded {
			kind, err := parseSourceKind(src.Kind)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			bundle.Sources = append(bundle.Sources, validate.SourceRecord{
				ID:        src.ID,
				Kind:      kind,
				Text:      src.Text,
				Relevance: src.Relevance,
			})
		}

		reasoning := ""
		if r, err := req.RequireString("reasoning"); err == nil {
			reasoning = r
		}

		record, err := pipeline.Evaluate(ctx, answer, reasoning, bundle)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("validation error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(record, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func parseSourceKind(raw string) (validate.SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "file":
		return validate.SourceFile, nil
	case "memory":
		return validate.SourceMemory, nil
	case "web":
		return validate.SourceWeb, nil
	case "history":
		return validate.SourceHistory, nil
	case "follow_up", "followup":
		return validate.SourceFollowUp, nil
	}
	return "", fmt.Errorf("unknown source kind %q", raw)
}

func registerMemorySearchTool(s *server.MCPServer, searcher MemorySearcher) {
	tool := mcp.NewTool("veritas_memory_search",
		mcp.WithDescription("Search long-term memories. Uses embedding similarity when vectors are available, keyword overlap otherwise. Returns scored results."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default: 5, max: 50)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		limit := 5
		if limitVal, err := req.RequireFloat("limit"); err == nil {
			n := int(limitVal)
			if n > 50 {
				n = 50
			}
			if n > 0 {
				limit = n
			}
		}

		results, err := searcher.Search(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
		}

		type hit struct {
			ID       int64   `json:"id"`
			Content  string  `json:"content"`
			Category string  `json:"category"`
			Score    float64 `json:"score"`
		}
		hits := make([]hit, 0, len(results))
		for _, r := range results {
			hits = append(hits, hit{
				ID:       r.Memory.ID,
				Content:  r.Memory.Content,
				Category: r.Memory.Category,
				Score:    r.Score,
			})
		}

		data, _ := json.MarshalIndent(map[string]any{"results": hits, "count": len(hits)}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerMemoryAddTool(s *server.MCPServer, st store.Store, embedder Embedder) {
	tool := mcp.NewTool("veritas_memory_add",
		mcp.WithDescription("Store a new long-term memory. Embedded for semantic search when an embedder is configured."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The memory text to store"),
		),
		mcp.WithString("category",
			mcp.Description("Category tag (e.g. 'identity', 'preference', 'fact'). Defaults to 'general'."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		content, err := req.RequireString("content")
		if err != nil || strings.TrimSpace(content) == "" {
			return mcp.NewToolResultError("content is required"), nil
		}
		content = strings.TrimSpace(strings.ReplaceAll(content, "\x00", ""))

		category := ""
		if c, err := req.RequireString("category"); err == nil {
			category = c
		}

		mem := &store.Memory{
			Content:    content,
			Category:   category,
			Source:     "mcp",
			Confidence: 1.0,
		}
		if embedder != nil {
			if vectors, err := embedder.Embed(ctx, []string{content}); err == nil && len(vectors) == 1 {
				mem.Embedding = vectors[0]
			}
		}

		id, err := st.AddMemory(ctx, mem)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("store error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(map[string]any{"id": id, "message": "Memory stored"}, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerStatsTool(s *server.MCPServer, st store.Store) {
	tool := mcp.NewTool("veritas_stats",
		mcp.WithDescription("Get storage statistics: session, message, memory and attachment counts."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("stats error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// ServeStdio runs the server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
