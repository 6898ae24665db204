package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/veritaslocal/veritas/internal/store"
)

func registerStatsResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"veritas://stats",
		"Storage Statistics",
		mcp.WithResourceDescription("Session, message, memory and attachment counts."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		stats, err := st.Stats(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading stats resource: %w", err)
		}

		data, _ := json.MarshalIndent(stats, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func registerRecentMemoriesResource(s *server.MCPServer, st store.Store) {
	resource := mcp.NewResource(
		"veritas://memories/recent",
		"Recent Memories",
		mcp.WithResourceDescription("The most recently stored long-term memories."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		dbMu.Lock()
		defer dbMu.Unlock()

		memories, err := st.ListMemories(ctx, "", 20)
		if err != nil {
			return nil, fmt.Errorf("reading memories resource: %w", err)
		}

		type item struct {
			ID       int64  `json:"id"`
			Content  string `json:"content"`
			Category string `json:"category"`
			Source   string `json:"source"`
		}
		items := make([]item, 0, len(memories))
		for _, m := range memories {
			items = append(items, item{ID: m.ID, Content: m.Content, Category: m.Category, Source: m.Source})
		}

		payload := map[string]any{"memories": items, "count": len(items)}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
