package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/veritaslocal/veritas/internal/chat"
	"github.com/veritaslocal/veritas/internal/config"
	"github.com/veritaslocal/veritas/internal/store"
	"github.com/veritaslocal/veritas/internal/validate"
)

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	var opts config.ResolveOptions
	commonFlags(fs, &opts)
	useWeb := fs.Bool("web", false, "allow web search")
	reason := fs.Bool("reason", false, "run a reasoning pass before validation")
	sessionID := fs.String("session", "", "existing session ID (default: new session)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("usage: veritas ask [flags] <question>")
	}

	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if *sessionID == "" {
		sess := &store.Session{ID: uuid.NewString(), Title: sessionTitle(question)}
		if err := a.store.CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		*sessionID = sess.ID
	}

	var record *validate.ConfidenceRecord
	var refused bool
	emit := func(e chat.Event) {
		switch e.Type {
		case chat.EventToken:
			fmt.Print(e.Token)
		case chat.EventVerificationStarting:
			fmt.Print("\n")
		case chat.EventVerificationComplete:
			record = e.Record
		case chat.EventDone:
			if record != nil && record.Refused {
				refused = true
				fmt.Println(e.Text)
			}
		}
	}

	chatOpts := chat.Options{UseWeb: *useWeb, Reason: *reason}
	if err := a.chat.StreamReply(ctx, *sessionID, question, chatOpts, emit); err != nil {
		return err
	}
	if record != nil && !refused {
		fmt.Println()
	}
	fmt.Println(formatRecord(record))
	return nil
}

// sessionTitle derives a short session title from the question.
func sessionTitle(question string) string {
	const max = 60
	if len(question) <= max {
		return question
	}
	cut := question[:max]
	if idx := strings.LastIndexByte(cut, ' '); idx > 20 {
		cut = cut[:idx]
	}
	return cut + "…"
}

// formatRecord renders a one-line confidence summary for the terminal.
func formatRecord(rec *validate.ConfidenceRecord) string {
	if rec == nil {
		return "confidence: unavailable"
	}
	if rec.Refused {
		return fmt.Sprintf("confidence: %.2f (refused, signals: %s)",
			rec.ConfidenceFinal, strings.Join(rec.Veto.Signals, "; "))
	}

	parts := []string{fmt.Sprintf("confidence: %.2f", rec.ConfidenceFinal)}
	parts = append(parts, fmt.Sprintf("risk: %s", rec.RiskLevel))
	if rec.SourceUsed != "" {
		parts = append(parts, fmt.Sprintf("source: %s", rec.SourceUsed))
	}
	if rec.Ungrounded {
		parts = append(parts, "ungrounded")
	}
	if n := len(rec.FactualGuard.Unverified); n > 0 {
		parts = append(parts, fmt.Sprintf("%d unverified", n))
	}
	if n := len(rec.SourceConflicts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d conflict(s)", n))
	}
	return strings.Join(parts, ", ")
}

func runSessions(args []string) error {
	fs := flag.NewFlagSet("sessions", flag.ExitOnError)
	var opts config.ResolveOptions
	commonFlags(fs, &opts)
	limit := fs.Int("limit", 50, "maximum sessions to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	sessions, err := a.store.ListSessions(context.Background(), *limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Printf("%s  %s  %s\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04"), s.Title)
	}
	return nil
}

func runMemories(args []string) error {
	fs := flag.NewFlagSet("memories", flag.ExitOnError)
	var opts config.ResolveOptions
	commonFlags(fs, &opts)
	category := fs.String("category", "", "filter by category")
	limit := fs.Int("limit", 50, "maximum memories to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	memories, err := a.store.ListMemories(context.Background(), *category, *limit)
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		fmt.Println("No memories.")
		return nil
	}
	for _, m := range memories {
		fmt.Printf("#%d  [%s/%s]  %s\n", m.ID, m.Category, m.Source, m.Content)
	}
	return nil
}

func runRemember(args []string) error {
	fs := flag.NewFlagSet("remember", flag.ExitOnError)
	var opts config.ResolveOptions
	commonFlags(fs, &opts)
	category := fs.String("category", "", "memory category")
	if err := fs.Parse(args); err != nil {
		return err
	}

	content := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if content == "" {
		return fmt.Errorf("usage: veritas remember [flags] <text>")
	}

	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	mem := &store.Memory{
		Content:    content,
		Category:   *category,
		Source:     "manual",
		Confidence: 1.0,
	}
	if vectors, err := a.embedder.Embed(ctx, []string{content}); err != nil {
		a.logger.Printf("embedding failed, storing without vector: %v", err)
	} else if len(vectors) == 1 {
		mem.Embedding = vectors[0]
	}

	id, err := a.store.AddMemory(ctx, mem)
	if err != nil {
		return err
	}
	fmt.Printf("Stored memory #%d\n", id)
	return nil
}

func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var opts config.ResolveOptions
	commonFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
