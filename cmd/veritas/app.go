package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/veritaslocal/veritas/internal/chat"
	"github.com/veritaslocal/veritas/internal/config"
	"github.com/veritaslocal/veritas/internal/fusion"
	"github.com/veritaslocal/veritas/internal/llm"
	"github.com/veritaslocal/veritas/internal/mcp"
	"github.com/veritaslocal/veritas/internal/memory"
	"github.com/veritaslocal/veritas/internal/server"
	"github.com/veritaslocal/veritas/internal/store"
	"github.com/veritaslocal/veritas/internal/validate"
	"github.com/veritaslocal/veritas/internal/websearch"
)

// app holds the wired runtime components shared by the subcommands.
type app struct {
	cfg      config.ResolvedConfig
	store    store.Store
	provider llm.Provider
	embedder *llm.BoundEmbedder
	searcher *memory.Searcher
	pipeline *validate.Pipeline
	chat     *chat.Service
	logger   *log.Logger
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *flag.FlagSet, opts *config.ResolveOptions) {
	fs.StringVar(&opts.ConfigPath, "config", "", "config file path")
	fs.StringVar(&opts.CLIDBPath, "db", "", "database file path")
	fs.StringVar(&opts.CLIOllamaURL, "ollama-url", "", "Ollama base URL")
	fs.StringVar(&opts.CLIChatModel, "model", "", "chat model name")
}

// buildApp resolves configuration and wires the full component graph.
// Web search failures at construction time disable web retrieval rather
// than failing startup; everything else is required.
func buildApp(opts config.ResolveOptions) (*app, error) {
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "[veritas] ", log.LstdFlags)

	st, err := store.NewStore(cfg.DBPath.Value)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(llm.Config{
		BaseURL: cfg.OllamaBaseURL.Value,
		Model:   cfg.ChatModel.Value,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	embedder := llm.NewBoundEmbedder(provider, cfg.EmbedModel.Value)
	searcher := memory.NewSearcher(st, embedder, logger)
	recorder := memory.NewRecorder(st, embedder)

	var web fusion.WebSearcher
	if webProvider, err := websearch.NewProvider(cfg.WebProvider.Value, cfg.SearxURL.Value); err != nil {
		logger.Printf("web search disabled: %v", err)
	} else {
		web = websearch.NewClient(webProvider)
	}

	builder := fusion.NewBuilder(st, searcher, web, logger)

	var pipelineOpts []validate.Option
	if model := cfg.ExtractModel.Value; model != "" {
		completer := llm.NewSingleCompleter(provider, model)
		pipelineOpts = append(pipelineOpts, validate.WithExtractor(validate.NewLLMExtractor(completer)))
	}
	pipeline, err := validate.NewPipeline(cfg.Validation, pipelineOpts...)
	if err != nil {
		st.Close()
		return nil, err
	}

	chatSvc, err := chat.NewService(chat.Config{
		Store:       st,
		Bundler:     builder,
		Model:       provider,
		Validator:   pipeline,
		Memorist:    recorder,
		ReasonModel: cfg.ReasonModel.Value,
		Logger:      logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		store:    st,
		provider: provider,
		embedder: embedder,
		searcher: searcher,
		pipeline: pipeline,
		chat:     chatSvc,
		logger:   logger,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Printf("closing store: %v", err)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var opts config.ResolveOptions
	commonFlags(fs, &opts)
	fs.StringVar(&opts.CLIAddr, "addr", "", "listen address")
	fs.StringVar(&opts.CLIWebProvider, "web-provider", "", "web search provider (duckduckgo, searxng)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.NewServer(server.Config{
		Store:    a.store,
		Chat:     a.chat,
		Embedder: a.embedder,
		Logger:   a.logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx, a.cfg.Addr.Value)
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	var opts config.ResolveOptions
	commonFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := buildApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	srv := mcp.NewServer(mcp.ServerConfig{
		Store:    a.store,
		Pipeline: a.pipeline,
		Searcher: a.searcher,
		Embedder: a.embedder,
		Version:  version,
	})
	return mcp.ServeStdio(srv)
}
