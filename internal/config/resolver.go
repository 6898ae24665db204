// Package config resolves runtime settings from CLI flags, environment
// variables, a YAML config file and built-in defaults, in that precedence
// order. Every resolved value carries its provenance so `veritas config`
// can show where each setting came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/veritaslocal/veritas/internal/validate"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

// ResolvedValue is a setting plus where it was resolved from.
type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI-flag overrides into resolution.
type ResolveOptions struct {
	ConfigPath     string
	CLIAddr        string
	CLIDBPath      string
	CLIOllamaURL   string
	CLIChatModel   string
	CLIWebProvider string
}

// ResolvedConfig is the fully resolved runtime configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	Addr   ResolvedValue `json:"addr"`
	DBPath ResolvedValue `json:"db_path"`

	OllamaBaseURL ResolvedValue `json:"ollama_base_url"`
	ChatModel     ResolvedValue `json:"chat_model"`
	ReasonModel   ResolvedValue `json:"reason_model"`
	ExtractModel  ResolvedValue `json:"extract_model"`
	EmbedModel    ResolvedValue `json:"embed_model"`

	WebProvider ResolvedValue `json:"web_provider"`
	SearxURL    ResolvedValue `json:"searx_url"`

	// Validation carries the pipeline tunables. File values override the
	// built-in defaults field by field; there is no env/CLI surface for
	// these, they change rarely and together.
	Validation validate.Config `json:"validation"`
}

type fileConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	DBPath string `yaml:"db_path"`
	Ollama struct {
		BaseURL      string `yaml:"base_url"`
		ChatModel    string `yaml:"chat_model"`
		ReasonModel  string `yaml:"reason_model"`
		ExtractModel string `yaml:"extract_model"`
		EmbedModel   string `yaml:"embed_model"`
	} `yaml:"ollama"`
	WebSearch struct {
		Provider string `yaml:"provider"`
		SearxURL string `yaml:"searx_url"`
	} `yaml:"websearch"`
	Validation *fileValidation `yaml:"validation"`
}

type fileValidation struct {
	Priors            map[string]float64    `yaml:"priors"`
	Guard             *validate.GuardConfig `yaml:"guard"`
	HardVetoPhrases   []string              `yaml:"hard_veto_phrases"`
	SoftVetoPhrases   []string              `yaml:"soft_veto_phrases"`
	SoftVetoCap       *float64              `yaml:"soft_veto_cap"`
	ConflictReduction *float64              `yaml:"conflict_reduction"`
	MinEntityLength   *int                  `yaml:"min_entity_length"`
}

const (
	defaultAddr          = "127.0.0.1:8421"
	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultChatModel     = "llama3.1"
	defaultEmbedModel    = "nomic-embed-text"
	defaultWebProvider   = "duckduckgo"
)

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".veritas", "config.yaml")
}

func DefaultDBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".veritas", "veritas.db")
}

// ResolveConfig layers defaults, file, environment and CLI values. A missing
// config file is not an error; a malformed one is.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		Validation: validate.DefaultConfig(),
	}

	applyDefault(&out.Addr, defaultAddr)
	applyDefault(&out.DBPath, DefaultDBPath())
	applyDefault(&out.OllamaBaseURL, defaultOllamaBaseURL)
	applyDefault(&out.ChatModel, defaultChatModel)
	applyDefault(&out.EmbedModel, defaultEmbedModel)
	applyDefault(&out.WebProvider, defaultWebProvider)

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.Addr, cfg.Server.Addr, SourceConfig, path)
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.OllamaBaseURL, cfg.Ollama.BaseURL, SourceConfig, path)
		apply(&out.ChatModel, cfg.Ollama.ChatModel, SourceConfig, path)
		apply(&out.ReasonModel, cfg.Ollama.ReasonModel, SourceConfig, path)
		apply(&out.ExtractModel, cfg.Ollama.ExtractModel, SourceConfig, path)
		apply(&out.EmbedModel, cfg.Ollama.EmbedModel, SourceConfig, path)
		apply(&out.WebProvider, cfg.WebSearch.Provider, SourceConfig, path)
		apply(&out.SearxURL, cfg.WebSearch.SearxURL, SourceConfig, path)
		mergeValidation(&out.Validation, cfg.Validation)
	}

	applyEnv(&out.Addr, "VERITAS_ADDR")
	applyEnv(&out.DBPath, "VERITAS_DB")
	applyEnv(&out.OllamaBaseURL, "VERITAS_OLLAMA_URL")
	applyEnv(&out.ChatModel, "VERITAS_CHAT_MODEL")
	applyEnv(&out.ReasonModel, "VERITAS_REASON_MODEL")
	applyEnv(&out.ExtractModel, "VERITAS_EXTRACT_MODEL")
	applyEnv(&out.EmbedModel, "VERITAS_EMBED_MODEL")
	applyEnv(&out.WebProvider, "VERITAS_WEB_PROVIDER")
	applyEnv(&out.SearxURL, "VERITAS_SEARX_URL")

	apply(&out.Addr, opts.CLIAddr, SourceCLI, "--addr")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.OllamaBaseURL, opts.CLIOllamaURL, SourceCLI, "--ollama")
	apply(&out.ChatModel, opts.CLIChatModel, SourceCLI, "--model")
	apply(&out.WebProvider, opts.CLIWebProvider, SourceCLI, "--web")

	if out.DBPath.Value != "" {
		out.DBPath.Value = expandUserPath(out.DBPath.Value)
	}

	return out, nil
}

// mergeValidation overrides defaults field by field with values present in
// the file. Pointer fields distinguish "absent" from zero.
func mergeValidation(dst *validate.Config, src *fileValidation) {
	if src == nil {
		return
	}
	for kind, prior := range src.Priors {
		dst.Priors[validate.SourceKind(kind)] = prior
	}
	if src.Guard != nil {
		dst.Guard = *src.Guard
	}
	if len(src.HardVetoPhrases) > 0 {
		dst.HardVetoPhrases = src.HardVetoPhrases
	}
	if len(src.SoftVetoPhrases) > 0 {
		dst.SoftVetoPhrases = src.SoftVetoPhrases
	}
	if src.SoftVetoCap != nil {
		dst.SoftVetoCap = *src.SoftVetoCap
	}
	if src.ConflictReduction != nil {
		dst.ConflictReduction = *src.ConflictReduction
	}
	if src.MinEntityLength != nil {
		dst.MinEntityLength = *src.MinEntityLength
	}
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyDefault(dst *ResolvedValue, value string) {
	*dst = ResolvedValue{Value: value, Source: SourceDefault, From: "built-in default"}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
