package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Completer is the minimal completion surface the model-backed extractor
// needs. internal/llm providers satisfy it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const extractionPrompt = `Extract named entities from the text below.
Return ONLY a JSON object of the form:
{"entities":[{"text":"...","label":"PERSON|ORG|GPE|DATE|MONEY|OTHER"}]}

Rules:
- Include people, organizations, places, dates and money amounts.
- Skip generic capitalized words, weekdays, nationalities and pronouns.
- Use the exact surface text from the input.

Text:
%s`

// LLMExtractor is the statistical extraction strategy. It asks a local
// model for entities via a structured JSON prompt. Any failure surfaces as
// an error so the pipeline can degrade to the pattern strategy.
type LLMExtractor struct {
	completer Completer
}

// NewLLMExtractor wires the model-backed strategy to a completion provider.
func NewLLMExtractor(c Completer) *LLMExtractor {
	return &LLMExtractor{completer: c}
}

// Name identifies the strategy in the confidence record.
func (e *LLMExtractor) Name() string { return "model" }

type extractionResponse struct {
	Entities []struct {
		Text  string `json:"text"`
		Label string `json:"label"`
	} `json:"entities"`
}

// Extract prompts the model and normalizes its output to the deterministic
// ordering contract: first occurrence offset, then label. Entities the
// model invents that do not occur in the input are dropped.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]Entity, error) {
	if e.completer == nil {
		return nil, fmt.Errorf("llm extractor: no completion provider")
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	raw, err := e.completer.Complete(ctx, fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("llm extractor: %w", err)
	}

	parsed, err := parseExtractionJSON(raw)
	if err != nil {
		return nil, err
	}

	var entities []Entity
	seen := map[string]struct{}{}
	for _, ent := range parsed.Entities {
		span := strings.TrimSpace(ent.Text)
		if span == "" {
			continue
		}
		offset := strings.Index(text, span)
		if offset < 0 {
			continue
		}
		key := strings.ToLower(span)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entities = append(entities, Entity{
			Text:   span,
			Label:  normalizeLabel(ent.Label),
			Offset: offset,
		})
	}

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Offset != entities[j].Offset {
			return entities[i].Offset < entities[j].Offset
		}
		return entities[i].Label < entities[j].Label
	})
	return entities, nil
}

// parseExtractionJSON tolerates the model wrapping its JSON in prose or a
// code fence, a failure mode small local models hit constantly.
func parseExtractionJSON(raw string) (*extractionResponse, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("llm extractor: no JSON object in response")
	}
	var parsed extractionResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("llm extractor: parsing response: %w", err)
	}
	return &parsed, nil
}

func normalizeLabel(label string) EntityLabel {
	switch EntityLabel(strings.ToUpper(strings.TrimSpace(label))) {
	case LabelPerson:
		return LabelPerson
	case LabelOrg:
		return LabelOrg
	case LabelPlace:
		return LabelPlace
	case LabelDate:
		return LabelDate
	case LabelMoney:
		return LabelMoney
	default:
		return LabelOther
	}
}
