// Package verdict asks Gemini whether a photo shows public garbage and
// validates the structured answer.
package verdict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cleancity/backend/internal/analysis"
	"cleancity/backend/internal/config"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/genai"
)

const answerSchemaURL = "mem://cleancity/verdict.schema.json"

const answerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["isPublicGarbage", "confidence", "severity", "reason"],
  "properties": {
    "isPublicGarbage": {"type": "boolean"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "severity": {"enum": ["LOW", "MEDIUM", "HIGH"]},
    "reason": {"type": "string"}
  }
}`

const prompt = `You review photos submitted to a municipal garbage reporting service.
Decide whether the photo shows uncollected garbage in a public place (street, park,
sidewalk, river bank). Private indoor mess, a person, or a clean scene is not public garbage.
Rate severity LOW, MEDIUM or HIGH by volume and hazard.
Answer with JSON only: {"isPublicGarbage": bool, "confidence": 0..1, "severity": "LOW|MEDIUM|HIGH", "reason": "one sentence"}.
Citizen description: `

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements analysis.Reasoner.
type Gemini struct {
	models      generator
	model       string
	temperature float32
	schema      *jsonschema.Schema
}

func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini.api_key is required for the ai_verdict pipeline")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, cfg)
}

func newGemini(g generator, cfg config.GeminiConfig) (*Gemini, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}
	return &Gemini{models: g, model: cfg.Model, temperature: cfg.Temperature, schema: schema}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(answerSchemaURL, strings.NewReader(answerSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(answerSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func (g *Gemini) ModelName() string { return g.model }

// Judge sends the image and description and returns the validated verdict.
func (g *Gemini) Judge(ctx context.Context, image []byte, description string) (*analysis.AIVerdict, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(image, http.DetectContentType(image)),
			genai.NewPartFromText(prompt + description),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return nil, errors.New("empty model response")
	}
	return g.parse(resp.Text())
}

func (g *Gemini) parse(text string) (*analysis.AIVerdict, error) {
	raw := []byte(stripFences(text))

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("model answer is not JSON: %w", err)
	}
	if err := g.schema.Validate(payload); err != nil {
		return nil, fmt.Errorf("model answer failed validation: %w", err)
	}

	var v analysis.AIVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
