// Package gemini adapts the Gemini API to the resolve.Resolver boundary.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"pocketmemory/internal/document/model"
	"pocketmemory/internal/resolve"

	"google.golang.org/genai"
)

// generator is the subset of *genai.Models the adapter uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type Resolver struct {
	models    generator
	model     string
	maxTokens int32
	thinking  *genai.ThinkingConfig
}

// New connects to the Gemini API. thinkingBudget caps the model's thinking
// tokens, which count against maxTokens: 0 disables thinking, -1 leaves it
// to the model.
func New(ctx context.Context, apiKey, modelName string, maxTokens, thinkingBudget int) (*Resolver, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newResolver(client.Models, modelName, maxTokens, thinkingBudget), nil
}

func newResolver(g generator, modelName string, maxTokens, thinkingBudget int) *Resolver {
	return &Resolver{
		models:    g,
		model:     modelName,
		maxTokens: int32(maxTokens),
		thinking:  &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(thinkingBudget))},
	}
}

// Resolve runs one round. Structured JSON output is requested only when no
// tools are offered, since the API does not combine the two.
func (r *Resolver) Resolve(ctx context.Context, req *resolve.Request) (*resolve.Reply, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(resolve.SystemPrompt(req.Index), genai.RoleUser),
		MaxOutputTokens:   r.maxTokens,
		ThinkingConfig:    r.thinking,
	}
	if len(req.Tools) > 0 {
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: declarations(req.Tools)}}
	} else {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = batchSchema()
	}

	resp, err := r.models.GenerateContent(ctx, r.model, contents(req.Transcript), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: generate: %w", err)
	}

	reply := &resolve.Reply{}
	for i, fc := range resp.FunctionCalls() {
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("gemini: encode call args: %w", err)
		}
		id := fc.ID
		if id == "" {
			id = fmt.Sprintf("call-%d", i)
		}
		reply.Calls = append(reply.Calls, resolve.ToolCall{ID: id, Name: fc.Name, Args: args})
	}
	if len(reply.Calls) > 0 {
		return reply, nil
	}
	if text := stripFences(resp.Text()); text != "" {
		reply.Payload = json.RawMessage(text)
	}
	return reply, nil
}

// Answer streams a conversational reply grounded in the index. Each text
// chunk is passed to emit as it arrives.
func (r *Resolver) Answer(ctx context.Context, transcript []resolve.Turn, index []model.IndexEntry, emit func(string) error) error {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(resolve.AnswerPrompt(index), genai.RoleUser),
		MaxOutputTokens:   r.maxTokens,
		ThinkingConfig:    r.thinking,
	}
	for resp, err := range r.models.GenerateContentStream(ctx, r.model, contents(transcript), cfg) {
		if err != nil {
			return fmt.Errorf("gemini: stream: %w", err)
		}
		if text := resp.Text(); text != "" {
			if err := emit(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func declarations(tools []resolve.Tool) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		params := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range t.Params {
			params.Properties[p.Name] = &genai.Schema{Type: genai.TypeString, Description: p.Description}
			params.Required = append(params.Required, p.Name)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		})
	}
	return out
}

func contents(transcript []resolve.Turn) []*genai.Content {
	out := make([]*genai.Content, 0, len(transcript))
	for _, turn := range transcript {
		switch {
		case turn.Call != nil:
			var args map[string]any
			_ = json.Unmarshal(turn.Call.Args, &args)
			out = append(out, genai.NewContentFromParts([]*genai.Part{{
				FunctionCall: &genai.FunctionCall{ID: turn.Call.ID, Name: turn.Call.Name, Args: args},
			}}, genai.RoleModel))
		case turn.Result != nil:
			var response map[string]any
			if err := json.Unmarshal(turn.Result.Output, &response); err != nil {
				response = map[string]any{"output": string(turn.Result.Output)}
			}
			out = append(out, genai.NewContentFromParts([]*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{ID: turn.Result.CallID, Name: turn.Result.Name, Response: response},
			}}, genai.RoleUser))
		case turn.Role == resolve.RoleAssistant:
			out = append(out, genai.NewContentFromText(turn.Content, genai.RoleModel))
		default:
			out = append(out, genai.NewContentFromText(turn.Content, genai.RoleUser))
		}
	}
	return out
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
