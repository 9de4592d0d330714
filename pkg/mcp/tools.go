package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pario-ai/skillgate/pkg/models"
)

type queryArgs struct {
	Query          string         `json:"query"`
	Context        map[string]any `json:"context"`
	MinConfidence  float64        `json:"min_confidence"`
	ConversationID string         `json:"conversation_id"`
}

type skillsArgs struct {
	Task string `json:"task"`
}

// toolHandler handles one of the server's own tools.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

var toolHandlers = map[string]toolHandler{
	"skillgate_query":       handleQuery,
	"skillgate_cache_stats": handleCacheStats,
	"skillgate_stats":       handleStats,
	"skillgate_skills":      handleSkills,
}

var ownTools = []ToolDefinition{
	{
		Name:        "skillgate_query",
		Description: "Answer a query through the skill orchestrator, serving repeats from cache.",
		InputSchema: InputSchema{
			Type:     "object",
			Required: []string{"query"},
			Properties: map[string]Property{
				"query":           {Type: "string", Description: "The task or question"},
				"context":         {Type: "object", Description: "Structured context (optional)"},
				"min_confidence":  {Type: "number", Description: "Admission threshold in [0,1] (optional)"},
				"conversation_id": {Type: "string", Description: "Record the exchange in this context chain (optional)"},
			},
		},
	},
	{
		Name:        "skillgate_cache_stats",
		Description: "Show fingerprint cache statistics (entries, hits, misses, per-category usage).",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	},
	{
		Name:        "skillgate_stats",
		Description: "Show orchestrator, tool, context and detector statistics.",
		InputSchema: InputSchema{Type: "object", Properties: map[string]Property{}},
	},
	{
		Name:        "skillgate_skills",
		Description: "List registered skills, or suggest skills whose triggers match a task.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"task": {Type: "string", Description: "Task text to match against triggers (optional)"},
			},
		},
	},
}

// toolDefinitions lists the server's own tools followed by the validator's.
func (s *Server) toolDefinitions() []ToolDefinition {
	defs := append([]ToolDefinition(nil), ownTools...)
	for _, schema := range s.svc.Tools().Tools() {
		defs = append(defs, definitionFor(schema))
	}
	return defs
}

func definitionFor(schema models.ToolSchema) ToolDefinition {
	in := InputSchema{Type: "object", Properties: make(map[string]Property)}
	for name, p := range schema.Required {
		in.Required = append(in.Required, name)
		in.Properties[name] = property(p)
	}
	for name, p := range schema.Optional {
		in.Properties[name] = property(p)
	}
	sort.Strings(in.Required)
	return ToolDefinition{Name: schema.Name, Description: schema.Description, InputSchema: in}
}

// property maps a parameter to JSON Schema. "any" has no JSON Schema type
// keyword, so it is left unconstrained.
func property(p models.ParamSpec) Property {
	if p.Type == models.ParamAny {
		return Property{Description: p.Description}
	}
	return Property{Type: string(p.Type), Description: p.Description}
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func decodeArgs(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func handleQuery(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args queryArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if strings.TrimSpace(args.Query) == "" {
		return errorResult("query is required")
	}
	res, err := s.svc.Query(ctx, models.QueryRequest{
		Query:          args.Query,
		Context:        args.Context,
		MinConfidence:  args.MinConfidence,
		ConversationID: args.ConversationID,
	})
	if err != nil {
		return errorResult("Error running query: " + err.Error())
	}
	out := textResult(formatQueryResult(res))
	out.IsError = res.Status == models.StatusFailed
	return out
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(st.Cache))
}

func handleStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching stats: " + err.Error())
	}
	return jsonResult(st)
}

func handleSkills(_ context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	var args skillsArgs
	if err := decodeArgs(raw, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	if args.Task != "" {
		return textResult(formatMatches(s.svc.MatchSkills("", args.Task)))
	}
	return textResult(formatSkills(s.svc.ListSkills()))
}

// callValidated runs a validator tool. Validation failures come back as an
// error result listing every problem.
func (s *Server) callValidated(ctx context.Context, params ToolCallParams) ToolCallResult {
	var args map[string]any
	if err := decodeArgs(params.Arguments, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}

	v := s.svc.Tools()
	call := v.CreateCall(params.Name, args)
	if call.Status == models.ToolInvalid {
		return errorResult(strings.Join(call.ValidationErrors, "\n"))
	}
	call, err := v.Execute(ctx, call, nil)
	if err != nil {
		return errorResult("Error executing " + params.Name + ": " + err.Error())
	}
	if call.Status == models.ToolFailed {
		return errorResult(strings.Join(call.ValidationErrors, "\n"))
	}
	return jsonResult(call.Result)
}

// jsonResult renders v as indented JSON. HTML escaping is off so code
// snippets reach the client verbatim.
func jsonResult(v any) ToolCallResult {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errorResult("Error encoding result: " + err.Error())
	}
	return textResult(strings.TrimSuffix(buf.String(), "\n"))
}
