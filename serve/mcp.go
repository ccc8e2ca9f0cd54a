package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/engine"
)

// RegisterMCP registers the translation tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerTranslateTool(srv)
	s.registerDetectTool(srv)
	s.registerAvailabilityTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type endpoint func(ctx context.Context, req any) (any, error)

// addTool wires decode, endpoint and JSON result encoding for one tool.
func addTool(srv *mcp.Server, tool *mcp.Tool, ep endpoint, decode func(*mcp.CallToolRequest) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decoded, err := decode(req)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("invalid arguments: %w", err))
			return &res, nil
		}

		resp, err := ep(ctx, decoded)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(errors.New(err.Error()))
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- translate ---

type mcpTranslateReq struct {
	HTML     string `json:"html"`
	Target   string `json:"target"`
	Source   string `json:"source,omitempty"`
	Sanitize bool   `json:"sanitize,omitempty"`
}

func (s *Service) registerTranslateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lingodom_translate",
		Description: "Translate an HTML document to a target language, in place. Returns the translated HTML.",
		InputSchema: inputSchema(map[string]any{
			"html":     map[string]any{"type": "string", "description": "HTML document to translate"},
			"target":   map[string]any{"type": "string", "description": "Target language (BCP 47, e.g. \"es\")"},
			"source":   map[string]any{"type": "string", "description": "Source language; omit to auto-detect"},
			"sanitize": map[string]any{"type": "boolean", "description": "Strip scripts and event handlers first"},
		}, []string{"html", "target"}),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*mcpTranslateReq)
		src := r.HTML
		if r.Sanitize {
			src = s.sanitizer.Sanitize(src)
		}
		out, err := engine.TranslateHTML(ctx, src, s.factory, s.cfg, r.Target, r.Source)
		if err != nil {
			return nil, err
		}
		return map[string]string{"html": out, "target": r.Target}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r mcpTranslateReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	addTool(srv, tool, ep, decode)
}

// --- detect ---

type mcpDetectReq struct {
	Text string `json:"text"`
}

func (s *Service) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lingodom_detect",
		Description: "Detect the language of a text sample. Returns an ISO 639-1 code, or empty when unsure.",
		InputSchema: inputSchema(map[string]any{
			"text": map[string]any{"type": "string", "description": "Text sample to analyse"},
		}, []string{"text"}),
	}

	ep := func(_ context.Context, req any) (any, error) {
		if s.detect == nil {
			return nil, errors.New("language detection not configured")
		}
		r := req.(*mcpDetectReq)
		return map[string]string{"language": s.detect(r.Text)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r mcpDetectReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	addTool(srv, tool, ep, decode)
}

// --- availability ---

type mcpAvailabilityReq struct {
	Target string `json:"target"`
	Source string `json:"source,omitempty"`
}

func (s *Service) registerAvailabilityTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "lingodom_availability",
		Description: "Report whether a language pair can be translated: available, downloadable, downloading or unavailable.",
		InputSchema: inputSchema(map[string]any{
			"target": map[string]any{"type": "string", "description": "Target language"},
			"source": map[string]any{"type": "string", "description": "Source language; omit for auto"},
		}, []string{"target"}),
	}

	ep := func(ctx context.Context, req any) (any, error) {
		r := req.(*mcpAvailabilityReq)
		state, err := s.factory.Availability(ctx, capability.Pair{Source: r.Source, Target: r.Target})
		if err != nil {
			return nil, err
		}
		return map[string]string{"state": string(state)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (any, error) {
		var r mcpAvailabilityReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &r, nil
	}

	addTool(srv, tool, ep, decode)
}
