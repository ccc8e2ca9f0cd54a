package serve

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lingodom/lingodom/engine"
)

var testMCPImpl = &mcp.Implementation{Name: "lingodom-test", Version: "0.1.0"}

func mcpSession(t *testing.T) *mcp.ClientSession {
	t.Helper()
	cfg := engine.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	svc := NewService(&echoFactory{}, cfg,
		WithLogger(cfg.Logger),
		WithDetect(func(string) string { return "en" }))

	srv := mcp.NewServer(testMCPImpl, nil)
	svc.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	return tc.Text
}

func TestMCP_Translate(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "lingodom_translate", map[string]any{
		"html":   "<html><body><p>Hello world</p></body></html>",
		"target": "es",
	})

	var resp struct {
		HTML   string `json:"html"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Target != "es" {
		t.Errorf("target = %q", resp.Target)
	}
	if !strings.Contains(resp.HTML, "[Es]hello world") {
		t.Errorf("html = %q, want translated paragraph", resp.HTML)
	}
}

func TestMCP_TranslateInvalidTarget(t *testing.T) {
	session := mcpSession(t)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "lingodom_translate",
		Arguments: map[string]any{
			"html":   "<p>x</p>",
			"target": "not a language!",
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !result.IsError {
		t.Error("invalid target should produce a tool error")
	}
}

func TestMCP_Detect(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "lingodom_detect", map[string]any{
		"text": "The quick brown fox jumps over the lazy dog",
	})

	var resp map[string]string
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["language"] != "en" {
		t.Errorf("language = %q", resp["language"])
	}
}

func TestMCP_Availability(t *testing.T) {
	session := mcpSession(t)

	text := mcpCallTool(t, session, "lingodom_availability", map[string]any{
		"target": "es",
	})

	var resp map[string]string
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["state"] != "available" {
		t.Errorf("state = %q", resp["state"])
	}
}
