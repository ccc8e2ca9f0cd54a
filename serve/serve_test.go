package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lingodom/lingodom/capability"
	"github.com/lingodom/lingodom/engine"
)

type echoFactory struct {
	state capability.State
}

func (f *echoFactory) Availability(_ context.Context, _ capability.Pair) (capability.State, error) {
	if f.state != "" {
		return f.state, nil
	}
	return capability.Available, nil
}

func (f *echoFactory) Create(_ context.Context, p capability.Pair, _ capability.CreateOptions) (capability.Session, error) {
	return &echoSession{target: p.Target}, nil
}

type echoSession struct{ target string }

func (s *echoSession) Translate(_ context.Context, text string) (string, error) {
	return "[" + s.target + "]" + strings.ToLower(text), nil
}

func (s *echoSession) Destroy() {}

func testService(opts ...Option) *Service {
	cfg := engine.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	opts = append([]Option{WithLogger(cfg.Logger)}, opts...)
	return NewService(&echoFactory{}, cfg, opts...)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestTranslateEndpoint(t *testing.T) {
	h := testService().Router()

	rec := postJSON(t, h, "/v1/translate", map[string]any{
		"html":   "<html><body><p>Hello world</p></body></html>",
		"target": "es",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		HTML   string `json:"html"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Target != "es" {
		t.Errorf("target = %q", resp.Target)
	}
	// "Hello world" detects as Capitalized, so the first letter of the
	// fake's output is uppercased on the way back in.
	if !strings.Contains(resp.HTML, "[Es]hello world") {
		t.Errorf("html = %q, want translated paragraph", resp.HTML)
	}
	if !strings.Contains(resp.HTML, `data-ai-lang="es"`) {
		t.Errorf("html = %q, want language marker", resp.HTML)
	}
}

func TestTranslateValidation(t *testing.T) {
	h := testService().Router()

	rec := postJSON(t, h, "/v1/translate", map[string]any{"target": "es"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing html: status = %d", rec.Code)
	}

	rec = postJSON(t, h, "/v1/translate", map[string]any{"html": "<p>x</p>"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing target: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", rec2.Code)
	}
}

func TestTranslateSanitizes(t *testing.T) {
	h := testService().Router()

	rec := postJSON(t, h, "/v1/translate", map[string]any{
		"html":     `<p onclick="steal()">Hello</p><script>steal()</script>`,
		"target":   "es",
		"sanitize": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		HTML string `json:"html"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if strings.Contains(resp.HTML, "script") || strings.Contains(resp.HTML, "onclick") {
		t.Errorf("sanitized output still carries scripts: %q", resp.HTML)
	}
}

func TestTranslateUnavailablePair(t *testing.T) {
	cfg := engine.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	svc := NewService(&echoFactory{state: capability.Unavailable}, cfg, WithLogger(cfg.Logger))
	h := svc.Router()

	rec := postJSON(t, h, "/v1/translate", map[string]any{
		"html":   "<p>Hello</p>",
		"target": "zu",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestDetectEndpoint(t *testing.T) {
	h := testService(WithDetect(func(string) string { return "fr" })).Router()

	rec := postJSON(t, h, "/v1/detect", map[string]any{"text": "Bonjour tout le monde"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["language"] != "fr" {
		t.Errorf("language = %q", resp["language"])
	}
}

func TestDetectUnconfigured(t *testing.T) {
	h := testService().Router()

	rec := postJSON(t, h, "/v1/detect", map[string]any{"text": "hi"})
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	h := testService().Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body)
	}
}

func TestStatusFor(t *testing.T) {
	if got := statusFor(capability.ErrUnavailable); got != http.StatusUnprocessableEntity {
		t.Errorf("ErrUnavailable = %d", got)
	}
	if got := statusFor(capability.ErrUnsupported); got != http.StatusUnprocessableEntity {
		t.Errorf("ErrUnsupported = %d", got)
	}
	if got := statusFor(context.DeadlineExceeded); got != http.StatusRequestTimeout {
		t.Errorf("DeadlineExceeded = %d", got)
	}
	if got := statusFor(io.ErrUnexpectedEOF); got != http.StatusInternalServerError {
		t.Errorf("generic = %d", got)
	}
}
