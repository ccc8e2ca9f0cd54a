package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lingodom/lingodom/capability"
)

func chatResponse(content string) string {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func newTestFactory(t *testing.T, handler http.HandlerFunc) *Factory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL: srv.URL,
		Model:   "test-model",
		Client:  srv.Client(),
	})
}

func TestTranslate(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(chatResponse("Hola mundo")))
	})

	sess, err := f.Create(context.Background(), capability.Pair{Source: "en", Target: "es"}, capability.CreateOptions{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer sess.Destroy()

	out, err := sess.Translate(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Hola mundo" {
		t.Errorf("Translate = %q", out)
	}
	if gotBody.Model != "test-model" || gotBody.Stream {
		t.Errorf("request body = %+v", gotBody)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[1].Content != "Hello world" {
		t.Errorf("messages = %+v", gotBody.Messages)
	}
}

func TestTranslateRetriesServerError(t *testing.T) {
	calls := 0
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(chatResponse("Hola")))
	})

	sess, _ := f.Create(context.Background(), capability.Pair{Target: "es"}, capability.CreateOptions{})
	defer sess.Destroy()

	out, err := sess.Translate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Hola" || calls != 2 {
		t.Errorf("out=%q calls=%d", out, calls)
	}
}

func TestTranslateAfterDestroy(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatResponse("x")))
	})
	sess, _ := f.Create(context.Background(), capability.Pair{Target: "es"}, capability.CreateOptions{})
	sess.Destroy()

	_, err := sess.Translate(context.Background(), "Hello")
	if !errors.Is(err, capability.ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func TestTranslateStream(t *testing.T) {
	f := newTestFactory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Hola", " ", "mundo"}
		for _, c := range chunks {
			payload, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{
					{"delta": map[string]any{"content": c}},
				},
			})
			w.Write([]byte("data: " + string(payload) + "\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	})

	sess, _ := f.Create(context.Background(), capability.Pair{Target: "es"}, capability.CreateOptions{})
	defer sess.Destroy()

	ss, ok := sess.(capability.StreamingSession)
	if !ok {
		t.Fatal("llm session does not stream")
	}

	var got []string
	err := ss.TranslateStream(context.Background(), "Hello world", func(chunk string) {
		got = append(got, chunk)
	})
	if err != nil {
		t.Fatalf("TranslateStream: %v", err)
	}
	if strings.Join(got, "") != "Hola mundo" {
		t.Errorf("chunks = %q", got)
	}
	if len(got) != 3 {
		t.Errorf("got %d chunks, want 3", len(got))
	}
}

func TestAvailability(t *testing.T) {
	f := New(Config{BaseURL: "http://localhost", Model: "m"})

	state, err := f.Availability(context.Background(), capability.Pair{Target: "es"})
	if err != nil || state != capability.Available {
		t.Errorf("Availability = %v, %v", state, err)
	}
	state, _ = f.Availability(context.Background(), capability.Pair{})
	if state != capability.Unavailable {
		t.Errorf("empty target availability = %v", state)
	}
	if f.SupportsDownloadProgress() {
		t.Error("remote factory should not report download progress")
	}
}

func TestParseRetryDelay(t *testing.T) {
	body := []byte(`{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"7s"}]}}`)
	if d := parseRetryDelay(body); d != 12*time.Second {
		t.Errorf("parseRetryDelay = %v, want 12s (7s + 5s buffer)", d)
	}
	if d := parseRetryDelay([]byte(`not json`)); d != 65*time.Second {
		t.Errorf("fallback delay = %v, want 65s", d)
	}
}

func TestExtractContentErrors(t *testing.T) {
	if _, err := extractContent([]byte(`{"choices":[]}`)); err == nil {
		t.Error("empty choices should error")
	}
	if _, err := extractContent([]byte(`{"error":{"message":"quota"}}`)); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("API error not surfaced: %v", err)
	}
}
