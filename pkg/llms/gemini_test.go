package llms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newProvider(t *testing.T, handler http.HandlerFunc) *GeminiProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewGeminiProvider(GeminiConfig{
		APIKey: "test-key",
		Host:   server.URL,
		Model:  "gemini-2.5-pro",
	})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestGenerate_Text(t *testing.T) {
	var captured geminiRequest
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-pro:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": "All 5 projects are active."}},
				},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]interface{}{"totalTokenCount": 42},
		})
	})

	text, calls, tokens, err := p.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a data assistant."},
		{Role: RoleUser, Content: "How many projects are active?"},
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "All 5 projects are active." {
		t.Errorf("unexpected text %q", text)
	}
	if len(calls) != 0 {
		t.Errorf("unexpected tool calls %v", calls)
	}
	if tokens != 42 {
		t.Errorf("expected 42 tokens, got %d", tokens)
	}

	// System messages have no native role upstream; both arrive as user.
	if len(captured.Contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(captured.Contents))
	}
	if captured.Contents[0].Role != "user" {
		t.Errorf("system message should map to user role, got %q", captured.Contents[0].Role)
	}
}

func TestGenerate_ToolCall(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role": "model",
					"parts": []map[string]interface{}{{
						"functionCall": map[string]interface{}{
							"name": "execute_sql",
							"args": map[string]interface{}{"query": "SELECT COUNT(*) FROM projects"},
						},
					}},
				},
			}},
		})
	})

	_, calls, _, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "count projects"}},
		[]ToolDefinition{{Name: "execute_sql", Description: "run sql"}})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].Name != "execute_sql" {
		t.Errorf("unexpected call %+v", calls[0])
	}
	if calls[0].Arguments["query"] != "SELECT COUNT(*) FROM projects" {
		t.Errorf("unexpected arguments %v", calls[0].Arguments)
	}
}

func TestGenerate_ToolResponseRoundTrip(t *testing.T) {
	var captured geminiRequest
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": "done"}},
				},
			}},
		})
	})

	_, _, _, err := p.Generate(context.Background(), []Message{
		{Role: RoleUser, Content: "count projects"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{
			ID: "call_0", Name: "execute_sql",
			Arguments: map[string]interface{}{"query": "SELECT 1"},
		}}},
		{Role: RoleTool, Name: "execute_sql", Content: `{"success":true,"row_count":1}`},
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(captured.Contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(captured.Contents))
	}
	if captured.Contents[1].Role != "model" {
		t.Errorf("assistant should map to model, got %q", captured.Contents[1].Role)
	}
	if _, ok := captured.Contents[1].Parts[0]["functionCall"]; !ok {
		t.Error("assistant tool call not encoded as functionCall")
	}
	if _, ok := captured.Contents[2].Parts[0]["functionResponse"]; !ok {
		t.Error("tool result not encoded as functionResponse")
	}
}

func TestGenerate_APIError(t *testing.T) {
	// The API reports errors with a 4xx status; the structured message must
	// survive rather than collapse into a bare status code.
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{
				"code":    400,
				"message": "API key not valid",
				"status":  "INVALID_ARGUMENT",
			},
		})
	})

	_, _, _, err := p.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	if _, err := NewGeminiProvider(GeminiConfig{Model: "gemini-2.5-pro"}); err == nil {
		t.Fatal("expected error without api key")
	}
}
