package orchestrator

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ocakhasan/askdata/pkg/agent"
	"github.com/ocakhasan/askdata/pkg/config"
	"github.com/ocakhasan/askdata/pkg/llms"
	"github.com/ocakhasan/askdata/pkg/memory"
	"github.com/ocakhasan/askdata/pkg/toolserver"
)

// scriptedProvider replays a fixed sequence of model turns.
type scriptedProvider struct {
	turns []turn
	calls int
	seen  [][]llms.Message
}

type turn struct {
	text      string
	toolCalls []llms.ToolCall
	err       error
}

func (p *scriptedProvider) Generate(_ context.Context, messages []llms.Message, _ []llms.ToolDefinition) (string, []llms.ToolCall, int, error) {
	p.seen = append(p.seen, messages)
	t := p.turns[len(p.turns)-1]
	if p.calls < len(p.turns) {
		t = p.turns[p.calls]
	}
	p.calls++
	return t.text, t.toolCalls, 0, t.err
}

func (p *scriptedProvider) GetModelName() string { return "scripted" }
func (p *scriptedProvider) Close() error         { return nil }

// newToolServer runs a real tool server over an in-memory database holding
// three projects, counting incoming RPC requests.
func newToolServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	stmts := []string{
		`CREATE TABLE projects (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`,
		`INSERT INTO projects (name) VALUES ('Apollo'), ('Titan'), ('Orion')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	inner := toolserver.New("tool server", db, nil).Router()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		inner.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newOrchestrator(t *testing.T, provider llms.Provider, endpoint string, store memory.Store) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Tenants: []config.Tenant{{ID: "tenant_a", Endpoint: endpoint + "/rpc"}},
	}
	srv := New(cfg, agent.NewRegistry(provider), store)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postChat(t *testing.T, url, path string, body map[string]interface{}) *http.Response {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func listProjectsScript() *scriptedProvider {
	return &scriptedProvider{turns: []turn{
		{text: "I should check the schema first.", toolCalls: []llms.ToolCall{{
			ID: "call_0", Name: "get_database_schema", Arguments: map[string]interface{}{},
		}}},
		{text: "Now I can query the projects.", toolCalls: []llms.ToolCall{{
			ID: "call_1", Name: "execute_sql",
			Arguments: map[string]interface{}{"query": "SELECT name FROM projects"},
		}}},
		{text: "The projects are Apollo, Titan, and Orion."},
	}}
}

func TestChat_EndToEnd(t *testing.T) {
	toolSrv := newToolServer(t, nil)
	orch := newOrchestrator(t, listProjectsScript(), toolSrv.URL, nil)

	resp := postChat(t, orch.URL, "/chat", map[string]interface{}{
		"query": "list all projects", "tenant_id": "tenant_a",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"Apollo", "Titan", "Orion"} {
		if !strings.Contains(decoded.Response, name) {
			t.Errorf("response missing project %q: %s", name, decoded.Response)
		}
	}
	if len(decoded.Thoughts) != 2 {
		t.Fatalf("expected 2 thoughts, got %d", len(decoded.Thoughts))
	}
	if decoded.Thoughts[0].Tool != "get_database_schema" || decoded.Thoughts[1].Tool != "execute_sql" {
		t.Errorf("unexpected thought order: %+v", decoded.Thoughts)
	}
	if !strings.Contains(decoded.Thoughts[1].Observation, `"row_count":3`) {
		t.Errorf("sql observation missing row count: %q", decoded.Thoughts[1].Observation)
	}
	if decoded.AgentUsed != "Gemini Agent (tenant_a)" {
		t.Errorf("unexpected agent_used %q", decoded.AgentUsed)
	}
}

func TestChat_UnknownTenant(t *testing.T) {
	var hits atomic.Int64
	toolSrv := newToolServer(t, &hits)
	provider := &scriptedProvider{turns: []turn{{text: "unused"}}}
	orch := newOrchestrator(t, provider, toolSrv.URL, nil)

	resp := postChat(t, orch.URL, "/chat", map[string]interface{}{
		"query": "hello", "tenant_id": "tenant_x",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	var decoded map[string]string
	json.NewDecoder(resp.Body).Decode(&decoded)
	if !strings.Contains(decoded["response"], "Unknown tenant 'tenant_x'") {
		t.Errorf("unexpected body %v", decoded)
	}

	// Rejection happens before discovery or any model call.
	if hits.Load() != 0 {
		t.Errorf("tool server was contacted %d times", hits.Load())
	}
	if provider.calls != 0 {
		t.Errorf("llm was called %d times", provider.calls)
	}
}

func TestChat_LLMFailure(t *testing.T) {
	toolSrv := newToolServer(t, nil)
	provider := &scriptedProvider{turns: []turn{{err: context.DeadlineExceeded}}}
	orch := newOrchestrator(t, provider, toolSrv.URL, nil)

	resp := postChat(t, orch.URL, "/chat", map[string]interface{}{"query": "hello"})
	defer resp.Body.Close()

	// Reasoning failures surface as an error answer, not a broken request.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var decoded chatResponse
	json.NewDecoder(resp.Body).Decode(&decoded)
	if !strings.HasPrefix(decoded.Response, "Error communicating with the assistant:") {
		t.Errorf("unexpected response %q", decoded.Response)
	}
	if len(decoded.Thoughts) != 0 {
		t.Errorf("expected empty thoughts, got %v", decoded.Thoughts)
	}
}

type sseEvent struct {
	name string
	data map[string]interface{}
}

func readSSE(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &current.data); err != nil {
				t.Fatalf("bad event data: %v", err)
			}
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}

func TestChatStream(t *testing.T) {
	toolSrv := newToolServer(t, nil)
	orch := newOrchestrator(t, listProjectsScript(), toolSrv.URL, nil)

	resp := postChat(t, orch.URL, "/chat/stream", map[string]interface{}{
		"query": "list all projects", "tenant_id": "tenant_a",
	})
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	events := readSSE(t, resp)

	wantOrder := []string{"thought", "observation", "thought", "observation", "final"}
	if len(events) != len(wantOrder) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantOrder), len(events), events)
	}
	for i, want := range wantOrder {
		if events[i].name != want {
			t.Errorf("event %d: expected %s, got %s", i, want, events[i].name)
		}
	}

	final := events[len(events)-1]
	output, _ := final.data["output"].(string)
	if !strings.Contains(output, "Apollo") {
		t.Errorf("final event missing answer: %v", final.data)
	}
}

func TestChatStream_ErrorEvent(t *testing.T) {
	toolSrv := newToolServer(t, nil)
	provider := &scriptedProvider{turns: []turn{{err: context.DeadlineExceeded}}}
	orch := newOrchestrator(t, provider, toolSrv.URL, nil)

	resp := postChat(t, orch.URL, "/chat/stream", map[string]interface{}{"query": "hello"})
	defer resp.Body.Close()

	events := readSSE(t, resp)
	if len(events) != 1 || events[0].name != "error" {
		t.Fatalf("expected a single error event, got %+v", events)
	}
}

func TestChat_SessionMemory(t *testing.T) {
	toolSrv := newToolServer(t, nil)
	store, err := memory.NewSQLStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	provider := &scriptedProvider{turns: []turn{
		{text: "There are 3 projects."},
		{text: "They are Apollo, Titan, and Orion."},
	}}
	orch := newOrchestrator(t, provider, toolSrv.URL, store)

	resp := postChat(t, orch.URL, "/chat", map[string]interface{}{
		"query": "how many projects?", "session_id": "sess-1",
	})
	resp.Body.Close()
	resp = postChat(t, orch.URL, "/chat", map[string]interface{}{
		"query": "what are their names?", "session_id": "sess-1",
	})
	resp.Body.Close()

	// The second prompt carries the first exchange as history.
	secondPrompt := provider.seen[1][0].Content
	if !strings.Contains(secondPrompt, "User: how many projects?") {
		t.Errorf("second prompt missing remembered question:\n%s", secondPrompt)
	}
	if !strings.Contains(secondPrompt, "AI: There are 3 projects.") {
		t.Errorf("second prompt missing remembered answer:\n%s", secondPrompt)
	}

	entries, err := store.History(context.Background(), "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 remembered entries, got %d", len(entries))
	}
}

func TestHealth(t *testing.T) {
	toolSrv := newToolServer(t, nil)
	orch := newOrchestrator(t, &scriptedProvider{turns: []turn{{text: "hi"}}}, toolSrv.URL, nil)

	resp, err := http.Get(orch.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["status"] != "healthy" {
		t.Errorf("unexpected health payload %v", body)
	}
}
