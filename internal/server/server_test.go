package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/tanya/pkg/agentexec"
	"github.com/harun/tanya/pkg/intent"
	"github.com/harun/tanya/pkg/llm"
	"github.com/harun/tanya/pkg/memory"
	"github.com/harun/tanya/pkg/orchestrator"
	"github.com/harun/tanya/pkg/resilience"
	"github.com/harun/tanya/pkg/runtime"
	"github.com/harun/tanya/pkg/toolclient"
	"github.com/harun/tanya/pkg/trace"
)

type fixture struct {
	api      *httptest.Server
	provider *llm.ScriptedProvider
}

func newFixture(t *testing.T, limiter *resilience.RateLimiter) *fixture {
	t.Helper()

	f := &fixture{provider: llm.NewScriptedProvider()}

	toolServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"status":"shipped"}}`))
	}))
	t.Cleanup(toolServer.Close)

	store := memory.NewStore(memory.DefaultConfig())
	tracer := trace.NewTracer()
	breakers := resilience.NewBreakerRegistry(resilience.DefaultBreakerConfig())

	catalog, err := toolclient.NewCatalog([]toolclient.ToolDefinition{
		{
			Handle:      "lookup_order",
			Description: "Look up an order by its number",
			Endpoint:    "/tools/lookup_order",
			Parameters: []toolclient.ParamSpec{
				{Name: "order_number", Type: "string", Description: "Order number", Required: true},
			},
		},
	})
	require.NoError(t, err)

	tools, err := toolclient.New(toolclient.Config{
		BaseURL:  toolServer.URL,
		Catalog:  catalog,
		Breakers: breakers,
	})
	require.NoError(t, err)

	orch, err := orchestrator.New(orchestrator.Config{
		Store:  store,
		Tracer: tracer,
		Agents: []orchestrator.AgentConfig{
			{
				ID:           "agent_orders",
				Name:         "Order Support",
				SystemPrompt: "You help customers with order questions.",
				AllowedTools: []string{"lookup_order"},
			},
			{
				ID:           "agent_general",
				Name:         "General Support",
				SystemPrompt: "You handle general questions.",
			},
		},
		Routing: orchestrator.RoutingConfig{
			FallbackAgent: "agent_general",
			Rules: []orchestrator.RoutingRule{
				{IntentID: intent.CategoryOrderStatus, Keywords: []string{"order", "track"}, TargetAgent: "agent_orders"},
			},
		},
	})
	require.NoError(t, err)

	exec, err := agentexec.New(agentexec.Config{
		Store:     store,
		Tracer:    tracer,
		Tools:     tools,
		Providers: []llm.Provider{f.provider},
		Breakers:  breakers,
		Model:     "test-model",
	})
	require.NoError(t, err)

	rt, err := runtime.New(runtime.Config{
		Store:        store,
		Tracer:       tracer,
		Orchestrator: orch,
		Executor:     exec,
		Limiter:      limiter,
	})
	require.NoError(t, err)

	srv, err := New(Config{Host: "127.0.0.1", Port: 8080, Runtime: rt})
	require.NoError(t, err)

	f.api = httptest.NewServer(srv.routes())
	t.Cleanup(f.api.Close)

	return f
}

func (f *fixture) startSession(t *testing.T) string {
	t.Helper()

	resp := f.post(t, "/v1/sessions", `{"customer":{"email":"jo@example.com","first_name":"Jo"}}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out startSessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(f.api.URL+path, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := http.Get(f.api.URL + path)
	require.NoError(t, err)
	return resp
}

func TestServer_NewValidation(t *testing.T) {
	_, err := New(Config{Port: 0})
	assert.Error(t, err)

	_, err = New(Config{Port: 8080})
	assert.Error(t, err)
}

func TestServer_MessageFlow(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.ReplyText("Your order has shipped.")

	id := f.startSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/messages", `{"message":"Where is my order #1234567?"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var out runtime.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Your order has shipped.", out.Message)
	assert.Equal(t, "agent_orders", out.AgentID)
	assert.False(t, out.Escalated)
}

func TestServer_MessageValidation(t *testing.T) {
	f := newFixture(t, nil)
	id := f.startSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/messages", `{"message":""}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.post(t, "/v1/sessions/"+id+"/messages", `{not json`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_UnknownSession(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.post(t, "/v1/sessions/nope/messages", `{"message":"hello"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.get(t, "/v1/sessions/nope")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RateLimit(t *testing.T) {
	f := newFixture(t, resilience.NewRateLimiter(1, time.Minute))
	f.provider.ReplyText("Hello!")

	id := f.startSession(t)

	resp := f.post(t, "/v1/sessions/"+id+"/messages", `{"message":"hi"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.post(t, "/v1/sessions/"+id+"/messages", `{"message":"hi again"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_TraceEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.ReplyText("Hello!")

	id := f.startSession(t)
	resp := f.post(t, "/v1/sessions/"+id+"/messages", `{"message":"good morning"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.get(t, "/v1/sessions/"+id+"/trace")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tr traceResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tr))
	assert.Equal(t, id, tr.SessionID)
	assert.Contains(t, tr.Trace, "Session "+id)

	jsonResp := f.get(t, "/v1/sessions/"+id+"/trace?format=json")
	defer jsonResp.Body.Close()
	require.Equal(t, http.StatusOK, jsonResp.StatusCode)

	var export map[string]interface{}
	require.NoError(t, json.NewDecoder(jsonResp.Body).Decode(&export))
	assert.Equal(t, id, export["session_id"])
	assert.NotEmpty(t, export["events"])
}

func TestServer_Summary(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.ReplyText("Hello!")

	id := f.startSession(t)
	resp := f.post(t, "/v1/sessions/"+id+"/messages", `{"message":"good morning"}`)
	resp.Body.Close()

	resp = f.get(t, "/v1/sessions/"+id+"/summary")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary trace.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.False(t, summary.Escalated)
	assert.NotZero(t, summary.MessageCount)
}

func TestServer_ClearSession(t *testing.T) {
	f := newFixture(t, nil)
	id := f.startSession(t)

	req, err := http.NewRequest(http.MethodDelete, f.api.URL+"/v1/sessions/"+id, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp := f.get(t, "/v1/sessions/"+id)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestServer_Healthz(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.get(t, "/healthz")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_TraceStream(t *testing.T) {
	f := newFixture(t, nil)
	f.provider.ReplyText("Hello!")

	id := f.startSession(t)

	wsURL := fmt.Sprintf("%s/v1/sessions/%s/trace/stream",
		strings.Replace(f.api.URL, "http", "ws", 1), id)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp := f.post(t, "/v1/sessions/"+id+"/messages", `{"message":"good morning"}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var ev streamEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, id, ev.SessionID)
	assert.Equal(t, trace.EventMessage, ev.Event.Type)
}
