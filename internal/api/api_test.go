package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/Kelp/internal/chat"
	"github.com/BTreeMap/Kelp/internal/messaging"
	"github.com/BTreeMap/Kelp/internal/models"
	"github.com/BTreeMap/Kelp/internal/store"
	"github.com/BTreeMap/Kelp/internal/testutil"
)

type fakeGenerator struct {
	got models.Scenario
}

func (g *fakeGenerator) Generate(ctx context.Context, sc models.Scenario) models.Flow {
	g.got = sc
	return testutil.SampleFlow()
}

type fakeResponder struct {
	mu      sync.Mutex
	reply   chat.Reply
	calls   int
	lastMsg string
	before  func()
}

func (f *fakeResponder) Respond(ctx context.Context, message string, fl *models.Flow, history []models.ChatMessage) chat.Reply {
	f.mu.Lock()
	f.calls++
	f.lastMsg = message
	f.mu.Unlock()
	if f.before != nil {
		f.before()
	}
	return f.reply
}

func newTestServer(gen FlowGenerator, resp ChatResponder, sender FlowSender, opts ...Option) *Server {
	return NewServer(gen, resp, store.NewInMemoryStore(), sender, opts...)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestGenerateFlow(t *testing.T) {
	gen := &fakeGenerator{}
	s := newTestServer(gen, nil, nil)

	req := testutil.CreateHTTPRequest(t, "POST", "/generate-flow",
		`{"location":"Dallas, TX","description":"dinner then drinks","budget":"$$","timeWindow":"evening","vibes":["chill"]}`)
	rr := serve(s, req)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "generate flow")

	var f models.Flow
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &f)
	if len(f.Stops) != 3 || f.TotalDuration != 270 {
		t.Errorf("unexpected flow %+v", f)
	}
	if gen.got.Location != "Dallas, TX" || gen.got.Budget != models.BudgetStandard || gen.got.TimeWindow != models.WindowEvening {
		t.Errorf("unexpected scenario %+v", gen.got)
	}
	if gen.got.CrewSize != models.DefaultCrewSize {
		t.Errorf("crew size should default, got %d", gen.got.CrewSize)
	}
}

func TestGenerateFlow_BadRequests(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, nil, nil)
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"location":`},
		{"missing location", `{"description":"tacos"}`},
		{"bad crew size", `{"location":"Austin","crewSize":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/generate-flow", tt.body))
			testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, tt.name)
			testutil.AssertErrorResponse(t, rr)
		})
	}
}

func TestGenerateFlow_NotConfigured(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/generate-flow", `{"location":"Dallas"}`))
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "missing Yelp key")
	if msg := testutil.AssertErrorResponse(t, rr); !strings.Contains(msg, "Yelp API not configured") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestChat(t *testing.T) {
	f := testutil.SampleFlow()
	instr := &models.EditInstruction{Action: models.ActionUpdateFlow, Changes: models.FlowChanges{Remove: []int{2}}}
	resp := &fakeResponder{reply: chat.Reply{Message: "Dropped the club.", FlowChanges: instr, Flow: &f, Outcome: chat.OutcomeReply}}
	s := newTestServer(nil, resp, nil)

	body := models.ChatRequest{Message: "skip the club", Flow: &f}
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/chat", body))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "chat")

	var out models.ChatResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &out)
	if out.Message != "Dropped the club." || out.FlowChanges == nil || out.Flow == nil || out.Stale {
		t.Errorf("unexpected response %+v", out)
	}
	if resp.lastMsg != "skip the club" {
		t.Errorf("message not forwarded, got %q", resp.lastMsg)
	}
}

func TestChat_NullFlowChanges(t *testing.T) {
	s := newTestServer(nil, &fakeResponder{reply: chat.Reply{Message: "Sounds fun!"}}, nil)
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/chat", `{"message":"hi"}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "plain chat")
	if !strings.Contains(rr.Body.String(), `"flowChanges":null`) {
		t.Errorf("flowChanges should be present and null: %s", rr.Body.String())
	}
}

func TestChat_ProviderOutcomes(t *testing.T) {
	tests := []struct {
		outcome chat.Outcome
		message string
		status  int
	}{
		{chat.OutcomeRateLimited, chat.RateLimitedReply, http.StatusTooManyRequests},
		{chat.OutcomeQuotaExhausted, chat.QuotaExhaustedReply, http.StatusPaymentRequired},
		{chat.OutcomeProviderError, chat.ProviderErrorReply, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			s := newTestServer(nil, &fakeResponder{reply: chat.Reply{Message: tt.message, Outcome: tt.outcome}}, nil)
			rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/chat", `{"message":"hi"}`))
			testutil.AssertHTTPStatus(t, tt.status, rr.Code, tt.outcome.String())
			if msg := testutil.AssertErrorResponse(t, rr); msg != tt.message {
				t.Errorf("got %q, want %q", msg, tt.message)
			}
		})
	}
}

func TestChat_Validation(t *testing.T) {
	s := newTestServer(nil, &fakeResponder{}, nil)
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/chat", `{"message":"   "}`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty message")

	s = newTestServer(nil, nil, nil)
	rr = serve(s, testutil.CreateHTTPRequest(t, "POST", "/chat", `{"message":"hi"}`))
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "missing LLM key")
	if msg := testutil.AssertErrorResponse(t, rr); !strings.Contains(msg, "OPENAI_API_KEY") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestChat_StaleReply(t *testing.T) {
	resp := &fakeResponder{reply: chat.Reply{Message: "ok"}}
	s := newTestServer(nil, resp, nil)
	// A newer request from the same session starts while the first is in flight.
	resp.before = func() {
		resp.before = nil
		s.sequencer.Observe("sess-1", 2)
	}

	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/chat", `{"message":"first","sessionId":"sess-1","seq":1}`))
	var out models.ChatResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &out)
	if !out.Stale || out.Seq != 1 {
		t.Errorf("expected stale reply for seq 1, got %+v", out)
	}

	rr = serve(s, testutil.CreateHTTPRequest(t, "POST", "/chat", `{"message":"second","sessionId":"sess-1","seq":2}`))
	out = models.ChatResponse{}
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &out)
	if out.Stale {
		t.Error("latest request should not be stale")
	}
}

func TestEditFlow(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	req := models.EditFlowRequest{Flow: ptr(testutil.SampleFlow()), Action: models.EditActionMoveUp, StopID: "s2"}
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/edit", req))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "move up")

	var out models.FlowResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &out)
	if out.Flow.Stops[0].ID != "s2" || out.Flow.Stops[1].ID != "s1" {
		t.Errorf("unexpected order %+v", out.Flow.Stops)
	}
	if out.Flow.Stops[0].Time != "6:00 PM" || out.Flow.TotalDuration != 270 {
		t.Errorf("expected re-timed flow with same total, got %+v", out.Flow)
	}
}

func TestEditFlow_Errors(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	tests := []struct {
		name   string
		req    models.EditFlowRequest
		status int
	}{
		{"missing flow", models.EditFlowRequest{Action: models.EditActionRemove, StopID: "s1"}, http.StatusBadRequest},
		{"unknown action", models.EditFlowRequest{Flow: ptr(testutil.SampleFlow()), Action: "shuffle", StopID: "s1"}, http.StatusBadRequest},
		{"swap without stop", models.EditFlowRequest{Flow: ptr(testutil.SampleFlow()), Action: models.EditActionSwap, StopID: "s1"}, http.StatusBadRequest},
		{"unknown stop", models.EditFlowRequest{Flow: ptr(testutil.SampleFlow()), Action: models.EditActionRemove, StopID: "nope"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/edit", tt.req))
			testutil.AssertHTTPStatus(t, tt.status, rr.Code, tt.name)
			testutil.AssertErrorResponse(t, rr)
		})
	}
}

func TestApplyChanges(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	name := "Candle Lounge"
	req := models.ApplyChangesRequest{
		Flow: ptr(testutil.SampleFlow()),
		FlowChanges: &models.EditInstruction{
			Action: models.ActionUpdateFlow,
			Changes: models.FlowChanges{
				Swap:   []models.SwapChange{{StopIndex: 1, NewStop: models.StopPatch{Name: &name}}},
				Remove: []int{0, 9},
			},
		},
	}
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/apply", req))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "apply")

	var out models.FlowResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &out)
	if len(out.Flow.Stops) != 2 || out.Flow.Stops[0].Name != "Candle Lounge" {
		t.Errorf("unexpected stops %+v", out.Flow.Stops)
	}
	if out.Flow.TotalDuration != 180 {
		t.Errorf("expected total 180, got %d", out.Flow.TotalDuration)
	}

	rr = serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/apply", `{"flowChanges":null}`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "apply without flow")
}

func TestShareAndFetchFlow(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	f := testutil.SampleFlow()
	f.TotalDuration = 1 // recomputed on share

	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows", f))
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "share")
	var shared models.ShareFlowResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &shared)
	if shared.ID == "" {
		t.Fatal("expected a share id")
	}

	rr = serve(s, testutil.CreateHTTPRequest(t, "GET", "/flows/"+shared.ID, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "fetch")
	var out models.FlowResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &out)
	if out.Flow.ID != f.ID || out.Flow.TotalDuration != 270 {
		t.Errorf("unexpected flow %+v", out.Flow)
	}

	rr = serve(s, testutil.CreateHTTPRequest(t, "GET", "/flows/missing", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "missing share")
}

func TestShareFlow_Invalid(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	f := testutil.SampleFlow()
	f.Stops[1].ID = f.Stops[0].ID
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows", f))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "duplicate stop ids")
}

func TestSendFlow(t *testing.T) {
	mock := messaging.NewMockClient()
	s := newTestServer(nil, nil, messaging.NewService(mock), WithShareBaseURL("https://kelp.example/f/"))

	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows", testutil.SampleFlow()))
	var shared models.ShareFlowResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &shared)

	rr = serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/"+shared.ID+"/send", `{"to":["+1 555 000 0001"]}`))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "send")
	var out models.SendFlowResponse
	testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &out)
	if len(out.Sent) != 1 || out.Sent[0] != "+15550000001" {
		t.Errorf("unexpected send result %+v", out)
	}
	if len(mock.SentMessages) != 1 || !strings.Contains(mock.SentMessages[0].Body, "https://kelp.example/f/"+shared.ID) {
		t.Errorf("unexpected messages %+v", mock.SentMessages)
	}

	rr = serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/"+shared.ID+"/send", `{"to":[]}`))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "no recipients")

	rr = serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/missing/send", `{"to":["+15550000001"]}`))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown share")
}

func TestSendFlow_NotConfigured(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	rr := serve(s, testutil.CreateHTTPRequest(t, "POST", "/flows/abc/send", `{"to":["+15550000001"]}`))
	testutil.AssertHTTPStatus(t, http.StatusServiceUnavailable, rr.Code, "twilio missing")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(nil, nil, nil)
	for _, path := range []string{"/generate-flow", "/chat", "/flows/edit", "/flows/abc/send"} {
		rr := serve(s, testutil.CreateHTTPRequest(t, "OPTIONS", path, nil))
		testutil.AssertHTTPStatus(t, http.StatusNoContent, rr.Code, "preflight "+path)
		if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Errorf("%s: expected wildcard origin", path)
		}
	}
}

func TestCORSAllowedOrigins(t *testing.T) {
	s := newTestServer(nil, nil, nil, WithAllowedOrigins("https://kelp.app", " "))

	req := testutil.CreateHTTPRequest(t, "GET", "/health", nil)
	req.Header.Set("Origin", "https://kelp.app")
	rr := serve(s, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://kelp.app" {
		t.Error("allowed origin should be echoed")
	}

	req = testutil.CreateHTTPRequest(t, "GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = serve(s, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin must not be allowed")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(&fakeGenerator{}, nil, nil)
	rr := serve(s, testutil.CreateHTTPRequest(t, "GET", "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	if !strings.Contains(rr.Body.String(), `"generator":true`) {
		t.Errorf("unexpected health body %s", rr.Body.String())
	}

	rr = serve(s, testutil.CreateHTTPRequest(t, "GET", "/metrics", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "metrics")
	if !strings.Contains(rr.Body.String(), "kelp_http_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestWriteJSONResponse_Fallback(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, map[string]interface{}{"bad": make(chan int)})
	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "unencodable body")
	if msg := testutil.AssertErrorResponse(t, rr); msg != "Internal server error" {
		t.Errorf("unexpected fallback %q", msg)
	}
}

func TestRun_Shutdown(t *testing.T) {
	s := newTestServer(nil, nil, nil, WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
