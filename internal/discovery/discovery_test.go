package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ppiankov/flowspectre/internal/codebase"
	"github.com/ppiankov/flowspectre/internal/conversation"
	"github.com/ppiankov/flowspectre/internal/llm/llmtest"
	"github.com/ppiankov/flowspectre/internal/models"
)

const usersRoute = "router.get('/users', auth, listUsers)"

func testSet() *codebase.Set {
	return codebase.NewSet([]models.FileEntry{
		{Path: "src/routes/users.ts", Content: usersRoute},
		{Path: "src/routes/orders.ts", Content: "router.post('/orders', createOrder)"},
		{Path: "src/services/userService.ts", Content: "export function listUsers() {}"},
		{Path: "src/db/users.repo.ts", Content: "SELECT * FROM users"},
		{Path: "src/app.ts", Content: "app.use('/api', routes)"},
	})
}

func testConfig() Config {
	cfg := DefaultConfig("claude-test")
	cfg.MaxDepth = 5
	return cfg
}

const completedUsers = `{"status":"completed","result":{"flow_name":"GET /users","purpose":"list users","entry_point":"src/routes/users.ts","input_types":["query"],"output_types":["json"],"sensitivity_level":"high","mark_down":"# GET /users"}}`
const notFound = `{"status":"not_found","reasoning":"all done"}`

func TestDiscover_PickEndpointServesFile(t *testing.T) {
	gw := llmtest.New(
		`{"status":"pick_endpoint","file_to_read_next":"src/routes/users.ts"}`,
		completedUsers,
		notFound,
	)
	agent := New(gw, testConfig(), nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Endpoints) != 1 || res.Endpoints[0].FlowName != "GET /users" {
		t.Fatalf("unexpected endpoints %+v", res.Endpoints)
	}
	if res.StopReason != StopNotFound {
		t.Errorf("expected not_found stop, got %s", res.StopReason)
	}

	prompt := gw.LastPrompt(1)
	if !strings.Contains(prompt, usersRoute) {
		t.Errorf("expected literal file content in follow-up turn, got %q", prompt)
	}
	if !strings.Contains(prompt, "Start tracing") {
		t.Errorf("expected continuation instruction, got %q", prompt)
	}
	if strings.Contains(prompt, "WARNING") {
		t.Errorf("did not expect conclude warning with budget left")
	}

	// One turn for the pick, one for completion.
	tr := res.Transcripts[0]
	if tr.Depth != 2 || !tr.Success {
		t.Errorf("expected 2 successful turns, got depth=%d success=%v", tr.Depth, tr.Success)
	}

	// The second trace sees the claimed entry point.
	if !strings.Contains(gw.LastPrompt(2), "GET /users (entry point: src/routes/users.ts)") {
		t.Errorf("expected claimed endpoints in next trace prompt, got %q", gw.LastPrompt(2))
	}
}

func TestDiscover_MissingFileOffersCandidates(t *testing.T) {
	gw := llmtest.New(
		`{"status":"pick_endpoint","file_to_read_next":"src/nope.ts"}`,
		notFound,
	)
	agent := New(gw, testConfig(), nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Endpoints) != 0 {
		t.Errorf("expected no endpoints, got %+v", res.Endpoints)
	}

	prompt := gw.LastPrompt(1)
	if !strings.Contains(prompt, `"src/nope.ts" does not exist`) {
		t.Errorf("expected not-found notice, got %q", prompt)
	}
	listed := 0
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "- ") {
			listed++
		}
	}
	if listed > codebase.MaxCandidates {
		t.Errorf("expected at most %d candidates, got %d", codebase.MaxCandidates, listed)
	}
}

func TestDiscover_EmptyCodebase(t *testing.T) {
	gw := llmtest.New()
	agent := New(gw, testConfig(), nil, nil)

	res, err := agent.Discover(context.Background(), codebase.NewSet(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Endpoints) != 0 || res.StopReason != StopEmpty {
		t.Errorf("unexpected result %+v", res)
	}
	if gw.Calls() != 0 {
		t.Errorf("expected no model calls, got %d", gw.Calls())
	}
}

func TestDiscover_NoEndpoints(t *testing.T) {
	gw := llmtest.New(notFound)
	agent := New(gw, testConfig(), nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Endpoints) != 0 || gw.Calls() != 1 {
		t.Errorf("expected empty result after one call, got %+v (%d calls)", res.Endpoints, gw.Calls())
	}
}

func TestDiscover_TracingFallbackAndCache(t *testing.T) {
	gw := llmtest.New(
		`{"status":"pick_endpoint","file_to_read_next":"src/routes/users.ts"}`,
		`{"status":"tracing_endpoint","file_to_read_next":"src/services/missing.ts","read_later":["src/db/users.repo.ts","src/routes/users.ts"]}`,
		`{"status":"tracing_endpoint","file_to_read_next":"./src/routes/users.ts"}`,
		completedUsers,
		notFound,
	)
	cfg := testConfig()
	cfg.MaxDepth = 10
	agent := New(gw, cfg, nil, nil)

	if _, err := agent.Discover(context.Background(), testSet()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fallback := gw.LastPrompt(2)
	if !strings.Contains(fallback, "Serving src/db/users.repo.ts") || !strings.Contains(fallback, "SELECT * FROM users") {
		t.Errorf("expected read_later fallback, got %q", fallback)
	}

	cached := gw.LastPrompt(3)
	if !strings.Contains(cached, "already read src/routes/users.ts") || !strings.Contains(cached, usersRoute) {
		t.Errorf("expected cached content with reminder, got %q", cached)
	}
}

func TestDiscover_ConcludeWarning(t *testing.T) {
	gw := llmtest.New(
		`{"status":"pick_endpoint","file_to_read_next":"src/routes/users.ts"}`,
		completedUsers,
		notFound,
	)
	cfg := testConfig()
	cfg.MaxDepth = 2
	agent := New(gw, cfg, nil, nil)

	if _, err := agent.Discover(context.Background(), testSet()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(gw.LastPrompt(1), "WARNING") {
		t.Errorf("expected conclude warning on last turn, got %q", gw.LastPrompt(1))
	}
}

func TestDiscover_DuplicateFlowNames(t *testing.T) {
	gw := llmtest.New(completedUsers, completedUsers, notFound)
	agent := New(gw, testConfig(), nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(res.Endpoints))
	}
	if res.Endpoints[0].FlowName != "GET /users" || res.Endpoints[1].FlowName != "GET /users #2" {
		t.Errorf("expected unique flow names, got %q and %q", res.Endpoints[0].FlowName, res.Endpoints[1].FlowName)
	}
}

func TestDiscover_FailedTraceIsDropped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	gw := llmtest.New(
		"not json", "still not json", // trace 1 exhausts retries
		completedUsers, // trace 2
		notFound,
	)
	agent := New(gw, cfg, nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Failed != 1 || len(res.Endpoints) != 1 {
		t.Errorf("expected 1 failed trace and 1 endpoint, got failed=%d endpoints=%d", res.Failed, len(res.Endpoints))
	}
	if len(res.Transcripts) != 3 {
		t.Errorf("expected a transcript per trace, got %d", len(res.Transcripts))
	}
	if res.Transcripts[0].Success || res.Transcripts[0].Outcome != conversation.OutcomeRetriesExhausted {
		t.Errorf("expected failed transcript, got %+v", res.Transcripts[0])
	}
}

func TestDiscover_ConsecutiveFailuresStop(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	cfg.MaxConsecutiveFailures = 2
	gw := llmtest.New("x", "y", "z")
	agent := New(gw, cfg, nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StopReason != StopFailures || gw.Calls() != 2 {
		t.Errorf("expected stop after 2 failures, got %s after %d calls", res.StopReason, gw.Calls())
	}
}

func TestDiscover_MaxTraces(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTraces = 1
	gw := llmtest.New(completedUsers, completedUsers)
	agent := New(gw, cfg, nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.StopReason != StopMaxTraces || len(res.Endpoints) != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestDiscover_NoTraceCapByDefault(t *testing.T) {
	replies := make([]string, 0, 61)
	for i := 0; i < 60; i++ {
		replies = append(replies, fmt.Sprintf(`{"status":"completed","result":{"flow_name":"GET /items/%d","purpose":"item","entry_point":"src/routes/users.ts","input_types":[],"output_types":[],"sensitivity_level":"low","mark_down":"-"}}`, i))
	}
	replies = append(replies, notFound)
	gw := llmtest.New(replies...)
	agent := New(gw, testConfig(), nil, nil)

	res, err := agent.Discover(context.Background(), testSet())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Endpoints) != 60 || res.StopReason == StopMaxTraces {
		t.Errorf("expected 60 endpoints until not_found, got %d (stop %q)", len(res.Endpoints), res.StopReason)
	}
	if gw.Calls() != 61 {
		t.Errorf("expected 61 model calls, got %d", gw.Calls())
	}
}

func TestDiscover_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := llmtest.New().Add(
		llmtest.Reply{Text: completedUsers},
		llmtest.Reply{Text: completedUsers, Hook: cancel},
	)
	agent := New(gw, testConfig(), nil, nil)

	res, err := agent.Discover(ctx, testSet())
	if !errors.Is(err, conversation.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(res.Endpoints) != 1 {
		t.Errorf("expected endpoints before cancellation to be kept, got %d", len(res.Endpoints))
	}
	if gw.Calls() != 2 {
		t.Errorf("expected no calls after cancellation, got %d", gw.Calls())
	}
}

func TestDiscover_ObserverEvents(t *testing.T) {
	var started, finished int
	obs := conversation.ObserverFuncs{
		OnStarted:  func(stage string, index, total int, name string) { started++ },
		OnFinished: func(stage string, index, total int, name string, ok bool) { finished++ },
	}
	gw := llmtest.New(completedUsers, notFound)
	agent := New(gw, testConfig(), obs, nil)

	if _, err := agent.Discover(context.Background(), testSet()); err != nil {
		t.Fatal(err)
	}
	if started != 2 || finished != 2 {
		t.Errorf("expected 2 started/finished events, got %d/%d", started, finished)
	}
}

func TestUniqueName(t *testing.T) {
	seen := make(map[string]int)
	got := []string{
		uniqueName(seen, "A"),
		uniqueName(seen, "A"),
		uniqueName(seen, "A #2"),
		uniqueName(seen, "A"),
	}
	want := []string{"A", "A #2", "A #2 #2", "A #3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
