package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/fennelworks/claude-go/anthropic"
	"github.com/fennelworks/claude-go/runner"
)

func textMessageUsage(t *testing.T, text string, input, output int64) *anthropic.Message {
	t.Helper()
	return mustMessage(t, fmt.Sprintf(
		`{"id":"m_text","role":"assistant","model":"claude-test","stop_reason":"end_turn",
		  "content":[{"type":"text","text":"%s"}],
		  "usage":{"input_tokens":%d,"output_tokens":%d}}`, text, input, output))
}

// countSummaryRequests returns how many captured requests end with the
// given summary prompt, i.e. how many compaction calls were issued.
func countSummaryRequests(requests [][]byte, prompt string) int {
	n := 0
	for _, req := range requests {
		msgs := gjson.GetBytes(req, "messages")
		last := msgs.Get(fmt.Sprintf("%d", msgs.Get("#").Int()-1))
		if last.Get("role").String() == "user" && last.Get("content.0.text").String() == prompt {
			n++
		}
	}
	return n
}

func TestCompaction_ReplacesHistory(t *testing.T) {
	fake := &fakeCaller{responses: []any{
		textMessageUsage(t, "Big answer.", 120, 40),        // crosses 100
		textMessageUsage(t, "SUMMARY OF THE TASK", 10, 20), // compaction call
		textMessageUsage(t, "Resumed and done.", 15, 5),
	}}
	r := runner.New(fake, baseParams(), weatherRegistry(t, nil),
		runner.WithCompaction(runner.CompactionControl{
			Enabled:               true,
			ContextTokenThreshold: 100,
			Model:                 "claude-small",
			SummaryPrompt:         "Summarize the conversation.",
		}))

	final, err := r.UntilDone(context.Background())
	if err != nil {
		t.Fatalf("UntilDone: %v", err)
	}
	if final.FirstText() != "Resumed and done." {
		t.Errorf("final = %q", final.FirstText())
	}
	if fake.calls != 3 {
		t.Fatalf("requests = %d, want 3", fake.calls)
	}

	// The compaction request uses the configured model and prompt, keeps
	// the original history, and carries no tools.
	comp := fake.requests[1]
	if got := gjson.GetBytes(comp, "model").String(); got != "claude-small" {
		t.Errorf("compaction model = %q", got)
	}
	if gjson.GetBytes(comp, "tools").Exists() {
		t.Error("compaction request carries tools")
	}
	if got := gjson.GetBytes(comp, "messages.0.content.0.text").String(); got != "What's the weather in SF?" {
		t.Errorf("compaction request lost the history: %s", comp)
	}
	if got := gjson.GetBytes(comp, "messages.1.content.0.text").String(); got != "Summarize the conversation." {
		t.Errorf("summary prompt = %q", got)
	}

	// The follow-up request sees only the summary.
	next := fake.requests[2]
	if n := gjson.GetBytes(next, "messages.#").Int(); n != 1 {
		t.Fatalf("post-compaction request carries %d messages: %s", n, next)
	}
	if got := gjson.GetBytes(next, "messages.0.content.0.text").String(); got != "SUMMARY OF THE TASK" {
		t.Errorf("post-compaction message = %q", got)
	}
	if got := gjson.GetBytes(next, "model").String(); got != "claude-test" {
		t.Errorf("loop model changed to %q", got)
	}
}

func TestCompaction_BelowThresholdIsNoop(t *testing.T) {
	fake := &fakeCaller{responses: []any{textMessageUsage(t, "Small answer.", 10, 5)}}
	r := runner.New(fake, baseParams(), weatherRegistry(t, nil),
		runner.WithCompaction(runner.CompactionControl{Enabled: true, ContextTokenThreshold: 1000}))

	if _, err := r.UntilDone(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 1 {
		t.Errorf("requests = %d, want 1", fake.calls)
	}
}

func TestCompaction_DisabledByDefault(t *testing.T) {
	fake := &fakeCaller{responses: []any{textMessageUsage(t, "Huge answer.", 500_000, 4000)}}
	r := runner.New(fake, baseParams(), weatherRegistry(t, nil))

	if _, err := r.UntilDone(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 1 {
		t.Errorf("requests = %d, want 1", fake.calls)
	}
}

func TestCompaction_RequestFailureKeepsHistory(t *testing.T) {
	var logBuf bytes.Buffer
	fake := &fakeCaller{responses: []any{
		textMessageUsage(t, "Big answer.", 120, 40),
		errors.New("summary model unavailable"),
	}}
	r := runner.New(fake, baseParams(), weatherRegistry(t, nil),
		runner.WithCompaction(runner.CompactionControl{Enabled: true, ContextTokenThreshold: 100}),
		runner.WithLogger(zerolog.New(&logBuf)))

	final, err := r.UntilDone(context.Background())
	if err != nil {
		t.Fatalf("compaction failure must not abort the loop: %v", err)
	}
	if final.FirstText() != "Big answer." {
		t.Errorf("final = %q", final.FirstText())
	}
	// History untouched.
	if n := len(r.Params().Messages); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
	if !strings.Contains(logBuf.String(), `"level":"error"`) {
		t.Error("compaction failure not logged at error level")
	}
}

func TestCompaction_NonTextSummaryKeepsHistory(t *testing.T) {
	fake := &fakeCaller{responses: []any{
		textMessageUsage(t, "Big answer.", 120, 40),
		toolUseMessage(t, "t1", "get_weather", `{}`), // bogus summary
	}}
	r := runner.New(fake, baseParams(), weatherRegistry(t, nil),
		runner.WithCompaction(runner.CompactionControl{Enabled: true, ContextTokenThreshold: 100}))

	if _, err := r.UntilDone(context.Background()); err != nil {
		t.Fatal(err)
	}
	if fake.calls != 2 {
		t.Fatalf("requests = %d, want 2", fake.calls)
	}
	if n := len(r.Params().Messages); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
}

func TestCompaction_StripsTrailingToolUse(t *testing.T) {
	fake := &fakeCaller{responses: []any{
		toolUseMessage(t, "t1", "get_weather", `{"location":"SF"}`),
		textMessageUsage(t, "SUMMARY", 10, 20),
		textMessageUsage(t, "Done.", 5, 5),
	}}
	// High usage on the tool_use turn so the next advance compacts.
	fake.responses[0].(*anthropic.Message).Usage = anthropic.Usage{InputTokens: 150, OutputTokens: 30}

	r := runner.New(fake, baseParams(), weatherRegistry(t, nil),
		runner.WithCompaction(runner.CompactionControl{Enabled: true, ContextTokenThreshold: 100}))

	if _, err := r.Next(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Caller manages the history; the assistant turn ends with a dangling
	// tool_use request.
	r.AppendMessages(anthropic.NewAssistantMessage(
		anthropic.NewToolUseBlock("t1", "get_weather", json.RawMessage(`{"location":"SF"}`))))

	if _, err := r.UntilDone(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The compaction request drops the tool_use-only assistant message
	// entirely instead of sending a dangling pair.
	comp := fake.requests[1]
	if n := gjson.GetBytes(comp, "messages.#").Int(); n != 2 {
		t.Fatalf("compaction request carries %d messages: %s", n, comp)
	}
	for _, m := range gjson.GetBytes(comp, "messages").Array() {
		for _, b := range m.Get("content").Array() {
			if b.Get("type").String() == "tool_use" {
				t.Fatalf("tool_use leaked into compaction request: %s", comp)
			}
		}
	}
}

func TestCompaction_CarriedTokensCountTowardNextCheck(t *testing.T) {
	fake := &fakeCaller{responses: []any{
		textMessageUsage(t, "First answer.", 120, 40), // 160 >= 100
		textMessageUsage(t, "SUMMARY ONE", 20, 40),    // carries 60
		textMessageUsage(t, "Second answer.", 40, 10), // 50 + 60 >= 100
		textMessageUsage(t, "SUMMARY TWO", 5, 5),      // carries 10
		textMessageUsage(t, "Third answer.", 10, 5),   // 15 + 10 < 100
	}}
	r := runner.New(fake, baseParams(), weatherRegistry(t, nil),
		runner.WithCompaction(runner.CompactionControl{Enabled: true, ContextTokenThreshold: 100}))

	final, err := r.UntilDone(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if final.FirstText() != "Third answer." {
		t.Errorf("final = %q", final.FirstText())
	}
	if fake.calls != 5 {
		t.Fatalf("requests = %d, want 5", fake.calls)
	}
	if n := countSummaryRequests(fake.requests, runner.DefaultSummaryPrompt); n != 2 {
		t.Errorf("compaction requests = %d, want 2", n)
	}
}
