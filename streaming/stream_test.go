package streaming

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/fennelworks/claude-go/anthropic"
)

func sseBody(frames ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(frames, "")))
}

func frame(name, data string) string {
	return "event: " + name + "\ndata: " + data + "\n\n"
}

const textStreamFixture = `event: message_start
data: {"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":12,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: ping
data: {"type":"ping"}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":", world"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":9}}

event: message_stop
data: {"type":"message_stop"}

`

func TestMessageStream_TextEndToEnd(t *testing.T) {
	stream := NewMessageStream(sseBody(textStreamFixture), StreamOptions{})

	var types []string
	var texts []string
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		types = append(types, ev.Type)
		if ev.Type == EventTypeText {
			texts = append(texts, ev.Text)
		}
	}

	wantTypes := []string{
		"message_start",
		"content_block_start",
		"content_block_delta", "text",
		"content_block_delta", "text",
		"content_block_stop", "content_block_stop",
		"message_delta",
		"message_stop",
	}
	if len(types) != len(wantTypes) {
		t.Fatalf("event types = %v, want %v", types, wantTypes)
	}
	for i := range wantTypes {
		if types[i] != wantTypes[i] {
			t.Fatalf("event %d = %q, want %q (all: %v)", i, types[i], wantTypes[i], types)
		}
	}
	if got := strings.Join(texts, ""); got != "Hello, world" {
		t.Errorf("text fragments joined = %q", got)
	}
	if err := stream.Err(); err != nil {
		t.Errorf("stream error: %v", err)
	}
}

func TestMessageStream_FinalMessageAndText(t *testing.T) {
	stream := NewMessageStream(sseBody(textStreamFixture), StreamOptions{})

	msg, err := stream.FinalMessage()
	if err != nil {
		t.Fatalf("final message: %v", err)
	}
	if msg.ID != "msg_01" || msg.StopReason != "end_turn" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Usage.OutputTokens != 9 || msg.Usage.InputTokens != 12 {
		t.Errorf("usage = %+v", msg.Usage)
	}

	stream = NewMessageStream(sseBody(textStreamFixture), StreamOptions{})
	text, err := stream.FinalText()
	if err != nil {
		t.Fatalf("final text: %v", err)
	}
	if text != "Hello, world" {
		t.Errorf("final text = %q", text)
	}
}

func TestMessageStream_FinalTextNoTextBlock(t *testing.T) {
	body := sseBody(
		frame("message_start", `{"type":"message_start","message":{"id":"m","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":1,"output_tokens":1}}}`),
		frame("message_stop", `{"type":"message_stop"}`),
	)
	stream := NewMessageStream(body, StreamOptions{})
	_, err := stream.FinalText()
	if !errors.Is(err, ErrNoTextBlock) {
		t.Fatalf("err = %v, want ErrNoTextBlock", err)
	}
}

func TestMessageStream_EmptyBody(t *testing.T) {
	stream := NewMessageStream(sseBody(""), StreamOptions{})
	_, err := stream.FinalMessage()
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
}

func TestMessageStream_ErrorFrame(t *testing.T) {
	body := sseBody(
		frame("message_start", `{"type":"message_start","message":{"id":"m","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":1,"output_tokens":1}}}`),
		frame("error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`),
	)
	stream := NewMessageStream(body, StreamOptions{StatusCode: 529, RequestID: "req_9"})

	if _, err := stream.Next(); err != nil {
		t.Fatalf("message_start: %v", err)
	}
	_, err := stream.Next()
	var apiErr *anthropic.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Type != "overloaded_error" || apiErr.Message != "Overloaded" {
		t.Errorf("api error = %+v", apiErr)
	}
	if apiErr.StatusCode != 529 || apiErr.RequestID != "req_9" {
		t.Errorf("api error transport fields = %+v", apiErr)
	}

	// Fatal errors stick.
	if _, err2 := stream.Next(); !errors.As(err2, &apiErr) {
		t.Errorf("second call err = %v", err2)
	}
	if stream.Err() == nil {
		t.Error("Err() should report the terminal error")
	}
}

func TestMessageStream_UnknownEventSkipped(t *testing.T) {
	body := sseBody(
		frame("message_start", `{"type":"message_start","message":{"id":"m","role":"assistant","model":"claude-test","content":[],"usage":{"input_tokens":1,"output_tokens":1}}}`),
		frame("telemetry_blip", `{"type":"telemetry_blip"}`),
		frame("message_stop", `{"type":"message_stop"}`),
	)
	stream := NewMessageStream(body, StreamOptions{})
	var types []string
	for {
		ev, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != "message_start" || types[1] != "message_stop" {
		t.Errorf("types = %v", types)
	}
}

func TestMessageStream_TextStreamView(t *testing.T) {
	stream := NewMessageStream(sseBody(textStreamFixture), StreamOptions{})
	ts := stream.TextStream()

	var parts []string
	for {
		s, err := ts.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		parts = append(parts, s)
	}
	if got := strings.Join(parts, ""); got != "Hello, world" {
		t.Errorf("text = %q", got)
	}
}

func TestMessageStream_EventsChannel(t *testing.T) {
	stream := NewMessageStream(sseBody(textStreamFixture), StreamOptions{})

	var final *anthropic.Message
	for ev := range stream.Events(context.Background()) {
		if ev.Type == anthropic.EventMessageStop {
			final = ev.Message
		}
	}
	if final == nil || final.FirstText() != "Hello, world" {
		t.Fatalf("final message from channel = %+v", final)
	}
}

func TestMessageStream_EventsChannelCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := NewMessageStream(sseBody(textStreamFixture), StreamOptions{})
	ch := stream.Events(ctx)

	// The feeder must terminate; it either delivered nothing or a prefix.
	for range ch {
	}
	if _, err := stream.Next(); err != io.EOF {
		t.Errorf("stream should be closed after cancel, got %v", err)
	}
}

func TestMessageStream_CloseStopsIteration(t *testing.T) {
	stream := NewMessageStream(sseBody(textStreamFixture), StreamOptions{})
	if _, err := stream.Next(); err != nil {
		t.Fatal(err)
	}
	if err := stream.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Next(); err != io.EOF {
		t.Errorf("next after close = %v, want io.EOF", err)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestMessageStreamManager(t *testing.T) {
	opened := 0
	mgr := NewMessageStreamManager(func(ctx context.Context) (*MessageStream, error) {
		opened++
		return NewMessageStream(sseBody(textStreamFixture), StreamOptions{}), nil
	})

	// Close before Start is a no-op.
	if err := mgr.Close(); err != nil {
		t.Fatal(err)
	}
	if opened != 0 {
		t.Fatalf("open called %d times before Start", opened)
	}

	stream, err := mgr.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	again, err := mgr.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stream != again || opened != 1 {
		t.Errorf("Start not idempotent: opened=%d", opened)
	}

	text, err := stream.FinalText()
	if err != nil || text != "Hello, world" {
		t.Fatalf("final text = %q, %v", text, err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMessageStreamManager_OpenError(t *testing.T) {
	boom := errors.New("dial failed")
	mgr := NewMessageStreamManager(func(ctx context.Context) (*MessageStream, error) {
		return nil, boom
	})
	if _, err := mgr.Start(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("close after failed start: %v", err)
	}
}
