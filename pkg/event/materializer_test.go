package event

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/siqueiraa/WhiskFlow/pkg/whisk"
)

type captureSink struct {
	events []map[string]any
}

func (s *captureSink) Emit(_ context.Context, ev map[string]any) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Close() error { return nil }

func testMeta() Meta {
	return Meta{
		Request: whisk.Request{
			Method:   http.MethodGet,
			URL:      "https://whisk.example.com/api/v1/namespaces/_/activations",
			Query:    url.Values{"since": []string{"1000"}, "limit": []string{"0"}},
			Username: "principal",
			Password: "secret",
		},
		Took:    1500 * time.Millisecond,
		Code:    200,
		Headers: http.Header{"Content-Type": []string{"application/json"}},
		Retries: 0,
	}
}

func TestActivationMergesTopLevel(t *testing.T) {
	out := &captureSink{}
	m := New("prod-logs", "worker-1", "", "@metadata", out)

	rec := map[string]any{"activationId": "a1", "end": float64(2000)}
	if err := m.Activation(context.Background(), rec, testMeta()); err != nil {
		t.Fatalf("Activation: %v", err)
	}

	if len(out.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(out.events))
	}
	ev := out.events[0]
	if ev["activationId"] != "a1" {
		t.Errorf("activationId = %v, want a1", ev["activationId"])
	}

	meta, ok := ev["@metadata"].(map[string]any)
	if !ok {
		t.Fatalf("Missing @metadata: %v", ev)
	}
	if meta["name"] != "prod-logs" || meta["host"] != "worker-1" {
		t.Errorf("Metadata identity wrong: %v", meta)
	}
	if meta["code"] != 200 {
		t.Errorf("code = %v, want 200", meta["code"])
	}
	if meta["runtime_seconds"] != 1.5 {
		t.Errorf("runtime_seconds = %v, want 1.5", meta["runtime_seconds"])
	}
	headers, _ := meta["response_headers"].(map[string]string)
	if headers["Content-Type"] != "application/json" {
		t.Errorf("response_headers = %v", meta["response_headers"])
	}
}

func TestActivationNestsUnderTarget(t *testing.T) {
	out := &captureSink{}
	m := New("prod-logs", "worker-1", "activation", "@metadata", out)

	rec := map[string]any{"activationId": "a1"}
	if err := m.Activation(context.Background(), rec, testMeta()); err != nil {
		t.Fatalf("Activation: %v", err)
	}

	ev := out.events[0]
	if _, merged := ev["activationId"]; merged {
		t.Error("Record fields leaked to top level despite target")
	}
	nested, ok := ev["activation"].(map[string]any)
	if !ok || nested["activationId"] != "a1" {
		t.Errorf("Record not nested under target: %v", ev)
	}
}

func TestActivationMetadataDisabled(t *testing.T) {
	out := &captureSink{}
	m := New("prod-logs", "worker-1", "", "", out)

	if err := m.Activation(context.Background(), map[string]any{"activationId": "a1"}, testMeta()); err != nil {
		t.Fatalf("Activation: %v", err)
	}

	ev := out.events[0]
	if _, present := ev["@metadata"]; present {
		t.Errorf("Metadata emitted while disabled: %v", ev)
	}
	if len(ev) != 1 {
		t.Errorf("Expected record fields only, got %v", ev)
	}
}

func TestMetadataRequestExcludesSecret(t *testing.T) {
	out := &captureSink{}
	m := New("prod-logs", "worker-1", "", "@metadata", out)

	if err := m.Activation(context.Background(), map[string]any{"activationId": "a1"}, testMeta()); err != nil {
		t.Fatalf("Activation: %v", err)
	}

	meta := out.events[0]["@metadata"].(map[string]any)
	req, ok := meta["request"].(map[string]string)
	if !ok {
		t.Fatalf("Missing request metadata: %v", meta)
	}
	if req["username"] != "principal" {
		t.Errorf("username = %q", req["username"])
	}
	for k, v := range req {
		if v == "secret" {
			t.Errorf("Password leaked into request metadata under %q", k)
		}
	}
}

func TestFailureEvent(t *testing.T) {
	out := &captureSink{}
	m := New("prod-logs", "worker-1", "", "@metadata", out)

	cause := fmt.Errorf("request failed: %w", errors.New("connection refused"))
	meta := testMeta()
	if err := m.Failure(context.Background(), meta.Request, cause, 3*time.Second); err != nil {
		t.Fatalf("Failure: %v", err)
	}

	ev := out.events[0]
	tags, ok := ev["tags"].([]string)
	if !ok || len(tags) != 1 || tags[0] != FailureTag {
		t.Errorf("tags = %v, want [%s]", ev["tags"], FailureTag)
	}

	rf, ok := ev["request_failure"].(map[string]any)
	if !ok {
		t.Fatalf("Missing request_failure: %v", ev)
	}
	if rf["name"] != "prod-logs" {
		t.Errorf("name = %v", rf["name"])
	}
	if rf["error"] != cause.Error() {
		t.Errorf("error = %v, want %v", rf["error"], cause.Error())
	}
	trace, ok := rf["trace"].([]string)
	if !ok || len(trace) != 2 {
		t.Errorf("trace = %v, want the two-entry unwrap chain", rf["trace"])
	}
	if rf["runtime_seconds"] != 3.0 {
		t.Errorf("runtime_seconds = %v, want 3", rf["runtime_seconds"])
	}

	md := ev["@metadata"].(map[string]any)
	for _, forbidden := range []string{"code", "response_headers", "times_retried", "runtime_seconds"} {
		if _, present := md[forbidden]; present {
			t.Errorf("Failure metadata carries response field %q", forbidden)
		}
	}
}
