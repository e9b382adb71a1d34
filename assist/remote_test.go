package assist

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewRequest(t *testing.T) {
	if _, err := NewRequest("   ", "code", 120); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("got %v", err)
	}
	req, err := NewRequest(" faster ", "code", 120)
	if err != nil {
		t.Fatal(err)
	}
	bs, err := req.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(bs, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["userMessage"] != "faster" || decoded["currentCode"] != "code" || decoded["bpm"] != 120.0 {
		t.Fatalf("got %v", decoded)
	}
}

func TestParseResponse(t *testing.T) {
	resp, err := ParseResponse(200, []byte(`{"code": "function buildPatch(ctx) {}", "message": "done"}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "done" || !strings.Contains(resp.Code, "buildPatch") {
		t.Fatalf("got %+v", resp)
	}
}

func TestParseResponseMalformed(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"error payload", 500, `{"error": "model down"}`},
		{"bad status", 404, `not json`},
		{"not json", 200, `<html>`},
		{"code not string", 200, `{"code": 1, "message": "x"}`},
		{"message missing", 200, `{"code": "function buildPatch(ctx) {}"}`},
		{"no entry point", 200, `{"code": "function other() {}", "message": "x"}`},
		{"empty", 200, ``},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseResponse(c.status, []byte(c.body))
			if !errors.Is(err, ErrMalformedRemoteResponse) {
				t.Fatalf("got %v", err)
			}
		})
	}
	_, err := ParseResponse(500, []byte(`{"error": "model down"}`))
	if !strings.Contains(err.Error(), "model down") {
		t.Fatalf("got %v", err)
	}
}
