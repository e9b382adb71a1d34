// Package assist holds the remote edit contract and the local rule table used
// when no remote edit is available.
package assist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/reusee/taibeat/sandbox"
)

var (
	ErrMalformedRemoteResponse = errors.New("malformed remote response")
	ErrEmptyMessage            = errors.New("empty user message")
)

type Request struct {
	UserMessage string  `json:"userMessage"`
	CurrentCode string  `json:"currentCode"`
	BPM         float64 `json:"bpm"`
}

func NewRequest(message, code string, bpm float64) (Request, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Request{}, ErrEmptyMessage
	}
	return Request{
		UserMessage: message,
		CurrentCode: code,
		BPM:         bpm,
	}, nil
}

func (r Request) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

type Response struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponse validates a remote edit reply. Every failure wraps
// ErrMalformedRemoteResponse.
func ParseResponse(status int, body []byte) (Response, error) {
	if status < 200 || status > 299 {
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
			return Response{}, fmt.Errorf("%w: status %d: %s", ErrMalformedRemoteResponse, status, payload.Error)
		}
		return Response{}, fmt.Errorf("%w: status %d", ErrMalformedRemoteResponse, status)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedRemoteResponse, err)
	}
	code, ok := payload["code"].(string)
	if !ok {
		return Response{}, fmt.Errorf("%w: code is not a string", ErrMalformedRemoteResponse)
	}
	message, ok := payload["message"].(string)
	if !ok {
		return Response{}, fmt.Errorf("%w: message is not a string", ErrMalformedRemoteResponse)
	}
	if !strings.Contains(code, sandbox.EntryPoint) {
		return Response{}, fmt.Errorf("%w: no %s in code", ErrMalformedRemoteResponse, sandbox.EntryPoint)
	}
	return Response{
		Code:    code,
		Message: message,
	}, nil
}
