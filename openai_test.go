package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractOutputText(t *testing.T) {
	long := strings.Repeat("x", 120)
	tests := []struct {
		name    string
		env     responseEnvelope
		want    string
		wantErr bool
	}{
		{
			name: "flattened convenience field",
			env:  responseEnvelope{OutputText: "report"},
			want: "report",
		},
		{
			name: "reasoning item precedes the message",
			env: responseEnvelope{Output: []outputItem{
				{Type: "reasoning"},
				{Type: "message", Content: []contentItem{{Type: "output_text", Text: "report"}}},
			}},
			want: "report",
		},
		{
			name: "message is the only item",
			env: responseEnvelope{Output: []outputItem{
				{Type: "message", Content: []contentItem{{Type: "output_text", Text: "report"}}},
			}},
			want: "report",
		},
		{
			name: "message buried past the first two items",
			env: responseEnvelope{Output: []outputItem{
				{Type: "reasoning"},
				{Type: "reasoning"},
				{Type: "message", Content: []contentItem{{Type: "output_text", Text: "report"}}},
			}},
			want: "report",
		},
		{
			name: "long text on an untyped item",
			env: responseEnvelope{Output: []outputItem{
				{Type: "reasoning"},
				{Type: "something_else", Content: []contentItem{{}, {Type: "output_text", Text: long}}},
			}},
			want: long,
		},
		{
			name: "short text on an untyped item is not trusted",
			env: responseEnvelope{Output: []outputItem{
				{Type: "reasoning"},
				{Type: "something_else", Content: []contentItem{{}, {Type: "output_text", Text: "short"}}},
			}},
			wantErr: true,
		},
		{
			name:    "empty envelope",
			env:     responseEnvelope{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractOutputText(&tt.env)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenAIClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req responsesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "gpt-5.1" || req.Instructions != "be brief" || req.Input != "prompt" {
			t.Errorf("request = %+v", req)
		}
		if req.Reasoning.Effort != "medium" || req.MaxOutputTokens != 8000 {
			t.Errorf("request tuning = %+v", req)
		}
		if req.Text.Format.Type != "text" {
			t.Errorf("format = %+v", req.Text)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"output": []map[string]any{
				{"type": "reasoning"},
				{"type": "message", "content": []map[string]any{
					{"type": "output_text", "text": "# Report"},
				}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL, "")
	got, err := c.Generate(context.Background(), "be brief", "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "# Report" {
		t.Errorf("got %q", got)
	}
}

func TestOpenAIClientGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "rate limited", "type": "rate_limit_error"},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", srv.URL, "")
	_, err := c.Generate(context.Background(), "i", "p")
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("error %q should carry the API message", err)
	}
}

func TestOpenAIClientDefaults(t *testing.T) {
	c := NewOpenAIClient("k", "", "")
	if c.baseURL != defaultOpenAIBaseURL {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.Model() != defaultModel {
		t.Errorf("model = %q", c.Model())
	}
	c = NewOpenAIClient("k", "http://localhost:9999/", "custom")
	if c.baseURL != "http://localhost:9999" {
		t.Errorf("trailing slash kept: %q", c.baseURL)
	}
	if c.Model() != "custom" {
		t.Errorf("model = %q", c.Model())
	}
}
