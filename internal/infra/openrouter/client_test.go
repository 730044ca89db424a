package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSummarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Messages[1].Content != "Студент: вопрос\nПоддержка: ответ" {
			t.Errorf("dialogue = %q", req.Messages[1].Content)
		}

		json.NewEncoder(w).Encode(chatResponse{Choices: []struct {
			Message chatMessage `json:"message"`
		}{{Message: chatMessage{Role: "assistant", Content: "  Вопрос решён.  "}}}})
	}))
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	got, err := c.Summarize(context.Background(), "Студент: вопрос\nПоддержка: ответ")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Вопрос решён." {
		t.Errorf("summary = %q", got)
	}
}

func TestSummarizeNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	if _, err := c.Summarize(context.Background(), "диалог"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestSummarizeEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", "test-model").WithBaseURL(srv.URL)
	if _, err := c.Summarize(context.Background(), "диалог"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
