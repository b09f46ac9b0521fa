package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"radioscribe/internal/application"
	"radioscribe/internal/domain"
	"radioscribe/internal/infra/gemini"
)

func candidateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"parts": []map[string]string{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func TestClient_Transcribe(t *testing.T) {
	var gotBody map[string]any
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		gotKey = r.Header.Get("x-goog-api-key")
		if r.URL.RawQuery != "" {
			http.Error(w, "unexpected query parameters", http.StatusBadRequest)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(candidateResponse("OCC 呼叫 123 號車。月台淨空。"))
	}))
	defer server.Close()

	client := gemini.NewClientWithURL("test-key", "gemini-test", 15, server.URL)

	text, err := client.Transcribe(context.Background(), []byte("fake-m4a-audio"), application.TranscribeOptions{})
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}

	if text != "OCC 呼叫 123 號車。月台淨空。" {
		t.Errorf("transcript: got %q", text)
	}

	contents, ok := gotBody["contents"].([]any)
	if !ok || len(contents) != 1 {
		t.Fatalf("expected one content entry, got %v", gotBody["contents"])
	}
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected prompt part and audio part, got %d", len(parts))
	}
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != "audio/mp4" {
		t.Errorf("mimeType: got %v", inline["mimeType"])
	}
	if gotKey != "test-key" {
		t.Errorf("x-goog-api-key: got %q, want test-key", gotKey)
	}
}

func TestClient_TranscribeErrorOmitsAPIKey(t *testing.T) {
	const key = "sk-SECRET-KEY-123"
	client := gemini.NewClientWithURL(key, "gemini-test", 15, "http://127.0.0.1:1")

	_, err := client.Transcribe(context.Background(), []byte("audio"), application.TranscribeOptions{})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), key) {
		t.Errorf("error leaks API key: %v", err)
	}
}

func TestClient_TranscribeStripsFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(candidateResponse("```text\ntranscript body\n```"))
	}))
	defer server.Close()

	client := gemini.NewClientWithURL("test-key", "gemini-test", 15, server.URL)

	text, err := client.Transcribe(context.Background(), []byte("audio"), application.TranscribeOptions{})
	if err != nil {
		t.Fatalf("Transcribe error: %v", err)
	}
	if text != "transcript body" {
		t.Errorf("got %q, want fences stripped", text)
	}
}

func TestClient_TranscribeTooLarge(t *testing.T) {
	client := gemini.NewClientWithURL("test-key", "gemini-test", 1, "http://unused")

	big := make([]byte, 2*1024*1024)
	_, err := client.Transcribe(context.Background(), big, application.TranscribeOptions{})
	if !errors.Is(err, domain.ErrAudioTooLarge) {
		t.Fatalf("got %v, want ErrAudioTooLarge", err)
	}
}

func TestClient_TranscribeQuota(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := gemini.NewClientWithURL("test-key", "gemini-test", 15, server.URL)

	_, err := client.Transcribe(context.Background(), []byte("audio"), application.TranscribeOptions{})
	if !errors.Is(err, domain.ErrQuotaExhausted) {
		t.Fatalf("got %v, want ErrQuotaExhausted", err)
	}
}

func TestClient_TranscribeBadAudioNotRetried(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unsupported audio", http.StatusBadRequest)
	}))
	defer server.Close()

	client := gemini.NewClientWithURL("test-key", "gemini-test", 15, server.URL)

	_, err := client.Transcribe(context.Background(), []byte("audio"), application.TranscribeOptions{})
	if !errors.Is(err, domain.ErrInvalidAudio) {
		t.Fatalf("got %v, want ErrInvalidAudio", err)
	}
	if calls != 1 {
		t.Errorf("calls: got %d, want 1 (bad request must not retry)", calls)
	}
}

func TestClient_TranscribeSafetyBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"promptFeedback": map[string]string{"blockReason": "SAFETY"},
		})
	}))
	defer server.Close()

	client := gemini.NewClientWithURL("test-key", "gemini-test", 15, server.URL)

	_, err := client.Transcribe(context.Background(), []byte("audio"), application.TranscribeOptions{})
	if !errors.Is(err, domain.ErrSafetyBlocked) {
		t.Fatalf("got %v, want ErrSafetyBlocked", err)
	}
}

func TestClient_TranscribeEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	client := gemini.NewClientWithURL("test-key", "gemini-test", 15, server.URL)

	_, err := client.Transcribe(context.Background(), []byte("audio"), application.TranscribeOptions{})
	if !errors.Is(err, domain.ErrEmptyTranscript) {
		t.Fatalf("got %v, want ErrEmptyTranscript", err)
	}
}
