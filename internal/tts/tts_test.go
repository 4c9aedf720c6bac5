package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSpeak(t *testing.T) {
	want := bytes.Repeat([]byte{0x01, 0x02}, 512)

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Write(want)
	}))
	defer srv.Close()

	s := New(Config{APIKey: "sk-test", Voice: "coral", URL: srv.URL})

	pcm, err := s.Speak(context.Background(), "안녕하세요.")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if !bytes.Equal(pcm, want) {
		t.Errorf("Speak() returned %d bytes, want %d", len(pcm), len(want))
	}

	if gotBody["input"] != "안녕하세요." {
		t.Errorf("request input = %v", gotBody["input"])
	}
	if gotBody["voice"] != "coral" {
		t.Errorf("request voice = %v", gotBody["voice"])
	}
	if gotBody["model"] != defaultModel {
		t.Errorf("request model = %v, want default", gotBody["model"])
	}
	if gotBody["response_format"] != "pcm" {
		t.Errorf("request response_format = %v, want pcm", gotBody["response_format"])
	}
}

func TestSpeakEmptyTextSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent for empty text")
	}))
	defer srv.Close()

	s := New(Config{APIKey: "sk-test", URL: srv.URL})
	pcm, err := s.Speak(context.Background(), "")
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if pcm != nil {
		t.Errorf("Speak() = %d bytes for empty text, want none", len(pcm))
	}
}

func TestSpeakServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := New(Config{APIKey: "sk-test", URL: srv.URL})
	if _, err := s.Speak(context.Background(), "hello"); err == nil {
		t.Fatal("Speak() = nil error on server failure")
	}
}
