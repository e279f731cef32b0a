package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func chatServer(t *testing.T, status int, reply, errMsg string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat" {
			t.Errorf("path = %q, want /chat", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"reply": reply, "error": errMsg})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPostChat(t *testing.T) {
	var gotKey, gotSession string
	var gotPayload chatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotSession = r.Header.Get("x-session-id")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]string{"reply": "hello back"})
	}))
	defer srv.Close()

	reply, err := postChat(http.DefaultClient, srv.URL, "k1", "cli", chatPayload{
		Message:   "hello",
		MaxTokens: 32,
		Model:     "qwen",
	})
	if err != nil {
		t.Fatalf("postChat: %v", err)
	}
	if reply != "hello back" {
		t.Errorf("reply = %q", reply)
	}
	if gotKey != "k1" || gotSession != "cli" {
		t.Errorf("headers = %q/%q, want k1/cli", gotKey, gotSession)
	}
	if gotPayload.Message != "hello" || gotPayload.MaxTokens != 32 || gotPayload.Model != "qwen" {
		t.Errorf("payload = %+v", gotPayload)
	}
}

func TestPostChat_ServerError(t *testing.T) {
	srv := chatServer(t, http.StatusServiceUnavailable, "", "model not loaded")

	_, err := postChat(http.DefaultClient, srv.URL, "", "cli", chatPayload{Message: "hi"})
	if err == nil {
		t.Fatal("expected error on 503")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error = %v, want server detail included", err)
	}
}

func TestRunChat_REPL(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "echo", "")

	cmd := newChatCmd()
	cmd.SetIn(strings.NewReader("hi there\n\n/quit\n"))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--url", srv.URL})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "echo") {
		t.Errorf("output missing reply: %q", out.String())
	}
}
