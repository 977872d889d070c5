package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewAPIClientDefaults(t *testing.T) {
	client := NewAPIClient("", 0)
	if client.baseURL != "http://127.0.0.1:8749" {
		t.Errorf("unexpected default baseURL %s", client.baseURL)
	}
	if client.client.Timeout != 10*time.Second {
		t.Errorf("unexpected default timeout %v", client.client.Timeout)
	}

	client = NewAPIClient("http://example.com/api/", 5*time.Second)
	if client.baseURL != "http://example.com/api" {
		t.Errorf("trailing slash should be trimmed, got %s", client.baseURL)
	}
}

func TestAPIClientActive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/active" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"game":{"id":"440","name":"TF2","executable":"/g/tf2/tf.exe","install_dir":"/g/tf2"},"state":"running","started_at":"2026-08-30T12:00:00Z"}]`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, time.Second)
	games, err := client.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(games) != 1 || games[0].Game.ID != "440" || games[0].State != "running" {
		t.Fatalf("unexpected active games: %+v", games)
	}
}

func TestAPIClientTerminateNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no active game with id 999"}`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, time.Second)
	err := client.Terminate("999")
	if err == nil {
		t.Fatal("expected error for unknown game id")
	}
	if got := err.Error(); got != "API error: no active game with id 999" {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestAPIClientHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/history" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"game_id":"440","game_name":"TF2","started_at":"2026-08-30T12:00:00Z","ended_at":"2026-08-30T13:00:00Z","duration":3600000000000,"exit_code":0,"success":true}]`))
	}))
	defer server.Close()

	client := NewAPIClient(server.URL, time.Second)
	records, err := client.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(records) != 1 || !records[0].Success || records[0].Duration != time.Hour {
		t.Fatalf("unexpected records: %+v", records)
	}
}
