package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatflow/internal/domain"
)

func TestClientSendsAuthHeaders(t *testing.T) {
	var gotAuth, gotContentType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"chat":{"id":"c1","title":""}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "token123", nil)
	if _, err := client.CreateChat(context.Background(), "", ""); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if gotAuth != "Bearer token123" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type %q", gotContentType)
	}
}

func TestClientSetTokenReplacesHeader(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"chat":{"id":"c1","title":""}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", nil)
	client.SetToken("renovado")
	if _, err := client.CreateChat(context.Background(), "", ""); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	if gotAuth != "Bearer renovado" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestClientNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"chat not found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", nil)
	if _, err := client.FetchChat(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenStreamPayload(t *testing.T) {
	var got StreamRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/stream" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_, _ = w.Write([]byte("data: {\"type\":\"done\",\"message_id\":\"a1\"}\n\n"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", nil)
	body, err := client.OpenStream(context.Background(), StreamRequest{
		ChatID:         "c1",
		Content:        "hola",
		IsRegeneration: true,
	})
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer body.Close()
	if _, err := io.ReadAll(body); err != nil {
		t.Fatalf("read body: %v", err)
	}

	if got.ChatID != "c1" || got.Content != "hola" || !got.IsRegeneration {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestOpenStreamRejectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", nil)
	if _, err := client.OpenStream(context.Background(), StreamRequest{ChatID: "c1", Content: "hola"}); err == nil {
		t.Fatalf("expected error on non-2xx status")
	}
}

func TestEditMessageShapes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/chats/c1/messages/m1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"message": map[string]any{
			"message_id": "m1",
			"content":    req.Content,
			"is_edited":  true,
		}})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", nil)
	res, err := client.EditMessage(context.Background(), "c1", "m1", "nuevo contenido")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if res.MessageID != "m1" || res.Content != "nuevo contenido" || !res.IsEdited {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSetFeedbackReturnsStoredValue(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/c1/messages/m1/feedback" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"feedback":"down"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", nil)
	stored, err := client.SetFeedback(context.Background(), "c1", "m1", domain.FeedbackDown)
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if stored != domain.FeedbackDown {
		t.Fatalf("expected down, got %q", stored)
	}
}

func TestFetchChatSnapshot(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"chat":{"id":"c1","title":"hola","messages":[
			{"id":"u1","role":"user","content":"hola","is_edited":false,"created_at":"2026-01-02T15:04:05Z"},
			{"id":"a1","role":"assistant","content":"buenas","is_edited":false,"created_at":"2026-01-02T15:04:06Z"}
		]}}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "", nil)
	snapshot, err := client.FetchChat(context.Background(), "c1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if snapshot.ID != "c1" || len(snapshot.Messages) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.Messages[1].ID != "a1" || snapshot.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected message: %+v", snapshot.Messages[1])
	}
}
