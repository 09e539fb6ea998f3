package store

import (
	"errors"
	"testing"

	"chatflow/internal/api"
	"chatflow/internal/domain"
)

func TestBindFromSnapshotBindsMissingIDs(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "u1", Role: domain.RoleUser, Content: "hola"},
		domain.Message{LocalID: "a1", Role: domain.RoleAssistant, Content: "respuesta"},
	)

	snapshot := api.ChatSnapshot{
		ID: chatID,
		Messages: []api.SnapshotMessage{
			{ID: "srv-u1", Role: "user", Content: "hola"},
			{ID: "srv-a1", Role: "assistant", Content: "respuesta"},
		},
	}
	if err := s.BindFromSnapshot(chatID, snapshot); err != nil {
		t.Fatalf("bind: %v", err)
	}

	chat, _ := s.Chat(chatID)
	if chat.Messages[0].ServerID != "srv-u1" || chat.Messages[1].ServerID != "srv-a1" {
		t.Fatalf("expected ids bound, got %+v", chat.Messages)
	}
}

func TestBindFromSnapshotKeepsExistingBindings(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "u1", ServerID: "srv-u1", Role: domain.RoleUser, Content: "hola"},
	)

	snapshot := api.ChatSnapshot{
		ID:       chatID,
		Messages: []api.SnapshotMessage{{ID: "srv-u1", Role: "user", Content: "hola"}},
	}
	if err := s.BindFromSnapshot(chatID, snapshot); err != nil {
		t.Fatalf("bind: %v", err)
	}
}

func TestBindFromSnapshotConflict(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "u1", ServerID: "srv-u1", Role: domain.RoleUser, Content: "hola"},
	)

	snapshot := api.ChatSnapshot{
		ID:       chatID,
		Messages: []api.SnapshotMessage{{ID: "srv-otro", Role: "user", Content: "hola"}},
	}
	err := s.BindFromSnapshot(chatID, snapshot)
	if !errors.Is(err, ErrServerIDConflict) {
		t.Fatalf("expected ErrServerIDConflict, got %v", err)
	}

	chat, _ := s.Chat(chatID)
	if chat.Messages[0].ServerID != "srv-u1" {
		t.Fatalf("expected first binding kept, got %q", chat.Messages[0].ServerID)
	}
}

func TestBindFromSnapshotSkipsRoleMismatch(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "u1", Role: domain.RoleUser, Content: "hola"},
	)

	snapshot := api.ChatSnapshot{
		ID:       chatID,
		Messages: []api.SnapshotMessage{{ID: "srv-x", Role: "assistant", Content: "otra cosa"}},
	}
	if err := s.BindFromSnapshot(chatID, snapshot); err != nil {
		t.Fatalf("bind: %v", err)
	}

	chat, _ := s.Chat(chatID)
	if chat.Messages[0].ServerID != "" {
		t.Fatalf("expected mismatched position skipped, got %q", chat.Messages[0].ServerID)
	}
}
