package store

import (
	"errors"
	"strings"
	"testing"

	"chatflow/internal/domain"
)

func newChatWith(t *testing.T, s *Store, msgs ...domain.Message) string {
	t.Helper()
	s.CreateChat(domain.Chat{ID: "c1"})
	for _, m := range msgs {
		if err := s.AppendMessage("c1", m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return "c1"
}

func TestAppendMessageDerivesTitleFromFirstUserMessage(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "m1", Role: domain.RoleUser, Content: "  hola, necesito ayuda con un contrato  "},
		domain.Message{LocalID: "m2", Role: domain.RoleUser, Content: "otro"},
	)

	chat, _ := s.Chat(chatID)
	if chat.Title != "hola, necesito ayuda con un contrato" {
		t.Fatalf("expected title from first message, got %q", chat.Title)
	}
}

func TestAppendMessageTruncatesLongTitle(t *testing.T) {
	s := NewStore(nil)
	long := strings.Repeat("á", 60)
	chatID := newChatWith(t, s, domain.Message{LocalID: "m1", Role: domain.RoleUser, Content: long})

	chat, _ := s.Chat(chatID)
	if got := len([]rune(chat.Title)); got != titleRunes {
		t.Fatalf("expected %d runes, got %d", titleRunes, got)
	}
}

// P1: una secuencia de deltas aplicada en orden deja exactamente un
// mensaje del asistente con la concatenación completa.
func TestContentGrowsMonotonically(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s, domain.Message{LocalID: "a1", Role: domain.RoleAssistant})

	deltas := []string{"Hel", "lo", " wor", "ld"}
	acc := ""
	for _, d := range deltas {
		acc += d
		if err := s.UpdateMessageContent(chatID, "a1", acc, Patch{}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	chat, _ := s.Chat(chatID)
	if len(chat.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(chat.Messages))
	}
	if chat.Messages[0].Content != "Hello world" {
		t.Fatalf("expected accumulated content, got %q", chat.Messages[0].Content)
	}
}

// P2: la ligadura del ServerID es idempotente y nunca sobreescribe una
// ligadura distinta ya establecida.
func TestServerIDBindingIdempotent(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s, domain.Message{LocalID: "m1", Role: domain.RoleUser, Content: "hola"})

	if err := s.UpdateMessageContent(chatID, "m1", "hola", Patch{ServerID: "srv-1"}); err != nil {
		t.Fatalf("first bind: %v", err)
	}
	if err := s.UpdateMessageContent(chatID, "m1", "hola", Patch{ServerID: "srv-1"}); err != nil {
		t.Fatalf("rebind same id: %v", err)
	}

	err := s.UpdateMessageContent(chatID, "m1", "hola", Patch{ServerID: "srv-2"})
	if !errors.Is(err, ErrServerIDConflict) {
		t.Fatalf("expected ErrServerIDConflict, got %v", err)
	}

	chat, _ := s.Chat(chatID)
	if chat.Messages[0].ServerID != "srv-1" {
		t.Fatalf("expected first binding kept, got %q", chat.Messages[0].ServerID)
	}
}

func TestUpdateMessageContentMergesPatch(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s, domain.Message{LocalID: "m1", Role: domain.RoleUser, Content: "original"})

	patch := Patch{ServerID: "srv-1", IsEdited: true, ToolCalls: []string{"search"}}
	if err := s.UpdateMessageContent(chatID, "m1", "corregido", patch); err != nil {
		t.Fatalf("update: %v", err)
	}

	chat, _ := s.Chat(chatID)
	m := chat.Messages[0]
	if m.Content != "corregido" || !m.IsEdited || m.ServerID != "srv-1" || len(m.ToolCalls) != 1 {
		t.Fatalf("expected merged patch, got %+v", m)
	}
}

func TestUpdateMessageFeedback(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s, domain.Message{LocalID: "m1", Role: domain.RoleAssistant, Content: "respuesta"})

	if err := s.UpdateMessageFeedback(chatID, "m1", domain.FeedbackUp); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	chat, _ := s.Chat(chatID)
	if chat.Messages[0].Feedback != domain.FeedbackUp {
		t.Fatalf("expected feedback up, got %q", chat.Messages[0].Feedback)
	}
}

func TestRemoveLatestAssistantReplyTo(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "u1", Role: domain.RoleUser, Content: "pregunta 1"},
		domain.Message{LocalID: "a1", Role: domain.RoleAssistant, Content: "respuesta 1"},
		domain.Message{LocalID: "u2", Role: domain.RoleUser, Content: "pregunta 2"},
		domain.Message{LocalID: "a2", Role: domain.RoleAssistant, Content: "respuesta 2"},
	)

	removed, err := s.RemoveLatestAssistantReplyTo(chatID, "u2")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != "a2" {
		t.Fatalf("expected a2 removed, got %q", removed)
	}

	chat, _ := s.Chat(chatID)
	if len(chat.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(chat.Messages))
	}
	for _, m := range chat.Messages {
		if m.LocalID == "a2" {
			t.Fatalf("a2 still present")
		}
	}
}

func TestRemoveLatestAssistantReplyToWithoutReply(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s, domain.Message{LocalID: "u1", Role: domain.RoleUser, Content: "pregunta"})

	removed, err := s.RemoveLatestAssistantReplyTo(chatID, "u1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != "" {
		t.Fatalf("expected nothing removed, got %q", removed)
	}
}

func TestRemoveLatestAssistantDoesNotTouchEarlierReplies(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "u1", Role: domain.RoleUser, Content: "pregunta 1"},
		domain.Message{LocalID: "a1", Role: domain.RoleAssistant, Content: "respuesta 1"},
		domain.Message{LocalID: "u2", Role: domain.RoleUser, Content: "pregunta 2"},
	)

	removed, err := s.RemoveLatestAssistantReplyTo(chatID, "u2")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != "" {
		t.Fatalf("expected no removal, a1 precedes u2; got %q", removed)
	}
	chat, _ := s.Chat(chatID)
	if len(chat.Messages) != 3 {
		t.Fatalf("expected intact chat, got %d messages", len(chat.Messages))
	}
}

func TestRetitleFromFirstMessage(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s, domain.Message{LocalID: "u1", Role: domain.RoleUser, Content: "titulo viejo"})

	if err := s.UpdateMessageContent(chatID, "u1", "titulo nuevo", Patch{IsEdited: true}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.RetitleFromFirstMessage(chatID); err != nil {
		t.Fatalf("retitle: %v", err)
	}

	chat, _ := s.Chat(chatID)
	if chat.Title != "titulo nuevo" {
		t.Fatalf("expected retitled chat, got %q", chat.Title)
	}
}

func TestStoreErrors(t *testing.T) {
	s := NewStore(nil)
	if err := s.AppendMessage("nope", domain.Message{}); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	s.CreateChat(domain.Chat{ID: "c1"})
	if err := s.UpdateMessageContent("c1", "nope", "x", Patch{}); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestDeleteChatAndMessage(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s,
		domain.Message{LocalID: "m1", Role: domain.RoleUser, Content: "hola"},
		domain.Message{LocalID: "m2", Role: domain.RoleAssistant, Content: "respuesta"},
	)

	if err := s.DeleteMessage(chatID, "m2"); err != nil {
		t.Fatalf("delete message: %v", err)
	}
	chat, _ := s.Chat(chatID)
	if len(chat.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(chat.Messages))
	}

	s.DeleteChat(chatID)
	if _, ok := s.Chat(chatID); ok {
		t.Fatalf("expected chat deleted")
	}
}

func TestChatReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	chatID := newChatWith(t, s, domain.Message{LocalID: "m1", Role: domain.RoleUser, Content: "hola"})

	chat, _ := s.Chat(chatID)
	chat.Messages[0].Content = "mutado"

	again, _ := s.Chat(chatID)
	if again.Messages[0].Content != "hola" {
		t.Fatalf("expected store isolated from caller mutation")
	}
}
