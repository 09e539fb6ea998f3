package turn

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"chatflow/internal/domain"
)

func zapNop() *zap.Logger {
	return zap.NewNop()
}

func chatDomain(id string) domain.Chat {
	return domain.Chat{ID: id, CreatedAt: time.Now().UTC()}
}

func userMessage(localID, content string) domain.Message {
	return domain.Message{
		LocalID:   localID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// waitIdle espera a que la limpieza posterior al stream libere el chat.
// La limpieza corre en su propia goroutine después de Done, así que un
// chequeo inmediato de IsTyping tras Wait puede ver el estado viejo.
func waitIdle(t *testing.T, c *Controller, chatID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !c.IsTyping(chatID) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("chat %s still streaming after deadline", chatID)
}
