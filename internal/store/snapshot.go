package store

import (
	"go.uber.org/zap"

	"chatflow/internal/api"
)

// BindFromSnapshot liga ids de servidor faltantes usando el snapshot
// autoritativo del backend. El apareo es posicional y verificado por
// rol: ambas secuencias están en el mismo orden, así que el i-ésimo
// mensaje del snapshot corresponde al i-ésimo mensaje local. Pasa por
// las mismas reglas de ligadura que UpdateMessageContent.
func (s *Store) BindFromSnapshot(chatID string, snapshot api.ChatSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}

	for i := range c.Messages {
		if i >= len(snapshot.Messages) {
			break
		}
		local := &c.Messages[i]
		remote := snapshot.Messages[i]
		if string(local.Role) != remote.Role {
			s.logger.Warn("snapshot role mismatch",
				zap.String("chat_id", chatID),
				zap.Int("index", i),
				zap.String("local_role", string(local.Role)),
				zap.String("remote_role", remote.Role),
			)
			continue
		}
		if local.ServerID == "" {
			local.ServerID = remote.ID
			continue
		}
		if local.ServerID != remote.ID {
			s.logger.Error("server id conflict during snapshot bind",
				zap.String("chat_id", chatID),
				zap.String("local_id", local.LocalID),
				zap.String("bound", local.ServerID),
				zap.String("incoming", remote.ID),
			)
			return ErrServerIDConflict
		}
	}
	return nil
}
