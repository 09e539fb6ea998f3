package store

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatflow/internal/domain"
)

// titleRunes es el largo del título derivado del primer mensaje.
const titleRunes = 40

var (
	ErrChatNotFound    = errors.New("store: chat not found")
	ErrMessageNotFound = errors.New("store: message not found")

	// ErrServerIDConflict señala el intento de sobreescribir un
	// ServerID ya ligado con uno distinto. Es una violación de
	// invariante del protocolo: se conserva la primera ligadura y se
	// reporta en vez de corromper el historial en silencio.
	ErrServerIDConflict = errors.New("store: server id already bound to a different value")
)

// Store es el modelo autoritativo de chats y mensajes que observa la
// interfaz. Toda mutación pasa por sus operaciones; ningún otro código
// toca las secuencias de mensajes. Las lecturas devuelven copias.
type Store struct {
	mu     sync.Mutex
	chats  map[string]*domain.Chat
	order  []string
	logger *zap.Logger
}

// Patch agrupa los campos opcionales que UpdateMessageContent puede
// fusionar junto con el contenido. ServerID es la única vía por la que
// un mensaje adquiere identidad de servidor.
type Patch struct {
	ServerID  string
	IsEdited  bool
	ToolCalls []string
}

// NewStore crea un store vacío. Acepta logger nil.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		chats:  make(map[string]*domain.Chat),
		logger: logger,
	}
}

// CreateChat registra un chat nuevo.
func (s *Store) CreateChat(chat domain.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	cp := chat
	cp.Messages = append([]domain.Message(nil), chat.Messages...)
	if _, exists := s.chats[chat.ID]; !exists {
		s.order = append(s.order, chat.ID)
	}
	s.chats[chat.ID] = &cp
}

// Chat devuelve una copia del chat indicado.
func (s *Store) Chat(chatID string) (domain.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return domain.Chat{}, false
	}
	return copyChat(c), true
}

// Chats devuelve copias de todos los chats en orden de creación.
func (s *Store) Chats() []domain.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Chat, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.chats[id]; ok {
			out = append(out, copyChat(c))
		}
	}
	return out
}

// DeleteChat elimina un chat completo.
func (s *Store) DeleteChat(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
	for i, id := range s.order {
		if id == chatID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// AppendMessage inserta un mensaje al final de la secuencia del chat.
// Si es el primer mensaje de usuario del chat, deriva el título.
func (s *Store) AppendMessage(chatID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	c.Messages = append(c.Messages, msg)
	if msg.Role == domain.RoleUser && c.Title == "" {
		c.Title = deriveTitle(msg.Content)
	}
	return nil
}

// UpdateMessageContent reemplaza el contenido de un mensaje y fusiona
// los campos del patch. Es la única costura donde LocalID y ServerID se
// encuentran: ligar el mismo ServerID dos veces es un no-op; ligar uno
// distinto conserva el primero y devuelve ErrServerIDConflict.
func (s *Store) UpdateMessageContent(chatID, localID, content string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := s.find(chatID, localID)
	if err != nil {
		return err
	}

	msg.Content = content
	if patch.IsEdited {
		msg.IsEdited = true
	}
	if len(patch.ToolCalls) > 0 {
		msg.ToolCalls = append([]string(nil), patch.ToolCalls...)
	}
	if patch.ServerID != "" {
		if msg.ServerID != "" && msg.ServerID != patch.ServerID {
			s.logger.Error("server id conflict",
				zap.String("chat_id", chatID),
				zap.String("local_id", localID),
				zap.String("bound", msg.ServerID),
				zap.String("incoming", patch.ServerID),
			)
			return ErrServerIDConflict
		}
		msg.ServerID = patch.ServerID
	}
	return nil
}

// UpdateMessageFeedback cambia la valoración de un mensaje. Es
// independiente del flujo de contenido y seguro con un stream en vuelo
// sobre otro mensaje del mismo chat.
func (s *Store) UpdateMessageFeedback(chatID, localID string, value domain.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, err := s.find(chatID, localID)
	if err != nil {
		return err
	}
	msg.Feedback = value
	return nil
}

// RemoveLatestAssistantReplyTo elimina la respuesta del asistente más
// reciente posterior al mensaje de usuario dado, y solo esa. Devuelve
// el LocalID del mensaje retirado, o cadena vacía si no había ninguno.
func (s *Store) RemoveLatestAssistantReplyTo(chatID, userLocalID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return "", ErrChatNotFound
	}

	userIdx := -1
	for i, m := range c.Messages {
		if m.LocalID == userLocalID {
			userIdx = i
			break
		}
	}
	if userIdx < 0 {
		return "", ErrMessageNotFound
	}

	for i := len(c.Messages) - 1; i > userIdx; i-- {
		if c.Messages[i].Role == domain.RoleAssistant {
			removed := c.Messages[i].LocalID
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return removed, nil
		}
	}
	return "", nil
}

// DeleteMessage elimina un mensaje puntual.
func (s *Store) DeleteMessage(chatID, localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	for i, m := range c.Messages {
		if m.LocalID == localID {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return nil
		}
	}
	return ErrMessageNotFound
}

// RetitleFromFirstMessage rederiva el título a partir del primer
// mensaje de usuario. Se usa tras editar ese mensaje.
func (s *Store) RetitleFromFirstMessage(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return ErrChatNotFound
	}
	for _, m := range c.Messages {
		if m.Role == domain.RoleUser {
			c.Title = deriveTitle(m.Content)
			return nil
		}
	}
	return nil
}

func (s *Store) find(chatID, localID string) (*domain.Message, error) {
	c, ok := s.chats[chatID]
	if !ok {
		return nil, ErrChatNotFound
	}
	for i := range c.Messages {
		if c.Messages[i].LocalID == localID {
			return &c.Messages[i], nil
		}
	}
	return nil, ErrMessageNotFound
}

func copyChat(c *domain.Chat) domain.Chat {
	cp := *c
	cp.Messages = append([]domain.Message(nil), c.Messages...)
	return cp
}

func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	runes := []rune(title)
	if len(runes) > titleRunes {
		title = string(runes[:titleRunes])
	}
	return title
}
