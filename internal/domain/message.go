package domain

import "time"

// Role identifica al autor de un mensaje dentro de una conversación.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Feedback es la valoración opcional de un mensaje ya terminado.
type Feedback string

const (
	FeedbackNone Feedback = ""
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// Message modela un mensaje con identidad en dos fases: LocalID se acuña
// en el cliente en el momento de crear el mensaje y es estable durante
// toda su vida; ServerID queda vacío hasta que el backend confirma la
// persistencia y, una vez ligado, nunca se reasigna a otro LocalID.
type Message struct {
	LocalID   string    `json:"local_id"`
	ServerID  string    `json:"server_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Feedback  Feedback  `json:"feedback,omitempty"`
	IsEdited  bool      `json:"is_edited,omitempty"`
	ToolCalls []string  `json:"tool_calls,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasServerID indica si el mensaje ya fue confirmado por el backend.
func (m Message) HasServerID() bool {
	return m.ServerID != ""
}
