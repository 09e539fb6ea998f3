package domain

import "time"

// Chat agrupa una secuencia ordenada de mensajes. La secuencia solo se
// modifica a través de las operaciones del store: append al final y el
// retiro puntual de la última respuesta del asistente al editar o
// regenerar un turno.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	AgentID   string    `json:"agent_id,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// LastUserMessage devuelve el mensaje de usuario más reciente.
func (c Chat) LastUserMessage() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}
