package protocol

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Interpreter convierte payloads de frames decodificados en eventos
// tipados. Es tolerante por contrato: un payload que no es JSON, o que
// no trae campo type, se descarta sin cortar el stream; un type
// desconocido se registra en debug y también se descarta, para que el
// servidor pueda agregar eventos nuevos sin romper clientes viejos.
type Interpreter struct {
	logger *zap.Logger
}

// NewInterpreter crea un intérprete. Acepta logger nil.
func NewInterpreter(logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{logger: logger}
}

type framePayload struct {
	Type          string   `json:"type"`
	UserMessageID string   `json:"user_message_id"`
	Content       string   `json:"content"`
	MessageID     string   `json:"message_id"`
	ToolCalls     []string `json:"tool_calls"`
	Error         string   `json:"error"`
}

// ErrorFallbackMessage se usa cuando un evento error llega sin texto.
const ErrorFallbackMessage = "error desconocido del servidor"

// Interpret devuelve el evento del frame y true, o false cuando el frame
// debe ignorarse.
func (i *Interpreter) Interpret(payload string) (Event, bool) {
	var raw framePayload
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Event{}, false
	}

	switch strings.TrimSpace(raw.Type) {
	case "start":
		return Event{Type: EventStart, UserMessageID: raw.UserMessageID}, true
	case "content":
		return Event{Type: EventContent, Delta: raw.Content}, true
	case "tool_check":
		return Event{Type: EventToolNotice}, true
	case "powerpoint_generation":
		return Event{Type: EventPresentation}, true
	case "done":
		return Event{Type: EventDone, MessageID: raw.MessageID, ToolCalls: raw.ToolCalls}, true
	case "error":
		msg := strings.TrimSpace(raw.Error)
		if msg == "" {
			msg = ErrorFallbackMessage
		}
		return Event{Type: EventError, Message: msg}, true
	case "":
		return Event{}, false
	default:
		i.logger.Debug("evento de stream desconocido", zap.String("type", raw.Type))
		return Event{}, false
	}
}
