package protocol

// EventType enumera los eventos tipados del protocolo de streaming.
type EventType string

const (
	EventStart        EventType = "start"
	EventContent      EventType = "content"
	EventToolNotice   EventType = "tool_check"
	EventPresentation EventType = "powerpoint_generation"
	EventDone         EventType = "done"
	EventError        EventType = "error"
)

// Event es la unión cerrada de variantes del protocolo. Solo los campos
// de la variante indicada por Type tienen significado.
type Event struct {
	Type EventType

	// start: id asignado por el servidor al mensaje de usuario que
	// disparó este stream.
	UserMessageID string

	// content: fragmento incremental a anexar al mensaje en curso.
	Delta string

	// done: id del mensaje del asistente y herramientas utilizadas.
	MessageID string
	ToolCalls []string

	// error: explicación legible de la falla.
	Message string
}

// Terminal indica si el evento cierra el stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
