package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"chatflow/internal/api"
	"chatflow/internal/protocol"
	"chatflow/internal/sse"
)

// DefaultIdleTimeout acota el silencio entre frames. El transporte no
// garantiza ningún cierre más allá de la conexión misma, así que el
// controlador corta por su cuenta y lo reporta por el camino de error.
const DefaultIdleTimeout = 45 * time.Second

// Mensajes genéricos hacia el usuario; los detalles quedan en los logs.
const (
	transportFailureMessage = "no se pudo contactar al servicio de chat"
	streamClosedMessage     = "la conexión se cerró antes de terminar la respuesta"
	idleTimeoutMessage      = "el servicio dejó de responder"
)

// Callbacks recibe los eventos interpretados de una sesión, siempre en
// orden estricto de llegada y desde una sola goroutine. Cualquier campo
// puede ser nil.
type Callbacks struct {
	OnStart   func(userMessageID string)
	OnContent func(delta string)
	OnNotice  func(kind protocol.EventType)
	OnDone    func(messageID string, toolCalls []string)
	OnError   func(message string)
}

// Controller abre sesiones de streaming contra el backend: emite la
// petición, alimenta el decodificador, interpreta frames y despacha los
// callbacks del llamador.
type Controller struct {
	api         *api.Client
	logger      *zap.Logger
	idleTimeout time.Duration
}

// NewController crea un controlador. idleTimeout <= 0 usa el default.
func NewController(client *api.Client, logger *zap.Logger, idleTimeout time.Duration) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Controller{api: client, logger: logger, idleTimeout: idleTimeout}
}

// Start emite exactamente una petición de stream y devuelve el
// manejador de la sesión. Las fallas de transporte no se reintentan
// aquí: llegan una sola vez por OnError y la sesión resuelve Done.
func (c *Controller) Start(ctx context.Context, req api.StreamRequest, cb Callbacks) *Session {
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{cancel: cancel, done: make(chan struct{})}
	go c.run(sctx, s, req, cb)
	return s
}

func (c *Controller) run(ctx context.Context, s *Session, req api.StreamRequest, cb Callbacks) {
	defer s.finish()
	// Abortar el transporte apenas la sesión termina, incluso tras un
	// frame terminal, para no dejar la conexión abierta de más.
	defer s.cancel()

	body, err := c.api.OpenStream(ctx, req)
	if err != nil {
		c.logger.Warn("stream open failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		c.dispatchError(s, cb, transportFailureMessage)
		return
	}
	defer body.Close()

	decoder := sse.NewDecoder()
	interpreter := protocol.NewInterpreter(c.logger)

	idle := time.AfterFunc(c.idleTimeout, func() {
		s.timedOut.Store(true)
		s.cancel()
	})
	defer idle.Stop()

	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		idle.Reset(c.idleTimeout)
		if n > 0 {
			for _, frame := range decoder.Feed(string(buf[:n])) {
				if done := c.handleFrame(s, interpreter, cb, frame); done {
					return
				}
			}
		}
		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			// El resto sin delimitar se entrega como último frame de
			// mejor esfuerzo antes de decidir cómo terminó el stream.
			if leftover, ok := decoder.Flush(); ok {
				if done := c.handleFrame(s, interpreter, cb, leftover); done {
					return
				}
			}
			c.dispatchError(s, cb, streamClosedMessage)
			return
		}
		if s.timedOut.Load() {
			c.logger.Warn("stream idle timeout", zap.String("chat_id", req.ChatID))
			c.dispatchError(s, cb, idleTimeoutMessage)
			return
		}
		if s.cancelled.Load() {
			return
		}
		c.logger.Warn("stream read failed", zap.String("chat_id", req.ChatID), zap.Error(readErr))
		c.dispatchError(s, cb, transportFailureMessage)
		return
	}
}

// handleFrame interpreta y despacha un frame. Devuelve true cuando la
// sesión debe terminar (evento terminal o cancelación observada).
func (c *Controller) handleFrame(s *Session, interpreter *protocol.Interpreter, cb Callbacks, frame string) bool {
	ev, ok := interpreter.Interpret(frame)
	if !ok {
		return false
	}
	if s.cancelled.Load() {
		return true
	}
	switch ev.Type {
	case protocol.EventStart:
		if cb.OnStart != nil {
			cb.OnStart(ev.UserMessageID)
		}
	case protocol.EventContent:
		if cb.OnContent != nil {
			cb.OnContent(ev.Delta)
		}
	case protocol.EventToolNotice, protocol.EventPresentation:
		if cb.OnNotice != nil {
			cb.OnNotice(ev.Type)
		}
	case protocol.EventDone:
		if cb.OnDone != nil {
			cb.OnDone(ev.MessageID, ev.ToolCalls)
		}
	case protocol.EventError:
		if cb.OnError != nil {
			cb.OnError(ev.Message)
		}
	}
	return ev.Terminal()
}

func (c *Controller) dispatchError(s *Session, cb Callbacks, message string) {
	if s.cancelled.Load() {
		return
	}
	if s.timedOut.Load() && message != idleTimeoutMessage {
		return
	}
	if cb.OnError != nil {
		cb.OnError(message)
	}
}
