package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatflow/internal/api"
	"chatflow/internal/domain"
	"chatflow/internal/protocol"
	"chatflow/internal/store"
	"chatflow/internal/stream"
	"chatflow/internal/tokens"
)

var (
	ErrControllerNotConfigured = errors.New("turn controller not configured")
	ErrEmptyContent            = errors.New("turn: empty content")
	ErrStreamActive            = errors.New("turn: a stream is already active for this chat")
	ErrNoUserMessage           = errors.New("turn: chat has no user message")
	ErrNotEditable             = errors.New("turn: only user messages can be edited")
	ErrServerIDUnknown         = errors.New("turn: server id could not be recovered")
)

// apologyPrefix antecede la explicación de una falla que pasa a formar
// parte del transcript.
const apologyPrefix = "Désolé, "

// tokenLimitMessage es la respuesta sintetizada cuando la conversación
// proyectada supera el límite seguro. No sale ninguna llamada de red.
const tokenLimitMessage = "Désolé, cette conversation est devenue trop longue pour continuer. " +
	"Veuillez démarrer une nouvelle discussion."

// Indicadores de actividad expuestos a la interfaz.
const (
	IndicatorNone         = ""
	IndicatorTool         = "tool"
	IndicatorPresentation = "presentation"
)

// Controller orquesta las acciones de alto nivel sobre un chat: enviar,
// editar y reenviar, regenerar, valorar y cancelar. Garantiza a lo sumo
// una sesión de stream activa por chat; un segundo envío concurrente se
// rechaza con ErrStreamActive en lugar de intercalarse.
type Controller struct {
	store      *store.Store
	api        *api.Client
	streams    *stream.Controller
	logger     *zap.Logger
	tokenLimit int
	events     Events

	mu         sync.Mutex
	active     map[string]*stream.Session
	indicators map[string]string
}

// NewController crea un controlador de turnos. tokenLimit <= 0 desactiva
// la validación de tamaño. Acepta logger nil.
func NewController(st *store.Store, client *api.Client, streams *stream.Controller, tokenLimit int, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:      st,
		api:        client,
		streams:    streams,
		logger:     logger,
		tokenLimit: tokenLimit,
		active:     make(map[string]*stream.Session),
		indicators: make(map[string]string),
	}
}

// SetEvents registra los avisos hacia la capa de presentación.
func (c *Controller) SetEvents(ev Events) {
	c.events = ev
}

// IsTyping indica si hay una sesión activa en el chat. La interfaz lo
// usa para deshabilitar el envío mientras se genera una respuesta.
func (c *Controller) IsTyping(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[chatID] != nil
}

// Indicator devuelve la pista de actividad vigente del chat.
func (c *Controller) Indicator(chatID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indicators[chatID]
}

// CancelStream cancela la sesión activa del chat, si la hay.
func (c *Controller) CancelStream(chatID string) {
	c.mu.Lock()
	s := c.active[chatID]
	c.mu.Unlock()
	if s != nil {
		s.Cancel()
	}
}

// SendTurn envía un mensaje nuevo. Con chatID vacío crea primero el
// chat y lo devuelve ligado. La sesión devuelta es nil cuando el turno
// se resolvió localmente (validación de tamaño).
func (c *Controller) SendTurn(ctx context.Context, chatID, content string) (string, *stream.Session, error) {
	if c == nil || c.store == nil || c.api == nil || c.streams == nil {
		return "", nil, ErrControllerNotConfigured
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil, ErrEmptyContent
	}

	if chatID == "" {
		info, err := c.api.CreateChat(ctx, "", "")
		if err != nil {
			return "", nil, err
		}
		c.store.CreateChat(domain.Chat{ID: info.ID, Title: info.Title})
		chatID = info.ID
	}

	if c.IsTyping(chatID) {
		return chatID, nil, ErrStreamActive
	}

	chat, ok := c.store.Chat(chatID)
	if !ok {
		return chatID, nil, store.ErrChatNotFound
	}

	userMsg := domain.Message{
		LocalID:   uuid.NewString(),
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	// Validación previa de tamaño: si la conversación proyectada supera
	// el límite, el turno se resuelve sin red con una respuesta
	// sintetizada y el chat nunca entra en modo "escribiendo".
	if c.tokenLimit > 0 && tokens.EstimateConversation(chat.Messages, content) > c.tokenLimit {
		c.logger.Warn("conversation over token limit", zap.String("chat_id", chatID))
		if err := c.store.AppendMessage(chatID, userMsg); err != nil {
			return chatID, nil, err
		}
		limitMsg := domain.Message{
			LocalID:   uuid.NewString(),
			Role:      domain.RoleAssistant,
			Content:   tokenLimitMessage,
			CreatedAt: time.Now().UTC(),
		}
		if err := c.store.AppendMessage(chatID, limitMsg); err != nil {
			return chatID, nil, err
		}
		return chatID, nil, nil
	}

	if err := c.store.AppendMessage(chatID, userMsg); err != nil {
		return chatID, nil, err
	}

	session, err := c.startStream(ctx, chatID, userMsg.LocalID, content, false)
	return chatID, session, err
}

// EditTurn corrige un mensaje de usuario ya enviado y reenvía el turno:
// la respuesta desactualizada del asistente se retira antes de volver a
// generar, así la interfaz nunca muestra dos respuestas en competencia.
func (c *Controller) EditTurn(ctx context.Context, chatID, localID, newContent string) (*stream.Session, error) {
	if c == nil || c.store == nil || c.api == nil || c.streams == nil {
		return nil, ErrControllerNotConfigured
	}
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, ErrEmptyContent
	}
	if c.IsTyping(chatID) {
		return nil, ErrStreamActive
	}

	msg, err := c.findMessage(chatID, localID)
	if err != nil {
		return nil, err
	}
	if msg.Role != domain.RoleUser {
		return nil, ErrNotEditable
	}

	serverID, err := c.ensureServerID(ctx, chatID, localID)
	if err != nil {
		return nil, err
	}

	res, err := c.api.EditMessage(ctx, chatID, serverID, newContent)
	if err != nil {
		return nil, err
	}

	patch := store.Patch{IsEdited: res.IsEdited, ServerID: res.MessageID}
	if err := c.store.UpdateMessageContent(chatID, localID, res.Content, patch); err != nil {
		return nil, err
	}

	if c.isFirstUserMessage(chatID, localID) {
		if err := c.store.RetitleFromFirstMessage(chatID); err != nil {
			c.logger.Warn("retitle failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}

	if _, err := c.store.RemoveLatestAssistantReplyTo(chatID, localID); err != nil {
		return nil, err
	}
	return c.startStream(ctx, chatID, localID, res.Content, true)
}

// RegenerateTurn descarta la última respuesta del asistente y vuelve a
// someter el mismo contenido de usuario como regeneración. No agrega un
// eco de usuario nuevo.
func (c *Controller) RegenerateTurn(ctx context.Context, chatID string) (*stream.Session, error) {
	if c == nil || c.store == nil || c.api == nil || c.streams == nil {
		return nil, ErrControllerNotConfigured
	}
	if c.IsTyping(chatID) {
		return nil, ErrStreamActive
	}

	chat, ok := c.store.Chat(chatID)
	if !ok {
		return nil, store.ErrChatNotFound
	}
	userMsg, ok := chat.LastUserMessage()
	if !ok {
		return nil, ErrNoUserMessage
	}

	if _, err := c.store.RemoveLatestAssistantReplyTo(chatID, userMsg.LocalID); err != nil {
		return nil, err
	}
	return c.startStream(ctx, chatID, userMsg.LocalID, userMsg.Content, true)
}

// SetFeedback registra la valoración de un mensaje en el backend y
// refleja el valor almacenado en el store.
func (c *Controller) SetFeedback(ctx context.Context, chatID, localID string, value domain.Feedback) error {
	if c == nil || c.store == nil || c.api == nil {
		return ErrControllerNotConfigured
	}
	serverID, err := c.ensureServerID(ctx, chatID, localID)
	if err != nil {
		return err
	}
	stored, err := c.api.SetFeedback(ctx, chatID, serverID, value)
	if err != nil {
		return err
	}
	return c.store.UpdateMessageFeedback(chatID, localID, stored)
}

// startStream agrega el placeholder del asistente y abre la sesión. El
// buffer de acumulación vive en los callbacks: el despachador de la
// sesión los invoca desde una sola goroutine, en orden de llegada.
func (c *Controller) startStream(ctx context.Context, chatID, userLocalID, content string, regen bool) (*stream.Session, error) {
	assistantID := uuid.NewString()
	placeholder := domain.Message{
		LocalID:   assistantID,
		Role:      domain.RoleAssistant,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.store.AppendMessage(chatID, placeholder); err != nil {
		return nil, err
	}

	var buf strings.Builder
	cb := stream.Callbacks{
		OnStart: func(userMessageID string) {
			err := c.store.UpdateMessageContent(chatID, userLocalID, content, store.Patch{ServerID: userMessageID})
			if err != nil {
				c.logger.Error("bind user message failed", zap.String("chat_id", chatID), zap.Error(err))
			}
		},
		OnContent: func(delta string) {
			buf.WriteString(delta)
			accumulated := buf.String()
			if err := c.store.UpdateMessageContent(chatID, assistantID, accumulated, store.Patch{}); err != nil {
				c.logger.Error("apply delta failed", zap.String("chat_id", chatID), zap.Error(err))
				return
			}
			c.events.delta(chatID, assistantID, accumulated)
		},
		OnNotice: func(kind protocol.EventType) {
			indicator := IndicatorTool
			if kind == protocol.EventPresentation {
				indicator = IndicatorPresentation
			}
			c.setIndicator(chatID, indicator)
		},
		OnDone: func(messageID string, toolCalls []string) {
			patch := store.Patch{ServerID: messageID, ToolCalls: toolCalls}
			if err := c.store.UpdateMessageContent(chatID, assistantID, buf.String(), patch); err != nil {
				c.logger.Error("finalize assistant message failed", zap.String("chat_id", chatID), zap.Error(err))
			}
		},
		OnError: func(message string) {
			// El contenido parcial ya transmitido se conserva; la
			// explicación de la falla se anexa al transcript.
			content := apology(buf.String(), message)
			if err := c.store.UpdateMessageContent(chatID, assistantID, content, store.Patch{}); err != nil {
				c.logger.Error("apply stream error failed", zap.String("chat_id", chatID), zap.Error(err))
			}
		},
	}

	req := api.StreamRequest{ChatID: chatID, Content: content, IsRegeneration: regen}

	c.mu.Lock()
	if c.active[chatID] != nil {
		c.mu.Unlock()
		return nil, ErrStreamActive
	}
	session := c.streams.Start(ctx, req, cb)
	c.active[chatID] = session
	c.indicators[chatID] = IndicatorNone
	c.mu.Unlock()

	c.events.streamStarted(chatID)

	// La limpieza corre tras Done para cubrir también la cancelación,
	// que por contrato no despacha ningún callback.
	go func() {
		session.Wait()
		c.mu.Lock()
		if c.active[chatID] == session {
			delete(c.active, chatID)
			delete(c.indicators, chatID)
		}
		c.mu.Unlock()
		c.events.streamEnded(chatID)
	}()

	return session, nil
}

func (c *Controller) setIndicator(chatID, indicator string) {
	c.mu.Lock()
	c.indicators[chatID] = indicator
	c.mu.Unlock()
	c.events.indicatorChanged(chatID, indicator)
}

// ensureServerID devuelve el id de servidor del mensaje, recuperándolo
// del snapshot autoritativo cuando la confirmación nunca se observó.
func (c *Controller) ensureServerID(ctx context.Context, chatID, localID string) (string, error) {
	msg, err := c.findMessage(chatID, localID)
	if err != nil {
		return "", err
	}
	if msg.HasServerID() {
		return msg.ServerID, nil
	}

	snapshot, err := c.api.FetchChat(ctx, chatID)
	if err != nil {
		return "", err
	}
	if err := c.store.BindFromSnapshot(chatID, snapshot); err != nil {
		return "", err
	}

	msg, err = c.findMessage(chatID, localID)
	if err != nil {
		return "", err
	}
	if !msg.HasServerID() {
		return "", ErrServerIDUnknown
	}
	return msg.ServerID, nil
}

func (c *Controller) findMessage(chatID, localID string) (domain.Message, error) {
	chat, ok := c.store.Chat(chatID)
	if !ok {
		return domain.Message{}, store.ErrChatNotFound
	}
	for _, m := range chat.Messages {
		if m.LocalID == localID {
			return m, nil
		}
	}
	return domain.Message{}, store.ErrMessageNotFound
}

func (c *Controller) isFirstUserMessage(chatID, localID string) bool {
	chat, ok := c.store.Chat(chatID)
	if !ok {
		return false
	}
	for _, m := range chat.Messages {
		if m.Role == domain.RoleUser {
			return m.LocalID == localID
		}
	}
	return false
}

func apology(partial, reason string) string {
	if partial == "" {
		return apologyPrefix + reason
	}
	return partial + "\n\n" + apologyPrefix + reason
}
