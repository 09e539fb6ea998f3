package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatflow/internal/domain"
)

// Client habla con los endpoints compañeros del backend: alta de chat,
// edición de mensajes, feedback, snapshot y apertura del stream. El
// cliente HTTP no lleva timeout global porque el cuerpo del stream vive
// más que cualquier timeout razonable; los endpoints puntuales acotan
// con contexto propio.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

var ErrNotFound = errors.New("api: resource not found")

// NewClient construye un cliente apuntando al backend. Acepta logger nil.
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{},
		logger:  logger,
	}
}

// SetToken fija el bearer token usado en todas las llamadas.
func (c *Client) SetToken(token string) {
	c.token = token
}

// StreamRequest inicia la generación de una respuesta del asistente.
type StreamRequest struct {
	ChatID         string `json:"chat_id"`
	Content        string `json:"content"`
	IsRegeneration bool   `json:"is_regeneration"`
}

// OpenStream emite la petición de stream y devuelve el cuerpo sin leer.
// El llamador es dueño del ReadCloser. Un status no exitoso se trata
// como falla de transporte, con mensaje genérico que no filtra detalles.
func (c *Client) OpenStream(ctx context.Context, req StreamRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		c.logger.Warn("stream rejected", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("open stream: status=%d", resp.StatusCode)
	}
	if resp.Body == nil {
		return nil, errors.New("open stream: empty body")
	}
	return resp.Body, nil
}

// ChatInfo es la respuesta del alta de chat.
type ChatInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CreateChat da de alta un chat vacío y devuelve su identidad.
func (c *Client) CreateChat(ctx context.Context, title, agentID string) (ChatInfo, error) {
	var out struct {
		Chat ChatInfo `json:"chat"`
	}
	payload := map[string]string{"title": title, "agent_id": agentID}
	if err := c.doJSON(ctx, http.MethodPost, "/chats", payload, &out); err != nil {
		return ChatInfo{}, err
	}
	return out.Chat, nil
}

// EditResult es la respuesta del endpoint de edición.
type EditResult struct {
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	IsEdited  bool   `json:"is_edited"`
}

// EditMessage corrige el contenido de un mensaje de usuario ya
// persistido y devuelve el contenido actualizado junto con el id
// resuelto del mensaje.
func (c *Client) EditMessage(ctx context.Context, chatID, messageID, content string) (EditResult, error) {
	var out struct {
		Message EditResult `json:"message"`
	}
	path := fmt.Sprintf("/chats/%s/messages/%s", chatID, messageID)
	payload := map[string]string{"content": content}
	if err := c.doJSON(ctx, http.MethodPatch, path, payload, &out); err != nil {
		return EditResult{}, err
	}
	return out.Message, nil
}

// SetFeedback registra la valoración de un mensaje y devuelve el valor
// almacenado por el backend.
func (c *Client) SetFeedback(ctx context.Context, chatID, messageID string, value domain.Feedback) (domain.Feedback, error) {
	var out struct {
		Feedback domain.Feedback `json:"feedback"`
	}
	path := fmt.Sprintf("/chats/%s/messages/%s/feedback", chatID, messageID)
	payload := map[string]string{"feedback": string(value)}
	if err := c.doJSON(ctx, http.MethodPost, path, payload, &out); err != nil {
		return domain.FeedbackNone, err
	}
	return out.Feedback, nil
}

// SnapshotMessage es un mensaje tal como lo conoce el backend.
type SnapshotMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSnapshot es el estado autoritativo de un chat.
type ChatSnapshot struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Messages []SnapshotMessage `json:"messages"`
}

// FetchChat recupera el snapshot autoritativo de un chat. Se usa para
// recuperar ids de servidor cuya confirmación nunca se observó.
func (c *Client) FetchChat(ctx context.Context, chatID string) (ChatSnapshot, error) {
	var out struct {
		Chat ChatSnapshot `json:"chat"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chats/"+chatID, nil, &out); err != nil {
		return ChatSnapshot{}, err
	}
	return out.Chat, nil
}

// Login obtiene un access token del backend de referencia.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	payload := map[string]string{"email": email, "password": password}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", payload, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		c.logger.Warn("api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%s %s: status=%d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
