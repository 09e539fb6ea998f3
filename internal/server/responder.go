package server

import (
	"context"
	"fmt"

	"chatflow/internal/llm"
	"chatflow/internal/repository"
)

// Responder produce la respuesta del asistente para un turno. history
// es la conversación persistida hasta el mensaje recién recibido,
// inclusive. Devuelve el texto completo y las herramientas utilizadas.
type Responder interface {
	Respond(ctx context.Context, history []repository.MessageRecord) (string, []string, error)
}

// EchoResponder responde con un eco determinista del último mensaje de
// usuario. Es el generador por defecto para desarrollo local y tests.
type EchoResponder struct{}

func (EchoResponder) Respond(_ context.Context, history []repository.MessageRecord) (string, []string, error) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "user" {
			return fmt.Sprintf("Recibido: %s", history[i].Content), nil, nil
		}
	}
	return "No hay nada que responder.", nil, nil
}

// LLMResponder genera la respuesta con un modelo de lenguaje.
type LLMResponder struct {
	generator llm.Generator
}

func NewLLMResponder(generator llm.Generator) *LLMResponder {
	return &LLMResponder{generator: generator}
}

func (r *LLMResponder) Respond(ctx context.Context, history []repository.MessageRecord) (string, []string, error) {
	msgs := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, llm.ChatMessage{Role: m.Role, Content: m.Content})
	}
	text, err := r.generator.Generate(ctx, msgs)
	if err != nil {
		return "", nil, err
	}
	return text, nil, nil
}
