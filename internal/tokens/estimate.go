package tokens

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"chatflow/internal/domain"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// getCodec devuelve el tokenizador cl100k_base, aproximación razonable
// para la mayoría de los modelos.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// Estimate cuenta tokens aproximados del texto dado.
func Estimate(text string) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// EstimateSimple devuelve el conteo, o 0 ante error.
func EstimateSimple(text string) int {
	count, err := Estimate(text)
	if err != nil {
		return 0
	}
	return count
}

// EstimateConversation proyecta el tamaño de una conversación completa
// más el texto de entrada pendiente.
func EstimateConversation(messages []domain.Message, inputText string) int {
	total := 0
	for _, m := range messages {
		total += EstimateSimple(m.Content)
	}
	if inputText != "" {
		total += EstimateSimple(inputText)
	}
	return total
}
