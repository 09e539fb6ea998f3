package tokens

import (
	"strings"
	"testing"

	"chatflow/internal/domain"
)

func TestEstimateCountsTokens(t *testing.T) {
	count, err := Estimate("hola mundo")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if count < 1 {
		t.Fatalf("expected positive count, got %d", count)
	}
}

func TestEstimateEmptyText(t *testing.T) {
	count, err := Estimate("")
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 tokens for empty text, got %d", count)
	}
}

func TestEstimateGrowsWithLength(t *testing.T) {
	short := EstimateSimple("hola")
	long := EstimateSimple(strings.Repeat("hola mundo cruel ", 50))
	if long <= short {
		t.Fatalf("expected longer text to cost more: %d vs %d", short, long)
	}
}

func TestEstimateConversationSumsMessagesAndInput(t *testing.T) {
	messages := []domain.Message{
		{Role: domain.RoleUser, Content: "hola"},
		{Role: domain.RoleAssistant, Content: "hola, ¿cómo estás?"},
	}

	base := EstimateConversation(messages, "")
	withInput := EstimateConversation(messages, "otra pregunta más")
	if base < 1 {
		t.Fatalf("expected positive base estimate, got %d", base)
	}
	if withInput <= base {
		t.Fatalf("expected input to add tokens: %d vs %d", base, withInput)
	}
}

func TestEstimateConversationEmpty(t *testing.T) {
	if got := EstimateConversation(nil, ""); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
