// ABOUTME: AnswerGenerator renders the Cenly prompt and asks the chat model for an answer
// ABOUTME: Message order is system prompt, prior turns, then the context-bearing question
package core

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/harper/cenly/internal/models"
)

// DefaultSystemPrompt is the assistant identity and answering guidelines
const DefaultSystemPrompt = `<core_identity> You are an business assistant/advisor called Cenly,
whose sole purpose is to analyze and solve problems asked by the user using their data, including but not limited to: sales revenue,
inventory, income,....
Your responses must be specific, accurate, and actionable. </core_identity>

<general_guidelines>

NEVER use meta-phrases (e.g., "let me help you", "I can see that").
NEVER summarize unless explicitly requested.
ALWAYS be specific, detailed, and accurate.
ALWAYS acknowledge uncertainty when present.
ALWAYS use markdown formatting.
If you don't know something, just say I don't know.
</general_guidelines>`

var questionTemplate = template.Must(template.New("question").Parse(
	"Be concise!\nContext: {{.Context}}\nQuestion: {{.Question}}"))

// ChatModel submits a rendered conversation and returns the reply text
type ChatModel interface {
	Chat(ctx context.Context, messages []models.Message) (string, error)
}

// AnswerGenerator produces a grounded answer from context, question and history
type AnswerGenerator struct {
	model        ChatModel
	systemPrompt string
}

// NewAnswerGenerator creates a generator with the default system prompt
func NewAnswerGenerator(model ChatModel) *AnswerGenerator {
	return &AnswerGenerator{model: model, systemPrompt: DefaultSystemPrompt}
}

// WithSystemPrompt replaces the system prompt; blank keeps the current one
func (g *AnswerGenerator) WithSystemPrompt(prompt string) *AnswerGenerator {
	if strings.TrimSpace(prompt) != "" {
		g.systemPrompt = prompt
	}
	return g
}

// LoadSystemPrompt reads a system prompt override from path
func LoadSystemPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("%w: system prompt file %s is empty", models.ErrInvalidInput, path)
	}
	return prompt, nil
}

// SystemPrompt returns the prompt in use
func (g *AnswerGenerator) SystemPrompt() string {
	return g.systemPrompt
}

// BuildMessages renders the full conversation sent to the model.
// System messages in history are dropped so the identity prompt stays first and unique.
func (g *AnswerGenerator) BuildMessages(contextText, question string, history []models.Message) ([]models.Message, error) {
	var buf bytes.Buffer
	err := questionTemplate.Execute(&buf, struct {
		Context  string
		Question string
	}{contextText, question})
	if err != nil {
		return nil, fmt.Errorf("failed to render question: %w", err)
	}

	msgs := make([]models.Message, 0, len(history)+2)
	msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: g.systemPrompt})
	for _, m := range history {
		if m.Role == models.RoleSystem {
			continue
		}
		msgs = append(msgs, models.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, models.Message{Role: models.RoleHuman, Content: buf.String()})
	return msgs, nil
}

// Generate returns the model's answer. A blank reply surfaces as models.ErrEmptyResponse.
func (g *AnswerGenerator) Generate(ctx context.Context, contextText, question string, history []models.Message) (string, error) {
	msgs, err := g.BuildMessages(contextText, question, history)
	if err != nil {
		return "", err
	}
	answer, err := g.model.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return "", models.ErrEmptyResponse
	}
	return answer, nil
}
