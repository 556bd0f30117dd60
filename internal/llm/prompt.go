package llm

import (
	"context"
	"fmt"
	"strings"

	"pdf-chat-rag/internal/models"

	"github.com/tmc/langchaingo/prompts"
)

// AnswerTemplate is the fixed question-answering prompt
const AnswerTemplate = "\nYou are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer the question. " +
	"If you don't know the answer, just say that you don't know. " +
	"Use three sentences maximum and keep the answer concise.\n" +
	"Question: {{.question}} \n" +
	"Context: {{.context}} \n" +
	"Answer:\n"

// ContextSeparator joins retrieved chunks into the context string
const ContextSeparator = "\n\n"

// Generator produces a completion for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answerer renders the answer prompt and forwards it to a Generator
type Answerer struct {
	generator Generator
	template  prompts.PromptTemplate
}

// NewAnswerer creates an Answerer around generator
func NewAnswerer(generator Generator) *Answerer {
	return &Answerer{
		generator: generator,
		template:  prompts.NewPromptTemplate(AnswerTemplate, []string{"question", "context"}),
	}
}

// JoinContext concatenates chunk contents with a blank line between them
func JoinContext(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, ContextSeparator)
}

// RenderPrompt substitutes question and context into the template
func (a *Answerer) RenderPrompt(question, context string) (string, error) {
	prompt, err := a.template.Format(map[string]any{
		"question": question,
		"context":  context,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return prompt, nil
}

// Answer answers question from the given chunks. The model output is
// returned verbatim.
func (a *Answerer) Answer(ctx context.Context, question string, chunks []models.Chunk) (string, error) {
	prompt, err := a.RenderPrompt(question, JoinContext(chunks))
	if err != nil {
		return "", err
	}

	answer, err := a.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to answer question: %w", err)
	}

	return answer, nil
}
