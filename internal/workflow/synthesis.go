package workflow

import (
	"context"
	"fmt"
	"strings"

	"docpilot/internal/llm"
	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// apologyMessage is returned when the completion service fails. The turn
// still produces a well-formed answer.
const apologyMessage = "Sorry, I ran into a problem generating the answer. Could you try rephrasing your question?"

// defaultClarificationQuestion is used when retrieval confidence is too
// low, or when generating a tailored clarification fails.
const defaultClarificationQuestion = "Could you be more specific about what you need to know?"

const synthesisSystemPrompt = `You are an expert assistant for technical documentation. Answer the user's question based only on the information provided.

Instructions:
1. Answer clearly and concisely
2. If the information is not available in the context, say so explicitly
3. Provide code examples when relevant
4. Keep a professional but approachable tone
5. If the question needs more context, suggest what additional information would help`

// Synthesizer builds grounded prompts and invokes the completion service.
type Synthesizer struct {
	completer    llm.Completer
	clarifyBelow float64
}

// NewSynthesizer creates a Synthesizer. clarifyBelow is the retrieval
// confidence under which a clarification is requested.
func NewSynthesizer(completer llm.Completer, clarifyBelow float64) *Synthesizer {
	if clarifyBelow <= 0 || clarifyBelow > 1 {
		clarifyBelow = 0.3
	}
	return &Synthesizer{completer: completer, clarifyBelow: clarifyBelow}
}

// Synthesize generates the answer for the current state and applies the
// low-confidence clarification gate. The gate runs on retrieval
// confidence regardless of whether synthesis itself succeeded.
func (s *Synthesizer) Synthesize(ctx context.Context, state *types.ConversationState) {
	timer := logging.StartTimer(logging.CategorySynthesis, "Synthesize")
	defer timer.Stop()

	prompt := s.buildPrompt(state)

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		logging.Get(logging.CategorySynthesis).Warn("Completion failed, using apology: %v", err)
		answer = apologyMessage
	}
	state.Answer = strings.TrimSpace(answer)

	if state.Confidence < s.clarifyBelow {
		state.NeedsClarification = true
		state.ClarificationQuestion = defaultClarificationQuestion
	}

	logging.Get(logging.CategorySynthesis).Info("Synthesized %d chars (confidence=%.2f clarify=%t)",
		len(state.Answer), state.Confidence, state.NeedsClarification)
}

// buildPrompt joins the retrieved fragments into a grounded context block.
// Code fragments carry their language, section fragments their section
// name.
func (s *Synthesizer) buildPrompt(state *types.ConversationState) string {
	var contextParts []string
	for _, f := range state.Fragments {
		switch {
		case f.Metadata.Type == types.FragmentCodeBlock:
			lang := f.Metadata.Language
			if lang == "" {
				lang = "text"
			}
			contextParts = append(contextParts, fmt.Sprintf("Code block (%s):\n%s", lang, f.Content))
		case f.Metadata.Section != "":
			contextParts = append(contextParts, fmt.Sprintf("Section %q:\n%s", f.Metadata.Section, f.Content))
		default:
			contextParts = append(contextParts, f.Content)
		}
	}

	return fmt.Sprintf(`%s

Documentation context:
%s

User question: %s

Answer:`, synthesisSystemPrompt, strings.Join(contextParts, "\n\n"), state.CurrentUtterance)
}

// GenerateClarification asks the completion service for a short tailored
// clarification question, falling back to the fixed default on failure.
func (s *Synthesizer) GenerateClarification(ctx context.Context, utterance string) string {
	prompt := fmt.Sprintf(`The user asked the following question: %q

Generate one clarification question that helps the user be more specific about what they need to know.
The question must be short, clear, and useful.

Clarification question:`, utterance)

	clarification, err := s.completer.Complete(ctx, prompt)
	if err != nil || strings.TrimSpace(clarification) == "" {
		logging.Get(logging.CategorySynthesis).Warn("Clarification generation failed, using default: %v", err)
		return defaultClarificationQuestion
	}
	return strings.TrimSpace(clarification)
}
