// Package workflow implements the conversational retrieval engine: intent
// classification, cross-turn context building, retrieval aggregation,
// answer synthesis, response formatting, and the state machine that
// sequences them for each turn.
package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"docpilot/internal/llm"
	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// intentPriority is the fixed tie-break order when pattern scores are equal.
var intentPriority = []types.Intent{
	types.IntentCodeQuestion,
	types.IntentFollowUp,
	types.IntentGeneralQuestion,
	types.IntentClarification,
}

// IntentPatterns maps each intent to its keyword patterns. The table is
// swappable; the scoring and tie-break rules are not.
type IntentPatterns map[types.Intent][]string

// DefaultIntentPatterns returns the built-in English keyword table.
func DefaultIntentPatterns() IntentPatterns {
	return IntentPatterns{
		types.IntentCodeQuestion: {
			`\b(code|function|class|method)\b`,
			`\b(implement|example)\b`,
			`\b(syntax|error|bug)\b`,
		},
		types.IntentFollowUp: {
			`\b(before|previous|you mentioned)\b`,
			`\b(that|this)\b`,
			`\b(more|details)\b`,
		},
		types.IntentGeneralQuestion: {
			`\b(what|how|when|where)\b`,
			`\b(explain|define)\b`,
			`\b(concept|idea|notion)\b`,
		},
		types.IntentClarification: {
			`\b(don't understand|do not understand|confused)\b`,
			`\b(can you explain|simpler|more simply)\b`,
		},
	}
}

// Classifier resolves utterance intent by pattern scoring, optionally
// refined by a completion call.
type Classifier struct {
	patterns     map[types.Intent][]*regexp.Regexp
	completer    llm.Completer // nil disables refinement
	historyTurns int
}

// NewClassifier compiles the pattern table. A nil completer disables the
// refinement step. historyTurns bounds how much history the refinement
// prompt carries.
func NewClassifier(patterns IntentPatterns, completer llm.Completer, historyTurns int) (*Classifier, error) {
	if patterns == nil {
		patterns = DefaultIntentPatterns()
	}
	if historyTurns <= 0 {
		historyTurns = 3
	}

	compiled := make(map[types.Intent][]*regexp.Regexp, len(patterns))
	for intent, exprs := range patterns {
		for _, expr := range exprs {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, fmt.Errorf("invalid intent pattern %q for %s: %w", expr, intent, err)
			}
			compiled[intent] = append(compiled[intent], re)
		}
	}

	return &Classifier{
		patterns:     compiled,
		completer:    completer,
		historyTurns: historyTurns,
	}, nil
}

// Classify returns one of the four intents for the utterance. The result is
// always in-set: pattern scoring has a default, and refinement failures
// fall back to the pattern result.
func (c *Classifier) Classify(ctx context.Context, utterance string, history []types.ConversationTurn) types.Intent {
	detected := c.detectByPatterns(utterance)
	refined := c.refineWithLLM(ctx, utterance, detected, history)
	logging.Get(logging.CategoryIntent).Info("Intent: pattern=%s refined=%s", detected, refined)
	return refined
}

// detectByPatterns scores the utterance against each intent's patterns and
// returns the argmax, with ties broken by the fixed priority order. All
// scores zero defaults to general_question.
func (c *Classifier) detectByPatterns(utterance string) types.Intent {
	lower := strings.ToLower(utterance)

	scores := make(map[types.Intent]int, len(c.patterns))
	for intent, regexps := range c.patterns {
		for _, re := range regexps {
			if re.MatchString(lower) {
				scores[intent]++
			}
		}
	}

	best := types.IntentGeneralQuestion
	bestScore := 0
	for _, intent := range intentPriority {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}
	return best
}

// refineWithLLM asks the completion service to confirm or correct the
// pattern-detected intent. Anything but an exact enumeration label keeps
// the pattern result; refinement never fails classification.
func (c *Classifier) refineWithLLM(ctx context.Context, utterance string, detected types.Intent, history []types.ConversationTurn) types.Intent {
	if c.completer == nil {
		return detected
	}

	var recap strings.Builder
	if len(history) > 0 {
		recent := history
		if len(recent) > c.historyTurns {
			recent = recent[len(recent)-c.historyTurns:]
		}
		recap.WriteString("Context from the previous conversation:\n")
		for _, turn := range recent {
			fmt.Fprintf(&recap, "User: %s\nAssistant: %s\n", turn.Utterance, turn.Answer)
		}
	}

	prompt := fmt.Sprintf(`Analyze the following user question and determine its primary intent.

%s
User question: %q
Intent detected by patterns: %s

Intent options:
- code_question: question about code, syntax, or implementation
- follow_up: follow-up question that requires earlier context
- general_question: general question about concepts or documentation
- clarification: asks for clarification or a simpler explanation

Answer with exactly one of the options above.`, recap.String(), utterance, detected)

	response, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		logging.Get(logging.CategoryIntent).Warn("Intent refinement failed, keeping pattern result: %v", err)
		return detected
	}

	if refined, ok := types.ParseIntent(strings.ToLower(strings.TrimSpace(response))); ok {
		return refined
	}
	logging.Get(logging.CategoryIntent).Debug("Refinement returned out-of-set label %q, keeping %s", response, detected)
	return detected
}
