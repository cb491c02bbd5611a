package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"docpilot/internal/types"
)

// maxKeyLineLength bounds how long an answer line may be to count as a
// key line.
const maxKeyLineLength = 200

// maxKeyLinesPerAnswer caps how many key lines one answer contributes.
const maxKeyLinesPerAnswer = 2

// DefaultCueWords returns the definitional cue words used to pick key
// lines out of prior answers. The table is swappable per deployment.
func DefaultCueWords() []string {
	return []string{"is", "are", "means", "defines", "allows", "uses"}
}

// ContextBuilder folds prior answers into the current utterance for
// follow-up questions.
type ContextBuilder struct {
	cueWords     *regexp.Regexp
	contextTurns int
}

// NewContextBuilder compiles the cue word table. contextTurns bounds how
// many trailing turns are scanned.
func NewContextBuilder(cueWords []string, contextTurns int) (*ContextBuilder, error) {
	if len(cueWords) == 0 {
		cueWords = DefaultCueWords()
	}
	if contextTurns <= 0 {
		contextTurns = 4
	}

	for _, w := range cueWords {
		if strings.TrimSpace(w) == "" {
			return nil, fmt.Errorf("empty cue word in table")
		}
	}
	re, err := regexp.Compile(`(?i)\b(` + strings.Join(cueWords, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("invalid cue word table: %w", err)
	}

	return &ContextBuilder{cueWords: re, contextTurns: contextTurns}, nil
}

// BuildContext extracts a short summary from the trailing turns' answers:
// lines under 200 characters containing a cue word, at most 2 per answer,
// joined by single spaces. Empty output means no key line was found and
// the caller must skip rewriting.
func (b *ContextBuilder) BuildContext(history []types.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}

	recent := history
	if len(recent) > b.contextTurns {
		recent = recent[len(recent)-b.contextTurns:]
	}

	var parts []string
	for _, turn := range recent {
		if turn.Answer == "" {
			continue
		}
		if key := b.extractKeyLines(turn.Answer); key != "" {
			parts = append(parts, key)
		}
	}
	return strings.Join(parts, " ")
}

func (b *ContextBuilder) extractKeyLines(answer string) string {
	var keyLines []string
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) >= maxKeyLineLength {
			continue
		}
		if b.cueWords.MatchString(line) {
			keyLines = append(keyLines, line)
			if len(keyLines) == maxKeyLinesPerAnswer {
				break
			}
		}
	}
	return strings.Join(keyLines, " ")
}

// RewriteUtterance prefixes the utterance with the built context. Callers
// must only invoke this with a non-empty context.
func RewriteUtterance(context, utterance string) string {
	return fmt.Sprintf("Previous context: %s\n\nCurrent question: %s", context, utterance)
}
