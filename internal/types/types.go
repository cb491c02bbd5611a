// Package types defines the shared domain types for docpilot: documents,
// fragments, intents, conversation turns, and the per-query state threaded
// through the workflow.
package types

import (
	"time"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// Document is a structured documentation page as produced by the fetcher.
// HTML/DOM parsing happens upstream; the segmenter only sees this shape.
type Document struct {
	Title    string    `json:"title"`
	URL      string    `json:"url"`
	Sections []Section `json:"sections"`
}

// Section is one heading-delimited region of a document.
type Section struct {
	Title      string      `json:"title"`
	Level      int         `json:"level"`
	Content    []string    `json:"content"`
	CodeBlocks []CodeBlock `json:"code_blocks"`
}

// CodeBlock is a verbatim code sample found inside a section.
type CodeBlock struct {
	Content  string `json:"content"`
	Language string `json:"language"`
}

// =============================================================================
// FRAGMENTS
// =============================================================================

// FragmentType classifies what part of a document a fragment came from.
type FragmentType string

const (
	FragmentTitle        FragmentType = "title"
	FragmentSectionTitle FragmentType = "section_title"
	FragmentTextContent  FragmentType = "text_content"
	FragmentCodeBlock    FragmentType = "code_block"
)

// FragmentMetadata describes the provenance of a fragment.
type FragmentMetadata struct {
	Type      FragmentType `json:"type"`
	Section   string       `json:"section,omitempty"`
	Language  string       `json:"language,omitempty"`
	Level     int          `json:"level,omitempty"`
	SourceURL string       `json:"source_url"`
}

// Fragment is the retrievable unit of indexed document content. Fragments
// are produced only by the segmenter and are immutable after creation;
// Relevance is filled in by the store at query time.
type Fragment struct {
	Content   string           `json:"content"`
	Metadata  FragmentMetadata `json:"metadata"`
	Relevance float64          `json:"relevance_score"`
}

// =============================================================================
// INTENT
// =============================================================================

// Intent is the closed set of utterance intents the classifier can produce.
type Intent string

const (
	IntentCodeQuestion    Intent = "code_question"
	IntentFollowUp        Intent = "follow_up"
	IntentGeneralQuestion Intent = "general_question"
	IntentClarification   Intent = "clarification"
)

// ParseIntent maps a label to an Intent, reporting whether it is valid.
func ParseIntent(s string) (Intent, bool) {
	switch Intent(s) {
	case IntentCodeQuestion, IntentFollowUp, IntentGeneralQuestion, IntentClarification:
		return Intent(s), true
	}
	return "", false
}

// =============================================================================
// CONVERSATION
// =============================================================================

// ConversationTurn is one utterance/answer pair. Turns are append-only:
// once recorded they are never mutated.
type ConversationTurn struct {
	Utterance  string    `json:"utterance"`
	Answer     string    `json:"answer"`
	Intent     Intent    `json:"intent,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversationState is the transient per-query state threaded through the
// workflow stages. One instance is created at orchestration entry and
// discarded at exit; stages mutate only this value.
//
// Invariants: NeedsClarification implies ClarificationQuestion != "";
// Confidence is in [0,1] and exactly 0.0 when Fragments is empty.
type ConversationState struct {
	SessionID string
	UserID    string

	// CurrentUtterance may be rewritten by the context builder for
	// follow-up questions; the original text is kept for the history record.
	CurrentUtterance  string
	OriginalUtterance string

	History []ConversationTurn // read-only view

	Intent     Intent
	Fragments  []Fragment // ordered by descending relevance
	Confidence float64

	Answer          string
	FormattedAnswer string

	NeedsClarification    bool
	ClarificationQuestion string
}

// FinalAnswer returns the text the caller should see for this turn. The
// clarification question takes precedence over the synthesized answer.
func (s *ConversationState) FinalAnswer() string {
	if s.NeedsClarification && s.ClarificationQuestion != "" {
		return s.ClarificationQuestion
	}
	if s.FormattedAnswer != "" {
		return s.FormattedAnswer
	}
	return s.Answer
}

// Sources returns the distinct source URLs of the retrieved fragments, in
// relevance order.
func (s *ConversationState) Sources() []string {
	seen := make(map[string]bool, len(s.Fragments))
	var sources []string
	for _, f := range s.Fragments {
		url := f.Metadata.SourceURL
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		sources = append(sources, url)
	}
	return sources
}

// AskResult is the well-formed answer object every turn produces.
type AskResult struct {
	SessionID          string   `json:"session_id"`
	Answer             string   `json:"answer"`
	Intent             Intent   `json:"intent"`
	Confidence         float64  `json:"confidence"`
	NeedsClarification bool     `json:"needs_clarification"`
	FragmentCount      int      `json:"fragment_count"`
	Sources            []string `json:"sources,omitempty"`
}

// =============================================================================
// INGESTION SESSIONS
// =============================================================================

// SessionStatus tracks the lifecycle of a documentation ingestion session.
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IngestReport summarizes a completed ingestion.
type IngestReport struct {
	SessionID     string    `json:"session_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	SectionsFound int       `json:"sections_found"`
	ChunksIndexed int       `json:"chunks_indexed"`
	ProcessedAt   time.Time `json:"processed_at"`
}
