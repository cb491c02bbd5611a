// Package segmenter splits structured documents into bounded, semantically
// coherent fragments for indexing. The chunking policy falls back through
// strictly narrower boundaries: paragraph, sentence, word, and finally a
// hard character truncation, which bounds every text fragment at ChunkSize.
package segmenter

import (
	"fmt"
	"regexp"
	"strings"

	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// DefaultChunkSize is the upper bound, in characters, for text fragments.
const DefaultChunkSize = 1000

// Segmenter converts documents into fragments.
type Segmenter struct {
	chunkSize  int
	minOverlap int
}

// New creates a Segmenter. Non-positive arguments fall back to defaults.
func New(chunkSize, minOverlap int) *Segmenter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}
	return &Segmenter{chunkSize: chunkSize, minOverlap: minOverlap}
}

// ChunkSize returns the configured fragment size bound.
func (s *Segmenter) ChunkSize() int { return s.chunkSize }

// Segment splits a document into an ordered sequence of fragments: one title
// fragment, then per section a section-title fragment, chunked text content,
// and one fragment per code block. Code blocks are never split. Empty
// content is dropped, never emitted as an empty fragment.
func (s *Segmenter) Segment(doc types.Document) []types.Fragment {
	timer := logging.StartTimer(logging.CategorySegmenter, "Segment")
	defer timer.Stop()

	var fragments []types.Fragment

	if strings.TrimSpace(doc.Title) != "" {
		fragments = append(fragments, types.Fragment{
			Content: fmt.Sprintf("Title: %s", doc.Title),
			Metadata: types.FragmentMetadata{
				Type:      types.FragmentTitle,
				Section:   "header",
				SourceURL: doc.URL,
			},
		})
	}

	for _, section := range doc.Sections {
		fragments = append(fragments, s.segmentSection(section, doc.URL)...)
	}

	logging.Segmenter("Segmented %q into %d fragments (%d sections)", doc.Title, len(fragments), len(doc.Sections))
	return fragments
}

func (s *Segmenter) segmentSection(section types.Section, sourceURL string) []types.Fragment {
	var fragments []types.Fragment

	if strings.TrimSpace(section.Title) != "" {
		fragments = append(fragments, types.Fragment{
			Content: fmt.Sprintf("Section: %s", section.Title),
			Metadata: types.FragmentMetadata{
				Type:      types.FragmentSectionTitle,
				Section:   section.Title,
				Level:     section.Level,
				SourceURL: sourceURL,
			},
		})
	}

	if len(section.Content) > 0 {
		meta := types.FragmentMetadata{
			Type:      types.FragmentTextContent,
			Section:   section.Title,
			SourceURL: sourceURL,
		}
		// Content entries are individual paragraphs; join them with a blank
		// line so chunking sees the paragraph boundaries.
		for _, chunk := range s.chunkText(strings.Join(section.Content, "\n\n")) {
			fragments = append(fragments, types.Fragment{Content: chunk, Metadata: meta})
		}
	}

	for _, block := range section.CodeBlocks {
		code := strings.TrimSpace(block.Content)
		if code == "" {
			continue
		}
		lang := block.Language
		if lang == "" {
			lang = DetectLanguage(code)
		}
		fragments = append(fragments, types.Fragment{
			Content: fmt.Sprintf("Code (%s):\n%s", lang, code),
			Metadata: types.FragmentMetadata{
				Type:      types.FragmentCodeBlock,
				Section:   section.Title,
				Language:  lang,
				SourceURL: sourceURL,
			},
		})
	}

	return fragments
}

// =============================================================================
// TEXT CHUNKING
// =============================================================================

var (
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	hspaceRuns   = regexp.MustCompile(`[ \t]+`)
	blankRuns    = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
	paragraphSep = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd  = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// chunkText splits a cleaned text blob into chunks of at most chunkSize
// characters. Splitting prefers paragraph boundaries, then sentence
// boundaries, then word boundaries; a single word longer than chunkSize is
// hard-truncated to exactly chunkSize.
func (s *Segmenter) chunkText(text string) []string {
	cleaned := CleanText(text)
	if cleaned == "" {
		return nil
	}
	if len(cleaned) <= s.chunkSize {
		return []string{cleaned}
	}

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if chunk := strings.TrimSpace(buf.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
	}

	for _, paragraph := range paragraphSep.Split(cleaned, -1) {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if len(paragraph) > s.chunkSize {
			flush()
			chunks = append(chunks, s.splitLongParagraph(paragraph)...)
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(paragraph)+1 > s.chunkSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(paragraph)
	}
	flush()

	return chunks
}

// splitSentences breaks a paragraph on terminal punctuation. Text after the
// last terminator, such as a heading or list item, becomes a sentence of its
// own rather than being dropped.
func splitSentences(paragraph string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(paragraph, -1) {
		sentences = append(sentences, paragraph[loc[0]:loc[1]])
		last = loc[1]
	}
	if tail := strings.TrimSpace(paragraph[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// splitLongParagraph breaks an oversized paragraph on sentence boundaries,
// falling back to word boundaries for oversized sentences.
func (s *Segmenter) splitLongParagraph(paragraph string) []string {
	sentences := splitSentences(paragraph)

	var chunks []string
	var buf strings.Builder

	flush := func() {
		if chunk := strings.TrimSpace(buf.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		buf.Reset()
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if len(sentence) > s.chunkSize {
			flush()
			chunks = append(chunks, s.splitByWords(sentence)...)
			continue
		}

		if buf.Len() > 0 && buf.Len()+len(sentence)+1 > s.chunkSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(sentence)
	}
	flush()

	return chunks
}

// splitByWords accumulates words up to chunkSize. A single word longer than
// chunkSize is hard-truncated to exactly chunkSize characters.
func (s *Segmenter) splitByWords(text string) []string {
	var chunks []string
	var buf strings.Builder

	for _, word := range strings.Fields(text) {
		if len(word) > s.chunkSize {
			if buf.Len() > 0 {
				chunks = append(chunks, buf.String())
				buf.Reset()
			}
			chunks = append(chunks, word[:s.chunkSize])
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(word)+1 > s.chunkSize {
			chunks = append(chunks, buf.String())
			buf.Reset()
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(word)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}

	return chunks
}

// CleanText strips control characters, normalizes horizontal whitespace
// runs, collapses multiple blank lines into one, and trims the result.
// Newlines are preserved so paragraph boundaries survive cleaning.
func CleanText(text string) string {
	text = controlChars.ReplaceAllString(text, "")
	text = hspaceRuns.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
