package workflow

import (
	"fmt"
	"regexp"
	"strings"

	"docpilot/internal/types"
)

// =============================================================================
// RESPONSE POST-PROCESSOR
// =============================================================================

var (
	fencedBlock  = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")
	inlineSpan   = regexp.MustCompile("`([^`\n]+)`")
	protectedRun = regexp.MustCompile("(?s)```(?:\\w+)?\\n.*?```|`[^`\n]+`")

	boldTerms = regexp.MustCompile(`(?i)\b(function|class|method|variable|parameter|API|URL|HTTP|JSON|XML|SQL)\b`)
	codeTerms = regexp.MustCompile(`(?i)\b(import|export|return|if|else|for|while)\b`)
)

// Format applies the three post-processing passes in fixed order: fence
// normalization, inline span normalization, and technical term markup.
// Term markup never touches text inside code fences or inline spans.
func Format(text string) string {
	if text == "" {
		return text
	}
	text = normalizeCodeFences(text)
	text = normalizeInlineSpans(text)
	return formatTechnicalTerms(text)
}

// normalizeCodeFences rewrites every fenced block to the canonical
// "```lang\ncode\n```" shape. A missing language tag becomes "text".
func normalizeCodeFences(text string) string {
	return fencedBlock.ReplaceAllStringFunc(text, func(match string) string {
		groups := fencedBlock.FindStringSubmatch(match)
		lang := groups[1]
		if lang == "" {
			lang = "text"
		}
		code := strings.TrimRight(groups[2], "\n")
		return fmt.Sprintf("```%s\n%s\n```", lang, code)
	})
}

// normalizeInlineSpans rewraps single-backtick spans. Rewrapping an
// already-wrapped span reproduces it unchanged, so the pass is idempotent.
func normalizeInlineSpans(text string) string {
	return inlineSpan.ReplaceAllString(text, "`$1`")
}

// formatTechnicalTerms bolds structural nouns and inline-codes language
// keywords, in prose only. Fenced blocks and inline spans are copied
// through verbatim.
func formatTechnicalTerms(text string) string {
	var out strings.Builder
	last := 0
	for _, loc := range protectedRun.FindAllStringIndex(text, -1) {
		out.WriteString(substituteTerms(text[last:loc[0]]))
		out.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	out.WriteString(substituteTerms(text[last:]))
	return out.String()
}

func substituteTerms(prose string) string {
	prose = boldTerms.ReplaceAllString(prose, "**$1**")
	return codeTerms.ReplaceAllString(prose, "`$1`")
}

// =============================================================================
// CODE BLOCK HELPERS
// =============================================================================

// FormatCodeBlock wraps code in a canonical markdown fence.
func FormatCodeBlock(code, language string) string {
	if language == "" {
		language = "text"
	}
	return fmt.Sprintf("```%s\n%s\n```", language, strings.TrimRight(code, "\n"))
}

// ExtractCodeBlocks is the inverse of FormatCodeBlock: it recovers every
// fenced block's language tag and code text from markdown.
func ExtractCodeBlocks(text string) []types.CodeBlock {
	var blocks []types.CodeBlock
	for _, groups := range fencedBlock.FindAllStringSubmatch(text, -1) {
		lang := groups[1]
		if lang == "" {
			lang = "text"
		}
		blocks = append(blocks, types.CodeBlock{
			Language: lang,
			Content:  strings.TrimRight(groups[2], "\n"),
		})
	}
	return blocks
}
