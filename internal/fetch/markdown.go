package fetch

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"docpilot/internal/segmenter"
	"docpilot/internal/types"
)

var (
	mdHeading = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	mdFence   = regexp.MustCompile("^```\\s*(\\w+)?\\s*$")
)

// ParseMarkdown parses a markdown document into the same Document shape
// as HTML pages. Sections follow ATX headings; fenced blocks become code
// blocks.
func ParseMarkdown(r io.Reader, source string) (types.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.Document{}, fmt.Errorf("read markdown: %w", err)
	}

	doc := types.Document{URL: source}
	current := &types.Section{Title: "Introduction", Level: 1}
	var paragraph []string

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		text := segmenter.CleanText(strings.Join(paragraph, " "))
		if text != "" {
			current.Content = append(current.Content, text)
		}
		paragraph = nil
	}
	flushSection := func() {
		flushParagraph()
		if len(current.Content) > 0 || len(current.CodeBlocks) > 0 {
			doc.Sections = append(doc.Sections, *current)
		}
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := mdFence.FindStringSubmatch(line); m != nil {
			flushParagraph()
			var code []string
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```"); i++ {
				code = append(code, lines[i])
			}
			body := strings.Join(code, "\n")
			if strings.TrimSpace(body) != "" {
				lang := m[1]
				if lang == "" {
					lang = segmenter.DetectLanguage(body)
				}
				current.CodeBlocks = append(current.CodeBlocks, types.CodeBlock{Content: body, Language: lang})
			}
			continue
		}

		if m := mdHeading.FindStringSubmatch(line); m != nil {
			title := strings.TrimSpace(m[2])
			if doc.Title == "" && len(m[1]) == 1 {
				doc.Title = title
			}
			flushSection()
			current = &types.Section{Title: title, Level: len(m[1])}
			continue
		}

		if strings.TrimSpace(line) == "" {
			flushParagraph()
			continue
		}
		paragraph = append(paragraph, strings.TrimSpace(line))
	}
	flushSection()

	if doc.Title == "" {
		doc.Title = source
	}
	if len(doc.Sections) == 0 {
		return types.Document{}, fmt.Errorf("markdown document %s has no content", source)
	}
	return doc, nil
}
