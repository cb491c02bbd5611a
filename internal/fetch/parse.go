package fetch

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"docpilot/internal/segmenter"
	"docpilot/internal/types"
)

// skippedElements never contribute document content.
var skippedElements = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
	"aside":  true,
	"form":   true,
}

// ParseHTML parses an HTML page into a Document. Sections are delimited
// by h1-h6 headings; content before the first heading lands in an
// untitled leading section. pre/code elements become code blocks attached
// to the enclosing section.
func ParseHTML(r io.Reader, pageURL string) (types.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return types.Document{}, fmt.Errorf("html parse: %w", err)
	}

	p := &pageParser{url: pageURL}
	p.walk(root)
	p.flushSection()

	doc := types.Document{
		Title:    p.title,
		URL:      pageURL,
		Sections: p.sections,
	}
	if doc.Title == "" {
		doc.Title = pageURL
	}
	if len(doc.Sections) == 0 {
		return types.Document{}, fmt.Errorf("page %s has no readable content", pageURL)
	}
	return doc, nil
}

type pageParser struct {
	url      string
	title    string
	sections []types.Section

	current *types.Section
}

// section returns the section under construction, opening the untitled
// leading section on first use.
func (p *pageParser) section() *types.Section {
	if p.current == nil {
		p.current = &types.Section{Title: "Introduction", Level: 1}
	}
	return p.current
}

func (p *pageParser) flushSection() {
	if p.current == nil {
		return
	}
	if len(p.current.Content) > 0 || len(p.current.CodeBlocks) > 0 {
		p.sections = append(p.sections, *p.current)
	}
	p.current = nil
}

func (p *pageParser) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch {
		case skippedElements[n.Data]:
			return

		case n.Data == "title":
			if p.title == "" {
				p.title = strings.TrimSpace(textContent(n))
			}
			return

		case headingLevel(n.Data) > 0:
			p.flushSection()
			p.current = &types.Section{
				Title: strings.TrimSpace(textContent(n)),
				Level: headingLevel(n.Data),
			}
			return

		case n.Data == "pre":
			code, lang := extractCode(n)
			if code != "" {
				sec := p.section()
				sec.CodeBlocks = append(sec.CodeBlocks, types.CodeBlock{Content: code, Language: lang})
			}
			return

		case n.Data == "p" || n.Data == "li" || n.Data == "blockquote" || n.Data == "td" || n.Data == "dd" || n.Data == "dt":
			text := segmenter.CleanText(textContent(n))
			if text != "" {
				sec := p.section()
				sec.Content = append(sec.Content, text)
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

// textContent concatenates all text nodes under n, skipping non-content
// elements.
func textContent(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && skippedElements[node.Data] {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

// extractCode pulls the code text and language hint out of a pre element.
// The language comes from a language-* or lang-* class on the pre or an
// inner code element, falling back to content-based detection.
func extractCode(pre *html.Node) (string, string) {
	code := strings.Trim(textContent(pre), "\n")
	if strings.TrimSpace(code) == "" {
		return "", ""
	}

	lang := classLanguage(pre)
	var findCode func(*html.Node)
	findCode = func(n *html.Node) {
		if lang != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "code" {
			lang = classLanguage(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findCode(c)
		}
	}
	findCode(pre)

	if lang == "" {
		lang = segmenter.DetectLanguage(code)
	}
	return code, lang
}

func classLanguage(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, class := range strings.Fields(attr.Val) {
			for _, prefix := range []string{"language-", "lang-"} {
				if strings.HasPrefix(class, prefix) {
					return strings.TrimPrefix(class, prefix)
				}
			}
		}
	}
	return ""
}
