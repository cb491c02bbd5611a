package fetch

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"docpilot/internal/types"
)

func TestParseMarkdown(t *testing.T) {
	src := `# Client Guide

The client issues requests
with sensible defaults.

## Retries

Failed requests are retried.

` + "```go\nclient := http.Client{}\n```" + `
`
	doc, err := ParseMarkdown(strings.NewReader(src), "guide.md")
	require.NoError(t, err)

	want := types.Document{
		Title: "Client Guide",
		URL:   "guide.md",
		Sections: []types.Section{
			{
				Title:   "Client Guide",
				Level:   1,
				Content: []string{"The client issues requests with sensible defaults."},
			},
			{
				Title:   "Retries",
				Level:   2,
				Content: []string{"Failed requests are retried."},
				CodeBlocks: []types.CodeBlock{
					{Content: "client := http.Client{}", Language: "go"},
				},
			},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMarkdownUntaggedFence(t *testing.T) {
	src := "# T\n\n```\ndef f():\n    pass\n```\n"
	doc, err := ParseMarkdown(strings.NewReader(src), "t.md")
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	require.Equal(t, "python", doc.Sections[0].CodeBlocks[0].Language)
}

func TestParseMarkdownPreamble(t *testing.T) {
	src := "Intro text before headings.\n\n# First\n\nBody.\n"
	doc, err := ParseMarkdown(strings.NewReader(src), "t.md")
	require.NoError(t, err)
	require.Len(t, doc.Sections, 2)
	require.Equal(t, "Introduction", doc.Sections[0].Title)
	require.Equal(t, "First", doc.Title)
}

func TestParseMarkdownEmpty(t *testing.T) {
	_, err := ParseMarkdown(strings.NewReader("\n\n\n"), "empty.md")
	require.Error(t, err)
}
