package workflow

import (
	"strings"
	"testing"
)

func TestFormatNormalizesCodeFences(t *testing.T) {
	in := "Here:\n```\nx := 1\n```\nand:\n```go\ny := 2\n\n\n```"
	got := Format(in)
	if !strings.Contains(got, "```text\nx := 1\n```") {
		t.Errorf("untagged fence not normalized to text:\n%s", got)
	}
	if !strings.Contains(got, "```go\ny := 2\n```") {
		t.Errorf("trailing newlines not collapsed:\n%s", got)
	}
}

func TestFormatInlineSpansIdempotent(t *testing.T) {
	in := "Run `go test` to check."
	once := Format(in)
	twice := Format(once)
	if once != twice {
		t.Errorf("formatting not idempotent on inline spans:\n%q\n%q", once, twice)
	}
	if !strings.Contains(once, "`go test`") {
		t.Errorf("inline span damaged: %q", once)
	}
}

func TestFormatTechnicalTerms(t *testing.T) {
	got := Format("A function takes a parameter and may return JSON.")
	for _, want := range []string{"**function**", "**parameter**", "**JSON**", "`return`"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatLeavesCodeUntouched(t *testing.T) {
	in := "Use this:\n```go\nfunc main() { if x { return } }\n```\nThe function returns early."
	got := Format(in)
	if !strings.Contains(got, "func main() { if x { return } }") {
		t.Errorf("code inside fence was altered:\n%s", got)
	}
	if !strings.Contains(got, "**function**") {
		t.Errorf("prose after fence not formatted:\n%s", got)
	}
}

func TestFormatLeavesInlineSpansUntouched(t *testing.T) {
	in := "The `import` statement loads a package."
	got := Format(in)
	if !strings.Contains(got, "`import`") || strings.Contains(got, "``import``") {
		t.Errorf("inline span was altered:\n%s", got)
	}
}

func TestFormatEmpty(t *testing.T) {
	if got := Format(""); got != "" {
		t.Errorf("got %q for empty input", got)
	}
}

func TestCodeBlockRoundTrip(t *testing.T) {
	tests := []struct {
		lang string
		code string
	}{
		{"go", "func main() {\n\tfmt.Println(\"hi\")\n}"},
		{"python", "def f():\n    pass"},
		{"", "plain snippet"},
	}
	for _, tt := range tests {
		formatted := FormatCodeBlock(tt.code, tt.lang)
		blocks := ExtractCodeBlocks(formatted)
		if len(blocks) != 1 {
			t.Fatalf("got %d blocks, want 1", len(blocks))
		}
		wantLang := tt.lang
		if wantLang == "" {
			wantLang = "text"
		}
		if blocks[0].Language != wantLang {
			t.Errorf("language: got %q, want %q", blocks[0].Language, wantLang)
		}
		if blocks[0].Content != tt.code {
			t.Errorf("code:\ngot  %q\nwant %q", blocks[0].Content, tt.code)
		}
	}
}

func TestExtractCodeBlocksMultiple(t *testing.T) {
	text := "a\n```go\nx\n```\nb\n```sql\nSELECT 1\n```\nc"
	blocks := ExtractCodeBlocks(text)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if blocks[0].Language != "go" || blocks[1].Language != "sql" {
		t.Errorf("languages: got %q, %q", blocks[0].Language, blocks[1].Language)
	}
}
