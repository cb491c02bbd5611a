package segmenter

import "regexp"

// languageHints maps a language name to patterns that suggest it. First
// match wins, so more distinctive languages come earlier.
var languageHints = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"go", []*regexp.Regexp{
		regexp.MustCompile(`\bpackage\s+\w+`),
		regexp.MustCompile(`\bfunc\s+\w+\s*\(`),
		regexp.MustCompile(`:=`),
	}},
	{"python", []*regexp.Regexp{
		regexp.MustCompile(`\bdef\s+\w+\s*\(`),
		regexp.MustCompile(`\bimport\s+\w+`),
		regexp.MustCompile(`\bprint\s*\(`),
		regexp.MustCompile(`\bself\.`),
	}},
	{"javascript", []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s+\w*\s*\(`),
		regexp.MustCompile(`\bconst\s+\w+\s*=`),
		regexp.MustCompile(`=>`),
		regexp.MustCompile(`console\.log`),
	}},
	{"sql", []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bSELECT\b.*\bFROM\b`),
		regexp.MustCompile(`(?i)\bCREATE\s+TABLE\b`),
		regexp.MustCompile(`(?i)\bINSERT\s+INTO\b`),
	}},
	{"bash", []*regexp.Regexp{
		regexp.MustCompile(`^#!/bin/(ba)?sh`),
		regexp.MustCompile(`(?m)^\s*(curl|sudo|apt|pip|npm|docker)\s`),
		regexp.MustCompile(`(?m)^\$\s`),
	}},
	{"json", []*regexp.Regexp{
		regexp.MustCompile(`(?s)^\s*\{\s*"`),
		regexp.MustCompile(`(?s)^\s*\[\s*\{`),
	}},
	{"html", []*regexp.Regexp{
		regexp.MustCompile(`(?i)<(html|div|span|body|head|p|a)\b`),
		regexp.MustCompile(`(?i)<!DOCTYPE`),
	}},
	{"yaml", []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\w[\w-]*:\s*$`),
		regexp.MustCompile(`(?m)^\s+-\s+\w`),
	}},
}

// DetectLanguage guesses the programming language of a code sample from
// surface patterns. Returns "text" when nothing matches.
func DetectLanguage(code string) string {
	for _, hint := range languageHints {
		for _, pattern := range hint.patterns {
			if pattern.MatchString(code) {
				return hint.name
			}
		}
	}
	return "text"
}
