package workflow

import (
	"strings"
	"testing"

	"docpilot/internal/types"
)

func newBuilder(t *testing.T) *ContextBuilder {
	t.Helper()
	b, err := NewContextBuilder(nil, 4)
	if err != nil {
		t.Fatalf("NewContextBuilder: %v", err)
	}
	return b
}

func TestBuildContextExtractsKeyLines(t *testing.T) {
	b := newBuilder(t)
	history := []types.ConversationTurn{
		{Utterance: "q1", Answer: "A goroutine is a lightweight thread.\nRandom filler line without cues."},
		{Utterance: "q2", Answer: "Channels are typed conduits.\nThe select statement allows waiting on several."},
	}

	got := b.BuildContext(history)
	for _, want := range []string{"A goroutine is a lightweight thread.", "Channels are typed conduits.", "allows waiting"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Random filler") {
		t.Errorf("context includes non-key line:\n%s", got)
	}
}

func TestBuildContextMaxTwoKeyLinesPerAnswer(t *testing.T) {
	b := newBuilder(t)
	history := []types.ConversationTurn{
		{Answer: "One is first.\nTwo is second.\nThree is third.\nFour is fourth."},
	}
	got := b.BuildContext(history)
	if !strings.Contains(got, "One is first.") || !strings.Contains(got, "Two is second.") {
		t.Errorf("missing first two key lines:\n%s", got)
	}
	if strings.Contains(got, "Three is third.") {
		t.Errorf("kept more than two key lines:\n%s", got)
	}
}

func TestBuildContextSkipsLongLines(t *testing.T) {
	b := newBuilder(t)
	long := "This is " + strings.Repeat("very ", 50) + "long."
	if len(long) < maxKeyLineLength {
		t.Fatalf("test line too short: %d", len(long))
	}
	got := b.BuildContext([]types.ConversationTurn{{Answer: long}})
	if got != "" {
		t.Errorf("long line kept as key line: %q", got)
	}
}

func TestBuildContextWindowsHistory(t *testing.T) {
	b := newBuilder(t)
	history := []types.ConversationTurn{
		{Answer: "Alpha is ancient."},
		{Answer: "Beta is old."},
		{Answer: "Gamma is recent."},
		{Answer: "Delta is newer."},
		{Answer: "Epsilon is newest."},
	}
	got := b.BuildContext(history)
	if strings.Contains(got, "Alpha") {
		t.Errorf("context includes turn outside the 4-turn window:\n%s", got)
	}
	if !strings.Contains(got, "Epsilon") {
		t.Errorf("context missing newest turn:\n%s", got)
	}
}

func TestBuildContextEmpty(t *testing.T) {
	b := newBuilder(t)
	if got := b.BuildContext(nil); got != "" {
		t.Errorf("got %q for empty history, want empty", got)
	}
	noKeys := []types.ConversationTurn{{Answer: "no cue words whatsoever here"}}
	if got := b.BuildContext(noKeys); got != "" {
		t.Errorf("got %q for history without key lines, want empty", got)
	}
}

func TestRewriteUtterance(t *testing.T) {
	got := RewriteUtterance("the summary", "what else?")
	want := "Previous context: the summary\n\nCurrent question: what else?"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
