package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"docpilot/internal/types"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func turn(utterance, answer string, intent types.Intent, confidence float64, at time.Time) types.ConversationTurn {
	return types.ConversationTurn{
		Utterance:  utterance,
		Answer:     answer,
		Intent:     intent,
		Confidence: confidence,
		CreatedAt:  at,
	}
}

func TestAppendAndList(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, q := range []string{"q1", "q2", "q3"} {
				if err := s.Append(ctx, "chat1", turn(q, "a"+q, types.IntentGeneralQuestion, 0.5, base.Add(time.Duration(i)*time.Minute))); err != nil {
					t.Fatalf("Append: %v", err)
				}
			}

			all, err := s.List(ctx, "chat1", 0)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != 3 {
				t.Fatalf("got %d turns, want 3", len(all))
			}
			if all[0].Utterance != "q1" || all[2].Utterance != "q3" {
				t.Errorf("turns out of order: %v, %v", all[0].Utterance, all[2].Utterance)
			}

			recent, err := s.List(ctx, "chat1", 2)
			if err != nil {
				t.Fatalf("List limit: %v", err)
			}
			if len(recent) != 2 || recent[0].Utterance != "q2" || recent[1].Utterance != "q3" {
				t.Errorf("limited list wrong: %+v", recent)
			}
		})
	}
}

func TestListEmptySession(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			turns, err := s.List(context.Background(), "nobody", 0)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(turns) != 0 {
				t.Errorf("got %d turns for unknown session, want 0", len(turns))
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Append(ctx, "chat1", turn("q", "a", types.IntentGeneralQuestion, 0.4, time.Now())); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := s.Delete(ctx, "chat1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			turns, err := s.List(ctx, "chat1", 0)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(turns) != 0 {
				t.Errorf("got %d turns after delete, want 0", len(turns))
			}
		})
	}
}

func TestAnalytics(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Append(ctx, "chat1", turn("what is authentication", "a1", types.IntentGeneralQuestion, 0.8, base)); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := s.Append(ctx, "chat1", turn("show authentication code", "a2", types.IntentCodeQuestion, 0.4, base.Add(time.Minute))); err != nil {
				t.Fatalf("Append: %v", err)
			}
			if err := s.Append(ctx, "chat1", turn("how do timeouts behave", "a3", types.IntentCodeQuestion, 0.6, base.Add(2*time.Minute))); err != nil {
				t.Fatalf("Append: %v", err)
			}

			a, err := s.Analytics(ctx, "chat1")
			if err != nil {
				t.Fatalf("Analytics: %v", err)
			}
			if a.TurnCount != 3 {
				t.Errorf("turn count: got %d, want 3", a.TurnCount)
			}
			if a.AvgConfidence < 0.59 || a.AvgConfidence > 0.61 {
				t.Errorf("avg confidence: got %v, want 0.6", a.AvgConfidence)
			}
			if a.Intents["code_question"] != 2 || a.Intents["general_question"] != 1 {
				t.Errorf("intent distribution wrong: %v", a.Intents)
			}
			if a.Topics["authentication"] != 2 || a.Topics["timeouts"] != 1 {
				t.Errorf("topic counts wrong: %v", a.Topics)
			}
			if _, ok := a.Topics["what"]; ok {
				t.Errorf("stopword counted as topic: %v", a.Topics)
			}
		})
	}
}

func TestAnalyticsEmpty(t *testing.T) {
	for name, s := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			a, err := s.Analytics(context.Background(), "nobody")
			if err != nil {
				t.Fatalf("Analytics: %v", err)
			}
			if a.TurnCount != 0 || a.AvgConfidence != 0 {
				t.Errorf("empty analytics wrong: %+v", a)
			}
		})
	}
}
