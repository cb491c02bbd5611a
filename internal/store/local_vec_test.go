//go:build sqlite_vec && cgo

package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"docpilot/internal/types"
)

// Exercises the SQL ranking path: scores must come back from
// vec_distance_cosine with the same ordering contract as the in-process
// scan.
func TestLocalStoreSQLRanking(t *testing.T) {
	local, err := NewLocalStore(filepath.Join(t.TempDir(), "vec.db"), stubEngine{})
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	t.Cleanup(func() { local.Close() })

	ctx := context.Background()
	if err := local.AddFragments(ctx, "sess1", testFragments()); err != nil {
		t.Fatalf("AddFragments: %v", err)
	}

	queryVec, err := stubEngine{}.Embed(ctx, "http client timeout")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	scored, err := local.searchScored(ctx, "sess1", queryVec, nil)
	if err != nil {
		t.Fatalf("searchScored: %v", err)
	}
	if len(scored) != 3 {
		t.Fatalf("got %d scored fragments, want 3", len(scored))
	}
	for _, sc := range scored {
		if sc.score < 0 || sc.score > 1 {
			t.Errorf("fragment %s: score %v out of [0,1]", sc.frag.id, sc.score)
		}
	}

	got, err := local.Query(ctx, "sess1", "http client timeout", 2, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got))
	}
	if !strings.Contains(got[0].Content, "http client") {
		t.Errorf("top fragment: got %q, want the http client one", got[0].Content)
	}
	if got[0].Relevance < got[1].Relevance {
		t.Error("fragments not ordered by descending relevance")
	}

	filtered, err := local.Query(ctx, "sess1", "client timeout", 5, Filter{"type": "code_block"})
	if err != nil {
		t.Fatalf("Query with filter: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Metadata.Type != types.FragmentCodeBlock {
		t.Errorf("filter not applied to SQL ranking: %+v", filtered)
	}
}
