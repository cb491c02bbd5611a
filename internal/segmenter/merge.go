package segmenter

import (
	"strings"

	"docpilot/internal/logging"
	"docpilot/internal/types"
)

// DefaultMinOverlap is the minimum verbatim suffix/prefix overlap, in
// characters, for two adjacent fragments to be merged.
const DefaultMinOverlap = 50

// MergeOverlapping collapses adjacent text fragments whose boundary text
// repeats: when the suffix of one fragment appears verbatim as the prefix
// of the next and the shared run is at least minOverlap characters, the two
// are joined without duplicating the shared run. Only text-content
// fragments participate; titles and code blocks pass through untouched.
// The pass is idempotent: running it on already-merged output is a no-op.
func (s *Segmenter) MergeOverlapping(fragments []types.Fragment) []types.Fragment {
	if len(fragments) < 2 {
		return fragments
	}

	merged := make([]types.Fragment, 0, len(fragments))
	merged = append(merged, fragments[0])

	for _, next := range fragments[1:] {
		last := &merged[len(merged)-1]

		if last.Metadata.Type != types.FragmentTextContent || next.Metadata.Type != types.FragmentTextContent {
			merged = append(merged, next)
			continue
		}

		overlap := overlapLength(last.Content, next.Content, s.minOverlap)
		if overlap == 0 {
			merged = append(merged, next)
			continue
		}

		logging.SegmenterDebug("Merging fragments with %d-char overlap", overlap)
		last.Content = last.Content + next.Content[overlap:]
		last.Metadata = unionMetadata(last.Metadata, next.Metadata)
	}

	return merged
}

// overlapLength returns the length of the longest suffix of a that is also
// a prefix of b, or 0 if that run is shorter than min.
func overlapLength(a, b string, min int) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n >= min && n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}

// unionMetadata merges two fragment metadata values field-by-field, with
// later non-empty values winning.
func unionMetadata(a, b types.FragmentMetadata) types.FragmentMetadata {
	out := a
	if b.Type != "" {
		out.Type = b.Type
	}
	if b.Section != "" {
		out.Section = b.Section
	}
	if b.Language != "" {
		out.Language = b.Language
	}
	if b.Level != 0 {
		out.Level = b.Level
	}
	if b.SourceURL != "" {
		out.SourceURL = b.SourceURL
	}
	return out
}
