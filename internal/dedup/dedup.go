// Package dedup detects posts with identical content, either against what is
// already stored or retrospectively across the whole store. Equality is exact,
// case-sensitive string equality; near-duplicates are not detected.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Fingerprint returns the hex sha256 of content, used as an index key.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// PartitionNew splits candidates into unseen and duplicate items. A candidate is a
// duplicate if its content is in existing or appeared earlier in candidates.
func PartitionNew[T any](candidates []T, content func(T) string, existing map[string]struct{}) (fresh, duplicates []T) {
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		text := content(c)
		if _, ok := existing[text]; ok {
			duplicates = append(duplicates, c)
			continue
		}
		if _, ok := seen[text]; ok {
			duplicates = append(duplicates, c)
			continue
		}
		seen[text] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh, duplicates
}

// Entry is the minimal view of a stored post needed to plan a cleanup.
type Entry struct {
	ID        string
	Content   string
	CreatedAt time.Time
}

// PlanCleanup returns the ids to remove so that exactly the oldest entry of each
// content group survives. Entries should be ordered by creation time ascending;
// on equal timestamps the first one seen is kept.
func PlanCleanup(entries []Entry) []string {
	keepers := make(map[string]Entry, len(entries))
	var remove []string

	for _, e := range entries {
		keeper, ok := keepers[e.Content]
		if !ok {
			keepers[e.Content] = e
			continue
		}
		if e.CreatedAt.Before(keeper.CreatedAt) {
			remove = append(remove, keeper.ID)
			keepers[e.Content] = e
			continue
		}
		remove = append(remove, e.ID)
	}
	return remove
}
