package dedup

import (
	"reflect"
	"testing"
	"time"
)

func identity(s string) string { return s }

func TestPartitionNewInBatchDuplicates(t *testing.T) {
	t.Parallel()

	fresh, dups := PartitionNew([]string{"a", "b", "a"}, identity, nil)
	if !reflect.DeepEqual(fresh, []string{"a", "b"}) {
		t.Fatalf("fresh = %v", fresh)
	}
	if !reflect.DeepEqual(dups, []string{"a"}) {
		t.Fatalf("duplicates = %v", dups)
	}
}

func TestPartitionNewAgainstExisting(t *testing.T) {
	t.Parallel()

	existing := map[string]struct{}{"stored": {}}
	fresh, dups := PartitionNew([]string{"Stored", "stored", "new"}, identity, existing)
	if !reflect.DeepEqual(fresh, []string{"Stored", "new"}) {
		t.Fatalf("fresh = %v", fresh)
	}
	if !reflect.DeepEqual(dups, []string{"stored"}) {
		t.Fatalf("duplicates = %v", dups)
	}
}

func TestPartitionNewKeepsStructOrder(t *testing.T) {
	t.Parallel()

	type post struct {
		id   int
		body string
	}
	in := []post{{1, "x"}, {2, "y"}, {3, "x"}, {4, "z"}, {5, "y"}}
	fresh, dups := PartitionNew(in, func(p post) string { return p.body }, map[string]struct{}{"z": {}})

	if !reflect.DeepEqual(fresh, []post{{1, "x"}, {2, "y"}}) {
		t.Fatalf("fresh = %v", fresh)
	}
	if !reflect.DeepEqual(dups, []post{{3, "x"}, {4, "z"}, {5, "y"}}) {
		t.Fatalf("duplicates = %v", dups)
	}
}

func TestPlanCleanupKeepsOldest(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "1", Content: "x", CreatedAt: base.Add(1 * time.Second)},
		{ID: "2", Content: "x", CreatedAt: base.Add(2 * time.Second)},
		{ID: "3", Content: "y", CreatedAt: base.Add(3 * time.Second)},
	}

	if got := PlanCleanup(entries); !reflect.DeepEqual(got, []string{"2"}) {
		t.Fatalf("remove = %v", got)
	}
}

func TestPlanCleanupUnorderedInputAndTies(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "late", Content: "x", CreatedAt: base.Add(time.Hour)},
		{ID: "early", Content: "x", CreatedAt: base},
		{ID: "tie-a", Content: "y", CreatedAt: base},
		{ID: "tie-b", Content: "y", CreatedAt: base},
	}

	got := PlanCleanup(entries)
	want := []string{"late", "tie-b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("remove = %v, want %v", got, want)
	}
}

func TestFingerprintIsExact(t *testing.T) {
	t.Parallel()

	if Fingerprint("a") == Fingerprint("A") {
		t.Fatalf("fingerprint must be case-sensitive")
	}
	if Fingerprint("same") != Fingerprint("same") {
		t.Fatalf("fingerprint not deterministic")
	}
	if len(Fingerprint("")) != 64 {
		t.Fatalf("expected hex sha256")
	}
}
