package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"PulseWatch/internal/domain"
)

func TestRemoveDuplicatesKeepsOldest(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(
		post("1", "x", base.Add(1*time.Second)),
		post("2", "x", base.Add(2*time.Second)),
		post("3", "y", base.Add(3*time.Second)),
	)
	store.analyses["2"] = domain.Analysis{PostID: "2"}
	store.analyses["1"] = domain.Analysis{PostID: "1"}
	notifier := &recordingNotifier{}
	cleaner := NewCleaner(CleanupDeps{Store: store, Notifier: notifier, Logger: discardLogger()})

	result, err := cleaner.RemoveDuplicates(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if result.DuplicatesFound != 1 || result.Removed != 1 || result.Scanned != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(store.posts) != 2 || store.posts[0].ID != "1" || store.posts[1].ID != "3" {
		t.Fatalf("unexpected survivors %+v", store.posts)
	}
	if _, ok := store.analyses["2"]; ok {
		t.Fatalf("analysis of removed post survived")
	}
	if _, ok := store.analyses["1"]; !ok {
		t.Fatalf("analysis of kept post removed")
	}
	if len(store.eventsNamed(domain.MetricCleanup)) != 1 || len(notifier.messages) != 1 {
		t.Fatalf("expected one event and one digest")
	}
}

func TestRemoveDuplicatesContinuesPastFailedBatch(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(post("keep", "dup", base))
	for i := 0; i < 5; i++ {
		store.posts = append(store.posts, post(fmt.Sprintf("d%d", i), "dup", base.Add(time.Duration(i+1)*time.Minute)))
	}
	store.failDeleteAnalyses = map[int]bool{2: true}
	cleaner := NewCleaner(CleanupDeps{Store: store, Logger: discardLogger(), BatchSize: 2})

	result, err := cleaner.RemoveDuplicates(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if result.DuplicatesFound != 5 || result.Removed != 3 || result.FailedBatches != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := store.eventsNamed(domain.MetricCleanup)[0].MetricValue["status"]; got != domain.RunStatusPartialSuccess {
		t.Fatalf("status = %v", got)
	}
}

func TestRemoveDuplicatesNothingToDo(t *testing.T) {
	t.Parallel()

	store := newMemoryStore(post("a", "x", base), post("b", "y", base))
	cleaner := NewCleaner(CleanupDeps{Store: store, Logger: discardLogger()})

	result, err := cleaner.RemoveDuplicates(context.Background())
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if result.Removed != 0 || result.Message != "No duplicates found." {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(store.events) != 0 {
		t.Fatalf("no event expected")
	}
}

type failingListStore struct{ *memoryStore }

func (failingListStore) ListPostsByCreation(context.Context) ([]domain.Post, error) {
	return nil, errStore
}

func TestRemoveDuplicatesListFailure(t *testing.T) {
	t.Parallel()

	store := failingListStore{newMemoryStore()}
	cleaner := NewCleaner(CleanupDeps{Store: store, Logger: discardLogger()})

	if _, err := cleaner.RemoveDuplicates(context.Background()); !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.eventsNamed(domain.MetricCleanup+"_error")) != 1 {
		t.Fatalf("expected failure event")
	}
}
