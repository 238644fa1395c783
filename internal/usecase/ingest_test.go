package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"PulseWatch/internal/dedup"
	"PulseWatch/internal/domain"
)

func newTestIngestor(store *memoryStore, batchSize int) *Ingestor {
	n := 0
	return NewIngestor(IngestDeps{
		Store:     store,
		Logger:    discardLogger(),
		BatchSize: batchSize,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
		Now: func() time.Time { return base },
	})
}

func candidate(content string) domain.Candidate {
	return domain.Candidate{Source: domain.SourceReddit, Content: content}
}

func TestIngestDeduplicatesAndFiltersShortContent(t *testing.T) {
	t.Parallel()

	stored := strings.Repeat("already stored content ", 2)
	store := newMemoryStore(post("old", strings.TrimSpace(stored), base.Add(-time.Hour)))
	ingestor := newTestIngestor(store, 0)

	long := "The senate passed the new education bill today"
	result, err := ingestor.Ingest(context.Background(), []domain.Candidate{
		candidate(long),
		candidate("too short"),
		candidate("<p>" + long + "</p>"),
		candidate(stored),
		candidate("A completely different post about the economy and jobs"),
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Received != 5 || result.Stored != 2 || result.Duplicates != 2 || result.TooShort != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	var first domain.Post
	for _, p := range store.posts {
		if p.Content == long {
			first = p
		}
	}
	if first.ID != "id-1" || first.Fingerprint != dedup.Fingerprint(long) || first.Topic != "education" {
		t.Fatalf("unexpected stored post %+v", first)
	}

	events := store.eventsNamed(domain.MetricIngest)
	if len(events) != 1 || events[0].MetricValue["items_stored"] != 2 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestIngestContinuesPastFailingBatch(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.failInsertPostsCall = map[int]bool{1: true}
	ingestor := newTestIngestor(store, 2)

	var candidates []domain.Candidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, candidate(fmt.Sprintf("post number %d with enough words to keep", i)))
	}
	result, err := ingestor.Ingest(context.Background(), candidates)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if result.Stored != 3 || result.FailedBatches != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := store.eventsNamed(domain.MetricIngest)[0].MetricValue["status"]; got != domain.RunStatusPartialSuccess {
		t.Fatalf("status = %v", got)
	}
}

func TestIngestExistingLookupFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	store.failExisting = true
	ingestor := newTestIngestor(store, 0)

	_, err := ingestor.Ingest(context.Background(), []domain.Candidate{candidate("long enough content to be stored here")})
	if !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.eventsNamed(domain.MetricIngestError)) != 1 {
		t.Fatalf("expected ingest error event")
	}
}

func TestIngestValidatesSource(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	ingestor := newTestIngestor(store, 0)

	_, err := ingestor.Ingest(context.Background(), []domain.Candidate{{Source: "myspace", Content: "whatever"}})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "candidates[0].source" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractTopic(t *testing.T) {
	t.Parallel()

	cases := map[string][2]string{
		"elections":  {"Go out and VOTE tomorrow", ""},
		"corruption": {"Another scandal in the capital", "Philippines"},
		"Manila":     {"Nothing matches here", "Manila"},
		GeneralTopic: {"Nothing matches here", "  "},
	}
	for want, in := range cases {
		if got := ExtractTopic(in[0], in[1]); got != want {
			t.Fatalf("ExtractTopic(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
