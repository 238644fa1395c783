package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

var errStore = errors.New("store unavailable")

type memoryStore struct {
	mu       sync.Mutex
	posts    []domain.Post
	analyses map[string]domain.Analysis
	events   []domain.HealthEvent

	failListAnalyzed    bool
	failBulkInsert      bool
	failInsertFor       map[string]bool
	failExisting        bool
	failInsertPostsCall map[int]bool
	failDeleteAnalyses  map[int]bool
	failAppendEvent     bool
	failStats           bool

	insertPostsCalls    int
	deleteAnalysesCalls int
}

var _ ports.RecordStore = (*memoryStore)(nil)

func newMemoryStore(posts ...domain.Post) *memoryStore {
	return &memoryStore{posts: posts, analyses: map[string]domain.Analysis{}}
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) ListRecentPosts(_ context.Context, limit int) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]domain.Post(nil), m.posts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.After(sorted[j].CreatedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (m *memoryStore) ListPostsByCreation(context.Context) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sorted := append([]domain.Post(nil), m.posts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	return sorted, nil
}

func (m *memoryStore) ExistingContents(_ context.Context, contents []string) (map[string]struct{}, error) {
	if m.failExisting {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[string]bool{}
	for _, c := range contents {
		wanted[c] = true
	}
	out := map[string]struct{}{}
	for _, p := range m.posts {
		if wanted[p.Content] {
			out[p.Content] = struct{}{}
		}
	}
	return out, nil
}

func (m *memoryStore) InsertPosts(_ context.Context, posts []domain.Post) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertPostsCalls++
	if m.failInsertPostsCall[m.insertPostsCalls] {
		return 0, errStore
	}
	m.posts = append(m.posts, posts...)
	return len(posts), nil
}

func (m *memoryStore) DeletePostsByIDs(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.posts[:0]
	removed := 0
	for _, p := range m.posts {
		if drop[p.ID] {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	m.posts = kept
	return removed, nil
}

func (m *memoryStore) ListPosts(_ context.Context, filter domain.PostFilter) ([]domain.PostView, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var views []domain.PostView
	for _, p := range m.posts {
		if filter.Source != "" && string(p.Source) != filter.Source {
			continue
		}
		views = append(views, domain.PostView{Post: p})
	}
	total := len(views)
	end := min(filter.Offset+filter.Limit, len(views))
	if filter.Offset >= len(views) {
		return nil, total, nil
	}
	return views[filter.Offset:end], total, nil
}

func (m *memoryStore) ListAnalyzedIDs(context.Context) (map[string]struct{}, error) {
	if m.failListAnalyzed {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[string]struct{}{}
	for id := range m.analyses {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memoryStore) InsertAnalyses(_ context.Context, batch []domain.Analysis) (int, error) {
	if m.failBulkInsert {
		return 0, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range batch {
		m.analyses[a.PostID] = a
	}
	return len(batch), nil
}

func (m *memoryStore) InsertAnalysis(_ context.Context, a domain.Analysis) error {
	if m.failInsertFor[a.PostID] {
		return fmt.Errorf("insert %s: %w", a.PostID, errStore)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[a.PostID] = a
	return nil
}

func (m *memoryStore) DeleteAnalysesByPostIDs(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteAnalysesCalls++
	if m.failDeleteAnalyses[m.deleteAnalysesCalls] {
		return errStore
	}
	for _, id := range ids {
		delete(m.analyses, id)
	}
	return nil
}

func (m *memoryStore) AppendHealthEvent(_ context.Context, ev domain.HealthEvent) error {
	if m.failAppendEvent {
		return errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memoryStore) AggregateStats(context.Context) (*domain.SystemStats, error) {
	if m.failStats {
		return nil, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.SystemStats{TotalPosts: len(m.posts), TotalAnalyzed: len(m.analyses)}, nil
}

func (m *memoryStore) ListRecentHealthEvents(_ context.Context, limit int) ([]domain.HealthEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.HealthEvent, 0, limit)
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}

func (m *memoryStore) SentimentDistribution(context.Context) ([]domain.SentimentCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[domain.Sentiment]int{}
	for _, a := range m.analyses {
		counts[a.Sentiment]++
	}
	var out []domain.SentimentCount
	for _, s := range []domain.Sentiment{domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral} {
		if counts[s] > 0 {
			out = append(out, domain.SentimentCount{Sentiment: s, Count: counts[s]})
		}
	}
	return out, nil
}

func (m *memoryStore) GetPost(_ context.Context, id string) (domain.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.ID != id {
			continue
		}
		view := domain.PostView{Post: p}
		if a, ok := m.analyses[id]; ok {
			view.Analysis = &a
		}
		return view, nil
	}
	return domain.PostView{}, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
}

func (m *memoryStore) TopicCounts(_ context.Context, sample int) (domain.TopicTally, error) {
	if m.failStats {
		return domain.TopicTally{}, errStore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tally := domain.TopicTally{Topics: map[string]int{}, Keywords: map[string]int{}}
	for _, p := range m.posts {
		a, ok := m.analyses[p.ID]
		if !ok || sample <= 0 {
			continue
		}
		sample--
		if p.Topic != "" {
			tally.Topics[p.Topic]++
		}
		for _, kw := range a.Topics {
			tally.Keywords[kw]++
		}
	}
	return tally, nil
}

func (m *memoryStore) SentimentTimeline(_ context.Context, since time.Time) ([]domain.DailySentiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDay := map[string]*domain.DailySentiment{}
	sums := map[string]float64{}
	for _, p := range m.posts {
		a, ok := m.analyses[p.ID]
		if !ok || p.CreatedAt.Before(since) {
			continue
		}
		day := p.CreatedAt.UTC().Format(time.DateOnly)
		entry := byDay[day]
		if entry == nil {
			entry = &domain.DailySentiment{Date: day}
			byDay[day] = entry
		}
		switch a.Sentiment {
		case domain.SentimentPositive:
			entry.Positive++
		case domain.SentimentNegative:
			entry.Negative++
		default:
			entry.Neutral++
		}
		entry.Total++
		sums[day] += a.Score
	}
	out := make([]domain.DailySentiment, 0, len(byDay))
	for day, entry := range byDay {
		entry.AvgScore = sums[day] / float64(entry.Total)
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *memoryStore) eventsNamed(name string) []domain.HealthEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.HealthEvent
	for _, ev := range m.events {
		if ev.MetricName == name {
			out = append(out, ev)
		}
	}
	return out
}

type stubClassifier struct {
	mu     sync.Mutex
	failOn map[string]error
	texts  []string
}

func (s *stubClassifier) Classify(_ context.Context, text string) (domain.Classification, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if err := s.failOn[text]; err != nil {
		return domain.Classification{}, err
	}
	return domain.Classification{Sentiment: domain.SentimentNeutral, Summary: "summary of " + text}, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, digest)
	return n.err
}

func noSleep(context.Context, time.Duration) error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func post(id, content string, created time.Time) domain.Post {
	return domain.Post{ID: id, Source: domain.SourceReddit, Content: content, CreatedAt: created}
}
