package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("not a cron spec", nil, discard())
	if err := s.Start(context.Background(), func(time.Time) {}); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop after failed start: %v", err)
	}
}

func TestStartFiresJob(t *testing.T) {
	t.Parallel()

	fired := make(chan time.Time, 1)
	s := NewCronScheduler("@every 1s", time.UTC, discard())
	if err := s.Start(context.Background(), func(at time.Time) {
		select {
		case fired <- at:
		default:
		}
	}); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case at := <-fired:
		if at.Location() != time.UTC {
			t.Fatalf("location = %v", at.Location())
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
