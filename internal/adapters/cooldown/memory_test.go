package cooldown

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTrackerWindow(t *testing.T) {
	tracker := NewMemoryTracker(5 * time.Minute)
	ctx := context.Background()
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	suppress, err := tracker.ShouldSuppress(ctx, 1, 77, base)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if suppress {
		t.Fatalf("до первой отправки подавления быть не должно")
	}

	if err := tracker.RecordSent(ctx, 1, 77, base); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	suppress, _ = tracker.ShouldSuppress(ctx, 1, 77, base.Add(4*time.Minute))
	if !suppress {
		t.Fatalf("через 4 минуты отправитель ещё в кулдауне")
	}

	suppress, _ = tracker.ShouldSuppress(ctx, 1, 77, base.Add(5*time.Minute))
	if suppress {
		t.Fatalf("ровно через 5 минут окно должно закончиться")
	}
}

func TestMemoryTrackerIsolatesSenders(t *testing.T) {
	tracker := NewMemoryTracker(5 * time.Minute)
	ctx := context.Background()
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	if err := tracker.RecordSent(ctx, 1, 77, base); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	suppress, _ := tracker.ShouldSuppress(ctx, 1, 78, base.Add(time.Minute))
	if suppress {
		t.Fatalf("кулдаун одного отправителя не должен задевать другого")
	}
	suppress, _ = tracker.ShouldSuppress(ctx, 2, 77, base.Add(time.Minute))
	if suppress {
		t.Fatalf("кулдаун владельца не должен протекать между владельцами")
	}
}

func TestMemoryTrackerOverwritesOnResend(t *testing.T) {
	tracker := NewMemoryTracker(5 * time.Minute)
	ctx := context.Background()
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	if err := tracker.RecordSent(ctx, 1, 77, base); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := tracker.RecordSent(ctx, 1, 77, base.Add(10*time.Minute)); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	suppress, _ := tracker.ShouldSuppress(ctx, 1, 77, base.Add(14*time.Minute))
	if !suppress {
		t.Fatalf("окно должно отсчитываться от последней отправки")
	}
}
