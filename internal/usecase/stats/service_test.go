package stats

import (
	"context"
	"strings"
	"testing"
	"time"

	"tg-autoreply-userbot/internal/domain"
)

type stubAnalytics struct {
	day   domain.DaySummary
	top   domain.SenderCount
	days  []domain.DaySummary
	total int
}

func (s *stubAnalytics) AppendReplyEvent(context.Context, domain.ReplyEvent) error { return nil }
func (s *stubAnalytics) DaySummary(context.Context, int64, string) (domain.DaySummary, error) {
	return s.day, nil
}
func (s *stubAnalytics) TopSender(context.Context, int64, string) (domain.SenderCount, error) {
	return s.top, nil
}
func (s *stubAnalytics) RangeSummary(context.Context, int64, string, string) ([]domain.DaySummary, int, error) {
	return s.days, s.total, nil
}

func fixedService(analytics *stubAnalytics) *Service {
	service := NewService(analytics, time.UTC)
	service.now = func() time.Time {
		return time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	}
	return service
}

func TestTodayEmpty(t *testing.T) {
	service := fixedService(&stubAnalytics{})
	report, err := service.Today(context.Background(), 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(report, "2026-08-29") {
		t.Fatalf("отчёт должен содержать дату: %q", report)
	}
	if !strings.Contains(report, "не было") {
		t.Fatalf("пустой день должен быть явно отмечен: %q", report)
	}
}

func TestTodayWithTraffic(t *testing.T) {
	service := fixedService(&stubAnalytics{
		day: domain.DaySummary{Date: "2026-08-29", Messages: 5, UniqueSenders: 3},
		top: domain.SenderCount{SenderID: 777, Count: 3},
	})
	report, err := service.Today(context.Background(), 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, want := range []string{"Отправлено автоответов: 5", "Уникальных собеседников: 3", "id777"} {
		if !strings.Contains(report, want) {
			t.Fatalf("в отчёте нет %q: %q", want, report)
		}
	}
}

func TestWeekFillsMissingDays(t *testing.T) {
	service := fixedService(&stubAnalytics{
		days: []domain.DaySummary{
			{Date: "2026-08-27", Messages: 2},
			{Date: "2026-08-29", Messages: 1},
		},
		total: 3,
	})
	report, err := service.Week(context.Background(), 42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(report, "2026-08-23: 0") {
		t.Fatalf("дни без трафика должны показываться нулём: %q", report)
	}
	if !strings.Contains(report, "2026-08-27: 2") || !strings.Contains(report, "2026-08-29: 1") {
		t.Fatalf("дни с трафиком не попали в отчёт: %q", report)
	}
	if !strings.Contains(report, "Всего: 3") {
		t.Fatalf("нет итоговой суммы: %q", report)
	}
}
