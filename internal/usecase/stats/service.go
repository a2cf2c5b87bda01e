package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tg-autoreply-userbot/internal/domain"
)

// Service собирает отчёты по отправленным автоответам. Чистая читающая
// сторона: суммирование и форматирование, без бизнес-логики.
type Service struct {
	analytics domain.AnalyticsRepo
	loc       *time.Location
	now       func() time.Time
}

// NewService создаёт сервис статистики.
func NewService(analytics domain.AnalyticsRepo, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{analytics: analytics, loc: loc, now: time.Now}
}

// Today возвращает отчёт за текущий локальный день.
func (s *Service) Today(ctx context.Context, ownerID int64) (string, error) {
	date := s.now().In(s.loc).Format("2006-01-02")
	summary, err := s.analytics.DaySummary(ctx, ownerID, date)
	if err != nil {
		return "", fmt.Errorf("статистика за день: %w", err)
	}
	if summary.Messages == 0 {
		return fmt.Sprintf("📊 Статистика за %s\n\nСегодня автоответов не было.", date), nil
	}
	top, err := s.analytics.TopSender(ctx, ownerID, date)
	if err != nil {
		return "", fmt.Errorf("самый активный отправитель: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Статистика за %s\n\n", date)
	fmt.Fprintf(&b, "Отправлено автоответов: %d\n", summary.Messages)
	fmt.Fprintf(&b, "Уникальных собеседников: %d\n", summary.UniqueSenders)
	if top.Count > 0 {
		fmt.Fprintf(&b, "Чаще всего писал: id%d (%d)", top.SenderID, top.Count)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Week возвращает разбивку за последние 7 локальных дней, включая сегодня.
func (s *Service) Week(ctx context.Context, ownerID int64) (string, error) {
	today := s.now().In(s.loc)
	from := today.AddDate(0, 0, -6).Format("2006-01-02")
	to := today.Format("2006-01-02")

	days, total, err := s.analytics.RangeSummary(ctx, ownerID, from, to)
	if err != nil {
		return "", fmt.Errorf("статистика за неделю: %w", err)
	}
	if total == 0 {
		return fmt.Sprintf("📈 Статистика за неделю (%s — %s)\n\nАвтоответов не было.", from, to), nil
	}

	byDate := make(map[string]domain.DaySummary, len(days))
	for _, day := range days {
		byDate[day.Date] = day
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📈 Статистика за неделю (%s — %s)\n\n", from, to)
	for i := 0; i < 7; i++ {
		date := today.AddDate(0, 0, i-6).Format("2006-01-02")
		day := byDate[date]
		fmt.Fprintf(&b, "%s: %d\n", date, day.Messages)
	}
	fmt.Fprintf(&b, "\nВсего: %d", total)
	return b.String(), nil
}
