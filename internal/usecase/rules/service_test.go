package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tg-autoreply-userbot/internal/domain"
)

type stubRuleRepo struct {
	rules []domain.TimeRule
}

func (s *stubRuleRepo) AddRule(_ context.Context, rule domain.TimeRule) error {
	s.rules = append(s.rules, rule)
	return nil
}

func (s *stubRuleRepo) GetRule(_ context.Context, ownerID int64, ruleID string) (domain.TimeRule, error) {
	for _, rule := range s.rules {
		if rule.OwnerID == ownerID && rule.ID == ruleID {
			return rule, nil
		}
	}
	return domain.TimeRule{}, domain.ErrNotFound
}

func (s *stubRuleRepo) ListRules(_ context.Context, ownerID int64) ([]domain.TimeRule, error) {
	var out []domain.TimeRule
	for _, rule := range s.rules {
		if rule.OwnerID == ownerID {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *stubRuleRepo) ListRulesByCategory(_ context.Context, ownerID int64, category string) ([]domain.TimeRule, error) {
	var out []domain.TimeRule
	for _, rule := range s.rules {
		if rule.OwnerID == ownerID && rule.Category == category {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (s *stubRuleRepo) UpdateRuleWindow(_ context.Context, ownerID int64, ruleID string, startMinute, endMinute int) error {
	for i, rule := range s.rules {
		if rule.OwnerID == ownerID && rule.ID == ruleID {
			s.rules[i].StartMinute = startMinute
			s.rules[i].EndMinute = endMinute
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *stubRuleRepo) DeleteRule(_ context.Context, ownerID int64, ruleID string) error {
	for i, rule := range s.rules {
		if rule.OwnerID == ownerID && rule.ID == ruleID {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *stubRuleRepo) DeleteRulesByCategory(_ context.Context, ownerID int64, category string) (int64, error) {
	var kept []domain.TimeRule
	var removed int64
	for _, rule := range s.rules {
		if rule.OwnerID == ownerID && rule.Category == category {
			removed++
			continue
		}
		kept = append(kept, rule)
	}
	s.rules = kept
	return removed, nil
}

func (s *stubRuleRepo) DeleteAllRules(_ context.Context, ownerID int64) (int64, error) {
	var kept []domain.TimeRule
	var removed int64
	for _, rule := range s.rules {
		if rule.OwnerID == ownerID {
			removed++
			continue
		}
		kept = append(kept, rule)
	}
	s.rules = kept
	return removed, nil
}

func TestParseTimeRange(t *testing.T) {
	cases := []struct {
		input      string
		start, end int
		wantErr    bool
	}{
		{input: "09:00-17:30", start: 540, end: 1050},
		{input: " 9:00 – 17:30 ", start: 540, end: 1050},
		{input: "22:00—06:00", start: 1320, end: 360},
		{input: "0:00-0:00", start: 0, end: 0},
		{input: "9:00", wantErr: true},
		{input: "24:00-01:00", wantErr: true},
		{input: "09:60-10:00", wantErr: true},
		{input: "ab:cd-10:00", wantErr: true},
	}
	for _, tc := range cases {
		start, end, err := ParseTimeRange(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ожидали ошибку для %q", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", tc.input, err)
		}
		if start != tc.start || end != tc.end {
			t.Fatalf("для %q ожидали %d-%d, получили %d-%d", tc.input, tc.start, tc.end, start, end)
		}
	}
}

func TestRuleContains(t *testing.T) {
	day := domain.TimeRule{StartMinute: 540, EndMinute: 1050}
	if !day.Contains(540) {
		t.Fatalf("начало окна должно входить в правило")
	}
	if day.Contains(1050) {
		t.Fatalf("конец окна не должен входить в правило")
	}
	night := domain.TimeRule{StartMinute: 1320, EndMinute: 360}
	if !night.Contains(1380) || !night.Contains(0) || !night.Contains(359) {
		t.Fatalf("ночное правило должно покрывать переход через полночь")
	}
	if night.Contains(360) || night.Contains(720) {
		t.Fatalf("ночное правило не должно действовать днём")
	}
	always := domain.TimeRule{StartMinute: 300, EndMinute: 300}
	if !always.Contains(0) || !always.Contains(1439) {
		t.Fatalf("правило с совпадающими границами должно действовать всегда")
	}
}

func TestResolvePrefersEarliestCreated(t *testing.T) {
	list := []domain.TimeRule{
		{ID: "first", StartMinute: 540, EndMinute: 1050, Category: "work"},
		{ID: "second", StartMinute: 600, EndMinute: 660, Category: "meetings"},
	}
	rule, ok := Resolve(list, 630)
	if !ok {
		t.Fatalf("ожидали найденное правило")
	}
	if rule.ID != "first" {
		t.Fatalf("при пересечении должно побеждать правило, созданное раньше, получили %s", rule.ID)
	}
	if _, ok := Resolve(list, 1100); ok {
		t.Fatalf("вне окон правило находиться не должно")
	}
}

func TestAddRuleGeneratesID(t *testing.T) {
	repo := &stubRuleRepo{}
	service := NewService(repo)
	rule, err := service.AddRule(context.Background(), 42, "09:00-10:00", "work")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(rule.ID) < ShortIDLen {
		t.Fatalf("ожидали сгенерированный идентификатор")
	}
	if rule.CreatedAt.IsZero() {
		t.Fatalf("ожидали заполненное время создания")
	}
	if len(repo.rules) != 1 {
		t.Fatalf("правило должно быть сохранено")
	}
}

func TestFindRuleByPrefix(t *testing.T) {
	repo := &stubRuleRepo{rules: []domain.TimeRule{
		{ID: "aaaaaaaa-1111-4000-8000-000000000001", OwnerID: 42},
		{ID: "bbbbbbbb-2222-4000-8000-000000000002", OwnerID: 42},
	}}
	service := NewService(repo)

	rule, err := service.FindRule(context.Background(), 42, "aaaaaaaa")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.HasPrefix(rule.ID, "aaaaaaaa") {
		t.Fatalf("нашли не то правило: %s", rule.ID)
	}

	if _, err := service.FindRule(context.Background(), 42, "aaa"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("короткий префикс должен отклоняться, получили %v", err)
	}
	if _, err := service.FindRule(context.Background(), 42, "cccccccc"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("ожидали ErrRuleNotFound, получили %v", err)
	}
	if _, err := service.FindRule(context.Background(), 7, "aaaaaaaa"); !errors.Is(err, ErrRuleNotFound) {
		t.Fatalf("чужое правило находиться не должно, получили %v", err)
	}
}

func TestFindRuleAmbiguousPrefix(t *testing.T) {
	repo := &stubRuleRepo{rules: []domain.TimeRule{
		{ID: "aaaaaaaa-1111-4000-8000-000000000001", OwnerID: 42},
		{ID: "aaaaaaaa-2222-4000-8000-000000000002", OwnerID: 42},
	}}
	service := NewService(repo)
	if _, err := service.FindRule(context.Background(), 42, "aaaaaaaa"); !errors.Is(err, ErrAmbiguousRuleID) {
		t.Fatalf("ожидали ErrAmbiguousRuleID, получили %v", err)
	}
}

func TestDeleteCategoryReportsMissing(t *testing.T) {
	repo := &stubRuleRepo{rules: []domain.TimeRule{
		{ID: "a", OwnerID: 42, Category: "work", CreatedAt: time.Now()},
	}}
	service := NewService(repo)
	count, err := service.DeleteCategory(context.Background(), 42, "work")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if count != 1 {
		t.Fatalf("ожидали 1 удалённое правило, получили %d", count)
	}
	if _, err := service.DeleteCategory(context.Background(), 42, "work"); !errors.Is(err, ErrCategoryNotFound) {
		t.Fatalf("ожидали ErrCategoryNotFound, получили %v", err)
	}
}

func TestUpdateWindow(t *testing.T) {
	repo := &stubRuleRepo{rules: []domain.TimeRule{
		{ID: "aaaaaaaa-1111-4000-8000-000000000001", OwnerID: 42, StartMinute: 0, EndMinute: 60},
	}}
	service := NewService(repo)
	rule, err := service.UpdateWindow(context.Background(), 42, "aaaaaaaa", "10:00-11:00")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if rule.StartMinute != 600 || rule.EndMinute != 660 {
		t.Fatalf("окно не обновилось: %d-%d", rule.StartMinute, rule.EndMinute)
	}
	if repo.rules[0].StartMinute != 600 {
		t.Fatalf("изменение должно дойти до хранилища")
	}
}

func TestFormatWindow(t *testing.T) {
	if got := FormatWindow(domain.TimeRule{StartMinute: 540, EndMinute: 1050}); got != "09:00-17:30" {
		t.Fatalf("ожидали 09:00-17:30, получили %s", got)
	}
	if got := FormatWindow(domain.TimeRule{StartMinute: 300, EndMinute: 300}); got != "круглосуточно" {
		t.Fatalf("ожидали круглосуточно, получили %s", got)
	}
}
