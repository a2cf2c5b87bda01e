package rules

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tg-autoreply-userbot/internal/domain"
)

var (
	ErrRangeInvalid     = errors.New("некорректный интервал времени")
	ErrRuleNotFound     = errors.New("правило не найдено")
	ErrAmbiguousRuleID  = errors.New("идентификатор совпадает с несколькими правилами")
	ErrCategoryNotFound = errors.New("правил для этой категории нет")
)

// ShortIDLen — сколько символов идентификатора показывается пользователю
// и принимается обратно как префикс.
const ShortIDLen = 8

// ParseTimeRange разбирает интервал вида "HH:MM-HH:MM". Помимо дефиса
// принимаются короткое и длинное тире, которые подставляют мобильные
// клавиатуры. Возвращает границы в минутах от полуночи; конец интервала
// не включается.
func ParseTimeRange(input string) (startMinute, endMinute int, err error) {
	trim := strings.TrimSpace(input)
	var parts []string
	for _, sep := range []string{"-", "–", "—"} {
		if strings.Contains(trim, sep) {
			parts = strings.SplitN(trim, sep, 2)
			break
		}
	}
	if len(parts) != 2 {
		return 0, 0, ErrRangeInvalid
	}
	startMinute, err = parseClock(parts[0])
	if err != nil {
		return 0, 0, err
	}
	endMinute, err = parseClock(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return startMinute, endMinute, nil
}

func parseClock(input string) (int, error) {
	trim := strings.TrimSpace(input)
	sep := strings.IndexByte(trim, ':')
	if sep < 0 {
		return 0, ErrRangeInvalid
	}
	hour, err := strconv.Atoi(trim[:sep])
	if err != nil || hour < 0 || hour > 23 {
		return 0, ErrRangeInvalid
	}
	minute, err := strconv.Atoi(trim[sep+1:])
	if err != nil || minute < 0 || minute > 59 {
		return 0, ErrRangeInvalid
	}
	return hour*60 + minute, nil
}

// FormatMinute печатает минуту дня как "HH:MM".
func FormatMinute(minute int) string {
	minute = ((minute % domain.MinutesPerDay) + domain.MinutesPerDay) % domain.MinutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// FormatWindow печатает окно правила. Совпадающие границы означают
// круглосуточное правило.
func FormatWindow(rule domain.TimeRule) string {
	if rule.StartMinute == rule.EndMinute {
		return "круглосуточно"
	}
	return FormatMinute(rule.StartMinute) + "-" + FormatMinute(rule.EndMinute)
}

// Resolve выбирает правило, действующее в указанную минуту дня. Срез
// должен быть отсортирован по времени создания: при пересечении окон
// побеждает правило, созданное раньше.
func Resolve(list []domain.TimeRule, minute int) (domain.TimeRule, bool) {
	for _, rule := range list {
		if rule.Contains(minute) {
			return rule, true
		}
	}
	return domain.TimeRule{}, false
}

// Service управляет временными правилами владельца.
type Service struct {
	repo domain.RuleRepo
	now  func() time.Time
}

// NewService создаёт новый сервис правил.
func NewService(repo domain.RuleRepo) *Service {
	return &Service{repo: repo, now: time.Now}
}

// AddRule создаёт правило для категории в заданном окне.
func (s *Service) AddRule(ctx context.Context, ownerID int64, rangeInput, category string) (domain.TimeRule, error) {
	start, end, err := ParseTimeRange(rangeInput)
	if err != nil {
		return domain.TimeRule{}, err
	}
	rule := domain.TimeRule{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		StartMinute: start,
		EndMinute:   end,
		Category:    category,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.AddRule(ctx, rule); err != nil {
		return domain.TimeRule{}, fmt.Errorf("сохранение правила: %w", err)
	}
	return rule, nil
}

// ListRules возвращает правила владельца в порядке создания.
func (s *Service) ListRules(ctx context.Context, ownerID int64) ([]domain.TimeRule, error) {
	return s.repo.ListRules(ctx, ownerID)
}

// ListByCategory возвращает правила одной категории в порядке создания.
func (s *Service) ListByCategory(ctx context.Context, ownerID int64, category string) ([]domain.TimeRule, error) {
	return s.repo.ListRulesByCategory(ctx, ownerID, category)
}

// FindRule ищет правило по полному идентификатору или по префиксу не
// короче ShortIDLen символов. Префикс, совпавший с несколькими
// правилами, считается ошибкой.
func (s *Service) FindRule(ctx context.Context, ownerID int64, idInput string) (domain.TimeRule, error) {
	prefix := strings.ToLower(strings.TrimSpace(idInput))
	if len(prefix) < ShortIDLen {
		return domain.TimeRule{}, ErrRuleNotFound
	}
	rule, err := s.repo.GetRule(ctx, ownerID, prefix)
	if err == nil {
		return rule, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.TimeRule{}, fmt.Errorf("поиск правила: %w", err)
	}
	list, err := s.repo.ListRules(ctx, ownerID)
	if err != nil {
		return domain.TimeRule{}, fmt.Errorf("получение правил: %w", err)
	}
	var found []domain.TimeRule
	for _, candidate := range list {
		if strings.HasPrefix(candidate.ID, prefix) {
			found = append(found, candidate)
		}
	}
	switch len(found) {
	case 0:
		return domain.TimeRule{}, ErrRuleNotFound
	case 1:
		return found[0], nil
	default:
		return domain.TimeRule{}, ErrAmbiguousRuleID
	}
}

// UpdateWindow меняет окно существующего правила.
func (s *Service) UpdateWindow(ctx context.Context, ownerID int64, idInput, rangeInput string) (domain.TimeRule, error) {
	rule, err := s.FindRule(ctx, ownerID, idInput)
	if err != nil {
		return domain.TimeRule{}, err
	}
	start, end, err := ParseTimeRange(rangeInput)
	if err != nil {
		return domain.TimeRule{}, err
	}
	if err := s.repo.UpdateRuleWindow(ctx, ownerID, rule.ID, start, end); err != nil {
		return domain.TimeRule{}, fmt.Errorf("обновление правила: %w", err)
	}
	rule.StartMinute = start
	rule.EndMinute = end
	return rule, nil
}

// DeleteRule удаляет одно правило по идентификатору или префиксу.
func (s *Service) DeleteRule(ctx context.Context, ownerID int64, idInput string) (domain.TimeRule, error) {
	rule, err := s.FindRule(ctx, ownerID, idInput)
	if err != nil {
		return domain.TimeRule{}, err
	}
	if err := s.repo.DeleteRule(ctx, ownerID, rule.ID); err != nil {
		return domain.TimeRule{}, fmt.Errorf("удаление правила: %w", err)
	}
	return rule, nil
}

// DeleteCategory удаляет все правила категории и возвращает количество.
func (s *Service) DeleteCategory(ctx context.Context, ownerID int64, category string) (int64, error) {
	count, err := s.repo.DeleteRulesByCategory(ctx, ownerID, category)
	if err != nil {
		return 0, fmt.Errorf("удаление правил категории: %w", err)
	}
	if count == 0 {
		return 0, ErrCategoryNotFound
	}
	return count, nil
}

// DeleteAll удаляет все правила владельца и возвращает количество.
func (s *Service) DeleteAll(ctx context.Context, ownerID int64) (int64, error) {
	count, err := s.repo.DeleteAllRules(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("удаление всех правил: %w", err)
	}
	return count, nil
}
