package repo

import (
	"context"
	"errors"
	"time"

	"github.com/gotd/td/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-autoreply-userbot/internal/domain"
	"tg-autoreply-userbot/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.RuleRepo         = (*Postgres)(nil)
	_ domain.StateRepo        = (*Postgres)(nil)
	_ domain.ConfirmationRepo = (*Postgres)(nil)
	_ domain.AnalyticsRepo    = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// EnsureSchema создаёт таблицы, если их ещё нет. Вызывается на старте,
// идемпотентна.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS time_rules (
			id UUID PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			start_minute INT NOT NULL,
			end_minute INT NOT NULL,
			category TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS time_rules_owner_idx ON time_rules (owner_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS bot_state (
			owner_id BIGINT PRIMARY KEY,
			auto_reply_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			custom_rules_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			default_message TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS temp_state (
			owner_id BIGINT PRIMARY KEY,
			temp_category TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			saved_rules_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS pending_confirmations (
			owner_id BIGINT PRIMARY KEY,
			action TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS reply_events (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL,
			sender_id BIGINT NOT NULL,
			sent_at TIMESTAMPTZ NOT NULL,
			message TEXT NOT NULL,
			local_date TEXT NOT NULL,
			local_time TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS reply_events_owner_date_idx ON reply_events (owner_id, local_date)`,
		`CREATE TABLE IF NOT EXISTS mtproto_sessions (
			name TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		start := time.Now()
		_, err := p.pool.Exec(ctx, stmt)
		metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

// AddRule реализует domain.RuleRepo.
func (p *Postgres) AddRule(ctx context.Context, rule domain.TimeRule) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO time_rules (id, owner_id, start_minute, end_minute, category, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, rule.ID, rule.OwnerID, rule.StartMinute, rule.EndMinute, rule.Category, rule.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "time_rules_insert", "time_rules", start, err)
	return err
}

// GetRule возвращает правило по полному идентификатору.
func (p *Postgres) GetRule(ctx context.Context, ownerID int64, ruleID string) (domain.TimeRule, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var rule domain.TimeRule
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, owner_id, start_minute, end_minute, category, created_at
FROM time_rules WHERE owner_id = $1 AND id::text = $2
`, ownerID, ruleID).Scan(&rule.ID, &rule.OwnerID, &rule.StartMinute, &rule.EndMinute, &rule.Category, &rule.CreatedAt)
	metrics.ObserveNetworkRequest("postgres", "time_rules_get", "time_rules", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TimeRule{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TimeRule{}, err
	}
	return rule, nil
}

// ListRules возвращает правила владельца в порядке создания.
func (p *Postgres) ListRules(ctx context.Context, ownerID int64) ([]domain.TimeRule, error) {
	return p.listRules(ctx, `
SELECT id, owner_id, start_minute, end_minute, category, created_at
FROM time_rules WHERE owner_id = $1
ORDER BY created_at, id
`, ownerID)
}

// ListRulesByCategory возвращает правила категории в порядке создания.
func (p *Postgres) ListRulesByCategory(ctx context.Context, ownerID int64, category string) ([]domain.TimeRule, error) {
	return p.listRules(ctx, `
SELECT id, owner_id, start_minute, end_minute, category, created_at
FROM time_rules WHERE owner_id = $1 AND category = $2
ORDER BY created_at, id
`, ownerID, category)
}

func (p *Postgres) listRules(ctx context.Context, query string, args ...any) ([]domain.TimeRule, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	metrics.ObserveNetworkRequest("postgres", "time_rules_list", "time_rules", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.TimeRule
	for rows.Next() {
		var rule domain.TimeRule
		if err := rows.Scan(&rule.ID, &rule.OwnerID, &rule.StartMinute, &rule.EndMinute, &rule.Category, &rule.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rule)
	}
	return list, rows.Err()
}

// UpdateRuleWindow меняет окно правила.
func (p *Postgres) UpdateRuleWindow(ctx context.Context, ownerID int64, ruleID string, startMinute, endMinute int) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE time_rules SET start_minute = $3, end_minute = $4
WHERE owner_id = $1 AND id::text = $2
`, ownerID, ruleID, startMinute, endMinute)
	metrics.ObserveNetworkRequest("postgres", "time_rules_update", "time_rules", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteRule удаляет одно правило.
func (p *Postgres) DeleteRule(ctx context.Context, ownerID int64, ruleID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM time_rules WHERE owner_id = $1 AND id::text = $2`, ownerID, ruleID)
	metrics.ObserveNetworkRequest("postgres", "time_rules_delete", "time_rules", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteRulesByCategory удаляет правила категории, возвращает количество.
func (p *Postgres) DeleteRulesByCategory(ctx context.Context, ownerID int64, category string) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM time_rules WHERE owner_id = $1 AND category = $2`, ownerID, category)
	metrics.ObserveNetworkRequest("postgres", "time_rules_delete_category", "time_rules", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAllRules удаляет все правила владельца, возвращает количество.
func (p *Postgres) DeleteAllRules(ctx context.Context, ownerID int64) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM time_rules WHERE owner_id = $1`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "time_rules_delete_all", "time_rules", start, err)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetBotState возвращает состояние владельца, создавая запись с
// выключенным автоответом при первом обращении.
func (p *Postgres) GetBotState(ctx context.Context, ownerID int64) (domain.BotState, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	state := domain.BotState{OwnerID: ownerID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO bot_state (owner_id) VALUES ($1)
ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
RETURNING auto_reply_enabled, custom_rules_enabled, default_message
`, ownerID).Scan(&state.AutoReplyEnabled, &state.CustomRulesEnabled, &state.DefaultMessage)
	metrics.ObserveNetworkRequest("postgres", "bot_state_get", "bot_state", start, err)
	if err != nil {
		return domain.BotState{}, err
	}
	return state, nil
}

// SaveBotState сохраняет состояние владельца.
func (p *Postgres) SaveBotState(ctx context.Context, state domain.BotState) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO bot_state (owner_id, auto_reply_enabled, custom_rules_enabled, default_message, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (owner_id) DO UPDATE SET
	auto_reply_enabled = EXCLUDED.auto_reply_enabled,
	custom_rules_enabled = EXCLUDED.custom_rules_enabled,
	default_message = EXCLUDED.default_message,
	updated_at = now()
`, state.OwnerID, state.AutoReplyEnabled, state.CustomRulesEnabled, state.DefaultMessage)
	metrics.ObserveNetworkRequest("postgres", "bot_state_save", "bot_state", start, err)
	return err
}

// GetTempState возвращает временный режим владельца.
func (p *Postgres) GetTempState(ctx context.Context, ownerID int64) (domain.TempState, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	temp := domain.TempState{OwnerID: ownerID}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT temp_category, is_active, saved_rules_enabled
FROM temp_state WHERE owner_id = $1
`, ownerID).Scan(&temp.Category, &temp.Active, &temp.SavedRulesEnabled)
	metrics.ObserveNetworkRequest("postgres", "temp_state_get", "temp_state", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TempState{OwnerID: ownerID}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TempState{}, err
	}
	return temp, nil
}

// SaveTempState сохраняет временный режим владельца.
func (p *Postgres) SaveTempState(ctx context.Context, temp domain.TempState) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO temp_state (owner_id, temp_category, is_active, saved_rules_enabled, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (owner_id) DO UPDATE SET
	temp_category = EXCLUDED.temp_category,
	is_active = EXCLUDED.is_active,
	saved_rules_enabled = EXCLUDED.saved_rules_enabled,
	updated_at = now()
`, temp.OwnerID, temp.Category, temp.Active, temp.SavedRulesEnabled)
	metrics.ObserveNetworkRequest("postgres", "temp_state_save", "temp_state", start, err)
	return err
}

// SetPending сохраняет подтверждение, затирая прежнее.
func (p *Postgres) SetPending(ctx context.Context, pending domain.PendingConfirmation) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO pending_confirmations (owner_id, action, category, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (owner_id) DO UPDATE SET
	action = EXCLUDED.action,
	category = EXCLUDED.category,
	created_at = EXCLUDED.created_at,
	expires_at = EXCLUDED.expires_at
`, pending.OwnerID, string(pending.Action), pending.Category, pending.CreatedAt, pending.ExpiresAt)
	metrics.ObserveNetworkRequest("postgres", "confirmations_set", "pending_confirmations", start, err)
	return err
}

// GetPending возвращает подтверждение владельца.
func (p *Postgres) GetPending(ctx context.Context, ownerID int64) (domain.PendingConfirmation, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	pending := domain.PendingConfirmation{OwnerID: ownerID}
	var action string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT action, category, created_at, expires_at
FROM pending_confirmations WHERE owner_id = $1
`, ownerID).Scan(&action, &pending.Category, &pending.CreatedAt, &pending.ExpiresAt)
	metrics.ObserveNetworkRequest("postgres", "confirmations_get", "pending_confirmations", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PendingConfirmation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PendingConfirmation{}, err
	}
	pending.Action = domain.ConfirmAction(action)
	return pending, nil
}

// ClearPending удаляет подтверждение владельца.
func (p *Postgres) ClearPending(ctx context.Context, ownerID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `DELETE FROM pending_confirmations WHERE owner_id = $1`, ownerID)
	metrics.ObserveNetworkRequest("postgres", "confirmations_clear", "pending_confirmations", start, err)
	return err
}

// AppendReplyEvent пишет событие аналитики. События никогда не мутируются.
func (p *Postgres) AppendReplyEvent(ctx context.Context, event domain.ReplyEvent) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO reply_events (owner_id, sender_id, sent_at, message, local_date, local_time)
VALUES ($1, $2, $3, $4, $5, $6)
`, event.OwnerID, event.SenderID, event.SentAt, event.Message, event.LocalDate, event.LocalTime)
	metrics.ObserveNetworkRequest("postgres", "reply_events_insert", "reply_events", start, err)
	return err
}

// DaySummary агрегирует события за локальную дату.
func (p *Postgres) DaySummary(ctx context.Context, ownerID int64, date string) (domain.DaySummary, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	summary := domain.DaySummary{Date: date}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT COUNT(*), COUNT(DISTINCT sender_id)
FROM reply_events WHERE owner_id = $1 AND local_date = $2
`, ownerID, date).Scan(&summary.Messages, &summary.UniqueSenders)
	metrics.ObserveNetworkRequest("postgres", "reply_events_day", "reply_events", start, err)
	if err != nil {
		return domain.DaySummary{}, err
	}
	return summary, nil
}

// TopSender возвращает отправителя с наибольшим числом ответов за дату.
// Отсутствие трафика не является ошибкой.
func (p *Postgres) TopSender(ctx context.Context, ownerID int64, date string) (domain.SenderCount, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var top domain.SenderCount
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT sender_id, COUNT(*) AS cnt
FROM reply_events WHERE owner_id = $1 AND local_date = $2
GROUP BY sender_id ORDER BY cnt DESC, sender_id LIMIT 1
`, ownerID, date).Scan(&top.SenderID, &top.Count)
	metrics.ObserveNetworkRequest("postgres", "reply_events_top_sender", "reply_events", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SenderCount{}, nil
	}
	if err != nil {
		return domain.SenderCount{}, err
	}
	return top, nil
}

// RangeSummary агрегирует события по дням в интервале локальных дат
// включительно и возвращает вместе с общей суммой.
func (p *Postgres) RangeSummary(ctx context.Context, ownerID int64, fromDate, toDate string) ([]domain.DaySummary, int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT local_date, COUNT(*), COUNT(DISTINCT sender_id)
FROM reply_events
WHERE owner_id = $1 AND local_date BETWEEN $2 AND $3
GROUP BY local_date ORDER BY local_date
`, ownerID, fromDate, toDate)
	metrics.ObserveNetworkRequest("postgres", "reply_events_range", "reply_events", start, err)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var days []domain.DaySummary
	var total int
	for rows.Next() {
		var day domain.DaySummary
		if err := rows.Scan(&day.Date, &day.Messages, &day.UniqueSenders); err != nil {
			return nil, 0, err
		}
		days = append(days, day)
		total += day.Messages
	}
	return days, total, rows.Err()
}

// LoadMTProtoSession загружает сохранённую MTProto-сессию.
func (p *Postgres) LoadMTProtoSession(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if name == "" {
		name = "default"
	}

	var data []byte
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT data FROM mtproto_sessions WHERE name = $1`, name).Scan(&data)
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_load", "mtproto_sessions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	clone := make([]byte, len(data))
	copy(clone, data)
	return clone, nil
}

// StoreMTProtoSession сохраняет MTProto-сессию.
func (p *Postgres) StoreMTProtoSession(ctx context.Context, name string, data []byte) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if name == "" {
		name = "default"
	}

	tmp := make([]byte, len(data))
	copy(tmp, data)

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO mtproto_sessions (name, data, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()
`, name, tmp)
	metrics.ObserveNetworkRequest("postgres", "mtproto_sessions_store", "mtproto_sessions", start, err)
	return err
}
