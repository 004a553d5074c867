package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/menuboard/internal/model"
)

// ListTiers возвращает тарифы арендатора, включая неактивные.
func (r *PostgresRepository) ListTiers(ctx context.Context, tenantID uuid.UUID) ([]model.BasePricing, error) {
	var res []model.BasePricing
	err := r.withRetry(ctx, func() error {
		res = nil
		rows, err := r.pool.Query(ctx,
			`SELECT id, tenant_id, category, weight_or_quantity, base_price::text, is_active
			 FROM base_pricing
			 WHERE tenant_id = $1
			 ORDER BY category, base_price`,
			tenantID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				t     model.BasePricing
				price string
			)
			if err := rows.Scan(&t.ID, &t.TenantID, &t.Category, &t.WeightOrQuantity, &price, &t.IsActive); err != nil {
				return fmt.Errorf("scan tier: %w", err)
			}
			if t.BasePrice, err = parseDecimal(price); err != nil {
				return err
			}
			res = append(res, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return res, nil
}

// CreateTier создаёт тариф и возвращает его идентификатор.
func (r *PostgresRepository) CreateTier(ctx context.Context, t model.BasePricing) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO base_pricing (tenant_id, category, weight_or_quantity, base_price, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		t.TenantID, t.Category, t.WeightOrQuantity, t.BasePrice.String(), t.IsActive,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, fmt.Errorf("%w: %s %s", ErrTierExists, t.Category, t.WeightOrQuantity)
		}
		return uuid.Nil, fmt.Errorf("create tier: %w", err)
	}
	return id, nil
}

// UpdateTier обновляет тариф арендатора.
func (r *PostgresRepository) UpdateTier(ctx context.Context, t model.BasePricing) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE base_pricing
		 SET category = $3, weight_or_quantity = $4, base_price = $5, is_active = $6
		 WHERE id = $1 AND tenant_id = $2`,
		t.ID, t.TenantID, t.Category, t.WeightOrQuantity, t.BasePrice.String(), t.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s %s", ErrTierExists, t.Category, t.WeightOrQuantity)
		}
		return fmt.Errorf("update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTier удаляет тариф арендатора.
func (r *PostgresRepository) DeleteTier(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "base_pricing", tenantID, id)
}

const ruleColumns = `id, tenant_id, name, category, type, value::text, start_time, end_time,
	days_of_week, priority, is_active, valid_from, valid_until`

// ListRules возвращает промо-правила арендатора в порядке создания.
func (r *PostgresRepository) ListRules(ctx context.Context, tenantID uuid.UUID) ([]model.PricingRule, error) {
	var res []model.PricingRule
	err := r.withRetry(ctx, func() error {
		res = nil
		rows, err := r.pool.Query(ctx,
			`SELECT `+ruleColumns+`
			 FROM pricing_rules
			 WHERE tenant_id = $1
			 ORDER BY created_at, id`,
			tenantID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rule, err := scanRule(rows)
			if err != nil {
				return err
			}
			res = append(res, rule)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return res, nil
}

func scanRule(row pgx.Row) (model.PricingRule, error) {
	var (
		rule      model.PricingRule
		ruleType  string
		value     string
		startTime *string
		endTime   *string
		days      []int32
		validFrom *time.Time
		validTo   *time.Time
	)
	err := row.Scan(&rule.ID, &rule.TenantID, &rule.Name, &rule.Category, &ruleType, &value,
		&startTime, &endTime, &days, &rule.Priority, &rule.IsActive, &validFrom, &validTo)
	if err != nil {
		return rule, fmt.Errorf("scan rule: %w", err)
	}

	rule.Type = model.RuleType(ruleType)
	if rule.Value, err = parseDecimal(value); err != nil {
		return rule, err
	}
	if startTime != nil || endTime != nil {
		rule.Conditions.TimeRestrictions = &model.TimeRestriction{
			StartTime: deref(startTime),
			EndTime:   deref(endTime),
		}
	}
	for _, d := range days {
		rule.Conditions.DaysOfWeek = append(rule.Conditions.DaysOfWeek, int(d))
	}
	rule.ValidFrom = validFrom
	rule.ValidUntil = validTo

	return rule, nil
}

func ruleArgs(rule model.PricingRule) []any {
	var startTime, endTime *string
	if tr := rule.Conditions.TimeRestrictions; tr != nil {
		startTime = &tr.StartTime
		endTime = &tr.EndTime
	}
	days := make([]int32, 0, len(rule.Conditions.DaysOfWeek))
	for _, d := range rule.Conditions.DaysOfWeek {
		days = append(days, int32(d))
	}
	return []any{
		rule.TenantID, rule.Name, rule.Category, string(rule.Type), rule.Value.String(),
		startTime, endTime, days, rule.Priority, rule.IsActive, rule.ValidFrom, rule.ValidUntil,
	}
}

// CreateRule создаёт промо-правило и возвращает его идентификатор.
func (r *PostgresRepository) CreateRule(ctx context.Context, rule model.PricingRule) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO pricing_rules
		 (tenant_id, name, category, type, value, start_time, end_time, days_of_week, priority, is_active, valid_from, valid_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		ruleArgs(rule)...,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create rule: %w", err)
	}
	return id, nil
}

// UpdateRule обновляет промо-правило арендатора.
func (r *PostgresRepository) UpdateRule(ctx context.Context, rule model.PricingRule) error {
	args := append(ruleArgs(rule), rule.ID)
	tag, err := r.pool.Exec(ctx,
		`UPDATE pricing_rules
		 SET name = $2, category = $3, type = $4, value = $5, start_time = $6, end_time = $7,
		     days_of_week = $8, priority = $9, is_active = $10, valid_from = $11, valid_until = $12
		 WHERE tenant_id = $1 AND id = $13`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRule удаляет промо-правило арендатора.
func (r *PostgresRepository) DeleteRule(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.deleteScoped(ctx, "pricing_rules", tenantID, id)
}

// deleteScoped удаляет запись таблицы table; имя таблицы задаётся только из кода репозитория.
func (r *PostgresRepository) deleteScoped(ctx context.Context, table string, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM `+table+` WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
