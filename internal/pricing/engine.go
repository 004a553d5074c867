// Package pricing вычисляет отображаемые цены тарифов с учётом промо-правил
// и стоимость наборов. Все функции пакета чистые: время вычисления передаёт вызывающий.
package pricing

import (
	"time"

	"github.com/mmeshcher/menuboard/internal/model"
)

// Options переключает спорные места семантики правил.
// Нулевое значение соответствует поведению по умолчанию.
type Options struct {
	// WrapMidnight включает окна, пересекающие полночь (start > end).
	// По умолчанию такие окна не совпадают ни с каким временем.
	WrapMidnight bool
	// IgnoreValidity отключает проверку ValidFrom/ValidUntil в фильтре.
	IgnoreValidity bool
	// EnforceWeekdays включает проверку DaysOfWeek.
	EnforceWeekdays bool
	// ExclusiveSpecial делает первое special-правило единственным применённым.
	ExclusiveSpecial bool
}

// Engine применяет промо-правила к тарифам каталога.
type Engine struct {
	opts Options
}

// NewEngine создаёт движок с указанными опциями.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// EvaluateTier выбирает применимые к тарифу правила и применяет их к базовой цене.
func (e *Engine) EvaluateTier(tier model.BasePricing, rules []model.PricingRule, now time.Time) model.TierPrice {
	applicable := e.SelectApplicableRules(rules, tier.Category, now)
	return model.TierPrice{
		Tier:       tier,
		Evaluation: e.ApplyRules(tier.BasePrice, applicable),
	}
}

// EvaluateMenu вычисляет цены всех активных тарифов на один и тот же момент now.
func (e *Engine) EvaluateMenu(tiers []model.BasePricing, rules []model.PricingRule, now time.Time) []model.TierPrice {
	prices := make([]model.TierPrice, 0, len(tiers))
	for _, tier := range tiers {
		if !tier.IsActive {
			continue
		}
		prices = append(prices, e.EvaluateTier(tier, rules, now))
	}
	return prices
}
