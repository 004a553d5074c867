package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/menuboard/internal/model"
)

// ApplyRules применяет правила к базовой цене в порядке убывания приоритета.
// Правила с равным приоритетом применяются в порядке входного списка.
// Итоговая цена не бывает отрицательной, промежуточные значения не ограничиваются.
func (e *Engine) ApplyRules(basePrice decimal.Decimal, applicableRules []model.PricingRule) model.Evaluation {
	sorted := make([]model.PricingRule, len(applicableRules))
	copy(sorted, applicableRules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	if e.opts.ExclusiveSpecial {
		for _, r := range sorted {
			if r.Type == model.RuleTypeSpecial {
				return model.Evaluation{
					FinalPrice:    floorZero(r.Value),
					TotalDiscount: basePrice.Sub(r.Value),
					AppliedRules:  []model.PricingRule{r},
				}
			}
		}
	}

	current := basePrice
	total := decimal.Zero
	applied := make([]model.PricingRule, 0, len(sorted))

	for _, r := range sorted {
		var delta decimal.Decimal

		switch r.Type {
		case model.RuleTypePercentageDiscount:
			delta = percentOf(current, r.Value)
			current = current.Sub(delta)
		case model.RuleTypeFixedDiscount:
			delta = decimal.Min(r.Value, current)
			current = current.Sub(delta)
		case model.RuleTypeSpecial:
			// Скидка special считается от исходной цены, а не от текущей.
			delta = basePrice.Sub(r.Value)
			current = r.Value
		case model.RuleTypeBundle:
			if !r.Value.LessThan(current) {
				continue
			}
			delta = current.Sub(r.Value)
			current = r.Value
		default:
			continue
		}

		applied = append(applied, r)
		total = total.Add(delta)
	}

	return model.Evaluation{
		FinalPrice:    floorZero(current),
		TotalDiscount: total,
		AppliedRules:  applied,
	}
}
