package pricing

import (
	"slices"
	"time"

	"github.com/mmeshcher/menuboard/internal/model"
)

const clockLayout = "15:04"

// SelectApplicableRules возвращает правила, применимые к категории тарифа в момент now.
// Порядок входного списка сохраняется.
func (e *Engine) SelectApplicableRules(rules []model.PricingRule, tierCategory string, now time.Time) []model.PricingRule {
	res := make([]model.PricingRule, 0, len(rules))
	for _, r := range rules {
		if e.applicable(r, tierCategory, now) {
			res = append(res, r)
		}
	}
	return res
}

func (e *Engine) applicable(r model.PricingRule, tierCategory string, now time.Time) bool {
	if !r.IsActive {
		return false
	}
	if !r.AppliesToCategory(tierCategory) {
		return false
	}
	if !e.withinTimeWindow(r.Conditions.TimeRestrictions, now) {
		return false
	}
	if e.opts.EnforceWeekdays && len(r.Conditions.DaysOfWeek) > 0 {
		if !slices.Contains(r.Conditions.DaysOfWeek, int(now.Weekday())) {
			return false
		}
	}
	if !e.opts.IgnoreValidity && !withinValidity(r, now) {
		return false
	}
	return true
}

// withinTimeWindow сравнивает "HH:MM" строк лексикографически, обе границы включительно.
func (e *Engine) withinTimeWindow(tr *model.TimeRestriction, now time.Time) bool {
	if tr == nil || tr.StartTime == "" || tr.EndTime == "" {
		return true
	}

	clock := now.Format(clockLayout)
	if tr.StartTime <= tr.EndTime {
		return clock >= tr.StartTime && clock <= tr.EndTime
	}
	if !e.opts.WrapMidnight {
		return false
	}
	return clock >= tr.StartTime || clock <= tr.EndTime
}

func withinValidity(r model.PricingRule, now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}
