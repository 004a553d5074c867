package validation

import (
	"strings"

	"github.com/mmeshcher/menuboard/internal/model"
)

const centsMessage = "must have at most 2 decimal places"

// Rule проверяет промо-правило перед сохранением.
func Rule(r model.PricingRule) error {
	fields := map[string]string{}

	if strings.TrimSpace(r.Name) == "" {
		fields["name"] = "is required"
	}
	if strings.TrimSpace(r.Category) == "" {
		fields["category"] = "is required"
	}
	if !r.Type.Valid() {
		fields["type"] = "is invalid"
	}
	if r.Value.IsNegative() {
		fields["value"] = "must be at least 0"
	} else if !IsCents(r.Value) {
		fields["value"] = centsMessage
	}

	if tr := r.Conditions.TimeRestrictions; tr != nil {
		if !IsClock(tr.StartTime) {
			fields["conditions.timeRestrictions.startTime"] = "must be a 24-hour HH:MM time"
		}
		if !IsClock(tr.EndTime) {
			fields["conditions.timeRestrictions.endTime"] = "must be a 24-hour HH:MM time"
		}
	}
	for _, day := range r.Conditions.DaysOfWeek {
		if day < 0 || day > 6 {
			fields["conditions.daysOfWeek"] = "must contain days 0-6"
			break
		}
	}

	if r.ValidFrom != nil && r.ValidUntil != nil && r.ValidUntil.Before(*r.ValidFrom) {
		fields["validUntil"] = "must not be before validFrom"
	}

	return fieldsError(fields)
}

// Tier проверяет тариф каталога.
func Tier(t model.BasePricing) error {
	fields := map[string]string{}

	if strings.TrimSpace(t.Category) == "" {
		fields["category"] = "is required"
	}
	if strings.TrimSpace(t.WeightOrQuantity) == "" {
		fields["weightOrQuantity"] = "is required"
	}
	if t.BasePrice.IsNegative() {
		fields["basePrice"] = "must be at least 0"
	} else if !IsCents(t.BasePrice) {
		fields["basePrice"] = centsMessage
	}

	return fieldsError(fields)
}

// Bundle проверяет состав набора в соответствии с его видом.
func Bundle(b model.Bundle) error {
	fields := map[string]string{}

	if strings.TrimSpace(b.Name) == "" {
		fields["name"] = "is required"
	}
	if b.BundlePrice.IsNegative() {
		fields["bundlePrice"] = "must be at least 0"
	} else if !IsCents(b.BundlePrice) {
		fields["bundlePrice"] = centsMessage
	}

	switch b.Kind {
	case model.BundleKindSpecificProducts:
		if len(b.Items) == 0 {
			fields["items"] = "is required"
		}
	case model.BundleKindCategory:
		if len(b.Requirements) == 0 {
			fields["requirements"] = "is required"
		}
		for _, req := range b.Requirements {
			if req.Quantity < 1 {
				fields["requirements.quantity"] = "must be at least 1"
				break
			}
		}
	default:
		fields["kind"] = "is invalid"
	}

	return fieldsError(fields)
}

func fieldsError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &Error{Fields: fields}
}
