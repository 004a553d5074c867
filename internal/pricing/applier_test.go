package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/menuboard/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func rule(name string, typ model.RuleType, value string, priority int) model.PricingRule {
	return model.PricingRule{
		Name:     name,
		Category: "flower",
		Type:     typ,
		Value:    dec(value),
		Priority: priority,
		IsActive: true,
	}
}

func ruleNames(rules []model.PricingRule) []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	return names
}

func TestApplyRules(t *testing.T) {
	type want struct {
		finalPrice    string
		totalDiscount string
		applied       []string
	}

	tests := []struct {
		name  string
		base  string
		rules []model.PricingRule
		want  want
	}{
		{
			name:  "no rules",
			base:  "42.50",
			rules: nil,
			want:  want{finalPrice: "42.50", totalDiscount: "0", applied: []string{}},
		},
		{
			name:  "percentage discount",
			base:  "100",
			rules: []model.PricingRule{rule("20off", model.RuleTypePercentageDiscount, "20", 1)},
			want:  want{finalPrice: "80", totalDiscount: "20", applied: []string{"20off"}},
		},
		{
			name: "higher priority applies first",
			base: "100",
			rules: []model.PricingRule{
				rule("20off", model.RuleTypePercentageDiscount, "20", 1),
				rule("10fixed", model.RuleTypeFixedDiscount, "10", 2),
			},
			want: want{finalPrice: "72", totalDiscount: "28", applied: []string{"10fixed", "20off"}},
		},
		{
			name:  "fixed discount capped at running price",
			base:  "5",
			rules: []model.PricingRule{rule("100fixed", model.RuleTypeFixedDiscount, "100", 1)},
			want:  want{finalPrice: "0", totalDiscount: "5", applied: []string{"100fixed"}},
		},
		{
			name: "bundle rule skipped when not beneficial",
			base: "50",
			rules: []model.PricingRule{
				rule("10fixed", model.RuleTypeFixedDiscount, "10", 2),
				rule("bundle50", model.RuleTypeBundle, "50", 1),
			},
			want: want{finalPrice: "40", totalDiscount: "10", applied: []string{"10fixed"}},
		},
		{
			name:  "bundle rule applied when cheaper",
			base:  "60",
			rules: []model.PricingRule{rule("bundle45", model.RuleTypeBundle, "45", 1)},
			want:  want{finalPrice: "45", totalDiscount: "15", applied: []string{"bundle45"}},
		},
		{
			name:  "special overrides price",
			base:  "60",
			rules: []model.PricingRule{rule("special", model.RuleTypeSpecial, "35", 1)},
			want:  want{finalPrice: "35", totalDiscount: "25", applied: []string{"special"}},
		},
		{
			name: "special discount counted against base price",
			base: "100",
			rules: []model.PricingRule{
				rule("10fixed", model.RuleTypeFixedDiscount, "10", 2),
				rule("special", model.RuleTypeSpecial, "70", 1),
			},
			// 10 от фиксированной скидки плюс 30 от special при итоговой разнице 30.
			want: want{finalPrice: "70", totalDiscount: "40", applied: []string{"10fixed", "special"}},
		},
		{
			name: "equal priorities keep input order",
			base: "100",
			rules: []model.PricingRule{
				rule("special", model.RuleTypeSpecial, "50", 1),
				rule("10pct", model.RuleTypePercentageDiscount, "10", 1),
			},
			want: want{finalPrice: "45", totalDiscount: "55", applied: []string{"special", "10pct"}},
		},
		{
			name: "percentage above 100 floors at zero",
			base: "20",
			rules: []model.PricingRule{
				rule("150pct", model.RuleTypePercentageDiscount, "150", 1),
			},
			want: want{finalPrice: "0", totalDiscount: "30", applied: []string{"150pct"}},
		},
		{
			name:  "unknown type ignored",
			base:  "20",
			rules: []model.PricingRule{rule("odd", model.RuleType("mystery"), "5", 1)},
			want:  want{finalPrice: "20", totalDiscount: "0", applied: []string{}},
		},
	}

	engine := NewEngine(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.ApplyRules(dec(tt.base), tt.rules)

			assertDecimal(t, tt.want.finalPrice, got.FinalPrice, "final price")
			assertDecimal(t, tt.want.totalDiscount, got.TotalDiscount, "total discount")
			assert.Equal(t, tt.want.applied, ruleNames(got.AppliedRules))
		})
	}
}

func TestApplyRules_DoesNotReorderInput(t *testing.T) {
	rules := []model.PricingRule{
		rule("low", model.RuleTypePercentageDiscount, "10", 1),
		rule("high", model.RuleTypeFixedDiscount, "5", 9),
	}

	NewEngine(Options{}).ApplyRules(dec("100"), rules)

	assert.Equal(t, []string{"low", "high"}, ruleNames(rules))
}

func TestApplyRules_ExclusiveSpecial(t *testing.T) {
	rules := []model.PricingRule{
		rule("10fixed", model.RuleTypeFixedDiscount, "10", 3),
		rule("special", model.RuleTypeSpecial, "70", 2),
		rule("20pct", model.RuleTypePercentageDiscount, "20", 1),
	}

	got := NewEngine(Options{ExclusiveSpecial: true}).ApplyRules(dec("100"), rules)

	assertDecimal(t, "70", got.FinalPrice)
	assertDecimal(t, "30", got.TotalDiscount)
	require.Len(t, got.AppliedRules, 1)
	assert.Equal(t, "special", got.AppliedRules[0].Name)
}

func TestApplyRules_ExclusiveSpecialWithoutSpecialFolds(t *testing.T) {
	rules := []model.PricingRule{
		rule("20pct", model.RuleTypePercentageDiscount, "20", 1),
	}

	got := NewEngine(Options{ExclusiveSpecial: true}).ApplyRules(dec("100"), rules)

	assertDecimal(t, "80", got.FinalPrice)
	assert.Equal(t, []string{"20pct"}, ruleNames(got.AppliedRules))
}
