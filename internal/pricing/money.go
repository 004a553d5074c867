package pricing

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

func floorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// roundHalfUp округляет до целого, половины округляются в сторону +∞.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}

// DiscountPercentage возвращает округлённый процент скидки набора относительно исходной цены.
// Для неположительной исходной цены возвращает 0.
func DiscountPercentage(originalPrice, bundlePrice decimal.Decimal) decimal.Decimal {
	if !originalPrice.IsPositive() {
		return decimal.Zero
	}
	return roundHalfUp(originalPrice.Sub(bundlePrice).Div(originalPrice).Mul(hundred))
}
