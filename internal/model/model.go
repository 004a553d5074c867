// Package model содержит доменные сущности сервиса меню-бордов.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryAll: категория правила, применимого ко всем категориям тарифов.
const CategoryAll = "all"

// Tenant описывает диспансер, которому принадлежат каталог и правила.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"createdAt"`
}

// BasePricing описывает тариф каталога: категорию, фасовку и базовую цену.
type BasePricing struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenantId"`
	Category         string          `json:"category"`
	WeightOrQuantity string          `json:"weightOrQuantity"`
	BasePrice        decimal.Decimal `json:"basePrice"`
	IsActive         bool            `json:"isActive"`
}

// RuleType описывает вид промо-правила.
type RuleType string

const (
	RuleTypePercentageDiscount RuleType = "percentage_discount"
	RuleTypeFixedDiscount      RuleType = "fixed_discount"
	RuleTypeBundle             RuleType = "bundle"
	RuleTypeSpecial            RuleType = "special"
)

// Valid сообщает, является ли тип правила известным.
func (t RuleType) Valid() bool {
	switch t {
	case RuleTypePercentageDiscount, RuleTypeFixedDiscount, RuleTypeBundle, RuleTypeSpecial:
		return true
	}
	return false
}

// TimeRestriction задаёт окно времени суток в формате "HH:MM".
type TimeRestriction struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// RuleConditions содержит необязательные условия применения правила.
type RuleConditions struct {
	TimeRestrictions *TimeRestriction `json:"timeRestrictions,omitempty"`
	// DaysOfWeek в нумерации time.Weekday (0: воскресенье).
	DaysOfWeek []int `json:"daysOfWeek,omitempty"`
}

// PricingRule описывает промо-правило, изменяющее цену тарифа.
type PricingRule struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenantId"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Type       RuleType        `json:"type"`
	Value      decimal.Decimal `json:"value"`
	Conditions RuleConditions  `json:"conditions"`
	Priority   int             `json:"priority"`
	IsActive   bool            `json:"isActive"`
	ValidFrom  *time.Time      `json:"validFrom,omitempty"`
	ValidUntil *time.Time      `json:"validUntil,omitempty"`
}

// AppliesToCategory сообщает, относится ли правило к указанной категории.
func (r PricingRule) AppliesToCategory(category string) bool {
	return r.Category == category || r.Category == CategoryAll
}

// Evaluation: результат применения правил к базовой цене.
type Evaluation struct {
	FinalPrice    decimal.Decimal `json:"finalPrice"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	AppliedRules  []PricingRule   `json:"appliedRules"`
}

// TierPrice связывает тариф с вычисленной для него ценой.
type TierPrice struct {
	Tier BasePricing `json:"tier"`
	Evaluation
}

// Menu: снимок вычисленных цен всех активных тарифов на момент EvaluatedAt.
type Menu struct {
	TenantID    uuid.UUID   `json:"tenantId"`
	EvaluatedAt time.Time   `json:"evaluatedAt"`
	Prices      []TierPrice `json:"prices"`
}

// Product описывает товар каталога с собственной ценой.
type Product struct {
	ID       uuid.UUID       `json:"id"`
	TenantID uuid.UUID       `json:"tenantId"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	IsActive bool            `json:"isActive"`
	InStock  bool            `json:"inStock"`
}

// BundleKind описывает способ задания состава набора.
type BundleKind string

const (
	BundleKindSpecificProducts BundleKind = "specific_products"
	BundleKindCategory         BundleKind = "category"
)

// BundleItem: конкретный товар набора с выбранной фасовкой или количеством.
type BundleItem struct {
	ProductID uuid.UUID `json:"productId"`
	Weight    string    `json:"weight,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
}

// CategoryRequirement: требование "любые N товаров категории".
type CategoryRequirement struct {
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
	Weight   string `json:"weight,omitempty"`
}

// Bundle описывает набор товаров с собственной ценой.
type Bundle struct {
	ID           uuid.UUID             `json:"id"`
	TenantID     uuid.UUID             `json:"tenantId"`
	Name         string                `json:"name"`
	Kind         BundleKind            `json:"kind"`
	BundlePrice  decimal.Decimal       `json:"bundlePrice"`
	IsActive     bool                  `json:"isActive"`
	Items        []BundleItem          `json:"items,omitempty"`
	Requirements []CategoryRequirement `json:"requirements,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// BundleQuote: вычисленная стоимость набора для витрины.
type BundleQuote struct {
	OriginalPrice      decimal.Decimal `json:"originalPrice"`
	BundlePrice        decimal.Decimal `json:"bundlePrice"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	// MissingProducts: товары набора, для которых не нашлось цены.
	MissingProducts []uuid.UUID `json:"missingProducts,omitempty"`
}
