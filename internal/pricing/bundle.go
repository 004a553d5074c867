package pricing

import (
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/menuboard/internal/model"
)

// Selection: выбранная в наборе фасовка или количество товара.
// На исходную цену набора не влияет.
type Selection struct {
	Weight   string
	Quantity int
}

// SpecificBundlePrice: результат расчёта набора из конкретных товаров.
type SpecificBundlePrice struct {
	OriginalPrice decimal.Decimal
	// Missing: выбранные товары без цены, отсортированы по идентификатору.
	Missing []uuid.UUID
}

// DeriveSpecificBundle суммирует цены всех выбранных товаров.
// Товары без цены дают нулевой вклад и попадают в Missing.
func DeriveSpecificBundle(productPrices map[uuid.UUID]decimal.Decimal, selections map[uuid.UUID]Selection) SpecificBundlePrice {
	res := SpecificBundlePrice{OriginalPrice: decimal.Zero}
	for id := range selections {
		price, ok := productPrices[id]
		if !ok {
			res.Missing = append(res.Missing, id)
			continue
		}
		res.OriginalPrice = res.OriginalPrice.Add(price)
	}
	slices.SortFunc(res.Missing, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	return res
}

// DeriveCategoryBundle суммирует quantity × средняя цена по каждой требуемой категории.
// Категория без средней цены даёт нулевой вклад.
func DeriveCategoryBundle(categoryAveragePrice map[string]decimal.Decimal, requirements map[string]int) decimal.Decimal {
	total := decimal.Zero
	for category, quantity := range requirements {
		avg, ok := categoryAveragePrice[category]
		if !ok {
			continue
		}
		total = total.Add(avg.Mul(decimal.NewFromInt(int64(quantity))))
	}
	return total
}

// CategoryAverages вычисляет среднюю цену по категориям среди активных товаров
// в наличии с положительной ценой.
func CategoryAverages(products []model.Product) map[string]decimal.Decimal {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int64)
	for _, p := range products {
		if !p.IsActive || !p.InStock || !p.Price.IsPositive() {
			continue
		}
		sums[p.Category] = sums[p.Category].Add(p.Price)
		counts[p.Category]++
	}

	avg := make(map[string]decimal.Decimal, len(sums))
	for category, sum := range sums {
		avg[category] = sum.Div(decimal.NewFromInt(counts[category]))
	}
	return avg
}

// ProductPrices строит таблицу цен активных товаров по идентификатору.
func ProductPrices(products []model.Product) map[uuid.UUID]decimal.Decimal {
	prices := make(map[uuid.UUID]decimal.Decimal, len(products))
	for _, p := range products {
		if !p.IsActive {
			continue
		}
		prices[p.ID] = p.Price
	}
	return prices
}

// QuoteBundle вычисляет исходную цену, цену набора и процент скидки.
func QuoteBundle(b model.Bundle, products []model.Product) model.BundleQuote {
	quote := model.BundleQuote{BundlePrice: b.BundlePrice}

	switch b.Kind {
	case model.BundleKindCategory:
		requirements := make(map[string]int, len(b.Requirements))
		for _, req := range b.Requirements {
			requirements[req.Category] += req.Quantity
		}
		quote.OriginalPrice = DeriveCategoryBundle(CategoryAverages(products), requirements)
	default:
		selections := make(map[uuid.UUID]Selection, len(b.Items))
		for _, item := range b.Items {
			selections[item.ProductID] = Selection{Weight: item.Weight, Quantity: item.Quantity}
		}
		derived := DeriveSpecificBundle(ProductPrices(products), selections)
		quote.OriginalPrice = derived.OriginalPrice
		quote.MissingProducts = derived.Missing
	}

	quote.DiscountPercentage = DiscountPercentage(quote.OriginalPrice, quote.BundlePrice)
	return quote
}
