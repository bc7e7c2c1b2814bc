// Package billing рассчитывает строки, суммы и скидку счёта.
// Единственный ввод-вывод пакета — чтение цен из ProductCatalog.
package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

// Engine считает счёт по ценам каталога.
type Engine struct {
	catalog domain.ProductCatalog
}

// NewEngine создаёт движок расчёта поверх каталога товаров.
func NewEngine(catalog domain.ProductCatalog) *Engine {
	return &Engine{catalog: catalog}
}

// PriceLineItems превращает запросы позиций в строки счёта с зафиксированной ценой.
// Повторяющиеся товары сливаются в одну строку с суммарным количеством,
// порядок строк соответствует первому появлению товара.
func (e *Engine) PriceLineItems(ctx context.Context, items []domain.LineItemRequest) ([]domain.BillDetail, error) {
	if len(items) == 0 {
		return nil, domain.ErrItemsRequired
	}

	merged := make([]domain.LineItemRequest, 0, len(items))
	index := make(map[string]int, len(items))
	for i, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("item[%d]: %w: product_id is empty", i, domain.ErrInvalidProduct)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d] %s: %w (got %d)", i, productID, domain.ErrInvalidQuantity, item.Quantity)
		}

		if pos, ok := index[productID]; ok {
			qty := int64(merged[pos].Quantity) + int64(item.Quantity)
			if qty > math.MaxInt32 {
				return nil, fmt.Errorf("item[%d] %s: %w", i, productID, domain.ErrAmountOverflow)
			}
			merged[pos].Quantity = int32(qty)
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, domain.LineItemRequest{ProductID: productID, Quantity: item.Quantity})
	}

	details := make([]domain.BillDetail, 0, len(merged))
	for _, item := range merged {
		detail, err := e.priceLine(ctx, item)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

func (e *Engine) priceLine(ctx context.Context, item domain.LineItemRequest) (domain.BillDetail, error) {
	if item.Quantity <= 0 {
		return domain.BillDetail{}, fmt.Errorf("%s: %w (got %d)", item.ProductID, domain.ErrInvalidQuantity, item.Quantity)
	}

	price, err := e.catalog.GetPrice(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.BillDetail{}, fmt.Errorf("%w: unknown product %q", domain.ErrInvalidProduct, item.ProductID)
		}
		return domain.BillDetail{}, fmt.Errorf("get price for %s: %w", item.ProductID, err)
	}
	if price < 0 {
		return domain.BillDetail{}, fmt.Errorf("%s: %w", item.ProductID, domain.ErrItemPriceInvalid)
	}

	total, err := domain.MulAmount(price, item.Quantity)
	if err != nil {
		return domain.BillDetail{}, fmt.Errorf("line total for %s: %w", item.ProductID, err)
	}

	return domain.BillDetail{
		ProductID:      item.ProductID,
		Quantity:       item.Quantity,
		UnitPriceMinor: price,
		TotalMinor:     total,
	}, nil
}

// ComputeOrderTotal суммирует строки точно, в минорных единицах.
func (e *Engine) ComputeOrderTotal(details []domain.BillDetail) (int64, error) {
	var sum int64
	for _, d := range details {
		next, err := domain.AddAmount(sum, d.TotalMinor)
		if err != nil {
			return 0, fmt.Errorf("bill total: %w", err)
		}
		sum = next
	}
	return sum, nil
}

// ApplyDiscount возвращает сумму после скидки. Скидка не может быть
// отрицательной или больше исходной суммы: такие значения отклоняются.
func (e *Engine) ApplyDiscount(original, discount int64) (int64, error) {
	if discount < 0 {
		return 0, fmt.Errorf("%w: discount %s is negative", domain.ErrInvalidDiscount, domain.FormatAmount(discount))
	}
	if discount > original {
		return 0, fmt.Errorf("%w: discount %s exceeds original price %s",
			domain.ErrInvalidDiscount, domain.FormatAmount(discount), domain.FormatAmount(original))
	}
	return original - discount, nil
}

// PriceBill рассчитывает строки по items и заполняет суммы счёта.
// Идентификатор проставляется во все строки.
func (e *Engine) PriceBill(ctx context.Context, bill domain.Bill, items []domain.LineItemRequest) (domain.Bill, error) {
	details, err := e.PriceLineItems(ctx, items)
	if err != nil {
		return domain.Bill{}, err
	}
	bill.Details = details
	return e.Totalize(bill)
}

// AddLine добавляет позицию в уже рассчитанный счёт. Если товар уже есть,
// количество увеличивается, а цена строки берётся заново из каталога.
// Остальные строки сохраняют свои цены.
func (e *Engine) AddLine(ctx context.Context, bill domain.Bill, item domain.LineItemRequest) (domain.Bill, error) {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return domain.Bill{}, fmt.Errorf("%w: product_id is empty", domain.ErrInvalidProduct)
	}
	if item.Quantity <= 0 {
		return domain.Bill{}, fmt.Errorf("%s: %w (got %d)", item.ProductID, domain.ErrInvalidQuantity, item.Quantity)
	}

	bill = bill.Clone()
	pos := -1
	for i, d := range bill.Details {
		if d.ProductID == item.ProductID {
			pos = i
			break
		}
	}
	if pos >= 0 {
		qty := int64(bill.Details[pos].Quantity) + int64(item.Quantity)
		if qty > math.MaxInt32 {
			return domain.Bill{}, fmt.Errorf("%s: %w", item.ProductID, domain.ErrAmountOverflow)
		}
		item.Quantity = int32(qty)
	}

	detail, err := e.priceLine(ctx, item)
	if err != nil {
		return domain.Bill{}, err
	}
	if pos >= 0 {
		bill.Details[pos] = detail
	} else {
		bill.Details = append(bill.Details, detail)
	}
	return e.Totalize(bill)
}

// RemoveLine убирает строку товара. Последнюю строку удалить нельзя.
func (e *Engine) RemoveLine(bill domain.Bill, productID string) (domain.Bill, error) {
	bill = bill.Clone()
	pos := -1
	for i, d := range bill.Details {
		if d.ProductID == productID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return domain.Bill{}, fmt.Errorf("%w: product %q is not in bill %s", domain.ErrDetailNotFound, productID, bill.ID)
	}
	if len(bill.Details) == 1 {
		return domain.Bill{}, domain.ErrItemsRequired
	}
	bill.Details = append(bill.Details[:pos], bill.Details[pos+1:]...)
	return e.Totalize(bill)
}

// Totalize пересчитывает суммы счёта из его строк и проверяет инварианты.
// Строки копируются: срез вызывающего не меняется.
func (e *Engine) Totalize(bill domain.Bill) (domain.Bill, error) {
	if len(bill.Details) == 0 {
		return domain.Bill{}, domain.ErrItemsRequired
	}
	details := make([]domain.BillDetail, len(bill.Details))
	copy(details, bill.Details)
	for i := range details {
		details[i].BillID = bill.ID
	}
	bill.Details = details

	original, err := e.ComputeOrderTotal(bill.Details)
	if err != nil {
		return domain.Bill{}, err
	}
	discounted, err := e.ApplyDiscount(original, bill.DiscountMinor)
	if err != nil {
		return domain.Bill{}, err
	}
	bill.OriginalMinor = original
	bill.DiscountedTotalMinor = discounted

	if err := e.VerifyTotals(bill); err != nil {
		return domain.Bill{}, err
	}
	return bill, nil
}

// VerifyTotals проверяет инварианты рассчитанного счёта перед сохранением.
func (e *Engine) VerifyTotals(bill domain.Bill) error {
	if errs := bill.ValidateInvariants(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
