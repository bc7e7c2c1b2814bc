package domain

import "time"

const (
	// BillIDMaxLen ограничивает длину идентификатора счёта (колонка VARCHAR(50)).
	BillIDMaxLen = 50

	billNumberPrefix = "BILL_"
	billNumberLayout = "20060102_150405"
)

// LineItemRequest — позиция, которую передаёт вызывающий код до расчёта цены.
type LineItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// BillDetail представляет одну строку счёта.
type BillDetail struct {
	BillID    string
	ProductID string
	// Quantity — количество единиц товара, всегда > 0.
	Quantity int32
	// UnitPriceMinor — цена за единицу, зафиксированная в момент расчёта.
	UnitPriceMinor int64
	// TotalMinor = Quantity * UnitPriceMinor. Не пересчитывается при смене цены товара.
	TotalMinor int64
	// Product заполняется репозиторием при чтении.
	Product *Product
}

// Bill агрегирует шапку счёта и его строки.
type Bill struct {
	ID         string
	StaffID    string
	CustomerID string
	// DiscountMinor — фиксированная скидка в минорных единицах.
	DiscountMinor int64
	// OriginalMinor — сумма строк до скидки.
	OriginalMinor int64
	// DiscountedTotalMinor = OriginalMinor - DiscountMinor.
	DiscountedTotalMinor int64
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Details              []BillDetail

	Customer *Customer
	Staff    *Staff
}

// Number возвращает человекочитаемый номер счёта вида BILL_20240131_154500.
// Номер нужен только для отображения и не обязан быть уникальным.
func (b Bill) Number() string {
	return billNumberPrefix + b.CreatedAt.UTC().Format(billNumberLayout)
}

// Clone возвращает глубокую копию счёта.
func (b Bill) Clone() Bill {
	out := b
	if b.Details != nil {
		out.Details = make([]BillDetail, len(b.Details))
		for i, d := range b.Details {
			if d.Product != nil {
				p := *d.Product
				d.Product = &p
			}
			out.Details[i] = d
		}
	}
	if b.Customer != nil {
		c := *b.Customer
		out.Customer = &c
	}
	if b.Staff != nil {
		s := *b.Staff
		out.Staff = &s
	}
	return out
}

// Detail возвращает строку счёта по товару.
func (b Bill) Detail(productID string) (BillDetail, bool) {
	for _, d := range b.Details {
		if d.ProductID == productID {
			return d, true
		}
	}
	return BillDetail{}, false
}

// ValidateInvariants проверяет инварианты рассчитанного счёта и возвращает список замечаний.
func (b *Bill) ValidateInvariants() []error {
	var errs []error

	if b.StaffID == "" {
		errs = append(errs, ErrStaffRequired)
	}
	if b.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(b.Details) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	var (
		sum      int64
		overflow bool
		seen     = make(map[string]struct{}, len(b.Details))
	)
	for _, d := range b.Details {
		if _, dup := seen[d.ProductID]; dup {
			errs = append(errs, ErrDuplicateProduct)
		}
		seen[d.ProductID] = struct{}{}

		if d.Quantity <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if d.UnitPriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		line, err := MulAmount(d.UnitPriceMinor, d.Quantity)
		if err != nil || line != d.TotalMinor {
			errs = append(errs, ErrLineTotalMismatch)
		}
		if !overflow {
			if sum, err = AddAmount(sum, d.TotalMinor); err != nil {
				overflow = true
				errs = append(errs, ErrAmountOverflow)
			}
		}
	}
	if !overflow && sum != b.OriginalMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	if b.DiscountMinor < 0 || b.DiscountMinor > b.OriginalMinor {
		errs = append(errs, ErrInvalidDiscount)
	}
	if b.DiscountedTotalMinor != b.OriginalMinor-b.DiscountMinor || b.DiscountedTotalMinor < 0 {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
