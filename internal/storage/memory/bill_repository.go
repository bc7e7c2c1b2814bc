package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

// billRepository — in-memory реализация BillRepository.
// Вне транзакции работает через store, внутри — напрямую над tx-состоянием.
type billRepository struct {
	store *Store
	tx    *state
	loc   *time.Location
}

// NewBillRepository возвращает репозиторий счетов поверх store.
func NewBillRepository(store *Store) domain.BillRepository {
	return store.Bills()
}

func (r *billRepository) read(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.view(fn)
}

func (r *billRepository) write(fn func(st *state) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return r.store.update(fn)
}

// Get возвращает счёт или ErrBillNotFound, если его нет.
func (r *billRepository) Get(ctx context.Context, id string) (domain.Bill, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bill{}, err
	}

	var bill domain.Bill
	err := r.read(func(st *state) error {
		header, ok := st.bills[id]
		if !ok {
			return domain.ErrBillNotFound
		}
		bill = hydrate(st, header)
		return nil
	})
	return bill, err
}

// List возвращает все счета, новые первыми.
func (r *billRepository) List(ctx context.Context) ([]domain.Bill, error) {
	return r.filter(ctx, func(domain.Bill) bool { return true })
}

// ListByCustomer возвращает счета клиента.
func (r *billRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error) {
	return r.filter(ctx, func(b domain.Bill) bool { return b.CustomerID == customerID })
}

// Search фильтрует счета. Некорректная дата даёт пустой результат.
func (r *billRepository) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Bill, error) {
	if q.Field == domain.SearchByDate && !q.Unfiltered() {
		if _, _, err := q.DateRange(r.loc); err != nil {
			return []domain.Bill{}, nil
		}
	}
	return r.filter(ctx, func(b domain.Bill) bool { return q.Matches(b, r.loc) })
}

func (r *billRepository) filter(ctx context.Context, keep func(domain.Bill) bool) ([]domain.Bill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Bill, 0)
	err := r.read(func(st *state) error {
		for _, header := range st.bills {
			bill := hydrate(st, header)
			if keep(bill) {
				result = append(result, bill)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// Details возвращает сохранённые строки счёта.
func (r *billRepository) Details(ctx context.Context, billID string) ([]domain.BillDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var details []domain.BillDetail
	err := r.read(func(st *state) error {
		if _, ok := st.bills[billID]; !ok {
			return domain.ErrBillNotFound
		}
		details = hydrateDetails(st, st.details[billID])
		return nil
	})
	return details, err
}

// Create сохраняет счёт со строками, если ID ещё не занят и все ссылки существуют.
func (r *billRepository) Create(ctx context.Context, bill domain.Bill) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.write(func(st *state) error {
		if _, exists := st.bills[bill.ID]; exists {
			return fmt.Errorf("%w: %s", domain.ErrBillAlreadyExists, bill.ID)
		}
		if err := checkReferences(st, bill); err != nil {
			return err
		}

		if bill.Version <= 0 {
			bill.Version = 1
		}
		st.bills[bill.ID] = header(bill)
		st.details[bill.ID] = storedDetails(bill)
		return nil
	})
}

// ReplaceDetails обновляет шапку и полностью заменяет строки счёта.
func (r *billRepository) ReplaceDetails(ctx context.Context, bill domain.Bill, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var version int64
	err := r.write(func(st *state) error {
		current, ok := st.bills[bill.ID]
		if !ok {
			return domain.ErrBillNotFound
		}
		if expectedVersion > 0 && current.Version != expectedVersion {
			return fmt.Errorf("%w: bill %s has version %d, expected %d",
				domain.ErrBillVersionConflict, bill.ID, current.Version, expectedVersion)
		}
		if err := checkReferences(st, bill); err != nil {
			return err
		}

		next := header(bill)
		next.CreatedAt = current.CreatedAt
		next.Version = current.Version + 1
		st.bills[bill.ID] = next
		st.details[bill.ID] = storedDetails(bill)
		version = next.Version
		return nil
	})
	return version, err
}

// Delete удаляет строки и шапку счёта.
func (r *billRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.write(func(st *state) error {
		if _, ok := st.bills[id]; !ok {
			return domain.ErrBillNotFound
		}
		delete(st.details, id)
		delete(st.bills, id)
		return nil
	})
}

// checkReferences повторяет внешние ключи и первичный ключ строк из SQL-схемы.
func checkReferences(st *state, bill domain.Bill) error {
	if _, ok := st.customers[bill.CustomerID]; !ok {
		return constraintErr(domain.ErrCustomerNotFound, "customer %q", bill.CustomerID)
	}
	if _, ok := st.staff[bill.StaffID]; !ok {
		return constraintErr(domain.ErrStaffNotFound, "staff %q", bill.StaffID)
	}

	seen := make(map[string]struct{}, len(bill.Details))
	for _, d := range bill.Details {
		if _, ok := st.products[d.ProductID]; !ok {
			return constraintErr(domain.ErrProductNotFound, "product %q", d.ProductID)
		}
		if _, dup := seen[d.ProductID]; dup {
			return constraintErr(domain.ErrDuplicateProduct, "product %q", d.ProductID)
		}
		seen[d.ProductID] = struct{}{}
		if d.Quantity <= 0 {
			return constraintErr(domain.ErrInvalidQuantity, "product %q", d.ProductID)
		}
	}
	return nil
}

func constraintErr(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", domain.ErrConstraintViolation, msg)
	}
	return fmt.Errorf("%w: %w: %s", domain.ErrConstraintViolation, cause, msg)
}

// header оставляет только поля шапки: связи восстанавливаются при чтении.
func header(bill domain.Bill) domain.Bill {
	bill.Details = nil
	bill.Customer = nil
	bill.Staff = nil
	return bill
}

func storedDetails(bill domain.Bill) []domain.BillDetail {
	out := make([]domain.BillDetail, 0, len(bill.Details))
	for _, d := range bill.Details {
		d.BillID = bill.ID
		d.Product = nil
		out = append(out, d)
	}
	return out
}

func hydrate(st *state, h domain.Bill) domain.Bill {
	bill := h
	bill.Details = hydrateDetails(st, st.details[h.ID])
	if c, ok := st.customers[h.CustomerID]; ok {
		bill.Customer = &c
	}
	if s, ok := st.staff[h.StaffID]; ok {
		bill.Staff = &s
	}
	return bill
}

func hydrateDetails(st *state, details []domain.BillDetail) []domain.BillDetail {
	out := make([]domain.BillDetail, 0, len(details))
	for _, d := range details {
		if p, ok := st.products[d.ProductID]; ok {
			d.Product = &p
		}
		out = append(out, d)
	}
	return out
}

var _ domain.BillRepository = (*billRepository)(nil)
