package domain

import "context"

// BillRepository описывает требования к хранилищу счетов.
// Чтения возвращают счёт вместе со строками, клиентом, сотрудником и товарами строк.
type BillRepository interface {
	// Get возвращает счёт по идентификатору или ErrBillNotFound.
	Get(ctx context.Context, id string) (Bill, error)
	// List возвращает все счета, новые первыми. Каждый вызов даёт свежий снимок.
	List(ctx context.Context) ([]Bill, error)
	// ListByCustomer возвращает счета клиента, новые первыми.
	ListByCustomer(ctx context.Context, customerID string) ([]Bill, error)
	// Search фильтрует счета по полю. Запрос без фильтра эквивалентен List.
	Search(ctx context.Context, q SearchQuery) ([]Bill, error)
	// Details возвращает сохранённые строки счёта или ErrBillNotFound.
	Details(ctx context.Context, billID string) ([]BillDetail, error)
	// Create атомарно сохраняет шапку и все строки.
	// Неизвестный товар, клиент или сотрудник дают ErrConstraintViolation,
	// занятый ID — ErrBillAlreadyExists.
	Create(ctx context.Context, bill Bill) error
	// ReplaceDetails обновляет шапку и заменяет весь набор строк атомарно.
	// expectedVersion > 0 включает проверку версии (ErrBillVersionConflict).
	// Возвращает новую версию счёта.
	ReplaceDetails(ctx context.Context, bill Bill, expectedVersion int64) (int64, error)
	// Delete удаляет строки и шапку счёта атомарно; ErrBillNotFound, если счёта нет.
	Delete(ctx context.Context, id string) error
}
