package domain

import "errors"

var (
	// ErrInvalidRequest — общий признак некорректного запроса.
	ErrInvalidRequest = errors.New("invalid request")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствующего идентификатора сотрудника.
	ErrStaffRequired = errors.New("staff_id is required")
	// Ошибка отсутствия хотя бы одной позиции в счёте.
	ErrItemsRequired = errors.New("bill must contain at least one item")
	// ErrInvalidBillID возвращается для пустого или слишком длинного идентификатора счёта.
	ErrInvalidBillID = errors.New("invalid bill id")

	// ErrInvalidProduct — позиция ссылается на неизвестный товар.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInvalidQuantity — количество в позиции <= 0.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrInvalidDiscount — скидка отрицательная или превышает сумму счёта.
	ErrInvalidDiscount = errors.New("invalid discount")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// ErrLineTotalMismatch — сумма строки не равна qty * price.
	ErrLineTotalMismatch = errors.New("line total does not match quantity * unit price")
	// Ошибка несоответствия суммы счёта и сумм позиций.
	ErrAmountMismatch = errors.New("bill totals do not match details")
	// ErrDuplicateProduct — в счёте две строки с одним товаром.
	ErrDuplicateProduct = errors.New("duplicate product in bill details")
	// ErrAmountOverflow — денежная сумма не помещается в int64.
	ErrAmountOverflow = errors.New("amount overflow")
	// ErrAmountPrecision — у суммы больше знаков после запятой, чем допускает валюта.
	ErrAmountPrecision = errors.New("amount has too many fractional digits")
	// ErrDetailNotFound — в счёте нет строки с указанным товаром.
	ErrDetailNotFound = errors.New("bill detail not found")

	// ErrBillNotFound возвращается, если счёт не найден в репозитории.
	ErrBillNotFound = errors.New("bill not found")
	// ErrBillAlreadyExists возвращается при повторной вставке счёта с тем же ID.
	ErrBillAlreadyExists = errors.New("bill already exists")
	// ErrBillVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrBillVersionConflict = errors.New("bill version conflict")
	ErrProductNotFound     = errors.New("product not found")
	ErrCustomerNotFound    = errors.New("customer not found")
	ErrStaffNotFound       = errors.New("staff not found")
	// ErrConstraintViolation — хранилище отклонило запись (FK, уникальность, CHECK).
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrStorageFailure — сбой соединения или транзакции.
	ErrStorageFailure = errors.New("storage failure")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrBillVersionConflict)
}
