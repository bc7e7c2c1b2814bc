package domain

import "errors"

// ErrorKind классифицирует неуспешный Result.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindInvalidProduct      ErrorKind = "invalid_product"
	KindInvalidQuantity     ErrorKind = "invalid_quantity"
	KindInvalidDiscount     ErrorKind = "invalid_discount"
	KindNotFound            ErrorKind = "not_found"
	KindAlreadyExists       ErrorKind = "already_exists"
	KindVersionConflict     ErrorKind = "version_conflict"
	KindConstraintViolation ErrorKind = "constraint_violation"
	KindStorageFailure      ErrorKind = "storage_failure"
)

// Result — единый ответ операций жизненного цикла счёта.
// Ожидаемые ошибки возвращаются как данные, а не паникой.
type Result[T any] struct {
	Success bool
	Message string
	Data    T
	Kind    ErrorKind
	Err     error
}

// OK формирует успешный результат.
func OK[T any](data T, message string) Result[T] {
	return Result[T]{Success: true, Message: message, Data: data}
}

// Fail формирует неуспешный результат, классифицируя err.
func Fail[T any](err error, message string) Result[T] {
	return Result[T]{Message: message, Kind: KindOf(err), Err: err}
}

// KindOf сопоставляет ошибку с ErrorKind. Порядок проверок важен:
// ошибки хранилища оборачивают доменные причины.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConstraintViolation):
		return KindConstraintViolation
	case errors.Is(err, ErrBillVersionConflict):
		return KindVersionConflict
	case errors.Is(err, ErrBillAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrBillNotFound),
		errors.Is(err, ErrDetailNotFound),
		errors.Is(err, ErrCustomerNotFound),
		errors.Is(err, ErrStaffNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidProduct), errors.Is(err, ErrProductNotFound):
		return KindInvalidProduct
	case errors.Is(err, ErrInvalidQuantity):
		return KindInvalidQuantity
	case errors.Is(err, ErrInvalidDiscount):
		return KindInvalidDiscount
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrCustomerRequired),
		errors.Is(err, ErrStaffRequired),
		errors.Is(err, ErrItemsRequired),
		errors.Is(err, ErrInvalidBillID),
		errors.Is(err, ErrAmountOverflow),
		errors.Is(err, ErrAmountPrecision):
		return KindInvalidRequest
	default:
		return KindStorageFailure
	}
}
