package bill

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

// CreateBillRequest — данные для создания счёта.
// Пустой ID означает, что идентификатор сгенерирует сервис.
type CreateBillRequest struct {
	ID            string                   `json:"id" validate:"omitempty,max=50"`
	StaffID       string                   `json:"staff_id" validate:"required,max=50"`
	CustomerID    string                   `json:"customer_id" validate:"required,max=50"`
	DiscountMinor int64                    `json:"discount_minor"`
	Items         []domain.LineItemRequest `json:"items" validate:"required,min=1"`
}

// UpdateBillRequest заменяет шапку и все строки существующего счёта.
// ExpectedVersion > 0 включает проверку версии.
type UpdateBillRequest struct {
	ID              string                   `json:"id" validate:"required,max=50"`
	StaffID         string                   `json:"staff_id" validate:"required,max=50"`
	CustomerID      string                   `json:"customer_id" validate:"required,max=50"`
	DiscountMinor   int64                    `json:"discount_minor"`
	Items           []domain.LineItemRequest `json:"items" validate:"required,min=1"`
	ExpectedVersion int64                    `json:"expected_version" validate:"gte=0"`
}

func (r *CreateBillRequest) normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.StaffID = strings.TrimSpace(r.StaffID)
	r.CustomerID = strings.TrimSpace(r.CustomerID)
}

func (r *UpdateBillRequest) normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.StaffID = strings.TrimSpace(r.StaffID)
	r.CustomerID = strings.TrimSpace(r.CustomerID)
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

// validationError переводит ошибки validator в доменные, чтобы вызывающий
// код мог различать их через errors.Is.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	fe := fieldErrs[0]
	var cause error
	switch fe.StructField() {
	case "ID":
		cause = domain.ErrInvalidBillID
	case "StaffID":
		cause = domain.ErrStaffRequired
	case "CustomerID":
		cause = domain.ErrCustomerRequired
	case "Items":
		cause = domain.ErrItemsRequired
	default:
		cause = domain.ErrInvalidRequest
	}
	if fe.Tag() != "required" && cause != domain.ErrInvalidBillID && cause != domain.ErrItemsRequired {
		return fmt.Errorf("%w: %s failed on %q", domain.ErrInvalidRequest, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %s failed on %q", cause, fe.Field(), fe.Tag())
}
