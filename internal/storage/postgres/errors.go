package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

// Имена ограничений из sql/migrations/0001_init.up.sql.
const (
	constraintBillsPK         = "bills_pkey"
	constraintBillDetailsPK   = "bill_details_pkey"
	constraintBillsCustomer   = "fk_bills_customer"
	constraintBillsStaff      = "fk_bills_staff"
	constraintDetailsProduct  = "fk_bill_details_product"
	constraintDetailsQuantity = "chk_bill_details_quantity"
	constraintBillsDiscount   = "chk_bills_discount"
)

// classifyError переводит ошибки PostgreSQL в доменные.
// Остальные ошибки оборачиваются контекстом op.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case constraintBillsPK:
			return fmt.Errorf("%w: %s", domain.ErrBillAlreadyExists, pgErr.Detail)
		case constraintBillDetailsPK:
			return fmt.Errorf("%w: %w: %s", domain.ErrConstraintViolation, domain.ErrDuplicateProduct, pgErr.Detail)
		}
		return fmt.Errorf("%s: %w: %s", op, domain.ErrConstraintViolation, pgErr.Message)
	case pgerrcode.ForeignKeyViolation:
		if cause := foreignKeyCause(pgErr.ConstraintName); cause != nil {
			return fmt.Errorf("%w: %w: %s", domain.ErrConstraintViolation, cause, pgErr.Detail)
		}
		return fmt.Errorf("%s: %w: %s", op, domain.ErrConstraintViolation, pgErr.Message)
	case pgerrcode.CheckViolation:
		switch pgErr.ConstraintName {
		case constraintDetailsQuantity:
			return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, domain.ErrInvalidQuantity)
		case constraintBillsDiscount:
			return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, domain.ErrInvalidDiscount)
		}
		return fmt.Errorf("%s: %w: %s", op, domain.ErrConstraintViolation, pgErr.ConstraintName)
	}

	return fmt.Errorf("%s: %w", op, err)
}

func foreignKeyCause(constraint string) error {
	switch constraint {
	case constraintBillsCustomer:
		return domain.ErrCustomerNotFound
	case constraintBillsStaff:
		return domain.ErrStaffNotFound
	case constraintDetailsProduct:
		return domain.ErrProductNotFound
	default:
		return nil
	}
}
