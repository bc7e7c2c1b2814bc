package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

const billSelect = `
	SELECT b.id, b.staff_id, b.customer_id, b.discount_minor, b.original_minor,
	       b.discounted_total_minor, b.version, b.created_at, b.updated_at,
	       c.id, c.full_name, c.email, c.phone,
	       s.id, s.full_name, s.role
	FROM bills b
	JOIN customers c ON c.id = b.customer_id
	JOIN staff s ON s.id = b.staff_id`

const billOrder = ` ORDER BY b.created_at DESC, b.id DESC`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// billRepository — PostgreSQL-реализация BillRepository.
// Если tx задан, все запросы выполняются в нём, иначе запись открывает свою транзакцию.
type billRepository struct {
	db  *sql.DB
	tx  *sql.Tx
	loc *time.Location
}

// NewBillRepository создаёт PostgreSQL-реализацию BillRepository.
func NewBillRepository(store *Store) domain.BillRepository {
	return store.Bills()
}

func (r *billRepository) conn() dbtx {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

func (r *billRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	if r.tx != nil {
		return fn(r.tx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStorageFailure, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

func (r *billRepository) Get(ctx context.Context, id string) (domain.Bill, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	bills, err := r.queryBills(ctx, ` WHERE b.id = $1`, id)
	if err != nil {
		return domain.Bill{}, err
	}
	if len(bills) == 0 {
		return domain.Bill{}, domain.ErrBillNotFound
	}
	return bills[0], nil
}

func (r *billRepository) List(ctx context.Context) ([]domain.Bill, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.queryBills(ctx, billOrder)
}

func (r *billRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.queryBills(ctx, ` WHERE b.customer_id = $1`+billOrder, customerID)
}

// Search строит фильтр на стороне БД. Даты сравниваются полуинтервалом
// суток в часовом поясе хранилища.
func (r *billRepository) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Bill, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if q.Unfiltered() {
		return r.queryBills(ctx, billOrder)
	}

	pattern := "%" + likeEscaper.Replace(q.Value) + "%"
	switch q.Field {
	case domain.SearchByID:
		return r.queryBills(ctx, ` WHERE b.id LIKE $1 ESCAPE '\'`+billOrder, pattern)
	case domain.SearchByCustomerName:
		return r.queryBills(ctx, ` WHERE c.full_name ILIKE $1 ESCAPE '\'`+billOrder, pattern)
	case domain.SearchByStaffName:
		return r.queryBills(ctx, ` WHERE s.full_name ILIKE $1 ESCAPE '\'`+billOrder, pattern)
	case domain.SearchByDate:
		start, end, err := q.DateRange(r.loc)
		if err != nil {
			return []domain.Bill{}, nil
		}
		return r.queryBills(ctx, ` WHERE b.created_at >= $1 AND b.created_at < $2`+billOrder, start, end)
	default:
		return r.queryBills(ctx, billOrder)
	}
}

func (r *billRepository) Details(ctx context.Context, billID string) ([]domain.BillDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	exists, err := billExists(ctx, r.conn(), billID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrBillNotFound
	}

	byBill, err := loadDetails(ctx, r.conn(), []string{billID})
	if err != nil {
		return nil, err
	}
	details := byBill[billID]
	if details == nil {
		details = []domain.BillDetail{}
	}
	return details, nil
}

func (r *billRepository) Create(ctx context.Context, bill domain.Bill) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if bill.Version <= 0 {
		bill.Version = 1
	}
	if bill.UpdatedAt.IsZero() {
		bill.UpdatedAt = bill.CreatedAt
	}

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bills (
				id, staff_id, customer_id, discount_minor, original_minor,
				discounted_total_minor, version, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			bill.ID, bill.StaffID, bill.CustomerID, bill.DiscountMinor, bill.OriginalMinor,
			bill.DiscountedTotalMinor, bill.Version, bill.CreatedAt.UTC(), bill.UpdatedAt.UTC(),
		); err != nil {
			return classifyError("insert bill", err)
		}

		return insertDetails(ctx, tx, bill)
	})
}

func (r *billRepository) ReplaceDetails(ctx context.Context, bill domain.Bill, expectedVersion int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	updatedAt := bill.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query := `
		UPDATE bills
		SET staff_id = $2,
		    customer_id = $3,
		    discount_minor = $4,
		    original_minor = $5,
		    discounted_total_minor = $6,
		    updated_at = $7,
		    version = version + 1
		WHERE id = $1`
	args := []any{
		bill.ID, bill.StaffID, bill.CustomerID, bill.DiscountMinor,
		bill.OriginalMinor, bill.DiscountedTotalMinor, updatedAt.UTC(),
	}
	if expectedVersion > 0 {
		query += ` AND version = $8`
		args = append(args, expectedVersion)
	}
	query += ` RETURNING version`

	var version int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query, args...).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			exists, err := billExists(ctx, tx, bill.ID)
			if err != nil {
				return err
			}
			if !exists {
				return domain.ErrBillNotFound
			}
			return fmt.Errorf("%w: bill %s, expected version %d", domain.ErrBillVersionConflict, bill.ID, expectedVersion)
		}
		if err != nil {
			return classifyError("update bill", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bill_details WHERE bill_id = $1`, bill.ID); err != nil {
			return classifyError("delete bill details", err)
		}
		return insertDetails(ctx, tx, bill)
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (r *billRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bill_details WHERE bill_id = $1`, id); err != nil {
			return classifyError("delete bill details", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, id)
		if err != nil {
			return classifyError("delete bill", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrBillNotFound
		}
		return nil
	})
}

// queryBills читает шапки вместе с клиентом и сотрудником, затем одним
// запросом подгружает строки всех найденных счетов.
func (r *billRepository) queryBills(ctx context.Context, clause string, args ...any) ([]domain.Bill, error) {
	rows, err := r.conn().QueryContext(ctx, billSelect+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("select bills: %w", err)
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0)
	for rows.Next() {
		var (
			b domain.Bill
			c domain.Customer
			s domain.Staff
		)
		if err := rows.Scan(
			&b.ID, &b.StaffID, &b.CustomerID, &b.DiscountMinor, &b.OriginalMinor,
			&b.DiscountedTotalMinor, &b.Version, &b.CreatedAt, &b.UpdatedAt,
			&c.ID, &c.FullName, &c.Email, &c.Phone,
			&s.ID, &s.FullName, &s.Role,
		); err != nil {
			return nil, fmt.Errorf("scan bill row: %w", err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		b.Customer = &c
		b.Staff = &s
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bill rows: %w", err)
	}
	if len(bills) == 0 {
		return bills, nil
	}

	ids := make([]string, 0, len(bills))
	for _, b := range bills {
		ids = append(ids, b.ID)
	}
	byBill, err := loadDetails(ctx, r.conn(), ids)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Details = byBill[bills[i].ID]
		if bills[i].Details == nil {
			bills[i].Details = []domain.BillDetail{}
		}
	}

	return bills, nil
}

func loadDetails(ctx context.Context, q dbtx, billIDs []string) (map[string][]domain.BillDetail, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT d.bill_id, d.product_id, d.quantity, d.unit_price_minor, d.total_minor,
		       p.id, p.name, p.cost_minor, p.price_minor, p.type, p.quantity, p.size, p.info, p.image_path
		FROM bill_details d
		JOIN products p ON p.id = d.product_id
		WHERE d.bill_id = ANY($1)
		ORDER BY d.bill_id, d.position
	`, billIDs)
	if err != nil {
		return nil, fmt.Errorf("load bill details: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]domain.BillDetail, len(billIDs))
	for rows.Next() {
		var (
			d domain.BillDetail
			p domain.Product
		)
		if err := rows.Scan(
			&d.BillID, &d.ProductID, &d.Quantity, &d.UnitPriceMinor, &d.TotalMinor,
			&p.ID, &p.Name, &p.CostMinor, &p.PriceMinor, &p.Type, &p.Quantity, &p.Size, &p.Info, &p.ImagePath,
		); err != nil {
			return nil, fmt.Errorf("scan bill detail: %w", err)
		}
		d.Product = &p
		result[d.BillID] = append(result[d.BillID], d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bill details: %w", err)
	}

	return result, nil
}

func insertDetails(ctx context.Context, tx *sql.Tx, bill domain.Bill) error {
	for i, d := range bill.Details {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bill_details (
				bill_id, product_id, position, quantity, unit_price_minor, total_minor
			) VALUES ($1,$2,$3,$4,$5,$6)
		`,
			bill.ID, d.ProductID, i, d.Quantity, d.UnitPriceMinor, d.TotalMinor,
		); err != nil {
			return classifyError("insert bill detail", err)
		}
	}
	return nil
}

func billExists(ctx context.Context, q dbtx, id string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bills WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check bill exists: %w", err)
	}
	return exists, nil
}

var _ domain.BillRepository = (*billRepository)(nil)
