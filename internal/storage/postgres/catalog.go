package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

type catalog struct {
	db dbtx
}

// GetPrice возвращает текущую цену товара из таблицы products.
func (c *catalog) GetPrice(ctx context.Context, productID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var price int64
	err := c.db.QueryRowContext(ctx, `SELECT price_minor FROM products WHERE id = $1`, productID).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
		}
		return 0, fmt.Errorf("select product price: %w", err)
	}
	return price, nil
}

// Seed добавляет или обновляет справочные данные в одной транзакции.
func (s *Store) Seed(ctx context.Context, ref domain.ReferenceData) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, c := range ref.Customers {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO customers (id, full_name, email, phone)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO UPDATE
			SET full_name = EXCLUDED.full_name,
			    email = EXCLUDED.email,
			    phone = EXCLUDED.phone
		`, c.ID, c.FullName, c.Email, c.Phone); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}

	for _, st := range ref.Staff {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO staff (id, full_name, role)
			VALUES ($1,$2,$3)
			ON CONFLICT (id) DO UPDATE
			SET full_name = EXCLUDED.full_name,
			    role = EXCLUDED.role
		`, st.ID, st.FullName, st.Role); err != nil {
			return fmt.Errorf("seed staff %s: %w", st.ID, err)
		}
	}

	for _, p := range ref.Products {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO products (
				id, name, cost_minor, price_minor, type, quantity, size, info, image_path
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    cost_minor = EXCLUDED.cost_minor,
			    price_minor = EXCLUDED.price_minor,
			    type = EXCLUDED.type,
			    quantity = EXCLUDED.quantity,
			    size = EXCLUDED.size,
			    info = EXCLUDED.info,
			    image_path = EXCLUDED.image_path
		`, p.ID, p.Name, p.CostMinor, p.PriceMinor, p.Type, p.Quantity, p.Size, p.Info, p.ImagePath); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// SetProductPrice меняет цену товара. Строки уже сохранённых счетов не меняются.
func (s *Store) SetProductPrice(ctx context.Context, productID string, priceMinor int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `UPDATE products SET price_minor = $2 WHERE id = $1`, productID, priceMinor)
	if err != nil {
		return classifyError("update product price", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// DeleteProduct удаляет товар; ссылка из строки счёта даёт ErrConstraintViolation.
func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: product %s is referenced by bill details", domain.ErrConstraintViolation, productID)
		}
		return classifyError("delete product", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

var _ domain.ProductCatalog = (*catalog)(nil)
