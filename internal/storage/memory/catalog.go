package memory

import (
	"context"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

type catalog struct {
	store *Store
}

// GetPrice возвращает текущую цену товара.
func (c *catalog) GetPrice(ctx context.Context, productID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var price int64
	err := c.store.view(func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return domain.ErrProductNotFound
		}
		price = p.PriceMinor
		return nil
	})
	return price, err
}

var _ domain.ProductCatalog = (*catalog)(nil)
