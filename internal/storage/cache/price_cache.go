package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

const (
	// DefaultPriceTTL — время жизни цены в кэше по умолчанию.
	DefaultPriceTTL = 30 * time.Second
	keyPrefix       = "shop:price:"
)

// PriceCache — read-through кэш цен поверх ProductCatalog.
// Ошибки Redis не ломают расчёт: запрос уходит в каталог напрямую.
type PriceCache struct {
	next   domain.ProductCatalog
	client redis.Cmdable
	ttl    time.Duration
	logger *log.Entry
}

// Option настраивает PriceCache.
type Option func(*PriceCache)

// WithTTL задаёт время жизни записи.
func WithTTL(ttl time.Duration) Option {
	return func(c *PriceCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *PriceCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewPriceCache оборачивает каталог кэшем. Без клиента возвращается сам каталог.
func NewPriceCache(next domain.ProductCatalog, client redis.Cmdable, opts ...Option) domain.ProductCatalog {
	if client == nil {
		return next
	}

	c := &PriceCache{
		next:   next,
		client: client,
		ttl:    DefaultPriceTTL,
		logger: log.WithField("component", "price-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetPrice читает цену из Redis, при промахе берёт её из каталога и кладёт в кэш.
// Отсутствующие товары не кэшируются.
func (c *PriceCache) GetPrice(ctx context.Context, productID string) (int64, error) {
	key := priceKey(productID)

	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		price, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr == nil {
			return price, nil
		}
		c.logger.WithError(convErr).WithField("product_id", productID).Warn("corrupted cached price, ignoring")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WithError(err).WithField("product_id", productID).Warn("price cache read failed")
	}

	price, err := c.next.GetPrice(ctx, productID)
	if err != nil {
		return 0, err
	}

	if err := c.client.Set(ctx, key, strconv.FormatInt(price, 10), c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("product_id", productID).Warn("price cache write failed")
	}
	return price, nil
}

// Invalidate удаляет цены товаров из кэша после их изменения.
func (c *PriceCache) Invalidate(ctx context.Context, productIDs ...string) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, priceKey(id))
	}
	return c.client.Del(ctx, keys...).Err()
}

// WritePrices оборачивает запись цен: после успешной записи цена товара
// удаляется из кэша, и следующий расчёт читает её из каталога.
func (c *PriceCache) WritePrices(next domain.PriceWriter) domain.PriceWriter {
	return &invalidatingWriter{next: next, cache: c}
}

type invalidatingWriter struct {
	next  domain.PriceWriter
	cache *PriceCache
}

// SetProductPrice возвращает ошибку, если цена записана, но не вычищена из
// кэша: повторный вызов безопасен.
func (w *invalidatingWriter) SetProductPrice(ctx context.Context, productID string, priceMinor int64) error {
	if err := w.next.SetProductPrice(ctx, productID, priceMinor); err != nil {
		return err
	}
	if err := w.cache.Invalidate(ctx, productID); err != nil {
		w.cache.logger.WithError(err).WithField("product_id", productID).Warn("price cache invalidation failed")
		return fmt.Errorf("invalidate cached price of %s: %w", productID, err)
	}
	return nil
}

func priceKey(productID string) string {
	return keyPrefix + productID
}

var _ domain.ProductCatalog = (*PriceCache)(nil)
