package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

// dbtx — общее подмножество *sql.DB и *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option настраивает Store.
type Option func(*Store)

// WithLocation задаёт часовой пояс, в котором трактуется дата поиска.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger задаёт logger для миграций.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store оборачивает SQL-подключение к PostgreSQL.
type Store struct {
	db     *sql.DB
	loc    *time.Location
	logger *log.Entry
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db, loc: time.UTC, logger: log.WithField("component", "postgres-store")}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Bills возвращает репозиторий счетов, который сам открывает транзакции на запись.
func (s *Store) Bills() domain.BillRepository {
	return &billRepository{db: s.db, loc: s.loc}
}

// Outbox возвращает outbox-репозиторий поверх пула соединений.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{db: s.db}
}

// OutboxPurger возвращает очистку обработанных сообщений outbox.
func (s *Store) OutboxPurger() domain.OutboxPurger {
	return &outboxRepository{db: s.db}
}

// Catalog возвращает каталог цен товаров.
func (s *Store) Catalog() domain.ProductCatalog {
	return &catalog{db: s.db}
}

// WithinTx выполняет fn в одной транзакции. Ошибка fn или commit откатывает всё.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.TxScope) error) (err error) {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", domain.ErrStorageFailure, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &txScope{tx: tx, loc: s.loc}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx: %w", domain.ErrStorageFailure, err)
	}
	return nil
}

type txScope struct {
	tx  *sql.Tx
	loc *time.Location
}

func (t *txScope) Bills() domain.BillRepository {
	return &billRepository{tx: t.tx, loc: t.loc}
}

func (t *txScope) Outbox() domain.OutboxWriter {
	return &outboxRepository{db: t.tx}
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var (
	_ domain.UnitOfWork  = (*Store)(nil)
	_ domain.PriceWriter = (*Store)(nil)
	_ domain.TxScope     = (*txScope)(nil)
)
