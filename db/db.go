package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotFound возвращается, когда строка отсутствует, удалена мягко или не принадлежит владельцу
var ErrNotFound = errors.New("not found")

const (
	requestsTable   = "maintenance_requests"
	jobsTable       = "maintenance_jobs"
	propertiesTable = "properties"
	roomsTable      = "rooms"
	tenantsTable    = "tenants"
)

type Storage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStorage(db *sqlx.DB, logger *zap.Logger) *Storage {
	return &Storage{db: db, logger: logger}
}

// Options задаёт параметры пула соединений
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect открывает пул соединений к Postgres и проверяет его
func Connect(ctx context.Context, connString string, opts Options) (*sqlx.DB, error) {
	dbConn, err := sqlx.ConnectContext(ctx, "postgres", connString)
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to DB")
	}
	if opts.MaxOpenConns > 0 {
		dbConn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		dbConn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		dbConn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return dbConn, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func newSelect() *sqlbuilder.SelectBuilder {
	return sqlbuilder.PostgreSQL.NewSelectBuilder()
}

func newUpdate() *sqlbuilder.UpdateBuilder {
	return sqlbuilder.PostgreSQL.NewUpdateBuilder()
}

func newInsert() *sqlbuilder.InsertBuilder {
	return sqlbuilder.PostgreSQL.NewInsertBuilder()
}

// validID: ключи в схеме имеют тип UUID, на другой строке Postgres ответит 22P02.
// Такой id не может существовать, поэтому запрос не отправляется.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// get выполняет запрос одной строки и превращает sql.ErrNoRows в ErrNotFound
func (s *Storage) get(ctx context.Context, dest any, query string, args ...any) error {
	err := s.db.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// exec возвращает true, если запрос затронул хотя бы одну строку
func (s *Storage) exec(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
