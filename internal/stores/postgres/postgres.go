// Package postgres implements store.Store on PostgreSQL through pgx's
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"honnylove-backend/internal/apperr"
	"honnylove-backend/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenDB opens the pool and checks the connection.
func OpenDB(ctx context.Context, url string, opts Options) (*sql.DB, error) {
	if url == "" {
		return nil, errors.New("database url is empty")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return db, nil
}

type Conf struct {
	db *sql.DB
}

var _ store.Store = (*Conf)(nil)

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Conf) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return c.withTx(ctx, func(sqlTx *sql.Tx) error {
		return fn(&tx{tx: sqlTx})
	})
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	sqlTx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(sqlTx); err != nil {
		if er := sqlTx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback withTx: %w (cause: %w)", er, err)
		}
		return bodyError(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", translate(err, "transaction"))
	}
	return nil
}

// Migrate runs the embedded goose migrations. command is up, down or status.
func Migrate(ctx context.Context, db *sql.DB, command string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db, "migrations")
	case "down":
		err = goose.DownContext(ctx, db, "migrations")
	case "status":
		err = goose.StatusContext(ctx, db, "migrations")
	default:
		return fmt.Errorf("unknown migrate command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

// translate maps constraint violations onto apperr codes. what names the
// entity for not-found and conflict messages.
func translate(err error, what string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return apperr.Wrap(apperr.CodeConflict, err, what+" already exists")
	case "23503":
		return apperr.Wrap(apperr.CodeNotFound, err, "referenced record not found")
	case "23514":
		return apperr.Wrap(apperr.CodeConflict, err, what+" violates "+pgErr.ConstraintName)
	case "40001", "40P01":
		return apperr.Wrap(apperr.CodeConflict, err, "concurrent update, retry the request")
	}
	return err
}

// bodyError codes an error returned from inside a transaction. Coded errors
// pass through; a deadlock or serialization failure raised by any statement
// becomes a conflict.
func bodyError(err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return translate(err, "transaction")
}

type scanner interface {
	Scan(dest ...any) error
}

type tx struct {
	tx *sql.Tx
}
