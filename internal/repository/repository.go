package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/libreria/reservation-service/internal/errs"
	"github.com/libreria/reservation-service/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go -package=mocks

type Repository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	Reserve(ctx context.Context, bookID, userID int64) error
	Cancel(ctx context.Context, bookID, userID int64) error
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName = `users`
	booksTableName = `books`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) CreateUser(ctx context.Context, username, passwordHash string) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("username", "password").
		Values(username, passwordHash).
		Suffix("returning id, username, password").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return model.User{}, errs.ErrUserExists
		}
		r.log.Error("CreateUser", zap.String("username", username), zap.Error(err))
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	q, args, err := qb.Select("id", "username", "password").
		From(usersTableName).
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	q, args, err := qb.Select("id", "title", "author", "is_reserved", "reserved_by").
		From(booksTableName).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	items := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

// Reserve flips the book to reserved only if it is currently free. The
// conditional update is what keeps concurrent reserves from clobbering
// each other without any locking on our side.
func (r *repository) Reserve(ctx context.Context, bookID, userID int64) error {
	q := fmt.Sprintf(`update %s
	set is_reserved = true, reserved_by = $1
	where id = $2 and not is_reserved
	returning id`, booksTableName)

	var id int64
	err := r.db.QueryRowContext(ctx, q, userID, bookID).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	// No row matched: either the book does not exist or someone holds it.
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`select exists(select 1 from %s where id = $1)`, booksTableName),
		bookID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return errs.ErrNotFound
	}
	return errs.ErrAlreadyReserved
}

// Cancel releases the reservation only when userID is the current holder.
func (r *repository) Cancel(ctx context.Context, bookID, userID int64) error {
	q := fmt.Sprintf(`update %s
	set is_reserved = false, reserved_by = null
	where id = $1 and is_reserved and reserved_by = $2
	returning id`, booksTableName)

	var id int64
	err := r.db.QueryRowContext(ctx, q, bookID, userID).Scan(&id)
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return errs.ErrUnauthorized
	}
	return err
}
