package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookfriends/lending-service/internal/errs"
	"github.com/bookfriends/lending-service/internal/model"
	"github.com/bookfriends/lending-service/pkg/database"
)

type Repository interface {
	CreateBook(ctx context.Context, book model.Book) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)
	UpdateBook(ctx context.Context, id int, upd model.BookUpdate) error
	DeleteBook(ctx context.Context, id int) error

	CreateFriend(ctx context.Context, friend model.Friend) (model.Friend, error)
	ListFriends(ctx context.Context) ([]model.Friend, error)
	GetFriend(ctx context.Context, id int) (model.Friend, error)

	CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
	ActiveLoan(ctx context.Context, bookID int) (model.Loan, error)
	DeleteLoan(ctx context.Context, id int) error

	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUser(ctx context.Context, login string) (model.User, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
	qb  sq.StatementBuilderType
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
		qb:  sq.StatementBuilder.PlaceholderFormat(database.Placeholder(db.DriverName())),
	}, nil
}

const (
	booksTableName   = `ksiazki`
	friendsTableName = `przyjaciele`
	loansTableName   = `wypozyczenia`
	usersTableName   = `uzytkownicy`
)

func (r *repository) CreateBook(ctx context.Context, book model.Book) (model.Book, error) {
	q, args, err := r.qb.Insert(booksTableName).
		Columns("autor", "tytul", "rok_wydania").
		Values(book.Author, book.Title, book.Year).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	if err := r.db.GetContext(ctx, &book.ID, q, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	q, args, err := r.qb.Select("id", "autor", "tytul", "rok_wydania").
		From(booksTableName).
		OrderBy("id asc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) GetBook(ctx context.Context, id int) (model.Book, error) {
	q, args, err := r.qb.Select("id", "autor", "tytul", "rok_wydania").
		From(booksTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) UpdateBook(ctx context.Context, id int, upd model.BookUpdate) error {
	if upd.Empty() {
		return errs.ErrNoData
	}
	q := r.qb.Update(booksTableName).Where(sq.Eq{"id": id})
	if upd.Author != nil {
		q = q.Set("autor", *upd.Author)
	}
	if upd.Title != nil {
		q = q.Set("tytul", *upd.Title)
	}
	if upd.Year != nil {
		q = q.Set("rok_wydania", *upd.Year)
	}
	query, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *repository) DeleteBook(ctx context.Context, id int) error {
	q, args, err := r.qb.Delete(booksTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *repository) CreateFriend(ctx context.Context, friend model.Friend) (model.Friend, error) {
	q, args, err := r.qb.Insert(friendsTableName).
		Columns("imie", "email").
		Values(friend.Name, friend.Email).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.Friend{}, err
	}
	if err := r.db.GetContext(ctx, &friend.ID, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.Friend{}, errs.ErrEmailTaken
		}
		r.log.Error("CreateFriend", zap.String("q", q), zap.Any("args", args))
		return model.Friend{}, err
	}
	return friend, nil
}

func (r *repository) ListFriends(ctx context.Context) ([]model.Friend, error) {
	q, args, err := r.qb.Select("id", "imie", "email").
		From(friendsTableName).
		OrderBy("id asc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var friends []model.Friend
	if err := r.db.SelectContext(ctx, &friends, q, args...); err != nil {
		return nil, err
	}
	return friends, nil
}

func (r *repository) GetFriend(ctx context.Context, id int) (model.Friend, error) {
	q, args, err := r.qb.Select("id", "imie", "email").
		From(friendsTableName).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Friend{}, err
	}
	var friend model.Friend
	if err := r.db.GetContext(ctx, &friend, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Friend{}, errs.ErrNotFound
		}
		return model.Friend{}, err
	}
	return friend, nil
}

func (r *repository) CreateLoan(ctx context.Context, loan model.Loan) (model.Loan, error) {
	q, args, err := r.qb.Insert(loansTableName).
		Columns("ksiazka_id", "przyjaciel_id", "data_wypozyczenia").
		Values(loan.BookID, loan.FriendID, loan.Date).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	if err := r.db.GetContext(ctx, &loan.ID, q, args...); err != nil {
		r.log.Error("CreateLoan", zap.String("q", q), zap.Any("args", args))
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoans(ctx context.Context) ([]model.Loan, error) {
	q, args, err := r.qb.Select("id", "ksiazka_id", "przyjaciel_id", "data_wypozyczenia").
		From(loansTableName).
		OrderBy("id asc").
		ToSql()
	if err != nil {
		return nil, err
	}
	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, q, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

// ActiveLoan picks the oldest loan row referencing the book. Insertion
// order is the tie-break when more than one row exists.
func (r *repository) ActiveLoan(ctx context.Context, bookID int) (model.Loan, error) {
	q, args, err := r.qb.Select("id", "ksiazka_id", "przyjaciel_id", "data_wypozyczenia").
		From(loansTableName).
		Where(sq.Eq{"ksiazka_id": bookID}).
		OrderBy("id asc").
		Limit(1).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := r.db.GetContext(ctx, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) DeleteLoan(ctx context.Context, id int) error {
	q, args, err := r.qb.Delete(loansTableName).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	q, args, err := r.qb.Insert(usersTableName).
		Columns("login", "haslo").
		Values(user.Login, user.Password).
		Suffix("returning id").
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	if err := r.db.GetContext(ctx, &user.ID, q, args...); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, errs.ErrLoginTaken
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) GetUser(ctx context.Context, login string) (model.User, error) {
	q, args, err := r.qb.Select("id", "login", "haslo").
		From(usersTableName).
		Where(sq.Eq{"login": login}).
		Limit(1).
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

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
