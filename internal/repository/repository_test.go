package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookfriends/lending-service/internal/errs"
	"github.com/bookfriends/lending-service/internal/model"
	"github.com/bookfriends/lending-service/internal/repository"
	"github.com/bookfriends/lending-service/migrations"
	"github.com/bookfriends/lending-service/pkg/database"
)

func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()
	cfg := database.Config{
		Driver: database.DriverSqlite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := database.New(context.Background(), &cfg, migrations.MigrationFiles)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := repository.NewRepository(db, zap.NewExample().Named("test"))
	require.NoError(t, err)
	return repo
}

func TestRepository_BookCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateBook(ctx, model.Book{Author: "Orwell", Title: "1984", Year: 1949})
	require.NoError(t, err)
	require.Equal(t, 1, created.ID)

	got, err := repo.GetBook(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	_, err = repo.GetBook(ctx, 999)
	require.ErrorIs(t, err, errs.ErrNotFound)

	title := "Rok 1984"
	require.NoError(t, repo.UpdateBook(ctx, created.ID, model.BookUpdate{Title: &title}))
	got, err = repo.GetBook(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Rok 1984", got.Title)
	require.Equal(t, "Orwell", got.Author)

	require.ErrorIs(t, repo.UpdateBook(ctx, 999, model.BookUpdate{Title: &title}), errs.ErrNotFound)
	require.ErrorIs(t, repo.UpdateBook(ctx, created.ID, model.BookUpdate{}), errs.ErrNoData)

	require.NoError(t, repo.DeleteBook(ctx, created.ID))
	require.ErrorIs(t, repo.DeleteBook(ctx, created.ID), errs.ErrNotFound)

	books, err := repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Empty(t, books)
}

// The year check is duplicated at the store layer; rows that bypass the
// constructor still get rejected.
func TestRepository_BookYearConstraint(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateBook(ctx, model.Book{Author: "Orwell", Title: "1984", Year: -5})
	require.Error(t, err)
}

func TestRepository_FriendEmailUnique(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateFriend(ctx, model.Friend{Name: "Alice", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = repo.CreateFriend(ctx, model.Friend{Name: "Alicja", Email: "a@example.com"})
	require.ErrorIs(t, err, errs.ErrEmailTaken)
}

// Email format is enforced only by the table constraint.
func TestRepository_FriendEmailFormatConstraint(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateFriend(ctx, model.Friend{Name: "Bob", Email: "not-an-email"})
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrEmailTaken)
}

func TestRepository_ActiveLoanPicksOldest(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	book, err := repo.CreateBook(ctx, model.Book{Author: "Lem", Title: "Solaris", Year: 1961})
	require.NoError(t, err)
	alice, err := repo.CreateFriend(ctx, model.Friend{Name: "Alice", Email: "a@example.com"})
	require.NoError(t, err)
	bob, err := repo.CreateFriend(ctx, model.Friend{Name: "Bob", Email: "b@example.com"})
	require.NoError(t, err)

	// Nothing stops two rows for the same book at the store layer; the
	// engine is expected to see the older one first.
	first, err := repo.CreateLoan(ctx, model.Loan{BookID: book.ID, FriendID: alice.ID, Date: "2024-05-12"})
	require.NoError(t, err)
	_, err = repo.CreateLoan(ctx, model.Loan{BookID: book.ID, FriendID: bob.ID, Date: "2024-05-13"})
	require.NoError(t, err)

	active, err := repo.ActiveLoan(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, active.ID)
	require.Equal(t, alice.ID, active.FriendID)
}

func TestRepository_LoanLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	book, err := repo.CreateBook(ctx, model.Book{Author: "Lem", Title: "Solaris", Year: 1961})
	require.NoError(t, err)
	friend, err := repo.CreateFriend(ctx, model.Friend{Name: "Alice", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = repo.ActiveLoan(ctx, book.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	loan, err := repo.CreateLoan(ctx, model.Loan{BookID: book.ID, FriendID: friend.ID, Date: "2024-05-12"})
	require.NoError(t, err)

	loans, err := repo.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)

	require.NoError(t, repo.DeleteLoan(ctx, loan.ID))
	_, err = repo.ActiveLoan(ctx, book.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRepository_Users(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.CreateUser(ctx, model.User{Login: "test_user", Password: "password123"})
	require.NoError(t, err)

	user, err := repo.GetUser(ctx, "test_user")
	require.NoError(t, err)
	require.Equal(t, "password123", user.Password)

	_, err = repo.CreateUser(ctx, model.User{Login: "test_user", Password: "other"})
	require.ErrorIs(t, err, errs.ErrLoginTaken)

	_, err = repo.GetUser(ctx, "nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)
}
