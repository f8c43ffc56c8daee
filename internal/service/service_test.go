package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookfriends/lending-service/internal/errs"
	"github.com/bookfriends/lending-service/internal/mirror"
	"github.com/bookfriends/lending-service/internal/model"
	"github.com/bookfriends/lending-service/internal/repository"
	"github.com/bookfriends/lending-service/internal/service"
	"github.com/bookfriends/lending-service/migrations"
	"github.com/bookfriends/lending-service/pkg/database"
)

var testDay = time.Date(2024, 5, 12, 15, 4, 5, 0, time.UTC)

type fixture struct {
	svc       *service.Service
	repo      repository.Repository
	mirror    *mirror.Store
	mirrorDir string
}

func newFixture(t *testing.T, opts ...service.Option) *fixture {
	t.Helper()
	cfg := database.Config{
		Driver: database.DriverSqlite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := database.New(context.Background(), &cfg, migrations.MigrationFiles)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := zap.NewExample().Named("test")
	repo, err := repository.NewRepository(db, log)
	require.NoError(t, err)

	mirrorDir := t.TempDir()
	mirrorStore := mirror.NewStore(mirrorDir, log)

	opts = append([]service.Option{service.WithClock(func() time.Time { return testDay })}, opts...)
	return &fixture{
		svc:       service.NewService(repo, mirrorStore, log, opts...),
		repo:      repo,
		mirror:    mirrorStore,
		mirrorDir: mirrorDir,
	}
}

func (f *fixture) loansSnapshot(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.mirrorDir, mirror.LoansFile))
	require.NoError(t, err)
	return data
}

func TestService_AddBookExportsMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.svc.AddBook(ctx, "Orwell", "1984", 1949)
	require.NoError(t, err)
	require.Equal(t, 1, book.ID)

	books, err := f.mirror.ReadBooks()
	require.NoError(t, err)
	require.Equal(t, []model.Book{{ID: 1, Author: "Orwell", Title: "1984", Year: 1949}}, books)

	_, err = f.svc.AddBook(ctx, "", "Anonim", 2000)
	require.True(t, errs.IsValidation(err))
}

func TestService_AddFriendExportsMirror(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	friend, err := f.svc.AddFriend(ctx, "Alice", "a@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, friend.ID)

	friends, err := f.mirror.ReadFriends()
	require.NoError(t, err)
	require.Len(t, friends, 1)

	_, err = f.svc.AddFriend(ctx, "Alicja", "a@example.com")
	require.ErrorIs(t, err, errs.ErrEmailTaken)
}

func TestService_BorrowAndReturnScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.svc.AddBook(ctx, "Orwell", "1984", 1949)
	require.NoError(t, err)
	friend, err := f.svc.AddFriend(ctx, "Alice", "a@example.com")
	require.NoError(t, err)

	res, err := f.svc.Borrow(ctx, book.ID, friend.ID)
	require.NoError(t, err)
	require.False(t, res.AlreadyBorrowed)
	require.Equal(t, "1984", res.Book.Title)
	require.Equal(t, "Alice", res.Friend.Name)
	require.Equal(t, "2024-05-12", res.Loan.Date)

	loans, err := f.mirror.ReadLoans()
	require.NoError(t, err)
	require.Equal(t, []model.Loan{{ID: 1, BookID: 1, FriendID: 1, Date: "2024-05-12"}}, loans)
	snapshot := f.loansSnapshot(t)

	// Second borrow is a soft conflict: no mutation, mirror untouched.
	res, err = f.svc.Borrow(ctx, book.ID, friend.ID)
	require.NoError(t, err)
	require.True(t, res.AlreadyBorrowed)
	require.Equal(t, snapshot, f.loansSnapshot(t))

	storeLoans, err := f.repo.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, storeLoans, 1)

	// Return removes the loan from store and mirror.
	ret, err := f.svc.Return(ctx, book.ID)
	require.NoError(t, err)
	require.False(t, ret.NotBorrowed)
	require.Equal(t, "1984", ret.Book.Title)

	loans, err = f.mirror.ReadLoans()
	require.NoError(t, err)
	require.Empty(t, loans)
	_, err = f.repo.ActiveLoan(ctx, book.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// Returning again is a soft no-op.
	ret, err = f.svc.Return(ctx, book.ID)
	require.NoError(t, err)
	require.True(t, ret.NotBorrowed)
}

func TestService_BorrowUnknownRefs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Borrow(ctx, 999, 1)
	require.ErrorIs(t, err, errs.ErrNotFound)

	book, err := f.svc.AddBook(ctx, "Orwell", "1984", 1949)
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, book.ID, 999)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

// Legacy mode keeps the store row on return and only rewrites the
// mirror; a later borrow still sees the stale loan.
func TestService_LegacyReturnKeepsStoreRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, service.WithLegacyReturn(true))

	book, err := f.svc.AddBook(ctx, "Orwell", "1984", 1949)
	require.NoError(t, err)
	friend, err := f.svc.AddFriend(ctx, "Alice", "a@example.com")
	require.NoError(t, err)

	_, err = f.svc.Borrow(ctx, book.ID, friend.ID)
	require.NoError(t, err)

	ret, err := f.svc.Return(ctx, book.ID)
	require.NoError(t, err)
	require.False(t, ret.NotBorrowed)

	loans, err := f.mirror.ReadLoans()
	require.NoError(t, err)
	require.Empty(t, loans)

	// The authoritative row survived.
	_, err = f.repo.ActiveLoan(ctx, book.ID)
	require.NoError(t, err)
	res, err := f.svc.Borrow(ctx, book.ID, friend.ID)
	require.NoError(t, err)
	require.True(t, res.AlreadyBorrowed)
}

func TestService_Reload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Seed snapshots directly, as if produced by a previous run.
	require.NoError(t, f.mirror.WriteBooks([]model.Book{
		{ID: 1, Author: "Orwell", Title: "1984", Year: 1949},
		{ID: 2, Author: "Lem", Title: "Solaris", Year: 1961},
	}))
	require.NoError(t, f.mirror.WriteFriends([]model.Friend{
		{ID: 1, Name: "Alice", Email: "a@example.com"},
	}))
	require.NoError(t, f.mirror.WriteLoans([]model.Loan{
		{ID: 1, BookID: 1, FriendID: 1, Date: "2024-01-01"},
		// Inconsistent snapshot: a second loan for the same book is
		// silently dropped on replay.
		{ID: 2, BookID: 1, FriendID: 1, Date: "2024-01-02"},
	}))

	require.NoError(t, f.svc.Reload(ctx))

	books, err := f.repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	friends, err := f.repo.ListFriends(ctx)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	loans, err := f.repo.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
}

// Books carry no natural key, so a second reload re-creates them.
// Friends de-duplicate on email, loans on the active-loan check.
func TestService_ReloadTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.mirror.WriteBooks([]model.Book{
		{ID: 1, Author: "Orwell", Title: "1984", Year: 1949},
	}))
	require.NoError(t, f.mirror.WriteFriends([]model.Friend{
		{ID: 1, Name: "Alice", Email: "a@example.com"},
	}))
	require.NoError(t, f.mirror.WriteLoans([]model.Loan{
		{ID: 1, BookID: 1, FriendID: 1, Date: "2024-01-01"},
	}))

	require.NoError(t, f.svc.Reload(ctx))
	require.NoError(t, f.svc.Reload(ctx))

	books, err := f.repo.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	friends, err := f.repo.ListFriends(ctx)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	loans, err := f.repo.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, loans, 1)
}

func TestService_ReloadValidatesRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.mirror.WriteBooks([]model.Book{
		{ID: 1, Author: "Orwell", Title: "1984", Year: -1},
	}))

	err := f.svc.Reload(ctx)
	require.Error(t, err)
	require.True(t, errs.IsValidation(err))
}

func TestService_Users(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.AddUser(ctx, "test_user", "password123")
	require.NoError(t, err)

	require.NoError(t, f.svc.VerifyUser(ctx, "test_user", "password123"))
	require.ErrorIs(t, f.svc.VerifyUser(ctx, "test_user", "wrong_password"), errs.ErrAccessDenied)
	require.ErrorIs(t, f.svc.VerifyUser(ctx, "invalid_user", "password123"), errs.ErrAccessDenied)

	_, err = f.svc.AddUser(ctx, "", "")
	require.True(t, errs.IsValidation(err))
}

func TestService_UsersBcrypt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, service.WithBcryptAuth(true))

	user, err := f.svc.AddUser(ctx, "test_user", "password123")
	require.NoError(t, err)
	require.NotEqual(t, "password123", user.Password)

	require.NoError(t, f.svc.VerifyUser(ctx, "test_user", "password123"))
	require.ErrorIs(t, f.svc.VerifyUser(ctx, "test_user", "wrong_password"), errs.ErrAccessDenied)
}

func TestService_UpdateBookSkipsValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	book, err := f.svc.AddBook(ctx, "Orwell", "1984", 1949)
	require.NoError(t, err)

	// Update-time mutation bypasses constructor checks; only the table
	// constraint can still object.
	empty := ""
	require.NoError(t, f.svc.UpdateBook(ctx, book.ID, model.BookUpdate{Author: &empty}))
	got, err := f.svc.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.Equal(t, "", got.Author)

	bad := -10
	require.Error(t, f.svc.UpdateBook(ctx, book.ID, model.BookUpdate{Year: &bad}))
}
