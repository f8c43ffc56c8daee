package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookfriends/lending-service/internal/errs"
	"github.com/bookfriends/lending-service/internal/mirror"
	"github.com/bookfriends/lending-service/internal/model"
	"github.com/bookfriends/lending-service/internal/repository"
)

// Service is the loan state engine. Every mutating operation commits to
// the store first and then exports a full snapshot of the affected
// table to the mirror.
type Service struct {
	log    *zap.Logger
	repo   repository.Repository
	mirror *mirror.Store

	legacyReturn bool
	bcryptAuth   bool
	now          func() time.Time
}

type Option func(*Service)

// WithClock overrides the loan-date clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLegacyReturn keeps the loan row in the store on return and only
// removes it from the mirror, as the historical implementation did.
func WithLegacyReturn(legacy bool) Option {
	return func(s *Service) { s.legacyReturn = legacy }
}

// WithBcryptAuth stores and verifies user passwords as bcrypt hashes
// instead of plaintext exact match.
func WithBcryptAuth(enabled bool) Option {
	return func(s *Service) { s.bcryptAuth = enabled }
}

func NewService(repo repository.Repository, mirrorStore *mirror.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:    log,
		repo:   repo,
		mirror: mirrorStore,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) AddBook(ctx context.Context, author, title string, year int) (model.Book, error) {
	book, err := model.NewBook(author, title, year)
	if err != nil {
		return model.Book{}, err
	}
	created, err := s.repo.CreateBook(ctx, book)
	if err != nil {
		return model.Book{}, err
	}
	if err := s.exportBooks(ctx); err != nil {
		return model.Book{}, err
	}
	s.log.Info("book added", zap.Int("id", created.ID), zap.String("tytul", created.Title))
	return created, nil
}

func (s *Service) AddFriend(ctx context.Context, name, email string) (model.Friend, error) {
	friend, err := model.NewFriend(name, email)
	if err != nil {
		return model.Friend{}, err
	}
	created, err := s.repo.CreateFriend(ctx, friend)
	if err != nil {
		return model.Friend{}, err
	}
	if err := s.exportFriends(ctx); err != nil {
		return model.Friend{}, err
	}
	s.log.Info("friend added", zap.Int("id", created.ID), zap.String("imie", created.Name))
	return created, nil
}

// Borrow creates a loan for the book unless one already exists. An
// existing loan is a soft conflict: the result reports it and nothing
// is mutated.
func (s *Service) Borrow(ctx context.Context, bookID, friendID int) (model.BorrowResult, error) {
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return model.BorrowResult{}, err
	}
	if _, err := s.repo.ActiveLoan(ctx, bookID); err == nil {
		return model.BorrowResult{Book: book, AlreadyBorrowed: true}, nil
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.BorrowResult{}, err
	}
	friend, err := s.repo.GetFriend(ctx, friendID)
	if err != nil {
		return model.BorrowResult{}, err
	}
	loan, err := s.repo.CreateLoan(ctx, model.Loan{
		BookID:   bookID,
		FriendID: friendID,
		Date:     s.now().Format(time.DateOnly),
	})
	if err != nil {
		return model.BorrowResult{}, err
	}
	if err := s.exportLoans(ctx); err != nil {
		return model.BorrowResult{}, err
	}
	s.log.Info("book borrowed",
		zap.Int("ksiazka_id", bookID),
		zap.Int("przyjaciel_id", friendID),
		zap.String("data", loan.Date))
	return model.BorrowResult{Loan: loan, Book: book, Friend: friend}, nil
}

// Return ends the active loan for the book. Without an active loan it
// reports a soft "not borrowed" and mutates nothing. In legacy mode the
// store row survives and only the mirror forgets the loan.
func (s *Service) Return(ctx context.Context, bookID int) (model.ReturnResult, error) {
	loan, err := s.repo.ActiveLoan(ctx, bookID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.ReturnResult{NotBorrowed: true}, nil
		}
		return model.ReturnResult{}, err
	}
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return model.ReturnResult{}, err
	}
	if !s.legacyReturn {
		if err := s.repo.DeleteLoan(ctx, loan.ID); err != nil {
			return model.ReturnResult{}, err
		}
	}
	if err := s.mirror.RemoveLoans(bookID); err != nil {
		return model.ReturnResult{}, err
	}
	s.log.Info("book returned", zap.Int("ksiazka_id", bookID), zap.Bool("legacy", s.legacyReturn))
	return model.ReturnResult{Book: book}, nil
}

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *Service) ListFriends(ctx context.Context) ([]model.Friend, error) {
	return s.repo.ListFriends(ctx)
}

func (s *Service) GetBook(ctx context.Context, id int) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

// UpdateBook applies a partial update without re-running constructor
// validation. The asymmetry with AddBook is inherited behavior, as is
// the fact that neither update nor delete refreshes the books mirror.
func (s *Service) UpdateBook(ctx context.Context, id int, upd model.BookUpdate) error {
	return s.repo.UpdateBook(ctx, id, upd)
}

func (s *Service) DeleteBook(ctx context.Context, id int) error {
	return s.repo.DeleteBook(ctx, id)
}

// Reload replays the three mirror snapshots through the normal entry
// points, books then friends then loans, so that the same validation
// applies as for live calls. Friends whose email is already present are
// skipped; duplicate loans are dropped by the borrow conflict check.
// Books carry no natural key and are re-created as new rows.
func (s *Service) Reload(ctx context.Context) error {
	books, err := s.mirror.ReadBooks()
	if err != nil {
		return err
	}
	friends, err := s.mirror.ReadFriends()
	if err != nil {
		return err
	}
	loans, err := s.mirror.ReadLoans()
	if err != nil {
		return err
	}

	for _, b := range books {
		if _, err := s.AddBook(ctx, b.Author, b.Title, b.Year); err != nil {
			return errors.Wrapf(err, "reload book %d", b.ID)
		}
	}
	for _, f := range friends {
		if _, err := s.AddFriend(ctx, f.Name, f.Email); err != nil {
			if errors.Is(err, errs.ErrEmailTaken) {
				s.log.Warn("reload: friend skipped", zap.Int("id", f.ID), zap.String("email", f.Email))
				continue
			}
			return errors.Wrapf(err, "reload friend %d", f.ID)
		}
	}
	for _, l := range loans {
		res, err := s.Borrow(ctx, l.BookID, l.FriendID)
		if err != nil {
			return errors.Wrapf(err, "reload loan %d", l.ID)
		}
		if res.AlreadyBorrowed {
			s.log.Warn("reload: loan dropped", zap.Int("id", l.ID), zap.Int("ksiazka_id", l.BookID))
		}
	}
	return nil
}

func (s *Service) AddUser(ctx context.Context, login, password string) (model.User, error) {
	if login == "" || password == "" {
		return model.User{}, errs.NewValidationError("login i haslo nie moga byc puste")
	}
	if s.bcryptAuth {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return model.User{}, err
		}
		password = string(hash)
	}
	return s.repo.CreateUser(ctx, model.User{Login: login, Password: password})
}

// VerifyUser checks Basic-auth credentials against the user store.
func (s *Service) VerifyUser(ctx context.Context, login, password string) error {
	user, err := s.repo.GetUser(ctx, login)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ErrAccessDenied
		}
		return err
	}
	if s.bcryptAuth {
		if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
			return errs.ErrAccessDenied
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) != 1 {
		return errs.ErrAccessDenied
	}
	return nil
}

func (s *Service) exportBooks(ctx context.Context) error {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return err
	}
	return s.mirror.WriteBooks(books)
}

func (s *Service) exportFriends(ctx context.Context) error {
	friends, err := s.repo.ListFriends(ctx)
	if err != nil {
		return err
	}
	return s.mirror.WriteFriends(friends)
}

func (s *Service) exportLoans(ctx context.Context) error {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return err
	}
	return s.mirror.WriteLoans(loans)
}
