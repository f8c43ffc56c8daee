package model

import (
	"fmt"
	"strings"

	"github.com/bookfriends/lending-service/internal/errs"
)

// Book maps a row of the ksiazki table. The wire names (json and db tags)
// follow the legacy Polish schema so that mirror snapshots and API payloads
// stay byte-compatible with the historical data files.
type Book struct {
	ID     int    `json:"id" db:"id"`
	Author string `json:"autor" db:"autor"`
	Title  string `json:"tytul" db:"tytul"`
	Year   int    `json:"rok_wydania" db:"rok_wydania"`
}

// NewBook validates input before the row ever reaches the store. The year
// check is duplicated by a CHECK constraint on the table.
func NewBook(author, title string, year int) (Book, error) {
	if year <= 0 {
		return Book{}, errs.NewValidationError("rok wydania musi byc dodatni")
	}
	if strings.TrimSpace(author) == "" {
		return Book{}, errs.NewValidationError("autor nie moze byc pusty")
	}
	return Book{Author: author, Title: title, Year: year}, nil
}

func (b Book) String() string {
	return fmt.Sprintf("Book(id=%d, author='%s', title='%s', year=%d)", b.ID, b.Author, b.Title, b.Year)
}

type Friend struct {
	ID    int    `json:"id" db:"id"`
	Name  string `json:"imie" db:"imie"`
	Email string `json:"email" db:"email"`
}

// NewFriend checks only presence. The email format pattern and uniqueness
// are enforced by table constraints, not here.
func NewFriend(name, email string) (Friend, error) {
	if strings.TrimSpace(name) == "" {
		return Friend{}, errs.NewValidationError("imie nie moze byc puste")
	}
	if email == "" {
		return Friend{}, errs.NewValidationError("email nie moze byc pusty")
	}
	return Friend{Name: name, Email: email}, nil
}

func (f Friend) String() string {
	return fmt.Sprintf("Friend(id=%d, name='%s', email='%s')", f.ID, f.Name, f.Email)
}

// Loan is a join record. Its existence denotes "currently borrowed";
// a return removes the row. Date is stored date-only (YYYY-MM-DD).
type Loan struct {
	ID       int    `json:"id" db:"id"`
	BookID   int    `json:"ksiazka_id" db:"ksiazka_id"`
	FriendID int    `json:"przyjaciel_id" db:"przyjaciel_id"`
	Date     string `json:"data_wypozyczenia" db:"data_wypozyczenia"`
}

func (l Loan) String() string {
	return fmt.Sprintf("Loan(id=%d, book_id=%d, friend_id=%d, date='%s')", l.ID, l.BookID, l.FriendID, l.Date)
}

// User is a Basic-auth principal.
type User struct {
	ID       int    `json:"id" db:"id"`
	Login    string `json:"login" db:"login"`
	Password string `json:"-" db:"haslo"`
}

type CreateBookRequest struct {
	Author string `json:"autor" validate:"required"`
	Title  string `json:"tytul" validate:"required"`
	Year   int    `json:"rok_wydania" validate:"required"`
}

// BookUpdate is a partial update: nil fields keep the stored value.
// Update-time mutation intentionally skips constructor validation.
type BookUpdate struct {
	Author *string `json:"autor"`
	Title  *string `json:"tytul"`
	Year   *int    `json:"rok_wydania"`
}

func (u BookUpdate) Empty() bool {
	return u.Author == nil && u.Title == nil && u.Year == nil
}

// BorrowResult reports the outcome of a borrow attempt. AlreadyBorrowed is
// a soft conflict: the caller proceeds and no state changed.
type BorrowResult struct {
	Loan            Loan
	Book            Book
	Friend          Friend
	AlreadyBorrowed bool
}

// ReturnResult reports the outcome of a return attempt.
type ReturnResult struct {
	Book        Book
	NotBorrowed bool
}
