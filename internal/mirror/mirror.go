// Package mirror maintains denormalized JSON snapshots of the store
// tables. Every mutation rewrites the affected snapshot in full; the
// files double as the input for bulk reload.
package mirror

import (
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookfriends/lending-service/internal/model"
)

const (
	BooksFile   = "ksiazki.json"
	FriendsFile = "przyjaciele.json"
	LoansFile   = "wypozyczenia.json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Store struct {
	dir string
	log *zap.Logger
}

func NewStore(dir string, log *zap.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.Named("mirror"),
	}
}

func (s *Store) WriteBooks(books []model.Book) error {
	if books == nil {
		books = []model.Book{}
	}
	return s.write(BooksFile, books)
}

func (s *Store) WriteFriends(friends []model.Friend) error {
	if friends == nil {
		friends = []model.Friend{}
	}
	return s.write(FriendsFile, friends)
}

func (s *Store) WriteLoans(loans []model.Loan) error {
	if loans == nil {
		loans = []model.Loan{}
	}
	return s.write(LoansFile, loans)
}

func (s *Store) ReadBooks() ([]model.Book, error) {
	var books []model.Book
	err := s.read(BooksFile, &books)
	return books, err
}

func (s *Store) ReadFriends() ([]model.Friend, error) {
	var friends []model.Friend
	err := s.read(FriendsFile, &friends)
	return friends, err
}

func (s *Store) ReadLoans() ([]model.Loan, error) {
	var loans []model.Loan
	err := s.read(LoansFile, &loans)
	return loans, err
}

// RemoveLoans rewrites the loans snapshot without the records that
// reference bookID. Only the snapshot is touched here; row deletion is
// the service's call.
func (s *Store) RemoveLoans(bookID int) error {
	loans, err := s.ReadLoans()
	if err != nil {
		return err
	}
	kept := make([]model.Loan, 0, len(loans))
	for _, l := range loans {
		if l.BookID != bookID {
			kept = append(kept, l)
		}
	}
	return s.WriteLoans(kept)
}

func (s *Store) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.Wrap(err, "mirror dir")
	}
	// Write to a temp file and rename so readers never observe a
	// half-written snapshot.
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "temp %s", name)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "write %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "close %s", name)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "rename %s", name)
	}
	s.log.Debug("snapshot written", zap.String("file", name))
	return nil
}

// read unmarshals a snapshot; a missing file reads as an empty one.
func (s *Store) read(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read %s", name)
	}
	return errors.Wrapf(json.Unmarshal(data, v), "unmarshal %s", name)
}
