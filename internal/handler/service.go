package handler

import (
	"context"

	"github.com/bookfriends/lending-service/internal/model"
	"github.com/bookfriends/lending-service/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LendingService interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	GetBook(ctx context.Context, id int) (model.Book, error)
	AddBook(ctx context.Context, author, title string, year int) (model.Book, error)
	UpdateBook(ctx context.Context, id int, upd model.BookUpdate) error
	DeleteBook(ctx context.Context, id int) error
	VerifyUser(ctx context.Context, login, password string) error
}

var _ LendingService = (*service.Service)(nil)
