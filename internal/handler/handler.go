package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookfriends/lending-service/config"
	"github.com/bookfriends/lending-service/internal/errs"
	"github.com/bookfriends/lending-service/internal/model"
	md "github.com/bookfriends/lending-service/pkg/middleware"
	"github.com/bookfriends/lending-service/pkg/validate"
)

const (
	homeBody        = "<h1>Przyjacielskie wypozyczenia ksiazek</h1>"
	msgBookNotFound = "Ksiazka nie istnieje."
	msgNoUpdateData = "Brak danych do aktualizacji."
)

type Handler struct {
	svc LendingService
	log *zap.Logger
}

func New(svc LendingService, log *zap.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log,
	}
}

// NewRouter wires the REST surface. The read endpoints sit behind Basic
// auth; DELETE/POST/PUT are unguarded, which mirrors the historical
// server and is kept for behavioral parity.
func (h *Handler) NewRouter(authCfg config.Auth) *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)

	e.Validator = validate.NewCustomValidator()
	api := e.Group("",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig()),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
		md.NewRateLimiter(apiRPS),
	)

	auth := md.BasicAuth(authCfg.Realm, h.svc.VerifyUser)
	api.GET("/", h.Home, auth)
	api.GET("/ksiazki", h.GetBooks, auth)
	api.GET("/ksiazka/:id", h.GetBook, auth)
	api.DELETE("/ksiazka/:id", h.DeleteBook)
	api.POST("/ksiazka/:autor/:tytul/:rok", h.CreateBook)
	api.PUT("/ksiazka/:id", h.UpdateBook)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Home(c echo.Context) error {
	return c.HTML(http.StatusOK, homeBody)
}

func (h *Handler) GetBooks(c echo.Context) error {
	books, err := h.svc.ListBooks(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if books == nil {
		books = []model.Book{}
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) GetBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	book, err := h.svc.GetBook(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": msgBookNotFound})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	if err := h.svc.DeleteBook(c.Request().Context(), id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": msgBookNotFound})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateBook takes the book fields from the path, as the legacy API
// did. Constructor validation failures surface as 500: the historical
// server had no handler for them.
func (h *Handler) CreateBook(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("rok"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "rok is invalid")
	}
	req := model.CreateBookRequest{
		Author: c.Param("autor"),
		Title:  c.Param("tytul"),
		Year:   year,
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if _, err := h.svc.AddBook(c.Request().Context(), req.Author, req.Title, req.Year); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "id is invalid")
	}
	var upd model.BookUpdate
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msgNoUpdateData})
	}
	if upd.Empty() {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": msgNoUpdateData})
	}
	if err := h.svc.UpdateBook(c.Request().Context(), id, upd); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": msgBookNotFound})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
