// Package cli exposes the lending operations as subcommands. The
// command and flag names keep the legacy Polish surface so existing
// scripts continue to work.
package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookfriends/lending-service/app"
	"github.com/bookfriends/lending-service/config"
	"github.com/bookfriends/lending-service/internal/mirror"
	"github.com/bookfriends/lending-service/internal/repository"
	"github.com/bookfriends/lending-service/internal/service"
	"github.com/bookfriends/lending-service/migrations"
	"github.com/bookfriends/lending-service/pkg/database"
)

func New(cfg *config.Config, log *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "lending",
		Short:         "Przyjacielskie wypozyczenia ksiazek",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newAddBookCmd(cfg, log),
		newAddFriendCmd(cfg, log),
		newBorrowCmd(cfg, log),
		newReturnCmd(cfg, log),
		newListBooksCmd(cfg, log),
		newListFriendsCmd(cfg, log),
		newReloadCmd(cfg, log),
		newAddUserCmd(cfg, log),
		newAPICmd(cfg),
	)
	return root
}

// withService opens the store, builds the loan engine and hands it to
// the command body. The connection lives for a single command.
func withService(cfg *config.Config, log *zap.Logger, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := context.Background()
	db, err := database.New(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return errors.Wrap(err, "repo")
	}
	svc := service.NewService(repo, mirror.NewStore(cfg.Mirror.Dir, log), log,
		service.WithLegacyReturn(cfg.LegacyReturn),
		service.WithBcryptAuth(cfg.Auth.Bcrypt),
	)
	return fn(ctx, svc)
}

func newAddBookCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var (
		author string
		title  string
		year   int
	)
	cmd := &cobra.Command{
		Use:   "dodaj_ksiazke",
		Short: "Dodaj nowa ksiazke",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				book, err := svc.AddBook(ctx, author, title, year)
				if err != nil {
					return err
				}
				fmt.Printf("Ksiazka %s zostala dodana.\n", book.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&author, "autor", "", "Autor ksiazki")
	cmd.Flags().StringVar(&title, "tytul", "", "Tytul ksiazki")
	cmd.Flags().IntVar(&year, "rok", 0, "Rok wydania")
	_ = cmd.MarkFlagRequired("autor")
	_ = cmd.MarkFlagRequired("tytul")
	_ = cmd.MarkFlagRequired("rok")
	return cmd
}

func newAddFriendCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var (
		name  string
		email string
	)
	cmd := &cobra.Command{
		Use:   "dodaj_przyjaciela",
		Short: "Dodaj nowego przyjaciela",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				friend, err := svc.AddFriend(ctx, name, email)
				if err != nil {
					return err
				}
				fmt.Printf("Przyjaciel %s zostal dodany.\n", friend.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "imie", "", "Imie przyjaciela")
	cmd.Flags().StringVar(&email, "email", "", "Email przyjaciela")
	_ = cmd.MarkFlagRequired("imie")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newBorrowCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var (
		bookID   int
		friendID int
	)
	cmd := &cobra.Command{
		Use:   "wypozycz_ksiazke",
		Short: "Wypozycz ksiazke",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Borrow(ctx, bookID, friendID)
				if err != nil {
					return err
				}
				if res.AlreadyBorrowed {
					fmt.Printf("Ksiazka '%s' jest juz wypozyczona.\n", res.Book.Title)
					return nil
				}
				fmt.Printf("Wypozyczono ksiazke: %s od %s (%s)\n",
					res.Book.Title, res.Friend.Name, res.Friend.Email)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&bookID, "ksiazka_id", 0, "ID ksiazki do wypozyczenia")
	cmd.Flags().IntVar(&friendID, "przyjaciel_id", 0, "ID przyjaciela wypozyczajacego ksiazke")
	_ = cmd.MarkFlagRequired("ksiazka_id")
	_ = cmd.MarkFlagRequired("przyjaciel_id")
	return cmd
}

func newReturnCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var bookID int
	cmd := &cobra.Command{
		Use:   "oddaj_ksiazke",
		Short: "Oddaj wypozyczona ksiazke",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				res, err := svc.Return(ctx, bookID)
				if err != nil {
					return err
				}
				if res.NotBorrowed {
					fmt.Println("Ksiazka nie jest aktualnie wypozyczona.")
					return nil
				}
				fmt.Printf("Oddano ksiazke: %s\n", res.Book.Title)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&bookID, "ksiazka_id", 0, "ID ksiazki do oddania")
	_ = cmd.MarkFlagRequired("ksiazka_id")
	return cmd
}

func newListBooksCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "lista_ksiazek",
		Short: "Wyswietl wszystkie ksiazki",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				books, err := svc.ListBooks(ctx)
				if err != nil {
					return err
				}
				for _, b := range books {
					fmt.Println(b.String())
				}
				return nil
			})
		},
	}
}

func newListFriendsCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "lista_przyjaciol",
		Short: "Wyswietl wszystkich przyjaciol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				friends, err := svc.ListFriends(ctx)
				if err != nil {
					return err
				}
				for _, f := range friends {
					fmt.Println(f.String())
				}
				return nil
			})
		},
	}
}

func newReloadCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "zaladuj_dane",
		Short: "Zaladuj dane z plikow JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				if err := svc.Reload(ctx); err != nil {
					return err
				}
				fmt.Println("Dane zostaly zaladowane.")
				return nil
			})
		},
	}
}

func newAddUserCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var (
		login    string
		password string
	)
	cmd := &cobra.Command{
		Use:   "dodaj_uzytkownika",
		Short: "Dodaj uzytkownika API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cfg, log, func(ctx context.Context, svc *service.Service) error {
				user, err := svc.AddUser(ctx, login, password)
				if err != nil {
					return err
				}
				fmt.Printf("Uzytkownik %s zostal dodany.\n", user.Login)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "Login uzytkownika")
	cmd.Flags().StringVar(&password, "haslo", "", "Haslo uzytkownika")
	_ = cmd.MarkFlagRequired("login")
	_ = cmd.MarkFlagRequired("haslo")
	return cmd
}

func newAPICmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "api",
		Short: "Uruchom serwer REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cfg)
		},
	}
}
