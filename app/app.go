package app

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bookfriends/lending-service/config"
	"github.com/bookfriends/lending-service/internal/handler"
	"github.com/bookfriends/lending-service/internal/mirror"
	"github.com/bookfriends/lending-service/internal/repository"
	"github.com/bookfriends/lending-service/internal/server"
	"github.com/bookfriends/lending-service/internal/service"
	"github.com/bookfriends/lending-service/migrations"
	"github.com/bookfriends/lending-service/pkg/database"
	"github.com/bookfriends/lending-service/pkg/logger"
)

// Run starts the REST API and blocks until SIGTERM/SIGINT.
func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "lending")
	db, err := database.New(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return errors.Wrap(err, "repo")
	}
	mirrorStore := mirror.NewStore(cfg.Mirror.Dir, log)
	svc := service.NewService(repo, mirrorStore, log,
		service.WithLegacyReturn(cfg.LegacyReturn),
		service.WithBcryptAuth(cfg.Auth.Bcrypt),
	)
	h := handler.New(svc, log)

	srv := server.NewServer(cfg.Server, h.NewRouter(cfg.Auth))
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown")
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		return srv.Stop(closeCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("server run", zap.Error(err))
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}
