package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/libreria/reservation-service/config"
	"github.com/libreria/reservation-service/internal/handler"
	"github.com/libreria/reservation-service/internal/repository"
	"github.com/libreria/reservation-service/internal/rpc"
	"github.com/libreria/reservation-service/internal/server"
	"github.com/libreria/reservation-service/internal/service/auth"
	"github.com/libreria/reservation-service/internal/service/reservation"
	"github.com/libreria/reservation-service/migrations"
	"github.com/libreria/reservation-service/pkg/logger"
	"github.com/libreria/reservation-service/pkg/postgres"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}
	reservationSvc := reservation.NewService(repo, log)
	authSvc := auth.NewService(repo, cfg.Auth, log)
	dispatcher := rpc.NewDispatcher(reservationSvc, log)

	h := handler.New(authSvc, dispatcher, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}
