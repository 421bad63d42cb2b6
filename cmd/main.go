package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	discount "trx_discount_back"
	"trx_discount_back/pkg/config"
	"trx_discount_back/pkg/handler"
	"trx_discount_back/pkg/jobs"
	"trx_discount_back/pkg/service"
	"trx_discount_back/pkg/tronclient"
	"trx_discount_back/pkg/utils"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))
	logrus.Infoln("Starting TRX discount server")
	if err := godotenv.Load(); err != nil {
		logrus.Infof("no .env file loaded: %s", err)
	}
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(lvl)
	}

	v := viper.New()
	if err := config.InitConfig(v); err != nil {
		logrus.Fatalf("failed to read configs/config.yaml: %s", err)
	}
	cfg, err := config.Load(v)
	if err != nil {
		logrus.Fatalf("invalid configuration: %s", err)
	}
	logrus.Infoln("configuration loaded")

	tron, err := tronclient.NewTronHTTPClient(cfg.Tron)
	if err != nil {
		logrus.Fatalf("failed to init TronGrid client: %s", err)
	}
	if tron.DefaultAddress() == "" {
		logrus.Warn("TRON_PRIVATE_KEY not set, every purchase will use the manual payment path")
	}

	var notifier service.Notifier
	if mj := utils.NewMailjetNotifier(cfg.Notify); mj != nil {
		notifier = mj
	} else {
		logrus.Info("mailjet keys not set, operator notifications disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services := service.NewService(cfg, tron, notifier, nil)
	services.Start(ctx)

	worker := jobs.NewWorker(services.Rates, services.History, cfg.Oracle, cfg.History)
	if err := worker.Start(); err != nil {
		logrus.Fatalf("failed to start refresh worker: %s", err)
	}

	handlers := handler.NewHandler(services, cfg.Server.AllowOrigins, cfg.Server.APIToken)

	srv := new(discount.Server)
	go func() {
		logrus.Infof("listening on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Run(cfg.Server.Host, cfg.Server.Port, handlers.InitRoute()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server stopped: %s", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("server shutdown: %s", err)
	}
	worker.Stop()
	services.Stop()
}
