package http_interface

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	appconfig "github.com/javimaravillas/elixir-omg/internal/app-config"
	http_handler "github.com/javimaravillas/elixir-omg/internal/interfaces/http/handler"
)

type service struct {
	config    ServiceConfig
	appConfig *appconfig.AppConfig
	echo      *echo.Echo

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewService(
	config ServiceConfig, appConfig *appconfig.AppConfig,
) (*service, error) {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.Infof(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	return &service{config, appConfig, nil, logFn, warnFn}, nil
}

func (s *service) Start() error {
	txSvc, err := s.appConfig.TransactionService()
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	http_handler.NewTransactionHandler(txSvc).RegisterRoutes(e)

	go func() {
		if err := e.Start(s.config.address()); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.warn(err, "error while listening on %s", s.config.address())
		}
	}()

	s.log("start listening on %s", s.config.address())

	s.echo = e
	return nil
}

func (s *service) Stop() {
	if s.echo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint
		s.echo.Shutdown(ctx)
		s.log("stopped http server")
	}

	s.appConfig.RepoManager().Close()
	s.log("closed connection with db")
	s.log("shutdown")
}
