package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/kwetu-lab/elimu/apps/api/echo/handlers"
	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/session"
	"github.com/kwetu-lab/elimu/core/training"
)

type (
	Options struct {
		Addr           string
		DisableReqLogs bool
		TrainingSvc    *training.Service
		Sessions       *session.Registry
		Conf           *core.Config
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	debug := s.opts.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.opts.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = AppHTTPErrorHandler
	s.app.Debug = debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	handlers.RegisterSessionAPI(v1, s.opts.Sessions)
	handlers.RegisterContentAPI(v1, s.opts.TrainingSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Elimu Player API!")
}
