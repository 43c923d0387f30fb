// Package api implements a development stand-in for the remote endpoint:
// the same one-URL contract the client syncs against (action=getData pulls,
// JSON action envelopes, login), backed by its own Store. It exists for
// local development and integration tests; production talks to the real
// endpoint.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

type (
	Options struct {
		Conf           *core.Config
		Store          *classroom.Store
		Log            core.Logger
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo

		adminPasswordHash []byte
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
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.adminPasswordHash = []byte(conf.Server.AdminPasswordHash)
	if len(s.adminPasswordHash) == 0 {
		// DEV fallback: admin/admin
		hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
		if err != nil {
			s.app.Logger.Fatal(err)
		}
		s.adminPasswordHash = hash
		s.opts.Log.Warn("no admin password hash configured; using the DEV default")
	}

	s.app.GET("/", s.pull)
	s.app.POST("/", s.push)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Conf.Server.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// pull serves the full data set for `?action=getData`.
func (s *server) pull(ctx echo.Context) error {
	if ctx.QueryParam("action") != "getData" {
		return ctx.String(http.StatusOK, "Darasa endpoint emulator")
	}
	return ctx.JSON(http.StatusOK, s.opts.Store.State())
}

type (
	pushReply struct {
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
		Token   string `json:"token,omitempty"`
	}

	loginRequest struct {
		Action   string `json:"action"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
)

func errorReply(msg string) pushReply {
	return pushReply{Status: "error", Message: msg}
}

// push accepts one action envelope. Unknown actions and invalid payloads
// reply with a non-success status rather than an HTTP error, matching the
// contract the client retries against.
func (s *server) push(ctx echo.Context) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorReply("unreadable body"))
	}

	var env struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorReply("invalid JSON"))
	}

	if env.Action == "login" {
		return s.login(ctx, body)
	}

	action, err := classroom.DecodeAction(body)
	if err != nil {
		return ctx.JSON(http.StatusOK, errorReply(err.Error()))
	}
	if err := classroom.ValidateAction(action); err != nil {
		return ctx.JSON(http.StatusOK, errorReply(err.Error()))
	}
	if err := s.opts.Store.Apply(action); err != nil {
		s.opts.Log.Error("applying action", err)
		return ctx.JSON(http.StatusInternalServerError, errorReply("persistence failure"))
	}
	return ctx.JSON(http.StatusOK, pushReply{Status: "success"})
}

func (s *server) login(ctx echo.Context, body []byte) error {
	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorReply("invalid JSON"))
	}

	conf := s.opts.Conf
	if core.CleanString(req.Username, true) != core.CleanString(conf.Server.AdminUsername, true) ||
		bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(req.Password)) != nil {
		return ctx.JSON(http.StatusOK, errorReply("invalid credentials"))
	}

	claims := jwt.StandardClaims{
		Subject:   req.Username,
		IssuedAt:  classroom.NowFunc().Unix(),
		ExpiresAt: classroom.NowFunc().Add(conf.Server.TokenExpirationDelta).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(conf.Server.SecretKey))
	if err != nil {
		s.opts.Log.Error("signing session token", err)
		return ctx.JSON(http.StatusInternalServerError, errorReply("token failure"))
	}
	return ctx.JSON(http.StatusOK, pushReply{Status: "success", Token: token})
}
