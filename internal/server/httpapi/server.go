// Package httpapi exposes the account and session operations over a JSON
// HTTP API built on gin.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// AuthService is satisfied by services.AuthService.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*services.SignInResult, error)
	OAuthLogin(ctx context.Context, p *services.Principal) (*services.OAuthLoginResult, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*services.RefreshResult, error)
	ForgotPassword(ctx context.Context, email string) (*services.Result, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) (*services.Result, error)
}

// UserService is satisfied by services.UserService.
type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.UserResult, error)
	GetProfile(ctx context.Context, id int64) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, upd services.ProfileUpdate) (*services.UserResult, error)
	UploadAvatar(ctx context.Context, id int64, filename, contentType string, body io.Reader) (*services.AvatarResult, error)
	ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) (*services.Result, error)
	DeleteAccount(ctx context.Context, id int64) (*services.Result, error)
}

// TokenVerifier is satisfied by auth.Issuer.
type TokenVerifier interface {
	Verify(kind auth.TokenKind, token string) (*auth.Payload, error)
}

// GoogleProvider is satisfied by oauth.Google.
type GoogleProvider interface {
	AuthCodeURL(state string) string
	Principal(ctx context.Context, code string) (*services.Principal, error)
}

// Server owns the gin engine and its http.Server.
type Server struct {
	address string
	logger  logging.Logger
	auth    AuthService
	users   UserService
	tokens  TokenVerifier
	google  GoogleProvider
	engine  *gin.Engine

	// SecureCookies marks the OAuth state cookie Secure.
	SecureCookies bool
}

// NewServer wires the routes. google may be nil, which turns the Google
// endpoints into 404s.
func NewServer(address string, l logging.Logger, a AuthService, u UserService, tv TokenVerifier, g GoogleProvider) *Server {
	if l == nil {
		l = logging.Nop{}
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		address: address,
		logger:  l.With("module", "http_server"),
		auth:    a,
		users:   u,
		tokens:  tv,
		google:  g,
		engine:  gin.New(),
	}
	s.engine.MaxMultipartMemory = maxAvatarBytes
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s
}

func (s *Server) routes() {
	a := s.engine.Group("/auth")
	a.POST("/sign-in", s.signIn)
	a.GET("/google", s.googleAuth)
	a.GET("/google/redirect", s.googleRedirect)
	a.POST("/refresh-token", s.refreshToken)
	a.POST("/forgot-password", s.forgotPassword)
	a.POST("/reset-password", s.resetPassword)

	u := s.engine.Group("/users")
	u.POST("/register", s.register)

	authed := u.Group("", s.bearerAuth())
	authed.GET("/my-profile", s.myProfile)
	authed.PATCH("/update-profile", s.updateProfile)
	authed.POST("/upload-avatar", s.uploadAvatar)
	authed.POST("/change-password", s.changePassword)
	authed.DELETE("/delete-account", s.deleteAccount)
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		errCh <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-errCh
}
