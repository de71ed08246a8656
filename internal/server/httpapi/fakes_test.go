package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	signIn     func(email, password string) (*services.SignInResult, error)
	oauthLogin func(p *services.Principal) (*services.OAuthLoginResult, error)
	refresh    func(token string) (*services.RefreshResult, error)
	forgot     func(email string) (*services.Result, error)
	reset      func(email, code, pw string) (*services.Result, error)

	gotPrincipal *services.Principal
	oauthCalled  bool
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*services.SignInResult, error) {
	return f.signIn(email, password)
}

func (f *fakeAuth) OAuthLogin(_ context.Context, p *services.Principal) (*services.OAuthLoginResult, error) {
	f.oauthCalled = true
	f.gotPrincipal = p
	return f.oauthLogin(p)
}

func (f *fakeAuth) RefreshAccessToken(_ context.Context, token string) (*services.RefreshResult, error) {
	return f.refresh(token)
}

func (f *fakeAuth) ForgotPassword(_ context.Context, email string) (*services.Result, error) {
	return f.forgot(email)
}

func (f *fakeAuth) ResetPassword(_ context.Context, email, code, pw string) (*services.Result, error) {
	return f.reset(email, code, pw)
}

type avatarCall struct {
	id          int64
	filename    string
	contentType string
	body        []byte
}

type fakeUsers struct {
	register       func(in services.RegisterInput) (*services.UserResult, error)
	profile        func(id int64) (*models.User, error)
	update         func(id int64, upd services.ProfileUpdate) (*services.UserResult, error)
	changePassword func(id int64, oldPw, newPw string) (*services.Result, error)
	deleteAccount  func(id int64) (*services.Result, error)
	avatarErr      error

	avatar *avatarCall
}

func (f *fakeUsers) Register(_ context.Context, in services.RegisterInput) (*services.UserResult, error) {
	return f.register(in)
}

func (f *fakeUsers) GetProfile(_ context.Context, id int64) (*models.User, error) {
	return f.profile(id)
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id int64, upd services.ProfileUpdate) (*services.UserResult, error) {
	return f.update(id, upd)
}

func (f *fakeUsers) UploadAvatar(_ context.Context, id int64, filename, contentType string, body io.Reader) (*services.AvatarResult, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.avatar = &avatarCall{id: id, filename: filename, contentType: contentType, body: b}
	if f.avatarErr != nil {
		return nil, f.avatarErr
	}
	return &services.AvatarResult{Message: services.MsgAvatarUploaded, URL: "http://cdn/avatars/" + filename}, nil
}

func (f *fakeUsers) ChangePassword(_ context.Context, id int64, oldPw, newPw string) (*services.Result, error) {
	return f.changePassword(id, oldPw, newPw)
}

func (f *fakeUsers) DeleteAccount(_ context.Context, id int64) (*services.Result, error) {
	return f.deleteAccount(id)
}

type fakeGoogle struct {
	principal *services.Principal
	err       error
	gotCode   string
}

func (g *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (g *fakeGoogle) Principal(_ context.Context, code string) (*services.Principal, error) {
	g.gotCode = code
	return g.principal, g.err
}

func newIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	iss, err := auth.NewIssuer(
		auth.KeyConfig{Secret: []byte("access-secret"), TTL: time.Minute},
		auth.KeyConfig{Secret: []byte("refresh-secret"), TTL: time.Hour},
	)
	require.NoError(t, err)
	return iss
}

type harness struct {
	srv    *Server
	auth   *fakeAuth
	users  *fakeUsers
	google *fakeGoogle
	iss    *auth.Issuer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{auth: &fakeAuth{}, users: &fakeUsers{}, google: &fakeGoogle{}, iss: newIssuer(t)}
	h.srv = NewServer(":0", nil, h.auth, h.users, h.iss, h.google)
	return h
}

func (h *harness) bearer(t *testing.T, id int64) string {
	t.Helper()
	tok, err := h.iss.Issue(auth.TokenAccess, auth.Payload{ID: id, Email: "a@x.io", Role: "user"})
	require.NoError(t, err)
	return "Bearer " + tok
}

func (h *harness) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}

	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func multipartAvatar(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="avatar"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}
