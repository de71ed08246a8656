package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var errBoom = errors.New("boom")

// fakeStore is an in-memory stand-in for all three tables. Repos vended by
// fakeRepoManager ignore the DBTX they are bound to.
type fakeStore struct {
	mu sync.Mutex

	users  map[int64]models.User
	tokens []models.RefreshToken
	resets map[int64]models.PasswordReset
	nextID int64

	usersErr       error
	tokensErr      error
	resetsErr      error
	resetCreateErr error
	userDeleteErr  error
	userUpdateErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[int64]models.User{}, resets: map[int64]models.PasswordReset{}}
}

func (s *fakeStore) id() int64 { s.nextID++; return s.nextID }

func (s *fakeStore) tokenCount(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (s *fakeStore) resetCount(email string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.resets {
		if r.Email == email {
			n++
		}
	}
	return n
}

type fakeUsers struct{ s *fakeStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.usersErr != nil {
		return nil, f.s.usersErr
	}
	for _, existing := range f.s.users {
		if existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *u
	c.ID = f.s.id()
	if c.Role == "" {
		c.Role = common.DefaultRole
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	f.s.users[c.ID] = c
	out := c
	return &out, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.usersErr != nil {
		return nil, f.s.usersErr
	}
	for _, u := range f.s.users {
		if u.Email == email {
			out := u
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.usersErr != nil {
		return nil, f.s.usersErr
	}
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (f fakeUsers) Update(_ context.Context, id int64, fields models.UserFields) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.usersErr != nil {
		return nil, f.s.usersErr
	}
	if f.s.userUpdateErr != nil {
		return nil, f.s.userUpdateErr
	}
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if fields.Email != nil {
		for oid, o := range f.s.users {
			if oid != id && o.Email == *fields.Email {
				return nil, common.ErrorAlreadyExists
			}
		}
		u.Email = *fields.Email
	}
	if fields.Password != nil {
		u.Password = *fields.Password
	}
	if fields.Fullname != nil {
		u.Fullname = *fields.Fullname
	}
	if fields.DisplayName != nil {
		u.DisplayName = fields.DisplayName
	}
	if fields.Avatar != nil {
		u.Avatar = fields.Avatar
	}
	f.s.users[id] = u
	return &u, nil
}

func (f fakeUsers) Delete(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.userDeleteErr != nil {
		return f.s.userDeleteErr
	}
	if _, ok := f.s.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.s.users, id)
	return nil
}

type fakeTokens struct{ s *fakeStore }

func (f fakeTokens) Create(_ context.Context, userID int64, token string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.tokensErr != nil {
		return f.s.tokensErr
	}
	for _, t := range f.s.tokens {
		if t.Token == token {
			return common.ErrorAlreadyExists
		}
	}
	f.s.tokens = append(f.s.tokens, models.RefreshToken{ID: f.s.id(), UserID: userID, Token: token, CreatedAt: time.Now()})
	return nil
}

func (f fakeTokens) FindActive(_ context.Context, token string) (*models.RefreshToken, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.tokensErr != nil {
		return nil, f.s.tokensErr
	}
	for _, t := range f.s.tokens {
		if t.Token == token && !t.IsRevoked {
			out := t
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeTokens) DeleteByUserID(_ context.Context, userID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.tokensErr != nil {
		return f.s.tokensErr
	}
	kept := f.s.tokens[:0]
	for _, t := range f.s.tokens {
		if t.UserID != userID {
			kept = append(kept, t)
		}
	}
	f.s.tokens = kept
	return nil
}

type fakeResets struct{ s *fakeStore }

func (f fakeResets) DeleteByEmail(_ context.Context, email string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.resetsErr != nil {
		return f.s.resetsErr
	}
	for id, r := range f.s.resets {
		if r.Email == email {
			delete(f.s.resets, id)
		}
	}
	return nil
}

func (f fakeResets) Create(_ context.Context, rec *models.PasswordReset) (*models.PasswordReset, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.resetsErr != nil {
		return nil, f.s.resetsErr
	}
	if f.s.resetCreateErr != nil {
		return nil, f.s.resetCreateErr
	}
	c := *rec
	c.ID = f.s.id()
	c.CreatedAt = time.Now()
	f.s.resets[c.ID] = c
	return &c, nil
}

func (f fakeResets) FindByEmailAndCode(_ context.Context, email, code string) (*models.PasswordReset, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.resetsErr != nil {
		return nil, f.s.resetsErr
	}
	for _, r := range f.s.resets {
		if r.Email == email && r.OTP == code {
			out := r
			return &out, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f fakeResets) DeleteByID(_ context.Context, id int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.resetsErr != nil {
		return f.s.resetsErr
	}
	delete(f.s.resets, id)
	return nil
}

func (f fakeResets) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for id, r := range f.s.resets {
		if r.Expired(now) {
			delete(f.s.resets, id)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository { return fakeUsers{m.s} }

func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return fakeTokens{m.s}
}

func (m *fakeRepoManager) PasswordResets(dbx.DBTX) passwordresets.Repository {
	return fakeResets{m.s}
}

type sentMail struct {
	kind, email, secret string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) SendOTP(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"otp", email, code})
	return n.err
}

func (n *fakeNotifier) SendGeneratedPassword(_ context.Context, email, password string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{"password", email, password})
	return n.err
}

func (n *fakeNotifier) last() sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type fakeAvatars struct {
	key, contentType string
	body             []byte
	err              error
}

func (a *fakeAvatars) Put(_ context.Context, key, contentType string, body io.Reader) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	a.key, a.contentType, a.body = key, contentType, buf.Bytes()
	return "https://cdn.example.com/avatars/" + key, nil
}

// --- helpers ---

// newTxDB returns a real database handle so dbx.WithTx can begin and commit.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	i, err := auth.NewIssuer(
		auth.KeyConfig{Secret: []byte("access-secret"), TTL: 15 * time.Minute},
		auth.KeyConfig{Secret: []byte("refresh-secret"), TTL: 7 * 24 * time.Hour},
	)
	require.NoError(t, err)
	return i
}

type fixture struct {
	store    *fakeStore
	notifier *fakeNotifier
	avatars  *fakeAvatars
	hasher   *auth.BcryptHasher
	issuer   *auth.Issuer
	deps     Deps
}

func newFixture(t *testing.T, db *sql.DB) *fixture {
	t.Helper()
	if db == nil {
		db = newTxDB(t)
	}
	f := &fixture{
		store:    newFakeStore(),
		notifier: &fakeNotifier{},
		avatars:  &fakeAvatars{},
		hasher:   auth.NewBcryptHasher(bcrypt.MinCost),
		issuer:   newIssuer(t),
	}
	f.deps = Deps{
		DB:       db,
		Repos:    &fakeRepoManager{s: f.store},
		Hasher:   f.hasher,
		Tokens:   f.issuer,
		Notifier: f.notifier,
		Avatars:  f.avatars,
	}
	return f
}

// seedUser stores a user with the given plaintext password.
func (f *fixture) seedUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	digest, err := f.hasher.Hash(password)
	require.NoError(t, err)
	u, err := fakeUsers{f.store}.Create(context.Background(), &models.User{Email: email, Fullname: "Test User", Password: digest})
	require.NoError(t, err)
	return u
}
