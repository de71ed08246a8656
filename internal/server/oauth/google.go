// Package oauth implements the Google authorization code flow and turns the
// signed-in Google account into a services.Principal.
package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	stateBytes        = 16
)

var scopes = []string{
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

var (
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrMissingCode     = errors.New("authorization code is missing")
	ErrEmailUnverified = errors.New("google email is not verified")
)

// Google drives the consent redirect and the code exchange.
type Google struct {
	cfg         *oauth2.Config
	userInfoURL string
}

// NewGoogle returns nil when clientID is empty, which disables the flow.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	if clientID == "" {
		return nil
	}
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       scopes,
		},
		userInfoURL: googleUserInfoURL,
	}
}

// NewState returns a random value for the state parameter and cookie.
func NewState() (string, error) {
	return common.MakeRandHexString(stateBytes)
}

// CheckState compares the state echoed by Google with the one issued.
func CheckState(issued, returned string) error {
	if issued == "" || subtle.ConstantTimeCompare([]byte(issued), []byte(returned)) != 1 {
		return ErrStateMismatch
	}
	return nil
}

// AuthCodeURL is the consent page URL for state.
func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type userInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Principal exchanges code for a token and reads the account's profile.
func (g *Google) Principal(ctx context.Context, code string) (*services.Principal, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("google userinfo: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("google userinfo: decode: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("google userinfo: no email")
	}
	if !info.EmailVerified {
		return nil, ErrEmailUnverified
	}

	return &services.Principal{Email: strings.ToLower(info.Email), Fullname: info.Name}, nil
}
