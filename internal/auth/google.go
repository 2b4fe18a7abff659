package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	stateCookie = "financas_oauth_state"
	stateTTL    = 10 * time.Minute
)

var (
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrUnverifiedEmail = errors.New("google account email is not verified")
)

// ProfileFetcher turns an authorization code into the signed-in profile.
type ProfileFetcher interface {
	AuthCodeURL(state string) string
	FetchProfile(ctx context.Context, code string) (Profile, error)
}

// Google runs the authorization code flow against Google's endpoint.
type Google struct {
	config *oauth2.Config
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{config: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{oauth2api.UserinfoEmailScope, oauth2api.UserinfoProfileScope},
	}}
}

func (g *Google) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (g *Google) FetchProfile(ctx context.Context, code string) (Profile, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("exchange code: %w", err)
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(g.config.TokenSource(ctx, tok)))
	if err != nil {
		return Profile{}, fmt.Errorf("create userinfo client: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	return profileFromUserinfo(info)
}

// profileFromUserinfo accepts only an email Google reports as verified; a
// missing flag counts as unverified.
func profileFromUserinfo(info *oauth2api.Userinfo) (Profile, error) {
	verified := info.VerifiedEmail != nil && *info.VerifiedEmail
	if !verified {
		return Profile{}, ErrUnverifiedEmail
	}
	return Profile{Subject: info.Id, Email: info.Email, Name: info.Name, EmailVerified: true}, nil
}

// BeginRedirect stores a fresh state in a short-lived cookie and returns
// the provider URL to send the browser to.
func BeginRedirect(w http.ResponseWriter, p ProfileFetcher, secure bool) string {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return p.AuthCodeURL(state)
}

// CheckState compares the callback state with the cookie and clears it.
func CheckState(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(stateCookie)
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		return ErrStateMismatch
	}
	return nil
}
