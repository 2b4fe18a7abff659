package http

import (
	"errors"
	"net/http"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/finance"
	applog "financas/internal/log"
)

type loginView struct {
	Mode  string
	Email string
	Name  string
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, view loginView, flash string) {
	page := s.newPage(r, "Entrar", "login", finance.PeriodOf(s.now()))
	page.Flash = flash
	page.Data = view
	s.render(w, r, status, "login", page)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		if _, err := s.sessions.Verify(cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	mode := "signin"
	if r.URL.Query().Get("mode") == "signup" {
		mode = "signup"
	}
	s.renderLogin(w, r, http.StatusOK, loginView{Mode: mode}, "")
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	email := form.Get("email")

	user, err := s.auth.SignIn(r.Context(), email, form.Get("password"))
	if err != nil {
		s.events.LogAuth(r.Context(), applog.OpSignIn, "", core.ProviderPassword, false)
		s.renderLogin(w, r, statusFor(err), loginView{Mode: "signin", Email: email}, errorMessage(err))
		return
	}
	s.startSession(w, r, user, core.ProviderPassword, applog.OpSignIn)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	form, errResp := ParseBody(r)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	view := loginView{Mode: "signup", Email: form.Get("email"), Name: form.Get("name")}

	if form.Get("password") != form.Get("password_confirm") {
		s.renderLogin(w, r, http.StatusUnprocessableEntity, view, "As senhas não conferem.")
		return
	}

	user, err := s.auth.SignUp(r.Context(), view.Email, form.Get("password"), view.Name)
	if err != nil {
		s.events.LogAuth(r.Context(), applog.OpSignUp, "", core.ProviderPassword, false)
		s.renderLogin(w, r, statusFor(err), view, errorMessage(err))
		return
	}
	s.startSession(w, r, user, core.ProviderPassword, applog.OpSignUp)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, user core.User, provider, op string) {
	if err := s.sessions.Start(w, user.ID); err != nil {
		s.events.LogError(r.Context(), "Failed to issue session", err, applog.ComponentAuth, op, applog.NewFields().WithUser(user.ID))
		s.renderLogin(w, r, http.StatusInternalServerError, loginView{Mode: "signin", Email: user.Email}, "Não foi possível iniciar a sessão.")
		return
	}
	s.events.LogAuth(r.Context(), op, user.ID, provider, true)
	redirect(w, r, "/")
}

func (s *Server) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, auth.BeginRedirect(w, s.google, s.secure), http.StatusFound)
}

func (s *Server) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		http.NotFound(w, r)
		return
	}

	stateErr := auth.CheckState(w, r)
	if reason := r.URL.Query().Get("error"); reason != "" {
		s.events.LogAuth(r.Context(), applog.OpSignIn, "", core.ProviderGoogle, false)
		s.renderLogin(w, r, http.StatusUnauthorized, loginView{Mode: "signin"}, "Login com Google cancelado.")
		return
	}
	if stateErr != nil {
		s.events.LogAuth(r.Context(), applog.OpSignIn, "", core.ProviderGoogle, false)
		s.renderLogin(w, r, statusFor(stateErr), loginView{Mode: "signin"}, errorMessage(stateErr))
		return
	}

	profile, err := s.google.FetchProfile(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, auth.ErrUnverifiedEmail) {
			status = http.StatusUnauthorized
		}
		s.events.LogAuth(r.Context(), applog.OpSignIn, "", core.ProviderGoogle, false)
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Google profile fetch failed", applog.FieldError, err)
		msg := "Não foi possível concluir o login com Google."
		if status == http.StatusUnauthorized {
			msg = errorMessage(err)
		}
		s.renderLogin(w, r, status, loginView{Mode: "signin"}, msg)
		return
	}

	user, created, err := s.auth.SignInWithProfile(r.Context(), core.ProviderGoogle, profile)
	if err != nil {
		s.events.LogAuth(r.Context(), applog.OpSignIn, "", core.ProviderGoogle, false)
		s.renderLogin(w, r, statusFor(err), loginView{Mode: "signin", Email: profile.Email}, errorMessage(err))
		return
	}
	op := applog.OpSignIn
	if created {
		op = applog.OpSignUp
	}
	s.startSession(w, r, user, core.ProviderGoogle, op)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	s.sessions.End(w)
	id := ""
	if cookie, err := r.Cookie(auth.SessionCookie); err == nil {
		id, _ = s.sessions.Verify(cookie.Value)
	}
	s.events.LogAuth(r.Context(), applog.OpSignOut, id, "", true)
	redirect(w, r, loginPath)
}
