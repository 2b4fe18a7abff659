package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"financas/internal/auth"
	"financas/internal/cache"
	"financas/internal/core"
	"financas/internal/finance"
	applog "financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/middleware/security"
	"financas/internal/middleware/trace"
	"financas/internal/services"
	appweb "financas/web"
)

const (
	loginPath      = "/login"
	staticMaxAge   = 3600
	previewTTL     = 30 * time.Minute
	previewEntries = 200
)

// Pinger reports whether the data backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Google may be nil when the
// redirect sign-in is not configured; Caches may be nil in tests.
type Deps struct {
	Ledger        *services.LedgerService
	Auth          *auth.Service
	Sessions      *auth.Sessions
	Google        auth.ProfileFetcher
	Store         Pinger
	Logger        *applog.Logger
	Caches        *cache.Manager
	RateLimit     ratelimit.Config
	SecureCookies bool
	Now           func() time.Time
}

type Server struct {
	http.Server
	pages     map[string]*template.Template
	partials  *template.Template
	ledger    *services.LedgerService
	auth      *auth.Service
	sessions  *auth.Sessions
	google    auth.ProfileFetcher
	store     Pinger
	logger    *applog.Logger
	events    *applog.StructuredLogger
	trace     *trace.Middleware
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	previews  *cache.LRUCache[importPreview]
	now       func() time.Time
	secure    bool
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	logger := deps.Logger.WithComponent(applog.ComponentHTTP)
	limits := deps.RateLimit
	if len(limits.Methods) == 0 {
		limits.Methods = ratelimit.DefaultConfig().Methods
	}

	s := &Server{
		ledger:    deps.Ledger,
		auth:      deps.Auth,
		sessions:  deps.Sessions,
		google:    deps.Google,
		store:     deps.Store,
		logger:    logger,
		events:    applog.NewStructuredLogger(logger),
		detector:  security.NewDetector(),
		limiter:   ratelimit.NewLimiter(limits),
		previews:  cache.NewLRUCache[importPreview](previewEntries, previewTTL),
		now:       deps.Now,
		secure:    deps.SecureCookies,
		startedAt: deps.Now(),
	}
	s.trace = trace.NewMiddleware(s.detector.ExtractClientIP, s.events)
	if deps.Caches != nil {
		deps.Caches.Register(s.previews)
	}

	pages, partials, err := loadTemplates(appweb.TemplatesFS)
	if err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.pages, s.partials = pages, partials

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.HandleFunc("GET /auth/google", s.handleGoogleStart)
	mux.HandleFunc("GET /auth/google/callback", s.handleGoogleCallback)
	mux.HandleFunc("POST /auth/signout", s.handleSignOut)

	app := http.NewServeMux()
	app.HandleFunc("GET /{$}", s.handleDashboard)
	app.HandleFunc("GET /ui/summary", s.handleSummary)
	app.HandleFunc("GET /ui/transactions", s.handleTransactionList)

	app.HandleFunc("POST /transactions", s.handleCreateTransaction)
	app.HandleFunc("GET /transactions/grid", s.handleGridPage)
	app.HandleFunc("POST /transactions/grid", s.handleGridSave)
	app.HandleFunc("POST /transactions/{id}", s.handleUpdateTransaction)
	app.HandleFunc("DELETE /transactions/{id}", s.handleDeleteTransaction)

	app.HandleFunc("GET /cards", s.handleCards)
	app.HandleFunc("POST /cards", s.handleCreateCard)
	app.HandleFunc("POST /cards/{id}", s.handleUpdateCard)
	app.HandleFunc("DELETE /cards/{id}", s.handleDeleteCard)

	app.HandleFunc("GET /fixed", s.handleFixed)
	app.HandleFunc("POST /fixed", s.handleCreateFixed)
	app.HandleFunc("POST /fixed/{id}", s.handleUpdateFixed)
	app.HandleFunc("DELETE /fixed/{id}", s.handleDeleteFixed)

	app.HandleFunc("GET /reports", s.handleReports)
	app.HandleFunc("GET /reports/chart/{file}", s.handleChart)
	app.HandleFunc("GET /reports/statement.pdf", s.handleStatement)

	app.HandleFunc("GET /export/{file}", s.handleExport)
	app.HandleFunc("GET /import", s.handleImportPage)
	app.HandleFunc("POST /import/preview", s.handleImportPreview)
	app.HandleFunc("POST /import", s.handleImportCommit)

	mux.Handle("/", s.sessions.Middleware(loginPath)(security.NoStore(app)))

	// Outermost first: trace ids, request logger, scanner detection,
	// security headers, rate limiting.
	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(s.logger.WithComponent(applog.ComponentSecurity))(h)
	h = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = applog.Middleware(s.logger)(h)
	h = s.trace.Middleware(h)
	return h
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Muitas requisições. Aguarde um instante e tente novamente.").Write(w)
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// loadTemplates parses the layout and every "_*.html" partial once, then
// clones that set for each page so pages can each define "content".
func loadTemplates(fsys fs.FS) (map[string]*template.Template, *template.Template, error) {
	shared, err := template.New("").Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", "templates/_*.html")
	if err != nil {
		return nil, nil, err
	}

	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, nil, err
	}

	pages := make(map[string]*template.Template)
	for _, file := range files {
		name := path.Base(file)
		if name == "layout.html" || strings.HasPrefix(name, "_") {
			continue
		}
		t, err := shared.Clone()
		if err != nil {
			return nil, nil, err
		}
		if _, err := t.ParseFS(fsys, file); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		pages[strings.TrimSuffix(name, ".html")] = t
	}
	return pages, shared, nil
}

// pageData is what the layout needs on every page.
type pageData struct {
	Title         string
	Active        string
	User          core.User
	Period        finance.Period
	Prev          finance.Period
	Next          finance.Period
	Today         core.Date
	Categories    []core.Category
	Methods       []core.PaymentMethod
	Cards         []core.CreditCard
	GoogleEnabled bool
	Flash         string
	Data          any
}

func (s *Server) newPage(r *http.Request, title, active string, p finance.Period) pageData {
	page := pageData{
		Title:         title,
		Active:        active,
		Period:        p,
		Prev:          p.Prev(),
		Next:          p.Next(),
		Today:         core.DateOf(s.now()),
		Categories:    core.Categories,
		Methods:       core.PaymentMethods,
		GoogleEnabled: s.google != nil,
	}
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		user, err := s.auth.User(r.Context(), userID)
		if err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to load profile",
				applog.FieldUserID, userID, applog.FieldError, err)
			user = core.User{ID: userID}
		}
		page.User = user
	}
	return page
}

// render executes a page into a buffer so a failing template never leaves
// half a page on the wire.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	t, ok := s.pages[page]
	if !ok {
		s.renderFailed(w, r, page, fmt.Errorf("unknown page %q", page))
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.renderFailed(w, r, page, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
		s.renderFailed(w, r, name, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// partialBody renders a partial for use inside a built response.
func (s *Server) partialBody(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) renderFailed(w http.ResponseWriter, r *http.Request, name string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
		applog.FieldError, err,
		"template", name,
		applog.FieldOperation, applog.OpRender)
	InternalServerError("Erro ao montar a página.").Write(w)
}

// fail reports err to the client and logs it at a level matching its class.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed",
			applog.FieldError, err,
			applog.FieldOperation, op,
			applog.FieldStatusCode, status)
	} else {
		logger.InfoContext(r.Context(), "Request rejected",
			applog.FieldError, err,
			applog.FieldOperation, op,
			applog.FieldStatusCode, status)
	}
	ErrorFor(err).Write(w)
}

// userID is set by the session middleware on every private route.
func userID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

func (s *Server) period(r *http.Request) finance.Period {
	return ParsePeriod(r.URL.Query(), s.now())
}

// snapshot loads the caller's ledger or writes the failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (services.Ledger, bool) {
	ledger, err := s.ledger.Snapshot(r.Context(), userID(r))
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return services.Ledger{}, false
	}
	return ledger, true
}
