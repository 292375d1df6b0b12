package server

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/livetemplate/walkthrough"
	"github.com/livetemplate/walkthrough/internal/assets"
	"github.com/livetemplate/walkthrough/internal/config"
	"github.com/livetemplate/walkthrough/internal/metrics"
	"github.com/livetemplate/walkthrough/internal/render"
	"github.com/livetemplate/walkthrough/internal/session"
)

// SessionCookie names the cookie that carries the session ID.
const SessionCookie = "walkthrough_session"

// Route maps a URL pattern to a page.
type Route struct {
	Pattern  string
	FilePath string
	Page     *walkthrough.Page
}

// Server serves the pages found in a content tree.
type Server struct {
	fsys     fs.FS
	rootDir  string
	registry *walkthrough.Registry
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Recorder
	sessions *session.Manager
	renderer *render.Renderer
	html     *render.HTML
	codeCSS  *assets.File

	mu     sync.RWMutex
	routes []*Route
	byID   map[string]*Route

	connMu      sync.RWMutex
	connections map[*wsConn]bool

	watcher *Watcher
	handler http.Handler
	cancel  context.CancelFunc
	done    <-chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the site configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry resolves live blocks against r.
func WithRegistry(r *walkthrough.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// WithMetrics records render and interaction metrics into m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithSessions stores widget state through m. The server closes m on Close.
func WithSessions(m *session.Manager) Option {
	return func(s *Server) {
		s.sessions = m
	}
}

// WithRootDir names the directory behind fsys so it can be watched for
// changes. Embedded content has no root dir.
func WithRootDir(dir string) Option {
	return func(s *Server) {
		s.rootDir = dir
	}
}

// New creates a server for the markdown pages in fsys. Call Discover before
// serving.
func New(fsys fs.FS, opts ...Option) (*Server, error) {
	s := &Server{
		fsys:        fsys,
		registry:    walkthrough.DefaultRegistry,
		config:      config.DefaultConfig(),
		logger:      slog.Default(),
		byID:        make(map[string]*Route),
		connections: make(map[*wsConn]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewManager(
			session.NewMemoryStore(session.WithMemoryTTL(s.config.GetSessionTTL())),
			session.WithLogger(s.logger),
		)
	}

	iso, err := render.ParseIsolation(s.config.GetIsolation())
	if err != nil {
		return nil, err
	}
	s.renderer = render.New(
		render.WithLogger(s.logger),
		render.WithIsolation(iso),
		render.WithMetrics(s.metrics),
		render.WithTimeout(s.config.GetRenderTimeout()),
	)
	s.html = render.NewHTML(render.WithCodeStyle(s.config.GetCodeStyle()))
	css, err := s.html.CodeCSS()
	if err != nil {
		return nil, fmt.Errorf("failed to build code stylesheet: %w", err)
	}
	s.codeCSS = assets.New("code.css", "text/css; charset=utf-8", css)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.handler = s.routesHandler(ctx)
	return s, nil
}

func (s *Server) routesHandler(ctx context.Context) http.Handler {
	rateLimit, done := RateLimitMiddleware(ctx, s.config.GetRateLimitRPS(), s.config.GetRateLimitBurst(), 0, s.logger)
	s.done = done

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))
	r.Use(SecurityHeadersMiddleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.config.Features.Metrics && s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.With(rateLimit).Get("/ws", s.serveWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(compressionMiddleware)
		r.Get("/assets/{name}", s.serveAsset)
		r.With(rateLimit).Post("/_widget", s.handleWidget)
		r.Get("/*", s.servePage)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Discover walks the content tree and parses every page. Pages that fail to
// parse are logged and skipped; their errors are returned joined so callers
// can decide whether that is fatal.
func (s *Server) Discover() error {
	routes := make([]*Route, 0)
	var parseErrs []error

	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if p != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}

		if path.Ext(p) != ".md" || strings.HasPrefix(d.Name(), "_") || s.ignored(p) {
			return nil
		}

		page, err := walkthrough.ParseFS(s.fsys, p, walkthrough.WithRegistry(s.registry))
		if err != nil {
			s.logger.Warn("failed to parse page", "file", p, "error", err)
			parseErrs = append(parseErrs, err)
			return nil
		}
		page.ID = strings.TrimSuffix(p, ".md")

		routes = append(routes, &Route{
			Pattern:  mdToPattern(p),
			FilePath: p,
			Page:     page,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk content: %w", err)
	}

	sortRoutes(routes)

	byID := make(map[string]*Route, len(routes))
	for _, route := range routes {
		byID[route.Page.ID] = route
	}

	s.mu.Lock()
	s.routes = routes
	s.byID = byID
	s.mu.Unlock()

	s.logger.Info("discovered pages", "count", len(routes))
	return errors.Join(parseErrs...)
}

// ignored reports whether rel matches one of the configured ignore globs.
// A trailing "/**" matches everything under the directory.
func (s *Server) ignored(rel string) bool {
	for _, pattern := range s.config.Ignore {
		if dir, ok := strings.CutSuffix(pattern, "/**"); ok {
			if strings.HasPrefix(rel, dir+"/") {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(rel)); ok {
			return true
		}
	}
	return false
}

// Routes returns the discovered routes.
func (s *Server) Routes() []*Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes
}

func (s *Server) routeByPattern(pattern string) (*Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, route := range s.routes {
		if route.Pattern == pattern {
			return route, true
		}
	}
	return nil, false
}

func (s *Server) routeByID(id string) (*Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	route, ok := s.byID[id]
	return route, ok
}

func (s *Server) nav(active string) []render.NavLink {
	routes := s.Routes()
	links := make([]render.NavLink, 0, len(routes))
	for _, route := range routes {
		links = append(links, render.NavLink{
			Title:  route.Page.Title,
			Path:   route.Pattern,
			Active: route.Pattern == active,
		})
	}
	return links
}

// sessionID returns the request's session, issuing a new one when the cookie
// is missing or malformed.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && session.ValidID(c.Value) {
		return c.Value
	}
	id := session.NewID()
	http.SetCookie(w, sessionCookie(id))
	s.metrics.SessionCreated()
	s.logger.Debug("new session", "session_id", id)
	return id
}

// stateKey scopes widget state to one page of a session. Widget ids are only
// unique within a page.
func stateKey(sessionID, pageID string) string {
	return sessionID + "/" + pageID
}

func sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	route, ok := s.routeByPattern(r.URL.Path)
	if !ok {
		if _, hasHome := s.routeByPattern("/"); hasHome && r.URL.Path != "/" {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		http.NotFound(w, r)
		return
	}

	id := s.sessionID(w, r)
	state, err := s.sessions.Get(r.Context(), stateKey(id, route.Page.ID))
	if err != nil {
		s.logger.Error("failed to load session", "session_id", id, "error", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}

	doc, err := s.renderer.Render(r.Context(), route.Page, state)
	if err != nil {
		s.logger.Error("failed to render page", "page", route.Page.ID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err = s.html.WritePage(&buf, doc, render.PageData{
		Title:        pageTitle(route.Page.Title, s.config.Title),
		Description:  cmp.Or(route.Page.Description, s.config.Description),
		Nav:          s.nav(route.Pattern),
		Theme:        render.ResolveTheme(route.Page.Config.Theme, s.config.Styling.Theme),
		PrimaryColor: s.config.Styling.PrimaryColor,
		Font:         s.config.Styling.Font,
		LiveReload:   s.watching(),
	})
	if err != nil {
		s.logger.Error("failed to write page", "page", route.Page.ID, "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func pageTitle(page, site string) string {
	switch {
	case page == "":
		return site
	case site == "" || page == site:
		return page
	default:
		return page + " | " + site
	}
}

// handleWidget applies a form-posted interaction and redirects back to the
// page. It serves browsers without JavaScript.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	route, ok := s.routeByID(r.PostForm.Get("page"))
	if !ok {
		http.Error(w, "unknown page", http.StatusNotFound)
		return
	}

	ix := walkthrough.Interaction{
		BlockID: r.PostForm.Get("block"),
		Action:  r.PostForm.Get("action"),
	}
	// Checkboxes post a hidden "off" followed by "on" when ticked.
	if values := r.PostForm["value"]; len(values) > 0 {
		ix.Value = values[len(values)-1]
	}

	id := s.sessionID(w, r)
	if _, err := s.apply(r.Context(), id, route.Page, ix); err != nil {
		http.Error(w, err.Error(), interactionStatus(err))
		return
	}

	target := route.Pattern
	if ix.BlockID != "" && ix.BlockID != walkthrough.PageBlockID {
		target += "#" + ix.BlockID
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// apply records an interaction against the session and returns the state
// it produced.
func (s *Server) apply(ctx context.Context, sessionID string, page *walkthrough.Page, ix walkthrough.Interaction) (*walkthrough.WidgetState, error) {
	state, err := s.sessions.Update(ctx, stateKey(sessionID, page.ID), func(ws *walkthrough.WidgetState) error {
		return ws.Apply(page, ix)
	})
	if err != nil {
		result := metrics.ResultError
		if isRejection(err) {
			result = metrics.ResultRejected
		}
		s.metrics.Interaction(page.ID, result)
		s.logger.Debug("interaction failed", "page", page.ID, "block", ix.BlockID, "action", ix.Action, "error", err)
		return nil, err
	}
	s.metrics.Interaction(page.ID, metrics.ResultOK)
	return state, nil
}

func isRejection(err error) bool {
	return errors.Is(err, walkthrough.ErrInvalidValue) ||
		errors.Is(err, walkthrough.ErrUnknownWidget) ||
		errors.Is(err, walkthrough.ErrUnknownAction)
}

func interactionStatus(err error) int {
	switch {
	case errors.Is(err, walkthrough.ErrUnknownWidget):
		return http.StatusNotFound
	case isRejection(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, ok := assets.Lookup(name)
	if name == s.codeCSS.Name {
		f, ok = s.codeCSS, true
	}
	if !ok {
		s.logger.Debug("unknown asset", "path", r.URL.Path)
		http.NotFound(w, r)
		return
	}
	f.ServeHTTP(w, r)
}

// mdToPattern converts a content path to a URL pattern.
func mdToPattern(relPath string) string {
	p := strings.TrimSuffix(relPath, ".md")

	if p == "index" {
		return "/"
	}
	if dir, ok := strings.CutSuffix(p, "/index"); ok {
		return "/" + dir + "/"
	}
	return "/" + p
}

// sortRoutes orders routes: "/" first, then directory indexes, then the rest,
// alphabetically within each group.
func sortRoutes(routes []*Route) {
	slices.SortStableFunc(routes, func(a, b *Route) int {
		return cmp.Or(
			cmp.Compare(routeRank(a.Pattern), routeRank(b.Pattern)),
			strings.Compare(a.Pattern, b.Pattern),
		)
	})
}

func routeRank(pattern string) int {
	switch {
	case pattern == "/":
		return 0
	case strings.HasSuffix(pattern, "/"):
		return 1
	default:
		return 2
	}
}

// EnableWatch re-discovers pages when markdown under the root dir changes
// and tells connected browsers to reload.
func (s *Server) EnableWatch() error {
	if s.rootDir == "" {
		return errors.New("no content directory to watch")
	}
	watcher, err := NewWatcher(s.rootDir, s.reload, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	s.connMu.Lock()
	s.watcher = watcher
	s.connMu.Unlock()
	watcher.Start()
	s.logger.Info("watching for changes", "dir", s.rootDir)
	return nil
}

// StopWatch stops the file watcher, if any.
func (s *Server) StopWatch() {
	s.connMu.Lock()
	w := s.watcher
	s.watcher = nil
	s.connMu.Unlock()
	if w != nil {
		_ = w.Stop()
	}
}

func (s *Server) watching() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.watcher != nil
}

func (s *Server) reload(filePath string) error {
	err := s.Discover()
	s.BroadcastReload(filePath)
	return err
}

// Close stops the watcher and rate limiter, drops open connections and
// closes the session manager.
func (s *Server) Close() error {
	s.StopWatch()
	s.cancel()
	<-s.done

	s.connMu.Lock()
	for c := range s.connections {
		_ = c.conn.Close()
		delete(s.connections, c)
	}
	s.connMu.Unlock()

	return s.sessions.Close()
}
