package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/metrics"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/query"
	"github.com/erazemk/sowa/internal/session"
	webembed "github.com/erazemk/sowa/web"
)

// SettingsCacheKey caches the public site settings in each viewer's cache.
const SettingsCacheKey = "public-settings"

// Options configures the site.
type Options struct {
	Sessions *session.Manager
	// AssetOrigin resolves relative image references; empty keeps them relative.
	AssetOrigin string
	// ProxyTarget enables forwarding of /api/ and /media/ when set.
	ProxyTarget string
	// RateLimit is the per-IP budget of sensitive POSTs per minute; zero
	// turns limiting off.
	RateLimit int
	// TrustProxy takes the client address from X-Real-IP/X-Forwarded-For.
	TrustProxy bool
}

// Server holds all dependencies for page handlers.
type Server struct {
	Templates *Templates
	Sessions  *session.Manager

	limiter *rateLimiterStore
	proxy   http.Handler
}

// NewServer parses the templates and prepares the handlers.
func NewServer(opts Options) (*Server, error) {
	templates, err := LoadTemplates(opts.AssetOrigin)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Templates: templates,
		Sessions:  opts.Sessions,
		limiter:   newRateLimiterStore(opts.RateLimit, opts.TrustProxy),
	}

	if opts.ProxyTarget != "" {
		target, err := url.Parse(opts.ProxyTarget)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("invalid proxy target: %w", err)
		}
		s.proxy = newDevProxy(target)
	}

	return s, nil
}

// Close stops the rate limiter cleanup.
func (s *Server) Close() {
	s.limiter.Stop()
}

// Routes returns the site handler with all routes registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	limited := s.limiter.Middleware

	// Static assets and operational endpoints bypass viewer sessions.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))
	mux.Handle("GET /metrics", metrics.Handler())
	if s.proxy != nil {
		mux.Handle("/api/", s.proxy)
		mux.Handle("/media/", s.proxy)
	}

	pages := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		pages.Handle(pattern, routeLabel(pattern, h))
	}

	// Public pages.
	handle("GET /{$}", http.HandlerFunc(s.Home))
	handle("GET /portfolio", http.HandlerFunc(s.PortfolioPage))
	handle("GET /inquiry", http.HandlerFunc(s.InquiryPage))
	handle("POST /inquiry", limited(http.HandlerFunc(s.InquiryCreateSubmit)))
	handle("POST /inquiry/write", http.HandlerFunc(s.InquiryWriteSubmit))
	handle("POST /inquiry/close", http.HandlerFunc(s.InquiryCloseSubmit))
	handle("POST /inquiry/{id}/select", http.HandlerFunc(s.InquirySelectSubmit))
	handle("POST /inquiry/{id}/verify", limited(http.HandlerFunc(s.InquiryVerifySubmit)))

	// Admin console.
	handle("GET /admin", http.HandlerFunc(s.AdminPage))
	handle("POST /admin/login", limited(http.HandlerFunc(s.AdminLoginSubmit)))
	handle("POST /admin/logout", http.HandlerFunc(s.AdminLogoutSubmit))
	handle("POST /admin/stats/refresh", http.HandlerFunc(s.StatsRefreshSubmit))
	handle("POST /admin/categories", http.HandlerFunc(s.CategorySaveSubmit))
	handle("POST /admin/categories/{id}/delete", http.HandlerFunc(s.CategoryDeleteSubmit))
	handle("POST /admin/portfolio", http.HandlerFunc(s.PortfolioCreateSubmit))
	handle("POST /admin/portfolio/{id}", http.HandlerFunc(s.PortfolioUpdateSubmit))
	handle("POST /admin/portfolio/{id}/delete", http.HandlerFunc(s.PortfolioDeleteSubmit))
	handle("POST /admin/portfolio/reorder", http.HandlerFunc(s.PortfolioReorder))
	handle("POST /admin/portfolio/order", http.HandlerFunc(s.PortfolioSaveOrderSubmit))
	handle("POST /admin/inquiries/{id}/select", http.HandlerFunc(s.AdminInquirySelectSubmit))
	handle("POST /admin/inquiries/{id}/delete", http.HandlerFunc(s.AdminInquiryDeleteSubmit))
	handle("POST /admin/inquiries/{id}/comments", http.HandlerFunc(s.CommentCreateSubmit))
	handle("POST /admin/comments/{id}/delete", http.HandlerFunc(s.CommentDeleteSubmit))
	handle("POST /admin/settings", http.HandlerFunc(s.SettingsSubmit))

	mux.Handle("/", s.Sessions.Middleware(pages))

	return LoggingMiddleware(mux)
}

// viewer returns the request's viewer session. Routes behind the session
// middleware always have one.
func viewer(r *http.Request) *session.Session {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		panic("web: request has no viewer session")
	}
	return sess
}

// siteSettings loads the public settings through the viewer's cache. A
// failure is logged and the page renders with the default branding.
func siteSettings(ctx context.Context, sess *session.Session) *model.SiteSettings {
	settings, err := query.Fetch(ctx, sess.Cache, SettingsCacheKey, sess.Client.Public().GetSettings)
	if err != nil {
		slog.Warn("failed to load site settings", "error", err)
		return nil
	}
	return settings
}

// page builds the base page data and pops the viewer's flash messages.
func (s *Server) page(r *http.Request, title, nav string) PageData {
	sess := viewer(r)
	return PageData{
		Title:    title,
		Nav:      nav,
		Settings: siteSettings(r.Context(), sess),
		Flashes:  sess.Flashes(),
	}
}

// flashResult queues the outcome of a mutation: msg on success, the
// translated error otherwise.
func flashResult(sess *session.Session, msg string, err error, translate func(error) string) {
	if err != nil {
		sess.AddFlash(session.FlashError, translate(err))
		return
	}
	sess.AddFlash(session.FlashOK, msg)
}

func newDevProxy(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Host = target.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("dev proxy request failed", "path", r.URL.Path, "error", err)
		http.Error(w, backend.MsgGeneric, http.StatusBadGateway)
	}
	return proxy
}
