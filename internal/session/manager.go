package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/erazemk/sowa/internal/auth"
	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/metrics"
	"github.com/erazemk/sowa/internal/store"
)

// CookieName is the name of the viewer session cookie.
const CookieName = "sowa_session"

// DefaultSweepSpec is the cron schedule of the session sweep.
const DefaultSweepSpec = "@every 10m"

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Options configures a Manager.
type Options struct {
	// Secret signs session tokens and seals persisted cookies.
	Secret string
	// CacheStale is the query cache stale time of each session.
	CacheStale time.Duration
	// IdleTimeout drops in-memory sessions not seen for this long. Their
	// persisted cookies survive until the token expires.
	IdleTimeout time.Duration
	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
	// SweepSpec is the cron schedule of the sweep; empty uses DefaultSweepSpec.
	SweepSpec string
}

// Manager creates, restores, and sweeps viewer sessions.
type Manager struct {
	db     *sql.DB
	client *backend.Client
	sealer *Sealer
	scopes []*url.URL
	opts   Options

	mu       sync.Mutex
	sessions map[string]*Session
	cron     *cron.Cron
	now      func() time.Time
}

// NewManager creates a session manager. client is the shared backend client
// each session derives its own cookie-carrying client from.
func NewManager(db *sql.DB, client *backend.Client, opts Options) (*Manager, error) {
	sealer, err := NewSealer(opts.Secret)
	if err != nil {
		return nil, err
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 24 * time.Hour
	}
	if opts.SweepSpec == "" {
		opts.SweepSpec = DefaultSweepSpec
	}

	base := client.BaseURL()
	adminScope := *base
	adminScope.Path = base.Path + client.AdminPrefix() + "/"

	return &Manager{
		db:       db,
		client:   client,
		sealer:   sealer,
		scopes:   []*url.URL{base, &adminScope},
		opts:     opts,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}, nil
}

// Middleware attaches the viewer's session to the request context, creating
// one when needed, and persists changed backend cookies afterwards.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := m.Load(w, r)
		if err != nil {
			slog.Error("failed to load session", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))

		if err := m.Persist(context.WithoutCancel(r.Context()), s); err != nil {
			slog.Error("failed to persist session", "session", s.ID, "error", err)
		}
	})
}

// Load returns the session of the request's cookie. A missing, invalid, or
// revoked token starts a new session and sets its cookie on w.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	ctx := r.Context()
	now := m.now()

	if claims := m.claims(r); claims != nil {
		s, err := m.Get(ctx, claims.SessionID)
		if err == nil {
			if id, _ := s.token(); id == "" {
				s.setToken(claims.ID, claims.ExpiresAt.Time)
			}
			s.touch(now)
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		// A valid token whose session was dropped keeps its id.
		s = m.add(claims.SessionID, now)
		s.setToken(claims.ID, claims.ExpiresAt.Time)
		return s, nil
	}

	s := m.add(uuid.NewString(), now)
	if err := m.issue(w, s); err != nil {
		m.remove(s.ID)
		return nil, err
	}
	slog.Debug("session created", "session", s.ID)
	return s, nil
}

func (m *Manager) claims(r *http.Request) *auth.Claims {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims, err := auth.ValidateToken(m.opts.Secret, cookie.Value)
	if err != nil {
		return nil
	}

	revoked, err := store.IsTokenRevoked(r.Context(), m.db, claims.ID)
	if err != nil {
		slog.Error("failed to check token revocation", "error", err)
		return nil
	}
	if revoked {
		return nil
	}
	return claims
}

// Get returns a live session by id, restoring it from the database when it
// is not in memory.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		if s.expired(now) {
			m.remove(id)
			return nil, ErrNotFound
		}
		return s, nil
	}

	rec, err := store.GetSession(ctx, m.db, id, now)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}

	jar := NewJar(m.scopes...)
	plaintext, err := m.sealer.Open(rec.ID, rec.Cookies)
	if err != nil {
		// The secret changed; the cookies are unusable.
		slog.Warn("discarding unreadable session", "session", id, "error", err)
		return nil, ErrNotFound
	}
	if err := jar.Import(plaintext); err != nil {
		return nil, fmt.Errorf("restoring session %s: %w", id, err)
	}

	s = newSession(rec.ID, m.client, jar, m.opts.CacheStale, now)
	s.createdAt = rec.CreatedAt
	s.setToken("", rec.ExpiresAt)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		s = existing
	} else {
		m.sessions[id] = s
	}
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.SetSessions(count)
	slog.Info("session restored", "session", id)
	return s, nil
}

func (m *Manager) add(id string, now time.Time) *Session {
	s := newSession(id, m.client, NewJar(m.scopes...), m.opts.CacheStale, now)

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return existing
	}
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.SetSessions(count)
	return s
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()
	metrics.SetSessions(count)
}

// issue signs a new token for s and sets the cookie.
func (m *Manager) issue(w http.ResponseWriter, s *Session) error {
	token, claims, err := auth.GenerateToken(m.opts.Secret, s.ID)
	if err != nil {
		return err
	}
	s.setToken(claims.ID, claims.ExpiresAt.Time)

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.TokenExpiry.Seconds()),
	})
	return nil
}

// Rotate issues a fresh token for s and revokes the previous one. It is
// called when the viewer gains admin rights so an earlier copy of the cookie
// no longer opens the session.
func (m *Manager) Rotate(ctx context.Context, w http.ResponseWriter, s *Session) error {
	oldID, oldExpiry := s.token()
	if err := m.issue(w, s); err != nil {
		return err
	}
	if oldID == "" {
		return nil
	}
	if err := store.RevokeToken(ctx, m.db, oldID, oldExpiry); err != nil {
		return err
	}
	// The expiry moved; make sure the record follows.
	s.jar.changed.Store(true)
	return nil
}

// Persist writes the session's backend cookies when they changed. A session
// whose jar is empty is removed from the database.
func (m *Manager) Persist(ctx context.Context, s *Session) error {
	if !s.jar.Changed() {
		return nil
	}

	data, err := s.jar.Export()
	if err != nil {
		return err
	}
	if data == nil {
		return store.DeleteSession(ctx, m.db, s.ID)
	}

	sealed, err := m.sealer.Seal(s.ID, data)
	if err != nil {
		return err
	}

	_, expiresAt := s.token()
	if expiresAt.IsZero() {
		expiresAt = m.now().Add(auth.TokenExpiry)
	}
	s.mu.Lock()
	createdAt := s.createdAt
	s.mu.Unlock()

	return store.SaveSession(ctx, m.db, store.SessionRecord{
		ID:        s.ID,
		Cookies:   sealed,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	})
}

// Len returns the number of sessions in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops idle and expired sessions from memory and purges expired
// sessions and revocations from the database.
func (m *Manager) Sweep(ctx context.Context) error {
	now := m.now()

	m.mu.Lock()
	dropped := 0
	for id, s := range m.sessions {
		if s.expired(now) || s.idleSince(now) > m.opts.IdleTimeout {
			delete(m.sessions, id)
			dropped++
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()
	metrics.SetSessions(count)

	purged, err := store.PurgeExpiredSessions(ctx, m.db, now)
	if err != nil {
		return err
	}
	revocations, err := store.PurgeRevokedTokens(ctx, m.db, now)
	if err != nil {
		return err
	}

	if dropped > 0 || purged > 0 || revocations > 0 {
		slog.Info("sessions swept", "idle", dropped, "expired", purged, "revocations", revocations, "live", count)
	}
	return nil
}

// Start runs the sweep on its cron schedule until Stop.
func (m *Manager) Start() error {
	c := cron.New()
	_, err := c.AddFunc(m.opts.SweepSpec, func() {
		if err := m.Sweep(context.Background()); err != nil {
			slog.Error("session sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling session sweep: %w", err)
	}

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	c.Start()
	return nil
}

// Stop stops the sweep and waits for a running sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
