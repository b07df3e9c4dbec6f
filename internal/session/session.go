// Package session keeps the per-viewer state of the site: the backend
// cookie jar, the query cache, the inquiry and admin console state, and
// flash messages. Viewers are identified by a signed cookie.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/erazemk/sowa/internal/admin"
	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/inquiry"
	"github.com/erazemk/sowa/internal/query"
)

// Flash kinds.
const (
	FlashOK    = "ok"
	FlashError = "error"
)

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

// Session is one viewer's state.
type Session struct {
	ID string

	Client      *backend.Client
	Cache       *query.Cache
	Inquiries   *inquiry.List
	Reveal      *inquiry.Reveal
	InquiryForm *inquiry.Form
	Admin       *admin.State

	jar *Jar

	mu        sync.Mutex
	tokenID   string
	expiresAt time.Time
	createdAt time.Time
	lastSeen  time.Time
	writeMode bool
	flashes   []Flash
}

func newSession(id string, client *backend.Client, jar *Jar, staleTime time.Duration, now time.Time) *Session {
	return &Session{
		ID:          id,
		Client:      client.WithJar(jar),
		Cache:       query.New(staleTime),
		Inquiries:   inquiry.NewList(),
		Reveal:      inquiry.NewReveal(),
		InquiryForm: inquiry.NewForm(),
		Admin:       admin.NewState(),
		jar:         jar,
		createdAt:   now,
		lastSeen:    now,
	}
}

// Console returns the admin console bound to this session.
func (s *Session) Console() *admin.Console {
	return admin.NewConsole(s.Client.Admin(), s.Cache, s.Admin)
}

// AddFlash queues a message for the next page.
func (s *Session) AddFlash(kind, message string) {
	if message == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flashes = append(s.flashes, Flash{Kind: kind, Message: message})
}

// Flashes returns and clears the queued messages.
func (s *Session) Flashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.flashes
	s.flashes = nil
	return out
}

// WriteMode reports whether the inquiry page shows the form instead of the list.
func (s *Session) WriteMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeMode
}

// SetWriteMode switches the inquiry page between list and form. Entering
// write mode goes back to the first page and closes any open inquiry.
func (s *Session) SetWriteMode(on bool) {
	s.mu.Lock()
	s.writeMode = on
	s.mu.Unlock()

	if on {
		s.Inquiries.ResetToFirstPage()
		s.Reveal.Reset()
	}
}

// InquiryCreated resets the inquiry page after a successful submission.
func (s *Session) InquiryCreated() {
	s.Inquiries.ResetToFirstPage()
	s.Reveal.Reset()
	s.mu.Lock()
	s.writeMode = false
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) token() (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenID, s.expiresAt
}

func (s *Session) setToken(id string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenID = id
	s.expiresAt = expiresAt
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.expiresAt.IsZero() && !now.Before(s.expiresAt)
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok
}
