// Package admin holds the admin console's per-viewer state: the session
// gate, the local portfolio order, and the mutations behind each tab.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/query"
)

// Query groups of the admin console.
const (
	GroupSessionCheck  = "admin-session-check"
	GroupStats         = "admin-stats"
	GroupCategories    = "admin-categories"
	GroupPortfolio     = "admin-portfolio"
	GroupInquiry       = "admin-inquiry"
	GroupInquiryDetail = "admin-inquiry-detail"
	GroupSettings      = "admin-settings"
)

// ErrUnauthenticated is returned by console queries and mutations while the
// viewer is not logged in. No request is made in that case.
var ErrUnauthenticated = errors.New("admin session required")

// ValidationError is a console input error. Its text is shown as is.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Validation messages.
const (
	ErrLoginFieldsRequired      ValidationError = "관리자 로그인은 username/password 모두 필수입니다."
	ErrCategoryNameRequired     ValidationError = "카테고리 name은 필수입니다."
	ErrOrderNotNumber           ValidationError = "order는 숫자로 입력해주세요."
	ErrPortfolioFieldsRequired  ValidationError = "포트폴리오 생성은 title/image가 필수입니다."
	ErrPortfolioUpdateIDMissing ValidationError = "수정할 포트폴리오 ID를 입력해주세요."
	ErrPortfolioDeleteIDMissing ValidationError = "삭제할 포트폴리오 ID를 입력해주세요."
	ErrInquiryDeleteIDMissing   ValidationError = "삭제할 문의 ID를 입력해주세요."
	ErrCommentFieldsRequired    ValidationError = "답변 등록에는 문의 ID와 내용이 필요합니다."
)

// MsgLoginRequired is shown when an admin action is attempted without a session.
const MsgLoginRequired = "관리자 로그인이 필요합니다."

// Message translates a console error for display.
func Message(err error) string {
	var ve ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrUnauthenticated):
		return MsgLoginRequired
	default:
		return backend.Message(err)
	}
}

var (
	loginGroups  = []string{GroupSessionCheck, GroupStats, GroupCategories, GroupPortfolio, GroupInquiry, GroupSettings}
	logoutGroups = []string{GroupStats, GroupCategories, GroupPortfolio, GroupInquiry, GroupInquiryDetail, GroupSettings}
)

// Gate tracks whether the viewer holds an admin session on the backend. The
// zero value is unauthenticated.
type Gate struct {
	mu            sync.Mutex
	authenticated bool
}

// Authenticated reports the current gate state.
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

func (g *Gate) set(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authenticated = v
}

// Probe asks the backend for the dashboard stats. Success means the viewer's
// backend session is valid; any error leaves the gate unauthenticated.
func (g *Gate) Probe(ctx context.Context, api backend.AdminAPI, cache *query.Cache) bool {
	_, err := query.Fetch(ctx, cache, GroupSessionCheck, api.Stats)
	if err != nil {
		if status, ok := backend.StatusOf(err); !ok || (status != http.StatusUnauthorized && status != http.StatusForbidden) {
			slog.Warn("admin session probe failed", "error", err)
		}
	}
	g.set(err == nil)
	return err == nil
}

// Login logs in on the backend and invalidates every admin query so it is
// refetched under the new session. It returns the message to show.
func (g *Gate) Login(ctx context.Context, api backend.AdminAPI, cache *query.Cache, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return "", ErrLoginFieldsRequired
	}

	resp, err := api.Login(ctx, model.LoginRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}

	g.set(true)
	cache.Invalidate(loginGroups...)
	slog.Info("admin logged in", "username", username)
	return detailOr(resp, "로그인 성공"), nil
}

// Logout ends the backend session and evicts all admin data from cache so
// none of it can be rendered afterwards.
func (g *Gate) Logout(ctx context.Context, api backend.AdminAPI, cache *query.Cache) (string, error) {
	resp, err := api.Logout(ctx)
	if err != nil {
		return "", err
	}

	g.set(false)
	cache.Remove(logoutGroups...)
	cache.Invalidate(GroupSessionCheck)
	slog.Info("admin logged out")
	return detailOr(resp, "로그아웃 성공"), nil
}

func detailOr(resp *model.MessageResponse, fallback string) string {
	if resp != nil && resp.Detail != "" {
		return resp.Detail
	}
	return fallback
}
