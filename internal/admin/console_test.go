package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/query"
)

const prefix = "/api/dashboard-sowa"

// fakeBackend is a minimal admin backend keyed on a session cookie.
type fakeBackend struct {
	mu        sync.Mutex
	requests  []string
	portfolio []model.PortfolioImage
	orders    map[int64]int
	failPut   int64
}

func (f *fakeBackend) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+strings.TrimPrefix(r.URL.Path, prefix))
}

func (f *fakeBackend) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if strings.HasPrefix(req, method+" ") {
			n++
		}
	}
	return n
}

func (f *fakeBackend) savedOrder(id int64) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	return order, ok
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("sessionid"); err != nil || c.Value != "ok" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("POST "+prefix+"/login/", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "아이디 또는 비밀번호가 올바르지 않습니다."})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "ok", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"detail": "로그인 되었습니다."})
	})
	mux.HandleFunc("POST "+prefix+"/logout/", authed(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, map[string]string{"detail": ""})
	}))
	mux.HandleFunc("GET "+prefix+"/stats/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.DashboardStats{TotalInquiries: 3, PendingInquiries: 1, RepliedInquiries: 2, TotalPortfolio: 3})
	}))
	mux.HandleFunc("GET "+prefix+"/category/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []model.Category{{ID: 1, Name: "주거"}})
	}))
	mux.HandleFunc("POST "+prefix+"/category/", authed(func(w http.ResponseWriter, r *http.Request) {
		var req model.CategoryRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusCreated, model.Category{ID: 2, Name: req.Name, Order: req.Order})
	}))
	mux.HandleFunc("PUT "+prefix+"/category/{id}/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.Category{ID: 1, Name: "수정"})
	}))
	mux.HandleFunc("GET "+prefix+"/portfolio/", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		list := make([]model.PortfolioImage, len(f.portfolio))
		copy(list, f.portfolio)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "next": nil, "previous": nil, "results": list})
	}))
	mux.HandleFunc("PUT "+prefix+"/portfolio/{id}/", authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if id == f.failPut {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "저장 실패"})
			return
		}
		order, _ := strconv.Atoi(r.FormValue("order"))
		f.mu.Lock()
		f.orders[id] = order
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, model.PortfolioImage{ID: id, Order: order})
	}))
	mux.HandleFunc("DELETE "+prefix+"/inquiry/{id}/", authed(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.HandleFunc("GET "+prefix+"/inquiry/{id}/", authed(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		writeJSON(w, http.StatusOK, model.InquiryDetail{ID: id, Name: "김민지", Comments: []model.Comment{}})
	}))
	mux.HandleFunc("POST "+prefix+"/inquiry/{id}/comment/", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, model.Comment{ID: 5, Content: "답변"})
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		mux.ServeHTTP(w, r)
	})
}

func newConsole(t *testing.T, f *fakeBackend) (*Console, *query.Cache) {
	t.Helper()
	if f.orders == nil {
		f.orders = make(map[int64]int)
	}
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	client, err := backend.New(backend.Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}

	cache := query.New(0)
	return NewConsole(client.WithJar(jar).Admin(), cache, NewState()), cache
}

func login(t *testing.T, c *Console) {
	t.Helper()
	if _, err := c.Login(context.Background(), "admin", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func TestQueriesDisabledWhileUnauthenticated(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newConsole(t, f)
	ctx := context.Background()

	if _, err := c.Stats(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Stats err = %v", err)
	}
	if _, err := c.Categories(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Categories err = %v", err)
	}
	if _, err := c.Portfolio(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Portfolio err = %v", err)
	}
	if _, err := c.SaveCategory(ctx, CategoryInput{Name: "x"}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("SaveCategory err = %v", err)
	}
	if f.total() != 0 {
		t.Errorf("expected no backend requests, got %d", f.total())
	}
}

func TestProbe(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newConsole(t, f)
	ctx := context.Background()

	if c.Probe(ctx) {
		t.Fatal("probe without a backend session should fail")
	}
	if c.Authenticated() {
		t.Fatal("gate should stay unauthenticated")
	}

	login(t, c)
	c.state.Gate.set(false)
	if !c.Probe(ctx) || !c.Authenticated() {
		t.Error("probe with a backend session should authenticate")
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newConsole(t, f)

	_, err := c.Login(context.Background(), "admin", "")
	if !errors.Is(err, ErrLoginFieldsRequired) {
		t.Errorf("err = %v", err)
	}
	if Message(err) != "관리자 로그인은 username/password 모두 필수입니다." {
		t.Errorf("Message = %q", Message(err))
	}
	if f.total() != 0 {
		t.Error("login should not be sent without both fields")
	}
}

func TestLoginFailureKeepsGateClosed(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newConsole(t, f)

	_, err := c.Login(context.Background(), "admin", "wrong")
	if err == nil {
		t.Fatal("expected login error")
	}
	if c.Authenticated() {
		t.Error("gate opened on failed login")
	}
	if Message(err) != "아이디 또는 비밀번호가 올바르지 않습니다." {
		t.Errorf("Message = %q", Message(err))
	}
}

func TestLoginInvalidatesAdminGroups(t *testing.T) {
	f := &fakeBackend{}
	c, cache := newConsole(t, f)
	cache.Set(GroupStats, &model.DashboardStats{})
	cache.Set(GroupSettings, &model.SiteSettings{})

	msg, err := c.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if msg != "로그인 되었습니다." {
		t.Errorf("msg = %q", msg)
	}
	if !c.Authenticated() {
		t.Error("gate should be open after login")
	}
	for _, g := range []string{GroupStats, GroupSettings} {
		if !cache.Stale(g) {
			t.Errorf("%s should be stale after login", g)
		}
	}

	stats, err := c.Stats(context.Background())
	if err != nil || stats.TotalPortfolio != 3 {
		t.Errorf("Stats = %+v, %v", stats, err)
	}
}

func TestLogoutEvictsAdminData(t *testing.T) {
	f := &fakeBackend{portfolio: images(1, 2)}
	c, cache := newConsole(t, f)
	ctx := context.Background()
	login(t, c)

	if _, err := c.Stats(ctx); err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if _, err := c.Categories(ctx); err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if _, err := c.Portfolio(ctx); err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	c.state.SelectInquiry(7)
	if _, err := c.InquiryDetail(ctx); err != nil {
		t.Fatalf("InquiryDetail: %v", err)
	}

	msg, err := c.Logout(ctx)
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if msg != "로그아웃 성공" {
		t.Errorf("msg = %q", msg)
	}
	if c.Authenticated() {
		t.Error("gate should be closed after logout")
	}
	for _, key := range []string{GroupStats, GroupCategories, GroupPortfolio, "admin-inquiry-detail:7"} {
		if _, ok := cache.Peek(key); ok {
			t.Errorf("%s still cached after logout", key)
		}
	}

	before := f.total()
	if _, err := c.Stats(ctx); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Stats after logout err = %v", err)
	}
	if f.total() != before {
		t.Error("no request should be made after logout")
	}
	if c.Probe(ctx) {
		t.Error("probe after logout should fail")
	}
}

func TestReorderSendsNothing(t *testing.T) {
	f := &fakeBackend{portfolio: images(1, 2, 3)}
	c, _ := newConsole(t, f)
	ctx := context.Background()
	login(t, c)

	if err := c.Reorder(ctx, 1, 3); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if n := f.count(http.MethodPut) + f.count(http.MethodPatch); n != 0 {
		t.Errorf("reorder sent %d updates", n)
	}

	list, err := c.Portfolio(ctx)
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	if got := ids(list); !equalIDs(got, []int64{2, 3, 1}) {
		t.Errorf("displayed order = %v, want [2 3 1]", got)
	}
}

func TestSaveOrderUpdatesChangedItems(t *testing.T) {
	f := &fakeBackend{portfolio: images(1, 2, 3)}
	c, _ := newConsole(t, f)
	ctx := context.Background()
	login(t, c)

	if err := c.Reorder(ctx, 3, 2); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if _, err := c.SaveOrder(ctx); err != nil {
		t.Fatalf("SaveOrder: %v", err)
	}

	if n := f.count(http.MethodPut); n != 2 {
		t.Errorf("expected 2 updates, got %d", n)
	}
	if order, _ := f.savedOrder(3); order != 1 {
		t.Errorf("order of 3 = %d, want 1", order)
	}
	if order, _ := f.savedOrder(2); order != 2 {
		t.Errorf("order of 2 = %d, want 2", order)
	}
	if _, ok := f.savedOrder(1); ok {
		t.Error("unchanged item should not be updated")
	}
	if c.state.LocalOrder() != nil {
		t.Error("local order should be dropped after saving")
	}
}

func TestSaveOrderStopsAtFirstFailure(t *testing.T) {
	f := &fakeBackend{portfolio: images(1, 2, 3), failPut: 1}
	c, _ := newConsole(t, f)
	ctx := context.Background()
	login(t, c)

	if err := c.Reorder(ctx, 1, 3); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	_, err := c.SaveOrder(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if Message(err) != "저장 실패" {
		t.Errorf("Message = %q", Message(err))
	}
	// Order [2 3 1]: 2 and 3 are saved, 1 fails.
	if n := f.count(http.MethodPut); n != 3 {
		t.Errorf("expected 3 update attempts, got %d", n)
	}
	if c.state.LocalOrder() == nil {
		t.Error("local order should be kept after a failed save")
	}
}

func TestSaveCategory(t *testing.T) {
	f := &fakeBackend{}
	c, cache := newConsole(t, f)
	ctx := context.Background()
	login(t, c)

	if _, err := c.SaveCategory(ctx, CategoryInput{Name: "  "}); !errors.Is(err, ErrCategoryNameRequired) {
		t.Errorf("blank name err = %v", err)
	}
	if _, err := c.SaveCategory(ctx, CategoryInput{Name: "상업", Order: "x"}); !errors.Is(err, ErrOrderNotNumber) {
		t.Errorf("bad order err = %v", err)
	}

	if _, err := c.Categories(ctx); err != nil {
		t.Fatalf("Categories: %v", err)
	}
	msg, err := c.SaveCategory(ctx, CategoryInput{Name: "상업"})
	if err != nil || msg != "카테고리 생성 완료" {
		t.Errorf("create = %q, %v", msg, err)
	}
	if !cache.Stale(GroupCategories) {
		t.Error("categories should be refetched after a save")
	}

	msg, err = c.SaveCategory(ctx, CategoryInput{EditID: 1, Name: "수정", Order: "2"})
	if err != nil || msg != "카테고리 수정 완료" {
		t.Errorf("update = %q, %v", msg, err)
	}
	if f.count(http.MethodPut) != 1 || f.count(http.MethodPost) != 2 {
		t.Errorf("got %d PUT and %d POST requests", f.count(http.MethodPut), f.count(http.MethodPost))
	}
}

func TestCreatePortfolioRequiresTitleAndImage(t *testing.T) {
	f := &fakeBackend{}
	c, _ := newConsole(t, f)
	login(t, c)
	before := f.total()

	_, err := c.CreatePortfolio(context.Background(), PortfolioInput{Title: "거실"})
	if !errors.Is(err, ErrPortfolioFieldsRequired) {
		t.Errorf("err = %v", err)
	}
	if f.total() != before {
		t.Error("no request expected")
	}
}

func TestInquiryCommentsAndDelete(t *testing.T) {
	f := &fakeBackend{}
	c, cache := newConsole(t, f)
	ctx := context.Background()
	login(t, c)

	if _, err := c.AddComment(ctx, 7, "  "); !errors.Is(err, ErrCommentFieldsRequired) {
		t.Errorf("blank comment err = %v", err)
	}

	c.state.SelectInquiry(7)
	detail, err := c.InquiryDetail(ctx)
	if err != nil || detail.ID != 7 {
		t.Fatalf("InquiryDetail = %+v, %v", detail, err)
	}

	msg, err := c.AddComment(ctx, 7, "확인했습니다.")
	if err != nil || msg != "답변 등록 완료" {
		t.Errorf("AddComment = %q, %v", msg, err)
	}
	if !cache.Stale(query.Key(GroupInquiryDetail, "7")) {
		t.Error("detail should be refetched after a reply")
	}

	msg, err = c.DeleteInquiry(ctx, 7)
	if err != nil || msg != "문의 삭제 완료" {
		t.Errorf("DeleteInquiry = %q, %v", msg, err)
	}
	if c.state.SelectedInquiry() != 0 {
		t.Error("deleting an inquiry should close it")
	}
	if _, err := c.DeleteInquiry(ctx, 0); !errors.Is(err, ErrInquiryDeleteIDMissing) {
		t.Errorf("missing id err = %v", err)
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrCategoryNameRequired, "카테고리 name은 필수입니다."},
		{fmt.Errorf("wrapped: %w", ErrUnauthenticated), MsgLoginRequired},
		{&backend.Error{Status: http.StatusNotFound}, backend.MsgNotFound},
		{errors.New("boom"), backend.MsgGeneric},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
