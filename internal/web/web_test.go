package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/db"
	"github.com/erazemk/sowa/internal/inquiry"
	"github.com/erazemk/sowa/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

const adminPrefix = "/api/dashboard-sowa"

// fakeStudio is an in-memory studio backend covering the public endpoints
// and enough of the admin surface to log in and reorder.
type fakeStudio struct {
	mu        sync.Mutex
	requests  []string
	inquiries []map[string]any
	nextID    int64
}

func newFakeStudio() *fakeStudio {
	return &fakeStudio{
		inquiries: []map[string]any{
			{"id": 1, "name": "김민수", "phone": "010-1111-2222", "created_at": "2024-03-05T10:00:00+09:00", "has_reply": true},
		},
		nextID: 2,
	}
}

func (f *fakeStudio) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.RequestURI())
}

func (f *fakeStudio) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if strings.HasPrefix(req, prefix) {
			n++
		}
	}
	return n
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeStudio) handler() http.Handler {
	mux := http.NewServeMux()

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie("sessionid"); err != nil || c.Value != "ok" {
				respond(w, http.StatusUnauthorized, map[string]string{"detail": "login required"})
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("GET /api/settings/", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{
			"id": 1, "site_title": "SOWA", "hero_title": "머무는 공간의 품격",
			"hero_subtitle": "주거와 상업 공간", "logo_image": nil, "hero_image": "/media/hero.jpg",
		})
	})
	mux.HandleFunc("GET /api/portfolio/categories/", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []map[string]any{{"id": 2, "name": "상업"}})
	})
	mux.HandleFunc("GET /api/portfolio/images/", func(w http.ResponseWriter, r *http.Request) {
		title := "모던 펜트하우스"
		if r.URL.Query().Get("category") == "2" {
			title = "미니멀 카페"
		}
		respond(w, http.StatusOK, map[string]any{
			"count": 1, "next": nil, "previous": nil,
			"results": []map[string]any{{"id": 7, "title": title, "image": "/media/p7.jpg", "category": nil, "created_at": "2024-01-01"}},
		})
	})
	mux.HandleFunc("GET /api/inquiry/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		respond(w, http.StatusOK, f.inquiries)
	})
	mux.HandleFunc("POST /api/inquiry/create/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		id := f.nextID
		f.nextID++
		f.inquiries = append([]map[string]any{{
			"id": id, "name": body["name"], "phone": body["phone"],
			"created_at": "2024-03-06T09:00:00+09:00", "has_reply": false,
		}}, f.inquiries...)
		f.mu.Unlock()
		respond(w, http.StatusCreated, map[string]any{"id": id, "name": body["name"], "phone": body["phone"], "comments": []any{}})
	})
	mux.HandleFunc("POST /api/inquiry/{id}/verify/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "1234" {
			respond(w, http.StatusForbidden, map[string]string{"detail": "forbidden"})
			return
		}
		respond(w, http.StatusOK, map[string]any{
			"id": 1, "name": "김민수", "phone": "010-1111-2222", "area": "32평",
			"comments": []map[string]any{{"id": 9, "content": "상담 일정을 안내드립니다."}},
		})
	})

	mux.HandleFunc("POST "+adminPrefix+"/login/", func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, Password string }
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret" {
			respond(w, http.StatusBadRequest, map[string]string{"detail": "아이디 또는 비밀번호가 올바르지 않습니다."})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "ok", Path: "/"})
		respond(w, http.StatusOK, map[string]string{"detail": "로그인 성공"})
	})
	mux.HandleFunc("GET "+adminPrefix+"/stats/", authed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]int{
			"total_inquiries": 12, "pending_inquiries": 5, "replied_inquiries": 7, "total_portfolio": 3,
		})
	}))
	mux.HandleFunc("GET "+adminPrefix+"/category/", authed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []map[string]any{{"id": 2, "name": "상업", "order": 0}})
	}))
	mux.HandleFunc("GET "+adminPrefix+"/portfolio/", authed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, []map[string]any{
			{"id": 1, "title": "a", "image": "/media/a.jpg", "order": 0},
			{"id": 2, "title": "b", "image": "/media/b.jpg", "order": 1},
			{"id": 3, "title": "c", "image": "/media/c.jpg", "order": 2},
		})
	}))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		mux.ServeHTTP(w, r)
	})
}

type harness struct {
	studio *fakeStudio
	site   *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	studio := newFakeStudio()
	backendServer := httptest.NewServer(studio.handler())
	t.Cleanup(backendServer.Close)

	client, err := backend.New(backend.Config{BaseURL: backendServer.URL, Transport: backendServer.Client().Transport})
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	manager, err := session.NewManager(db.NewTestDB(t), client, session.Options{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	srv, err := NewServer(Options{Sessions: manager, AssetOrigin: "https://api.example.com", RateLimit: 100})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(srv.Close)

	site := httptest.NewServer(srv.Routes())
	t.Cleanup(site.Close)

	jar, _ := cookiejar.New(nil)
	browser := site.Client()
	browser.Jar = jar

	return &harness{studio: studio, site: site, client: browser}
}

func (h *harness) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := h.client.Get(h.site.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (h *harness) post(t *testing.T, path string, form url.Values) (int, string) {
	t.Helper()
	resp, err := h.client.PostForm(h.site.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func (h *harness) sessionToken(t *testing.T) string {
	t.Helper()
	u, _ := url.Parse(h.site.URL)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == session.CookieName {
			return c.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func TestHomeRendersSettingsAndFeatured(t *testing.T) {
	h := newHarness(t)

	status, body := h.get(t, "/")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	for _, want := range []string{"머무는 공간의 품격", "모던 펜트하우스", "https://api.example.com/media/p7.jpg", `action="/inquiry"`} {
		if !strings.Contains(body, want) {
			t.Errorf("home page missing %q", want)
		}
	}
	if h.studio.count("GET /api/portfolio/images/?is_featured=true") != 1 {
		t.Error("expected one featured request")
	}

	// Settings come from the viewer cache on the next page.
	h.get(t, "/portfolio")
	if n := h.studio.count("GET /api/settings/"); n != 1 {
		t.Errorf("settings fetched %d times, want 1", n)
	}
}

func TestPortfolioCategoryFilter(t *testing.T) {
	h := newHarness(t)

	status, body := h.get(t, "/portfolio?category=2")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "미니멀 카페") || !strings.Contains(body, "총 1개의 프로젝트") {
		t.Error("expected filtered portfolio")
	}
	if !strings.Contains(body, `class="chip active" href="/portfolio?category=2"`) {
		t.Error("expected the category chip to be active")
	}
	if h.studio.count("GET /api/portfolio/images/?category=2") != 1 {
		t.Error("expected a category filtered request")
	}
}

func TestInquiryCreateFlow(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/inquiry")

	form := url.Values{
		"return":   {"/inquiry"},
		"name":     {"이지은"},
		"phone":    {"0101234"},
		"password": {"1234"},
	}
	status, body := h.post(t, "/inquiry", form)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, inquiry.MsgPhoneFormat) {
		t.Error("expected the phone format message")
	}
	if !strings.Contains(body, `value="이지은"`) {
		t.Error("expected the typed values to be kept")
	}
	if n := h.studio.count("POST /api/inquiry/create/"); n != 0 {
		t.Fatalf("invalid form sent %d create requests", n)
	}

	form.Set("phone", "01012345678")
	_, body = h.post(t, "/inquiry", form)
	if n := h.studio.count("POST /api/inquiry/create/"); n != 1 {
		t.Fatalf("create requests = %d, want 1", n)
	}
	if !strings.Contains(body, MsgInquiryCreated) {
		t.Error("expected the success flash")
	}
	if !strings.Contains(body, "이지은님의 문의") {
		t.Error("expected the refreshed list to show the new inquiry")
	}
	if n := h.studio.count("GET /api/inquiry/"); n != 2 {
		t.Errorf("list fetched %d times, want 2", n)
	}
}

func TestInquiryRevealFlow(t *testing.T) {
	h := newHarness(t)

	_, body := h.post(t, "/inquiry/1/select", nil)
	if !strings.Contains(body, `action="/inquiry/1/verify"`) {
		t.Fatal("expected the password form after a failed probe")
	}
	if strings.Contains(body, "비밀번호가 일치하지 않습니다") {
		t.Error("a failed probe must not show an error")
	}
	if !strings.Contains(body, `data-busy="조회 중..."`) {
		t.Error("expected the verify form to carry its busy label")
	}

	_, body = h.post(t, "/inquiry/1/verify", url.Values{"password": {"9999"}})
	if !strings.Contains(body, "비밀번호가 일치하지 않습니다. (403)") {
		t.Error("expected the mismatch message")
	}

	_, body = h.post(t, "/inquiry/1/verify", url.Values{"password": {"   "}})
	if !strings.Contains(body, inquiry.MsgPasswordRequired) {
		t.Error("expected the password required message")
	}
	if n := h.studio.count("POST /api/inquiry/1/verify/"); n != 2 {
		t.Errorf("verify requests = %d, want 2", n)
	}

	_, body = h.post(t, "/inquiry/1/verify", url.Values{"password": {"1234"}})
	if !strings.Contains(body, "상담 일정을 안내드립니다.") || !strings.Contains(body, "32평") {
		t.Error("expected the revealed detail")
	}

	// Closing and reopening uses the unlocked detail.
	h.post(t, "/inquiry/close", nil)
	_, body = h.post(t, "/inquiry/1/select", nil)
	if !strings.Contains(body, "32평") {
		t.Error("expected the cached detail on reopen")
	}
	if n := h.studio.count("POST /api/inquiry/1/verify/"); n != 3 {
		t.Errorf("verify requests = %d, want 3", n)
	}
}

func TestAdminLoginRotatesToken(t *testing.T) {
	h := newHarness(t)

	_, body := h.get(t, "/admin")
	if !strings.Contains(body, `action="/admin/login"`) {
		t.Fatal("expected the login form")
	}
	before := h.sessionToken(t)

	_, body = h.post(t, "/admin/login", url.Values{"username": {"admin"}, "password": {"wrong"}})
	if !strings.Contains(body, "아이디 또는 비밀번호가 올바르지 않습니다.") {
		t.Error("expected the backend detail")
	}
	if !strings.Contains(body, `action="/admin/login"`) {
		t.Error("failed login must keep the login form")
	}

	_, body = h.post(t, "/admin/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	if !strings.Contains(body, "로그인 성공") {
		t.Error("expected the login flash")
	}
	if !strings.Contains(body, "<strong>12</strong>") {
		t.Error("expected dashboard stats")
	}
	if after := h.sessionToken(t); after == before {
		t.Error("expected the session token to rotate on login")
	}

	_, body = h.post(t, "/admin/login", url.Values{"username": {"admin"}})
	if !strings.Contains(body, "관리자 로그인은 username/password 모두 필수입니다.") {
		t.Error("expected the missing field message")
	}
}

func TestAdminStatsRefresh(t *testing.T) {
	h := newHarness(t)
	statsCalls := "GET " + adminPrefix + "/stats/"

	_, body := h.post(t, "/admin/login", url.Values{"username": {"admin"}, "password": {"secret"}})
	if !strings.Contains(body, `action="/admin/stats/refresh"`) {
		t.Fatal("expected the refresh control on the dashboard")
	}
	before := h.studio.count(statsCalls)

	h.get(t, "/admin")
	if n := h.studio.count(statsCalls); n != before {
		t.Fatalf("stats fetched %d more times without a refresh", n-before)
	}

	status, body := h.post(t, "/admin/stats/refresh", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, "<strong>12</strong>") {
		t.Error("expected dashboard stats after the refresh")
	}
	if n := h.studio.count(statsCalls); n != before+1 {
		t.Errorf("refresh fetched stats %d times, want 1", n-before)
	}
}

func TestAdminReorderIsLocal(t *testing.T) {
	h := newHarness(t)
	h.post(t, "/admin/login", url.Values{"username": {"admin"}, "password": {"secret"}})

	resp, err := h.client.Post(h.site.URL+"/admin/portfolio/reorder", "application/json",
		strings.NewReader(`{"active_id":3,"over_id":1}`))
	if err != nil {
		t.Fatalf("POST reorder: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out reorderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []int64{3, 1, 2}
	if len(out.Order) != len(want) {
		t.Fatalf("order = %v, want %v", out.Order, want)
	}
	for i := range want {
		if out.Order[i] != want[i] {
			t.Fatalf("order = %v, want %v", out.Order, want)
		}
	}
	if n := h.studio.count("PUT "); n != 0 {
		t.Errorf("reorder sent %d updates", n)
	}

	_, body := h.get(t, "/admin?tab=portfolio")
	if strings.Contains(body, "data-save-order disabled") {
		t.Error("save order should be enabled after a reorder")
	}
}

func TestAdminReorderRequiresLogin(t *testing.T) {
	h := newHarness(t)

	resp, err := h.client.Post(h.site.URL+"/admin/portfolio/reorder", "application/json",
		strings.NewReader(`{"active_id":3,"over_id":1}`))
	if err != nil {
		t.Fatalf("POST reorder: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if n := h.studio.count("GET " + adminPrefix + "/portfolio/"); n != 0 {
		t.Errorf("unauthenticated reorder fetched the portfolio %d times", n)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.get(t, "/")

	status, body := h.get(t, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !strings.Contains(body, `sowa_http_requests_total{method="GET",route="GET /{$}",status="200"}`) {
		t.Error("expected the home page to be counted")
	}
}

func TestRateLimit(t *testing.T) {
	store := newRateLimiterStore(1, false)
	defer store.Stop()

	h := store.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/inquiry", nil)
	req.RemoteAddr = "203.0.113.7:5000"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After")
	}

	other := httptest.NewRequest(http.MethodPost, "/inquiry", nil)
	other.RemoteAddr = "203.0.113.8:5000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusNoContent {
		t.Errorf("other ip status = %d", rec.Code)
	}

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	store.prune(10 * time.Minute)
	if store.len() != 0 {
		t.Errorf("prune left %d limiters", store.len())
	}
}

func TestRateLimitDisabled(t *testing.T) {
	store := newRateLimiterStore(0, false)
	defer store.Stop()

	h := store.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/inquiry", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	if store.len() != 0 {
		t.Errorf("disabled store tracked %d limiters", store.len())
	}
}

func TestRateLimitIgnoresSpoofedHeaders(t *testing.T) {
	store := newRateLimiterStore(1, false)
	defer store.Stop()

	h := store.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	codes := make([]int, 0, 2)
	for _, fwd := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Errorf("statuses = %v, a rotated header must not reset the budget", codes)
	}
}

func TestClientIP(t *testing.T) {
	direct := newRateLimiterStore(0, false)
	proxied := newRateLimiterStore(0, true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	if got := proxied.clientIP(req); got != "198.51.100.1" {
		t.Errorf("proxied clientIP = %q", got)
	}
	if got := direct.clientIP(req); got != "10.0.0.1" {
		t.Errorf("direct clientIP = %q", got)
	}

	req.Header.Set("X-Real-IP", "198.51.100.9")
	if got := proxied.clientIP(req); got != "198.51.100.9" {
		t.Errorf("X-Real-IP clientIP = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:443"
	if got := proxied.clientIP(req); got != "2001:db8::1" {
		t.Errorf("clientIP = %q", got)
	}
}
