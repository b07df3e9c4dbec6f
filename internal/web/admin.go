package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/sowa/internal/admin"
	"github.com/erazemk/sowa/internal/imaging"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/session"
)

// MsgImageInvalid is shown when an uploaded image cannot be used.
const MsgImageInvalid = "이미지는 20MB 이하의 JPEG 또는 PNG 파일만 업로드할 수 있습니다."

// Admin console tabs.
var adminTabs = []struct {
	Key   string
	Label string
}{
	{"dashboard", "대시보드"},
	{"categories", "카테고리"},
	{"portfolio", "포트폴리오"},
	{"inquiries", "문의"},
	{"settings", "사이트 설정"},
}

func adminTab(raw string) string {
	for _, t := range adminTabs {
		if t.Key == raw {
			return raw
		}
	}
	return "dashboard"
}

func redirectToAdmin(w http.ResponseWriter, r *http.Request, tab string) {
	target := "/admin"
	if tab != "" && tab != "dashboard" {
		target += "?tab=" + tab
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// adminResult flashes the outcome of an admin action.
func adminResult(sess *session.Session, msg string, err error) {
	if err != nil && !errors.As(err, new(admin.ValidationError)) && !errors.Is(err, admin.ErrUnauthenticated) {
		slog.Warn("admin action failed", "error", err)
	}
	flashResult(sess, msg, err, admin.Message)
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// AdminPage handles GET /admin. The backend session is probed on every
// render; unauthenticated viewers get the login form.
func (s *Server) AdminPage(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	console := sess.Console()
	ctx := r.Context()

	if !console.Probe(ctx) {
		s.Templates.Render(w, "admin_login.html", &struct {
			PageData
		}{
			PageData: s.page(r, "관리자 로그인", "admin"),
		})
		return
	}

	tab := adminTab(r.URL.Query().Get("tab"))
	data := struct {
		PageData
		Tabs          any
		Tab           string
		Stats         *model.DashboardStats
		Categories    []model.Category
		EditCategory  *model.Category
		Portfolio     []model.PortfolioImage
		EditPortfolio *model.PortfolioImage
		OrderChanged  bool
		Inquiries     []model.InquiryListItem
		Selected      int64
		Detail        *model.InquiryDetail
		AdminSettings *model.SiteSettings
	}{
		PageData: s.page(r, "관리자", "admin"),
		Tabs:     adminTabs,
		Tab:      tab,
	}

	var errs []error
	keep := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	editID := parseID(r.URL.Query().Get("edit"))

	switch tab {
	case "dashboard":
		var err error
		data.Stats, err = console.Stats(ctx)
		keep(err)
	case "categories":
		var err error
		data.Categories, err = console.Categories(ctx)
		keep(err)
		for i := range data.Categories {
			if data.Categories[i].ID == editID {
				data.EditCategory = &data.Categories[i]
			}
		}
	case "portfolio":
		var err error
		data.Categories, err = console.Categories(ctx)
		keep(err)
		data.Portfolio, err = console.Portfolio(ctx)
		keep(err)
		for i := range data.Portfolio {
			if data.Portfolio[i].ID == editID {
				data.EditPortfolio = &data.Portfolio[i]
			}
		}
		data.OrderChanged = sess.Admin.LocalOrder() != nil
	case "inquiries":
		var err error
		data.Inquiries, err = console.Inquiries(ctx)
		keep(err)
		data.Selected = sess.Admin.SelectedInquiry()
		data.Detail, err = console.InquiryDetail(ctx)
		keep(err)
	case "settings":
		var err error
		data.AdminSettings, err = console.Settings(ctx)
		keep(err)
	}

	if len(errs) > 0 {
		slog.Warn("failed to load admin data", "tab", tab, "error", errors.Join(errs...))
		data.Error = admin.Message(errs[0])
	}

	s.Templates.Render(w, "admin.html", &data)
}

// AdminLoginSubmit handles POST /admin/login. A successful login rotates the
// viewer token so the pre-login token cannot be replayed.
func (s *Server) AdminLoginSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().Login(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err == nil {
		if rerr := s.Sessions.Rotate(r.Context(), w, sess); rerr != nil {
			slog.Error("failed to rotate session token", "session", sess.ID, "error", rerr)
		}
		slog.Info("admin logged in", "session", sess.ID)
	}
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "")
}

// AdminLogoutSubmit handles POST /admin/logout.
func (s *Server) AdminLogoutSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().Logout(r.Context())
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "")
}

// StatsRefreshSubmit handles POST /admin/stats/refresh.
func (s *Server) StatsRefreshSubmit(w http.ResponseWriter, r *http.Request) {
	viewer(r).Console().RefreshStats()
	redirectToAdmin(w, r, "dashboard")
}

// CategorySaveSubmit handles POST /admin/categories.
func (s *Server) CategorySaveSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().SaveCategory(r.Context(), admin.CategoryInput{
		EditID: parseID(r.FormValue("edit_id")),
		Name:   r.FormValue("name"),
		Order:  r.FormValue("order"),
	})
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "categories")
}

// CategoryDeleteSubmit handles POST /admin/categories/{id}/delete.
func (s *Server) CategoryDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sess := viewer(r)
	msg, err := sess.Console().DeleteCategory(r.Context(), id)
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "categories")
}

// parseUploadForm limits and parses a multipart admin form.
func parseUploadForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 2*imaging.MaxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		http.Error(w, "file too large or invalid form", http.StatusBadRequest)
		return false
	}
	return true
}

// formImage preprocesses the optional image file in field. It returns nil
// when no file was chosen.
func formImage(r *http.Request, field string, kind imaging.Kind, title string) (*model.Upload, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return imaging.Process(kind, title, file)
}

func (s *Server) portfolioInput(r *http.Request, id int64) (admin.PortfolioInput, error) {
	in := admin.PortfolioInput{
		ID:          id,
		CategoryID:  parseID(r.FormValue("category_id")),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		IsFeatured:  r.FormValue("is_featured") != "",
		Order:       r.FormValue("order"),
	}
	img, err := formImage(r, "image", imaging.Portfolio, in.Title)
	if err != nil {
		return in, err
	}
	in.Image = img
	return in, nil
}

// PortfolioCreateSubmit handles POST /admin/portfolio.
func (s *Server) PortfolioCreateSubmit(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r) {
		return
	}
	sess := viewer(r)
	in, err := s.portfolioInput(r, 0)
	if err != nil {
		slog.Warn("rejected portfolio image", "error", err)
		sess.AddFlash(session.FlashError, MsgImageInvalid)
		redirectToAdmin(w, r, "portfolio")
		return
	}
	msg, err := sess.Console().CreatePortfolio(r.Context(), in)
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "portfolio")
}

// PortfolioUpdateSubmit handles POST /admin/portfolio/{id}.
func (s *Server) PortfolioUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r) {
		return
	}
	sess := viewer(r)
	in, err := s.portfolioInput(r, parseID(r.PathValue("id")))
	if err != nil {
		slog.Warn("rejected portfolio image", "error", err)
		sess.AddFlash(session.FlashError, MsgImageInvalid)
		redirectToAdmin(w, r, "portfolio")
		return
	}
	msg, err := sess.Console().UpdatePortfolio(r.Context(), in)
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "portfolio")
}

// PortfolioDeleteSubmit handles POST /admin/portfolio/{id}/delete.
func (s *Server) PortfolioDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().DeletePortfolio(r.Context(), parseID(r.PathValue("id")))
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "portfolio")
}

type reorderRequest struct {
	ActiveID int64 `json:"active_id"`
	OverID   int64 `json:"over_id"`
}

type reorderResponse struct {
	Order []int64 `json:"order,omitempty"`
	Error string  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write json response", "error", err)
	}
}

// PortfolioReorder handles POST /admin/portfolio/reorder. Drag and drop
// posts JSON and gets the new display order back; plain form posts are
// redirected to the portfolio tab.
func (s *Server) PortfolioReorder(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	isJSON := mediaType == "application/json"

	var req reorderRequest
	if isJSON {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, reorderResponse{Error: "invalid request"})
			return
		}
	} else {
		req.ActiveID = parseID(r.FormValue("active_id"))
		req.OverID = parseID(r.FormValue("over_id"))
	}

	err := sess.Console().Reorder(r.Context(), req.ActiveID, req.OverID)
	if !isJSON {
		if err != nil {
			adminResult(sess, "", err)
		}
		redirectToAdmin(w, r, "portfolio")
		return
	}

	switch {
	case errors.Is(err, admin.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, reorderResponse{Error: admin.Message(err)})
	case err != nil:
		slog.Warn("failed to reorder portfolio", "error", err)
		writeJSON(w, http.StatusBadGateway, reorderResponse{Error: admin.Message(err)})
	default:
		writeJSON(w, http.StatusOK, reorderResponse{Order: sess.Admin.LocalOrder()})
	}
}

// PortfolioSaveOrderSubmit handles POST /admin/portfolio/order.
func (s *Server) PortfolioSaveOrderSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().SaveOrder(r.Context())
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "portfolio")
}

// AdminInquirySelectSubmit handles POST /admin/inquiries/{id}/select.
// Selecting the open inquiry closes it.
func (s *Server) AdminInquirySelectSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	id := parseID(r.PathValue("id"))
	if sess.Admin.SelectedInquiry() == id {
		id = 0
	}
	sess.Admin.SelectInquiry(id)
	redirectToAdmin(w, r, "inquiries")
}

// AdminInquiryDeleteSubmit handles POST /admin/inquiries/{id}/delete.
func (s *Server) AdminInquiryDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().DeleteInquiry(r.Context(), parseID(r.PathValue("id")))
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "inquiries")
}

// CommentCreateSubmit handles POST /admin/inquiries/{id}/comments.
func (s *Server) CommentCreateSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().AddComment(r.Context(), parseID(r.PathValue("id")), r.FormValue("content"))
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "inquiries")
}

// CommentDeleteSubmit handles POST /admin/comments/{id}/delete.
func (s *Server) CommentDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	msg, err := sess.Console().DeleteComment(r.Context(), parseID(r.PathValue("id")))
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "inquiries")
}

// SettingsSubmit handles POST /admin/settings. The public settings are
// refetched on the next page so the new branding shows immediately.
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	if !parseUploadForm(w, r) {
		return
	}
	sess := viewer(r)
	in := admin.SettingsInput{
		SiteTitle:    r.FormValue("site_title"),
		HeroTitle:    r.FormValue("hero_title"),
		HeroSubtitle: r.FormValue("hero_subtitle"),
	}

	var err error
	if in.LogoImage, err = formImage(r, "logo_image", imaging.Logo, in.SiteTitle); err == nil {
		in.HeroImage, err = formImage(r, "hero_image", imaging.Hero, in.HeroTitle)
	}
	if err != nil {
		slog.Warn("rejected settings image", "error", err)
		sess.AddFlash(session.FlashError, MsgImageInvalid)
		redirectToAdmin(w, r, "settings")
		return
	}

	msg, err := sess.Console().UpdateSettings(r.Context(), in)
	if err == nil {
		sess.Cache.Invalidate(SettingsCacheKey)
	}
	adminResult(sess, msg, err)
	redirectToAdmin(w, r, "settings")
}
