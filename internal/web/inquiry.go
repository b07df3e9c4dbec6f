package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/inquiry"
	"github.com/erazemk/sowa/internal/query"
	"github.com/erazemk/sowa/internal/session"
)

// MsgInquiryCreated confirms a new inquiry.
const MsgInquiryCreated = "문의가 등록되었습니다."

// InquiryPage handles GET /inquiry. A page query parameter moves the list and
// closes the open inquiry when the page changes.
func (s *Server) InquiryPage(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)

	if raw := r.URL.Query().Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && sess.Inquiries.SetPage(page) {
			sess.Reveal.Reset()
		}
	}

	data := struct {
		PageData
		WriteMode  bool
		Form       inquiry.FormState
		FormReturn string
		List       inquiry.Page
		ListErr    string
		Panel      inquiry.Panel
	}{
		PageData:   s.page(r, "문의하기", "inquiry"),
		WriteMode:  sess.WriteMode(),
		FormReturn: "/inquiry",
	}

	if data.WriteMode {
		data.Form = sess.InquiryForm.State()
		s.Templates.Render(w, "inquiry.html", &data)
		return
	}

	records, err := query.Fetch(r.Context(), sess.Cache, inquiry.ListCacheKey, sess.Client.Public().ListInquiries)
	if err != nil {
		slog.Warn("failed to load inquiries", "error", err)
		data.ListErr = backend.Message(err)
	} else {
		data.List = sess.Inquiries.Paginate(inquiry.ToItems(records))
	}
	data.Panel = sess.Reveal.Panel()

	s.Templates.Render(w, "inquiry.html", &data)
}

// pathID parses the {id} path value. Invalid ids answer 400.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func redirectToInquiry(w http.ResponseWriter, r *http.Request, id int64) {
	target := "/inquiry"
	if id != 0 {
		target = fmt.Sprintf("/inquiry#inquiry-%d", id)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// InquirySelectSubmit handles POST /inquiry/{id}/select.
func (s *Server) InquirySelectSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sess := viewer(r)
	sess.Reveal.Select(r.Context(), sess.Client.Public(), id)
	redirectToInquiry(w, r, id)
}

// InquiryVerifySubmit handles POST /inquiry/{id}/verify.
func (s *Server) InquiryVerifySubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	sess := viewer(r)
	sess.Reveal.Verify(r.Context(), sess.Client.Public(), id, r.FormValue("password"))
	redirectToInquiry(w, r, id)
}

// InquiryCloseSubmit handles POST /inquiry/close.
func (s *Server) InquiryCloseSubmit(w http.ResponseWriter, r *http.Request) {
	viewer(r).Reveal.Reset()
	redirectToInquiry(w, r, 0)
}

// InquiryWriteSubmit handles POST /inquiry/write. mode=off leaves the form.
func (s *Server) InquiryWriteSubmit(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	on := r.FormValue("mode") != "off"
	sess.SetWriteMode(on)
	if !on {
		sess.InquiryForm.Reset()
	}
	redirectToInquiry(w, r, 0)
}

// formReturn limits the post-submit redirect to the pages hosting the form.
func formReturn(r *http.Request) string {
	if r.FormValue("return") == "/" {
		return "/"
	}
	return "/inquiry"
}

// InquiryCreateSubmit handles POST /inquiry.
func (s *Server) InquiryCreateSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	sess := viewer(r)
	target := formReturn(r)
	values := inquiry.FormFromValues(r.PostForm)

	created, err := sess.InquiryForm.Submit(r.Context(), sess.Client.Public(), sess.Cache, values, sess.InquiryCreated)
	switch {
	case errors.Is(err, inquiry.ErrSubmitting):
		sess.AddFlash(session.FlashError, "문의를 등록하는 중입니다. 잠시만 기다려주세요.")
	case err != nil:
		slog.Error("failed to validate inquiry form", "error", err)
	case created:
		sess.AddFlash(session.FlashOK, MsgInquiryCreated)
	}

	if target == "/inquiry" && !created {
		// Failed submissions from the list page stay in the form.
		sess.SetWriteMode(true)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
