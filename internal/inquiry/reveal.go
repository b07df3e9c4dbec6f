package inquiry

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/model"
)

// MsgPasswordRequired is shown when a password is submitted blank.
const MsgPasswordRequired = "비밀번호를 입력해주세요."

// Verifier fetches an inquiry's detail. An empty password asks whether the
// viewer's session already grants access.
type Verifier interface {
	VerifyInquiry(ctx context.Context, id int64, password string) (*model.InquiryDetail, error)
}

// State is the reveal state of one inquiry.
type State int

// Reveal states.
const (
	Unopened State = iota
	Pending
	Revealed
	PasswordRequired
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Revealed:
		return "revealed"
	case PasswordRequired:
		return "password-required"
	default:
		return "unopened"
	}
}

// Panel is the detail panel of the selected inquiry.
type Panel struct {
	ID           int64
	State        State
	Detail       *model.InquiryDetail
	ErrorMessage string
}

// Open reports whether a panel is shown.
func (p Panel) Open() bool { return p.ID != 0 }

// Reveal tracks which inquiry's detail panel is open and which details the
// viewer has unlocked. Unlocked details are kept for the life of the session
// and never fetched again.
type Reveal struct {
	mu               sync.Mutex
	selected         int64
	errMsg           string
	details          map[int64]*model.InquiryDetail
	passwordRequired map[int64]bool
	pending          map[int64]int
}

// NewReveal returns a reveal tracker with no panel open.
func NewReveal() *Reveal {
	return &Reveal{
		details:          make(map[int64]*model.InquiryDetail),
		passwordRequired: make(map[int64]bool),
		pending:          make(map[int64]int),
	}
}

// Select opens the panel for id, or closes it when id is already open. If the
// detail is not unlocked yet, a verification without password is attempted
// to find out whether the viewer already has access.
func (r *Reveal) Select(ctx context.Context, v Verifier, id int64) {
	r.mu.Lock()
	if r.selected == id {
		r.resetLocked()
		r.mu.Unlock()
		return
	}

	r.selected = id
	r.errMsg = ""
	r.passwordRequired[id] = false
	if _, ok := r.details[id]; ok {
		r.mu.Unlock()
		return
	}
	r.pending[id]++
	r.mu.Unlock()

	detail, err := v.VerifyInquiry(ctx, id, "")
	r.finish(id, "", detail, err)
}

// Verify retries verification of id with a password. A blank password is
// rejected without a request.
func (r *Reveal) Verify(ctx context.Context, v Verifier, id int64, password string) {
	r.mu.Lock()
	r.selected = id
	if strings.TrimSpace(password) == "" {
		r.errMsg = MsgPasswordRequired
		r.mu.Unlock()
		return
	}
	r.errMsg = ""
	r.pending[id]++
	r.mu.Unlock()

	detail, err := v.VerifyInquiry(ctx, id, password)
	r.finish(id, password, detail, err)
}

func (r *Reveal) finish(id int64, password string, detail *model.InquiryDetail, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending[id] > 0 {
		r.pending[id]--
	}
	if r.pending[id] == 0 {
		delete(r.pending, id)
	}

	if err == nil && detail != nil {
		r.details[detail.ID] = detail
		r.passwordRequired[detail.ID] = false
		if r.selected == detail.ID {
			r.errMsg = ""
		}
		return
	}

	r.passwordRequired[id] = true
	if r.selected != id {
		return
	}
	if password == "" {
		r.errMsg = ""
		return
	}
	if status, ok := backend.StatusOf(err); ok && status == http.StatusForbidden {
		r.errMsg = backend.Message(err)
		return
	}
	r.errMsg = ""
}

// Reset closes the panel. Unlocked details stay cached.
func (r *Reveal) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Reveal) resetLocked() {
	r.selected = 0
	r.errMsg = ""
}

// Selected returns the open inquiry id, or 0.
func (r *Reveal) Selected() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selected
}

// State returns the reveal state of id.
func (r *Reveal) State(id int64) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked(id)
}

func (r *Reveal) stateLocked(id int64) State {
	if id == 0 || r.selected != id {
		return Unopened
	}
	if _, ok := r.details[id]; ok {
		return Revealed
	}
	if r.pending[id] > 0 {
		return Pending
	}
	if r.passwordRequired[id] {
		return PasswordRequired
	}
	return Pending
}

// Detail returns the unlocked detail of id, if any.
func (r *Reveal) Detail(id int64) (*model.InquiryDetail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.details[id]
	return d, ok
}

// Panel returns the current panel.
func (r *Reveal) Panel() Panel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == 0 {
		return Panel{}
	}
	return Panel{
		ID:           r.selected,
		State:        r.stateLocked(r.selected),
		Detail:       r.details[r.selected],
		ErrorMessage: r.errMsg,
	}
}
