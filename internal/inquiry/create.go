package inquiry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/query"
)

// ErrSubmitting is returned when a submission arrives while the previous one
// is still in flight.
var ErrSubmitting = errors.New("inquiry submission already in progress")

// Creator creates an inquiry on the backend.
type Creator interface {
	CreateInquiry(ctx context.Context, req model.InquiryCreateRequest) (*model.InquiryDetail, error)
}

// FormState is what the inquiry form renders: the submitted values, field
// errors, and a request-level error message.
type FormState struct {
	Values       FormValues
	Errors       FieldErrors
	ErrorMessage string
	Submitting   bool
}

// Form holds the viewer's inquiry form between submissions.
type Form struct {
	mu         sync.Mutex
	values     FormValues
	errors     FieldErrors
	errMsg     string
	submitting bool
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// State returns a copy of the form state.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FormState{
		Values:       f.values,
		Errors:       f.errors,
		ErrorMessage: f.errMsg,
		Submitting:   f.submitting,
	}
}

// Reset clears values and errors.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = FormValues{}
	f.errors = nil
	f.errMsg = ""
}

// Submit validates values and creates the inquiry. Invalid forms are rejected
// without a request. On success the form is reset, the public inquiry list is
// invalidated in cache and onCreated runs. On failure the values are kept and
// the translated message is stored; Submit reports false in both cases.
func (f *Form) Submit(ctx context.Context, c Creator, cache *query.Cache, values FormValues, onCreated func()) (bool, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return false, ErrSubmitting
	}
	f.values = values
	f.errMsg = ""
	f.mu.Unlock()

	fieldErrs, err := values.Validate(ctx)
	if err != nil {
		f.fail(nil, backend.MsgGeneric)
		return false, err
	}
	if len(fieldErrs) > 0 {
		f.fail(fieldErrs, "")
		return false, nil
	}

	f.mu.Lock()
	f.errors = nil
	f.submitting = true
	f.mu.Unlock()

	created, err := c.CreateInquiry(ctx, values.Request())

	f.mu.Lock()
	f.submitting = false
	f.mu.Unlock()

	if err != nil {
		slog.Warn("creating inquiry failed", "error", err)
		f.fail(nil, backend.Message(err))
		return false, nil
	}

	if created != nil {
		slog.Info("inquiry created", "id", created.ID)
	}
	f.Reset()
	if cache != nil {
		cache.Invalidate(ListCacheKey)
	}
	if onCreated != nil {
		onCreated()
	}
	return true, nil
}

func (f *Form) fail(fieldErrs FieldErrors, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = fieldErrs
	f.errMsg = msg
}
