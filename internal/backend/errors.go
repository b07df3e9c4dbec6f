package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Display messages for failed requests.
const (
	MsgPasswordMismatch = "비밀번호가 일치하지 않습니다. (403)"
	MsgNotFound         = "대상을 찾을 수 없습니다. (404)"
	MsgGeneric          = "요청 처리 중 오류가 발생했습니다."
)

// Error is a non-2xx backend response.
type Error struct {
	Status int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

func newError(resp *http.Response) *Error {
	e := &Error{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return e
	}

	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil {
		if s, ok := body.Detail.(string); ok {
			e.Detail = s
		}
	}
	return e
}

// StatusOf returns the HTTP status of a backend error.
func StatusOf(err error) (int, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Status, true
	}
	return 0, false
}

// Message translates an error into the text shown next to the control that
// triggered it.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var be *Error
	if !errors.As(err, &be) {
		return MsgGeneric
	}

	switch {
	case be.Status == http.StatusForbidden:
		return MsgPasswordMismatch
	case be.Status == http.StatusNotFound:
		return MsgNotFound
	case be.Detail != "":
		return be.Detail
	default:
		return MsgGeneric
	}
}
