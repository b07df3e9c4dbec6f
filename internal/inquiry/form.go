package inquiry

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/qri-io/jsonschema"
	"golang.org/x/text/unicode/norm"

	"github.com/erazemk/sowa/internal/model"
)

// Field error messages.
const (
	MsgNameRequired    = "이름을 입력해주세요."
	MsgNameTooLong     = "이름은 10자 이하로 입력해주세요."
	MsgPhoneFormat     = "연락처는 000-0000-0000 형식으로 입력해주세요."
	MsgPasswordFormat  = "비밀번호는 숫자만 8자리 이하로 입력해주세요."
	MsgAgeInvalid      = "연령대를 다시 선택해주세요."
	MsgInteriorInvalid = "인테리어 종류를 다시 선택해주세요."
)

//go:embed form.schema.json
var formSchemaJSON []byte

var formSchema = mustLoadSchema(formSchemaJSON)

func mustLoadSchema(data []byte) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal(data, rs); err != nil {
		panic(fmt.Sprintf("inquiry: compiling form schema: %v", err))
	}
	return rs
}

// FormValues is the inquiry form as typed by the visitor.
type FormValues struct {
	Name         string             `json:"name"`
	Phone        string             `json:"phone"`
	Password     string             `json:"password"`
	Age          model.Age          `json:"age"`
	InteriorType model.InteriorType `json:"interior_type"`
	Area         string             `json:"area"`
	MoveInDate   string             `json:"move_in_date"`
	WorkRequest  string             `json:"work_request"`
	Content      string             `json:"content"`
}

// FormFromValues reads the form fields from a submitted form. The phone is
// auto-formatted the same way the browser formats it while typing.
func FormFromValues(v url.Values) FormValues {
	return FormValues{
		Name:         v.Get("name"),
		Phone:        FormatPhone(v.Get("phone")),
		Password:     v.Get("password"),
		Age:          model.Age(v.Get("age")),
		InteriorType: model.InteriorType(v.Get("interior_type")),
		Area:         v.Get("area"),
		MoveInDate:   v.Get("move_in_date"),
		WorkRequest:  v.Get("work_request"),
		Content:      v.Get("content"),
	}
}

// FieldErrors maps form field names to messages.
type FieldErrors map[string]string

// FormatPhone keeps the digits of s, at most 11, and inserts dashes so the
// result is a prefix of 000-0000-0000.
func FormatPhone(s string) string {
	digits := make([]rune, 0, 11)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
			if len(digits) == 11 {
				break
			}
		}
	}

	d := string(digits)
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 7:
		return d[:3] + "-" + d[3:]
	default:
		return d[:3] + "-" + d[3:7] + "-" + d[7:]
	}
}

// normalizeName trims and composes the name so its length is counted in
// characters the way the visitor sees them.
func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// maxNameLength is counted in composed characters, not bytes.
const maxNameLength = 10

// Validate checks the form against the inquiry form schema. It returns nil
// when the form is valid.
func (f FormValues) Validate(ctx context.Context) (FieldErrors, error) {
	doc := f
	doc.Name = normalizeName(f.Name)

	errs := FieldErrors{}
	switch n := utf8.RuneCountInString(doc.Name); {
	case n == 0:
		errs["name"] = MsgNameRequired
	case n > maxNameLength:
		errs["name"] = MsgNameTooLong
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding form: %w", err)
	}

	keyErrs, err := formSchema.ValidateBytes(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("validating form: %w", err)
	}
	for _, ke := range keyErrs {
		field := strings.SplitN(strings.TrimPrefix(ke.PropertyPath, "/"), "/", 2)[0]
		if _, seen := errs[field]; seen {
			continue
		}
		switch field {
		case "phone":
			errs["phone"] = MsgPhoneFormat
		case "password":
			errs["password"] = MsgPasswordFormat
		case "age":
			errs["age"] = MsgAgeInvalid
		case "interior_type":
			errs["interior_type"] = MsgInteriorInvalid
		}
	}
	if len(errs) == 0 {
		if len(keyErrs) > 0 {
			return nil, fmt.Errorf("validating form: %s: %s", keyErrs[0].PropertyPath, keyErrs[0].Message)
		}
		return nil, nil
	}
	return errs, nil
}

// Request builds the create request. Optional text fields are trimmed and
// left out when empty.
func (f FormValues) Request() model.InquiryCreateRequest {
	return model.InquiryCreateRequest{
		Name:         normalizeName(f.Name),
		Phone:        strings.TrimSpace(f.Phone),
		Password:     f.Password,
		Age:          f.Age,
		InteriorType: f.InteriorType,
		Area:         strings.TrimSpace(f.Area),
		MoveInDate:   strings.TrimSpace(f.MoveInDate),
		WorkRequest:  strings.TrimSpace(f.WorkRequest),
		Content:      strings.TrimSpace(f.Content),
	}
}

