package backend

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"reflect"
	"strconv"
	"strings"

	"github.com/erazemk/sowa/internal/model"
)

// Form is an ordered set of multipart fields. Nil values, nil pointers and
// empty strings are left out when encoding; *model.Upload values become file
// parts; everything else is stringified.
type Form struct {
	fields []formField
}

type formField struct {
	key   string
	value any
}

// NewForm returns an empty form.
func NewForm() *Form {
	return &Form{}
}

// Set appends a field.
func (f *Form) Set(key string, value any) *Form {
	f.fields = append(f.fields, formField{key: key, value: value})
	return f
}

// Keys returns the keys that Encode will write, in order.
func (f *Form) Keys() []string {
	var keys []string
	for _, field := range f.fields {
		if upload, ok := field.value.(*model.Upload); ok {
			if upload != nil {
				keys = append(keys, field.key)
			}
			continue
		}
		if _, ok := formValue(field.value); ok {
			keys = append(keys, field.key)
		}
	}
	return keys
}

// Encode writes the multipart body and returns it with its content type.
func (f *Form) Encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range f.fields {
		if upload, ok := field.value.(*model.Upload); ok {
			if upload == nil {
				continue
			}
			if err := writeFile(w, field.key, upload); err != nil {
				return nil, "", err
			}
			continue
		}

		value, ok := formValue(field.value)
		if !ok {
			continue
		}
		if err := w.WriteField(field.key, value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", field.key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, key string, upload *model.Upload) error {
	name := upload.Name
	if name == "" {
		name = key
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(key), escapeQuotes(name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("creating file part %s: %w", key, err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return fmt.Errorf("writing file part %s: %w", key, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// formValue stringifies a field value. The second result is false when the
// field must be omitted.
func formValue(v any) (string, bool) {
	if v == nil {
		return "", false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		v = rv.Elem().Interface()
	}

	var s string
	switch val := v.(type) {
	case string:
		s = val
	case bool:
		s = strconv.FormatBool(val)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	if s == "" {
		return "", false
	}
	return s, true
}
