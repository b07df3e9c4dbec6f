package backend

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"testing"

	"github.com/erazemk/sowa/internal/model"
)

func TestFormOmitsEmptyValues(t *testing.T) {
	var nilID *int64
	order := 0
	form := NewForm().
		Set("category_id", nilID).
		Set("title", "모던 펜트하우스").
		Set("description", "").
		Set("image", (*model.Upload)(nil)).
		Set("is_featured", false).
		Set("order", &order).
		Set("missing", nil)

	want := []string{"title", "is_featured", "order"}
	if got := form.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestFormEncodesFilesAndValues(t *testing.T) {
	id := int64(7)
	featured := true
	req := model.PortfolioImageRequest{
		CategoryID: &id,
		Title:      "스칸디 하우스",
		Image:      &model.Upload{Name: "scandi.jpg", ContentType: "image/jpeg", Data: []byte("jpegdata")},
		IsFeatured: &featured,
	}

	body, contentType, err := PortfolioForm(req).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("ParseMediaType: %v", err)
	}
	reader := multipart.NewReader(body, params["boundary"])

	got := map[string]string{}
	var fileName string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}
		data, _ := io.ReadAll(part)
		got[part.FormName()] = string(data)
		if part.FileName() != "" {
			fileName = part.FileName()
		}
	}

	want := map[string]string{
		"category_id": "7",
		"title":       "스칸디 하우스",
		"image":       "jpegdata",
		"is_featured": "true",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parts = %v, want %v", got, want)
	}
	if fileName != "scandi.jpg" {
		t.Errorf("expected file name scandi.jpg, got %q", fileName)
	}
}

func TestUpdateSettingsMultipart(t *testing.T) {
	var fields map[string][]string
	var files []string
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/dashboard-sowa/settings/", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fields = r.MultipartForm.Value
		for name := range r.MultipartForm.File {
			files = append(files, name)
		}
		w.Write([]byte(`{"id":1,"site_title":"SOWA","hero_title":"h","hero_subtitle":"","logo_image":null,"hero_image":"/media/h.jpg","updated_at":"2024-01-01T00:00:00Z"}`))
	})
	c := newTestClient(t, mux)

	out, err := c.Admin().UpdateSettings(context.Background(), model.SiteSettingsRequest{
		SiteTitle: "SOWA",
		HeroTitle: "h",
		HeroImage: &model.Upload{Name: "hero.jpg", Data: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if out.LogoImage != "" || out.HeroImage != "/media/h.jpg" {
		t.Errorf("unexpected settings: %+v", out)
	}
	if _, ok := fields["hero_subtitle"]; ok {
		t.Error("empty hero_subtitle should be omitted")
	}
	if len(fields["site_title"]) != 1 || fields["site_title"][0] != "SOWA" {
		t.Errorf("unexpected site_title: %v", fields["site_title"])
	}
	if !reflect.DeepEqual(files, []string{"hero_image"}) {
		t.Errorf("unexpected files: %v", files)
	}
}
