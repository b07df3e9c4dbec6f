package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/erazemk/sowa/internal/model"
)

// AdminAPI is the session-authenticated surface of the backend. Every call
// relies on the backend session cookie held in the client's jar.
type AdminAPI struct {
	c *Client
}

func (a AdminAPI) path(format string, args ...any) string {
	return a.c.adminPrefix + fmt.Sprintf(format, args...)
}

// Stats handles GET {prefix}/stats/. It doubles as the session probe.
func (a AdminAPI) Stats(ctx context.Context) (*model.DashboardStats, error) {
	var out model.DashboardStats
	if err := a.c.get(ctx, "admin.stats", a.path("/stats/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login handles POST {prefix}/login/. The backend answers with a session
// cookie that lands in the client's jar.
func (a AdminAPI) Login(ctx context.Context, req model.LoginRequest) (*model.MessageResponse, error) {
	var out model.MessageResponse
	if err := a.c.sendJSON(ctx, "admin.login", http.MethodPost, a.path("/login/"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout handles POST {prefix}/logout/.
func (a AdminAPI) Logout(ctx context.Context) (*model.MessageResponse, error) {
	var out model.MessageResponse
	if err := a.c.sendJSON(ctx, "admin.logout", http.MethodPost, a.path("/logout/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCategories handles GET {prefix}/category/.
func (a AdminAPI) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out model.Listing[model.Category]
	if err := a.c.get(ctx, "admin.list_categories", a.path("/category/"), nil, &out); err != nil {
		return nil, err
	}
	return out.Items(), nil
}

// CreateCategory handles POST {prefix}/category/.
func (a AdminAPI) CreateCategory(ctx context.Context, req model.CategoryRequest) (*model.Category, error) {
	var out model.Category
	if err := a.c.sendJSON(ctx, "admin.create_category", http.MethodPost, a.path("/category/"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCategory handles PUT {prefix}/category/{id}/.
func (a AdminAPI) UpdateCategory(ctx context.Context, id int64, req model.CategoryRequest) (*model.Category, error) {
	var out model.Category
	if err := a.c.sendJSON(ctx, "admin.update_category", http.MethodPut, a.path("/category/%d/", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCategory handles DELETE {prefix}/category/{id}/.
func (a AdminAPI) DeleteCategory(ctx context.Context, id int64) error {
	return a.c.delete(ctx, "admin.delete_category", a.path("/category/%d/", id))
}

// ListPortfolio handles GET {prefix}/portfolio/.
func (a AdminAPI) ListPortfolio(ctx context.Context) ([]model.PortfolioImage, error) {
	var out model.Listing[model.PortfolioImage]
	if err := a.c.get(ctx, "admin.list_portfolio", a.path("/portfolio/"), nil, &out); err != nil {
		return nil, err
	}
	return out.Items(), nil
}

// GetPortfolio handles GET {prefix}/portfolio/{id}/.
func (a AdminAPI) GetPortfolio(ctx context.Context, id int64) (*model.PortfolioImage, error) {
	var out model.PortfolioImage
	if err := a.c.get(ctx, "admin.get_portfolio", a.path("/portfolio/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePortfolio handles POST {prefix}/portfolio/ as multipart.
func (a AdminAPI) CreatePortfolio(ctx context.Context, req model.PortfolioImageRequest) (*model.PortfolioImage, error) {
	var out model.PortfolioImage
	if err := a.c.sendForm(ctx, "admin.create_portfolio", http.MethodPost, a.path("/portfolio/"), PortfolioForm(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePortfolio handles PUT {prefix}/portfolio/{id}/ as multipart. Only
// the fields present in req are sent.
func (a AdminAPI) UpdatePortfolio(ctx context.Context, id int64, req model.PortfolioImageRequest) (*model.PortfolioImage, error) {
	var out model.PortfolioImage
	if err := a.c.sendForm(ctx, "admin.update_portfolio", http.MethodPut, a.path("/portfolio/%d/", id), PortfolioForm(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePortfolio handles DELETE {prefix}/portfolio/{id}/.
func (a AdminAPI) DeletePortfolio(ctx context.Context, id int64) error {
	return a.c.delete(ctx, "admin.delete_portfolio", a.path("/portfolio/%d/", id))
}

// ListInquiries handles GET {prefix}/inquiry/.
func (a AdminAPI) ListInquiries(ctx context.Context) ([]model.InquiryListItem, error) {
	var out model.Listing[model.InquiryListItem]
	if err := a.c.get(ctx, "admin.list_inquiries", a.path("/inquiry/"), nil, &out); err != nil {
		return nil, err
	}
	return out.Items(), nil
}

// GetInquiry handles GET {prefix}/inquiry/{id}/.
func (a AdminAPI) GetInquiry(ctx context.Context, id int64) (*model.InquiryDetail, error) {
	var out model.InquiryDetail
	if err := a.c.get(ctx, "admin.get_inquiry", a.path("/inquiry/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInquiry handles DELETE {prefix}/inquiry/{id}/.
func (a AdminAPI) DeleteInquiry(ctx context.Context, id int64) error {
	return a.c.delete(ctx, "admin.delete_inquiry", a.path("/inquiry/%d/", id))
}

// CreateComment handles POST {prefix}/inquiry/{id}/comment/.
func (a AdminAPI) CreateComment(ctx context.Context, inquiryID int64, content string) (*model.Comment, error) {
	var out model.Comment
	req := model.CommentRequest{Content: content}
	if err := a.c.sendJSON(ctx, "admin.create_comment", http.MethodPost, a.path("/inquiry/%d/comment/", inquiryID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComment handles DELETE {prefix}/comment/{id}/.
func (a AdminAPI) DeleteComment(ctx context.Context, id int64) error {
	return a.c.delete(ctx, "admin.delete_comment", a.path("/comment/%d/", id))
}

// GetSettings handles GET {prefix}/settings/.
func (a AdminAPI) GetSettings(ctx context.Context) (*model.SiteSettings, error) {
	var out model.SiteSettings
	if err := a.c.get(ctx, "admin.get_settings", a.path("/settings/"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings handles PUT {prefix}/settings/ as multipart.
func (a AdminAPI) UpdateSettings(ctx context.Context, req model.SiteSettingsRequest) (*model.SiteSettings, error) {
	var out model.SiteSettings
	if err := a.c.sendForm(ctx, "admin.update_settings", http.MethodPut, a.path("/settings/"), SettingsForm(req), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PortfolioForm builds the multipart form for a portfolio request.
func PortfolioForm(req model.PortfolioImageRequest) *Form {
	return NewForm().
		Set("category_id", req.CategoryID).
		Set("title", req.Title).
		Set("image", req.Image).
		Set("description", req.Description).
		Set("is_featured", req.IsFeatured).
		Set("order", req.Order)
}

// SettingsForm builds the multipart form for a settings request.
func SettingsForm(req model.SiteSettingsRequest) *Form {
	return NewForm().
		Set("site_title", req.SiteTitle).
		Set("hero_title", req.HeroTitle).
		Set("hero_subtitle", req.HeroSubtitle).
		Set("logo_image", req.LogoImage).
		Set("hero_image", req.HeroImage)
}
