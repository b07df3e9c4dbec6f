package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/erazemk/sowa/internal/model"
)

// PublicAPI is the unauthenticated surface of the backend.
type PublicAPI struct {
	c *Client
}

// ListCategories handles GET /api/portfolio/categories/.
func (p PublicAPI) ListCategories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	if err := p.c.get(ctx, "public.list_categories", "/api/portfolio/categories/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCategory handles GET /api/portfolio/categories/{id}/.
func (p PublicAPI) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var out model.Category
	path := fmt.Sprintf("/api/portfolio/categories/%d/", id)
	if err := p.c.get(ctx, "public.get_category", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPortfolioImages handles GET /api/portfolio/images/.
func (p PublicAPI) ListPortfolioImages(ctx context.Context, params model.PortfolioListParams) (*model.Paginated[model.PortfolioImage], error) {
	query := url.Values{}
	if params.Category > 0 {
		query.Set("category", strconv.FormatInt(params.Category, 10))
	}
	if params.IsFeatured != nil {
		query.Set("is_featured", strconv.FormatBool(*params.IsFeatured))
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}

	var out model.Paginated[model.PortfolioImage]
	if err := p.c.get(ctx, "public.list_portfolio_images", "/api/portfolio/images/", query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPortfolioImage handles GET /api/portfolio/images/{id}/.
func (p PublicAPI) GetPortfolioImage(ctx context.Context, id int64) (*model.PortfolioImage, error) {
	var out model.PortfolioImage
	path := fmt.Sprintf("/api/portfolio/images/%d/", id)
	if err := p.c.get(ctx, "public.get_portfolio_image", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListInquiries handles GET /api/inquiry/. The backend decides which
// inquiries the viewer may see.
func (p PublicAPI) ListInquiries(ctx context.Context) ([]model.InquiryListItem, error) {
	var out []model.InquiryListItem
	if err := p.c.get(ctx, "public.list_inquiries", "/api/inquiry/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateInquiry handles POST /api/inquiry/create/.
func (p PublicAPI) CreateInquiry(ctx context.Context, req model.InquiryCreateRequest) (*model.InquiryDetail, error) {
	var out model.InquiryDetail
	if err := p.c.sendJSON(ctx, "public.create_inquiry", http.MethodPost, "/api/inquiry/create/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyInquiry handles POST /api/inquiry/{id}/verify/. A blank password
// sends an empty body, which succeeds only when the viewer's session
// already grants access.
func (p PublicAPI) VerifyInquiry(ctx context.Context, id int64, password string) (*model.InquiryDetail, error) {
	body := model.InquiryPasswordRequest{Password: strings.TrimSpace(password)}

	var out model.InquiryDetail
	path := fmt.Sprintf("/api/inquiry/%d/verify/", id)
	if err := p.c.sendJSON(ctx, "public.verify_inquiry", http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettings handles GET /api/settings/.
func (p PublicAPI) GetSettings(ctx context.Context) (*model.SiteSettings, error) {
	var out model.SiteSettings
	if err := p.c.get(ctx, "public.get_settings", "/api/settings/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
