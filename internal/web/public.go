package web

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/inquiry"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/query"
)

// Public cache groups.
const (
	CategoriesCacheKey = "public-categories"
	PortfolioCacheKey  = "public-portfolio"
)

// Home handles GET /.
func (s *Server) Home(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	public := sess.Client.Public()

	featured, err := query.Fetch(r.Context(), sess.Cache, query.Key(PortfolioCacheKey, "featured"),
		func(ctx context.Context) (*model.Paginated[model.PortfolioImage], error) {
			yes := true
			return public.ListPortfolioImages(ctx, model.PortfolioListParams{IsFeatured: &yes})
		})

	data := struct {
		PageData
		Featured    []model.PortfolioImage
		FeaturedErr string
		Form        inquiry.FormState
		FormReturn  string
	}{
		PageData:   s.page(r, "", "home"),
		Form:       sess.InquiryForm.State(),
		FormReturn: "/",
	}
	if err != nil {
		slog.Warn("failed to load featured portfolio", "error", err)
		data.FeaturedErr = backend.Message(err)
	} else {
		data.Featured = featured.Results
	}

	s.Templates.Render(w, "home.html", &data)
}

// CategoryChip is one category filter on the portfolio page.
type CategoryChip struct {
	ID     int64
	Name   string
	Active bool
}

// PortfolioPage handles GET /portfolio.
func (s *Server) PortfolioPage(w http.ResponseWriter, r *http.Request) {
	sess := viewer(r)
	public := sess.Client.Public()

	categoryID, _ := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64)
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	data := struct {
		PageData
		Chips    []CategoryChip
		Category int64
		Images   []model.PortfolioImage
		Total    int
		Page     int
		PrevPage int
		NextPage int
		ListErr  string
	}{
		PageData: s.page(r, "포트폴리오", "portfolio"),
		Category: categoryID,
		Page:     page,
	}

	categories, err := query.Fetch(r.Context(), sess.Cache, CategoriesCacheKey, public.ListCategories)
	if err != nil {
		slog.Warn("failed to load categories", "error", err)
	}
	data.Chips = append(data.Chips, CategoryChip{Name: "전체", Active: categoryID == 0})
	for _, c := range categories {
		data.Chips = append(data.Chips, CategoryChip{ID: c.ID, Name: c.Name, Active: c.ID == categoryID})
	}

	key := query.Key(PortfolioCacheKey, strconv.FormatInt(categoryID, 10), strconv.Itoa(page))
	images, err := query.Fetch(r.Context(), sess.Cache, key,
		func(ctx context.Context) (*model.Paginated[model.PortfolioImage], error) {
			return public.ListPortfolioImages(ctx, model.PortfolioListParams{Category: categoryID, Page: page})
		})
	if err != nil {
		slog.Warn("failed to load portfolio", "category", categoryID, "page", page, "error", err)
		data.ListErr = backend.Message(err)
	} else {
		data.Images = images.Results
		data.Total = images.Count
		if images.Previous != nil && page > 1 {
			data.PrevPage = page - 1
		}
		if images.Next != nil {
			data.NextPage = page + 1
		}
	}

	s.Templates.Render(w, "portfolio.html", &data)
}
