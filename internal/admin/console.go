package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/erazemk/sowa/internal/backend"
	"github.com/erazemk/sowa/internal/model"
	"github.com/erazemk/sowa/internal/query"
)

// State is one viewer's admin console state.
type State struct {
	Gate Gate

	mu              sync.Mutex
	localOrder      []int64
	selectedInquiry int64
}

// NewState returns an unauthenticated console state.
func NewState() *State {
	return &State{}
}

// SelectedInquiry returns the inquiry open in the inquiries tab, or 0.
func (s *State) SelectedInquiry() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedInquiry
}

// SelectInquiry opens an inquiry in the inquiries tab; 0 closes it.
func (s *State) SelectInquiry(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedInquiry = id
}

// LocalOrder returns the unsaved portfolio order, or nil.
func (s *State) LocalOrder() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localOrder == nil {
		return nil
	}
	return append([]int64(nil), s.localOrder...)
}

func (s *State) setLocalOrder(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localOrder = ids
}

// Console runs admin queries and mutations for one viewer.
type Console struct {
	api   backend.AdminAPI
	cache *query.Cache
	state *State
}

// NewConsole binds a viewer's backend client, cache and state.
func NewConsole(api backend.AdminAPI, cache *query.Cache, state *State) *Console {
	return &Console{api: api, cache: cache, state: state}
}

// Probe checks the backend session and updates the gate.
func (c *Console) Probe(ctx context.Context) bool {
	return c.state.Gate.Probe(ctx, c.api, c.cache)
}

// Login logs in and returns the message to show.
func (c *Console) Login(ctx context.Context, username, password string) (string, error) {
	return c.state.Gate.Login(ctx, c.api, c.cache, username, password)
}

// Logout logs out, drops local console state, and returns the message to show.
func (c *Console) Logout(ctx context.Context) (string, error) {
	msg, err := c.state.Gate.Logout(ctx, c.api, c.cache)
	if err != nil {
		return "", err
	}
	c.state.setLocalOrder(nil)
	c.state.SelectInquiry(0)
	return msg, nil
}

// Authenticated reports whether admin queries are enabled.
func (c *Console) Authenticated() bool {
	return c.state.Gate.Authenticated()
}

func gated[T any](ctx context.Context, c *Console, key string, fn func(context.Context) (T, error)) (T, error) {
	if !c.Authenticated() {
		var zero T
		return zero, ErrUnauthenticated
	}
	return query.Fetch(ctx, c.cache, key, fn)
}

// Stats returns the dashboard counters.
func (c *Console) Stats(ctx context.Context) (*model.DashboardStats, error) {
	return gated(ctx, c, GroupStats, c.api.Stats)
}

// Categories returns all categories.
func (c *Console) Categories(ctx context.Context) ([]model.Category, error) {
	return gated(ctx, c, GroupCategories, c.api.ListCategories)
}

// Portfolio returns the portfolio images in display order: the unsaved local
// order when there is one, otherwise the backend's.
func (c *Console) Portfolio(ctx context.Context) ([]model.PortfolioImage, error) {
	list, err := gated(ctx, c, GroupPortfolio, c.api.ListPortfolio)
	if err != nil {
		return nil, err
	}
	return applyOrder(list, c.state.LocalOrder()), nil
}

// Inquiries returns all inquiries.
func (c *Console) Inquiries(ctx context.Context) ([]model.InquiryListItem, error) {
	return gated(ctx, c, GroupInquiry, c.api.ListInquiries)
}

// InquiryDetail returns the selected inquiry with its comments. It returns
// nil when no inquiry is selected.
func (c *Console) InquiryDetail(ctx context.Context) (*model.InquiryDetail, error) {
	id := c.state.SelectedInquiry()
	if id == 0 {
		return nil, nil
	}
	key := query.Key(GroupInquiryDetail, strconv.FormatInt(id, 10))
	return gated(ctx, c, key, func(ctx context.Context) (*model.InquiryDetail, error) {
		return c.api.GetInquiry(ctx, id)
	})
}

// Settings returns the site settings.
func (c *Console) Settings(ctx context.Context) (*model.SiteSettings, error) {
	return gated(ctx, c, GroupSettings, c.api.GetSettings)
}

// RefreshStats marks the dashboard counters stale.
func (c *Console) RefreshStats() {
	c.cache.Invalidate(GroupStats)
}

// parseOrder reads an order field; blank means 0.
func parseOrder(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrOrderNotNumber
	}
	return n, nil
}

// CategoryInput is the category form.
type CategoryInput struct {
	EditID int64
	Name   string
	Order  string
}

// SaveCategory creates a category, or updates EditID when it is set.
func (c *Console) SaveCategory(ctx context.Context, in CategoryInput) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", ErrCategoryNameRequired
	}
	order, err := parseOrder(in.Order)
	if err != nil {
		return "", err
	}

	req := model.CategoryRequest{Name: name, Order: order}
	msg := "카테고리 생성 완료"
	if in.EditID != 0 {
		_, err = c.api.UpdateCategory(ctx, in.EditID, req)
		msg = "카테고리 수정 완료"
	} else {
		_, err = c.api.CreateCategory(ctx, req)
	}
	if err != nil {
		return "", err
	}

	c.cache.Invalidate(GroupCategories)
	return msg, nil
}

// DeleteCategory deletes a category.
func (c *Console) DeleteCategory(ctx context.Context, id int64) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	if err := c.api.DeleteCategory(ctx, id); err != nil {
		return "", err
	}
	c.cache.Invalidate(GroupCategories)
	return "카테고리 삭제 완료", nil
}

// PortfolioInput is the portfolio editor form. Image is nil when no file was
// chosen.
type PortfolioInput struct {
	ID          int64
	CategoryID  int64
	Title       string
	Description string
	IsFeatured  bool
	Order       string
	Image       *model.Upload
}

func (in PortfolioInput) request() (model.PortfolioImageRequest, error) {
	order, err := parseOrder(in.Order)
	if err != nil {
		return model.PortfolioImageRequest{}, err
	}
	req := model.PortfolioImageRequest{
		Title:       strings.TrimSpace(in.Title),
		Image:       in.Image,
		Description: in.Description,
		IsFeatured:  &in.IsFeatured,
		Order:       &order,
	}
	if in.CategoryID != 0 {
		req.CategoryID = &in.CategoryID
	}
	return req, nil
}

// CreatePortfolio uploads a new portfolio image.
func (c *Console) CreatePortfolio(ctx context.Context, in PortfolioInput) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	if strings.TrimSpace(in.Title) == "" || in.Image == nil {
		return "", ErrPortfolioFieldsRequired
	}
	req, err := in.request()
	if err != nil {
		return "", err
	}

	if _, err := c.api.CreatePortfolio(ctx, req); err != nil {
		return "", err
	}
	c.afterPortfolioChange()
	return "포트폴리오 생성 완료", nil
}

// UpdatePortfolio sends the editor fields of image in.ID. The image file is
// only replaced when a new one was chosen.
func (c *Console) UpdatePortfolio(ctx context.Context, in PortfolioInput) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	if in.ID == 0 {
		return "", ErrPortfolioUpdateIDMissing
	}
	req, err := in.request()
	if err != nil {
		return "", err
	}

	if _, err := c.api.UpdatePortfolio(ctx, in.ID, req); err != nil {
		return "", err
	}
	c.afterPortfolioChange()
	return "포트폴리오 수정 완료", nil
}

// DeletePortfolio deletes a portfolio image.
func (c *Console) DeletePortfolio(ctx context.Context, id int64) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	if id == 0 {
		return "", ErrPortfolioDeleteIDMissing
	}
	if err := c.api.DeletePortfolio(ctx, id); err != nil {
		return "", err
	}
	c.afterPortfolioChange()
	return "포트폴리오 삭제 완료", nil
}

func (c *Console) afterPortfolioChange() {
	c.cache.Invalidate(GroupPortfolio, GroupStats)
}

// Reorder moves activeID to overID's place in the displayed portfolio. Only
// the local display order changes; nothing is sent to the backend.
func (c *Console) Reorder(ctx context.Context, activeID, overID int64) error {
	list, err := c.Portfolio(ctx)
	if err != nil {
		return err
	}
	c.state.setLocalOrder(idsOf(Reorder(list, activeID, overID)))
	return nil
}

// SaveOrder persists the displayed order by updating, one at a time, the
// order of every image whose position differs from its stored order. It
// stops at the first failure; images already updated keep their new order.
func (c *Console) SaveOrder(ctx context.Context) (string, error) {
	list, err := c.Portfolio(ctx)
	if err != nil {
		return "", err
	}

	saved := 0
	for i, item := range list {
		if item.Order == i {
			continue
		}
		order := i
		if _, err := c.api.UpdatePortfolio(ctx, item.ID, model.PortfolioImageRequest{Order: &order}); err != nil {
			if saved > 0 {
				c.cache.Invalidate(GroupPortfolio)
			}
			return "", fmt.Errorf("saving order of portfolio %d: %w", item.ID, err)
		}
		saved++
	}

	c.state.setLocalOrder(nil)
	c.cache.Invalidate(GroupPortfolio)
	slog.Info("portfolio order saved", "updated", saved)
	return "포트폴리오 순서 저장 완료", nil
}

// DeleteInquiry deletes an inquiry and closes it in the inquiries tab.
func (c *Console) DeleteInquiry(ctx context.Context, id int64) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	if id == 0 {
		return "", ErrInquiryDeleteIDMissing
	}
	if err := c.api.DeleteInquiry(ctx, id); err != nil {
		return "", err
	}
	c.state.SelectInquiry(0)
	c.cache.Invalidate(GroupInquiry, GroupStats)
	c.cache.Remove(query.Key(GroupInquiryDetail, strconv.FormatInt(id, 10)))
	return "문의 삭제 완료", nil
}

// AddComment posts a reply to an inquiry.
func (c *Console) AddComment(ctx context.Context, inquiryID int64, content string) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	if inquiryID == 0 || strings.TrimSpace(content) == "" {
		return "", ErrCommentFieldsRequired
	}
	if _, err := c.api.CreateComment(ctx, inquiryID, content); err != nil {
		return "", err
	}
	c.afterCommentChange()
	return "답변 등록 완료", nil
}

// DeleteComment deletes a reply.
func (c *Console) DeleteComment(ctx context.Context, id int64) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	if err := c.api.DeleteComment(ctx, id); err != nil {
		return "", err
	}
	c.afterCommentChange()
	return "답변 삭제 완료", nil
}

func (c *Console) afterCommentChange() {
	c.cache.Invalidate(GroupInquiryDetail, GroupInquiry, GroupStats)
}

// SettingsInput is the settings form. Nil images keep the current ones.
type SettingsInput struct {
	SiteTitle    string
	HeroTitle    string
	HeroSubtitle string
	LogoImage    *model.Upload
	HeroImage    *model.Upload
}

// UpdateSettings saves the site settings.
func (c *Console) UpdateSettings(ctx context.Context, in SettingsInput) (string, error) {
	if !c.Authenticated() {
		return "", ErrUnauthenticated
	}
	_, err := c.api.UpdateSettings(ctx, model.SiteSettingsRequest{
		SiteTitle:    in.SiteTitle,
		HeroTitle:    in.HeroTitle,
		HeroSubtitle: in.HeroSubtitle,
		LogoImage:    in.LogoImage,
		HeroImage:    in.HeroImage,
	})
	if err != nil {
		return "", err
	}
	c.cache.Invalidate(GroupSettings)
	return "사이트 설정 수정 완료", nil
}
