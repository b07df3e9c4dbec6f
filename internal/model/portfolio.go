package model

// PortfolioImage is a showcased project photo.
type PortfolioImage struct {
	ID          int64     `json:"id"`
	Category    *Category `json:"category"`
	Title       string    `json:"title"`
	Image       string    `json:"image"`
	Description string    `json:"description,omitempty"`
	IsFeatured  bool      `json:"is_featured,omitempty"`
	Order       int       `json:"order,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
}

// CategoryName returns the category name, or "-" when the image is uncategorized.
func (p PortfolioImage) CategoryName() string {
	if p.Category == nil || p.Category.Name == "" {
		return "-"
	}
	return p.Category.Name
}

// Upload is a file part of a multipart request.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// PortfolioImageRequest is the multipart body for creating or updating a
// portfolio image. Nil fields are left out of the request.
type PortfolioImageRequest struct {
	CategoryID  *int64
	Title       string
	Image       *Upload
	Description string
	IsFeatured  *bool
	Order       *int
}

// PortfolioListParams filters the public portfolio listing.
type PortfolioListParams struct {
	Category   int64
	IsFeatured *bool
	Page       int
}
