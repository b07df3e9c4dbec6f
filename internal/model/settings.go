package model

// SiteSettings holds the site branding. There is a single record.
type SiteSettings struct {
	ID           int64     `json:"id"`
	LogoImage    string    `json:"logo_image"`
	SiteTitle    string    `json:"site_title"`
	HeroImage    string    `json:"hero_image"`
	HeroTitle    string    `json:"hero_title"`
	HeroSubtitle string    `json:"hero_subtitle"`
	UpdatedAt    Timestamp `json:"updated_at"`
}

// SiteSettingsRequest is the multipart body for updating the settings.
type SiteSettingsRequest struct {
	SiteTitle    string
	HeroTitle    string
	HeroSubtitle string
	LogoImage    *Upload
	HeroImage    *Upload
}

// LoginRequest is the admin login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// MessageResponse is the generic {"detail": "..."} response.
type MessageResponse struct {
	Detail string `json:"detail"`
}
