package model

// Category groups portfolio images.
type Category struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// CategoryRequest is the body for creating or updating a category.
type CategoryRequest struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
}
