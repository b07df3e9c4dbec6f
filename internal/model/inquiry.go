package model

// Age is the submitter's age bracket.
type Age string

// Age brackets.
const (
	Age20 Age = "20"
	Age30 Age = "30"
	Age40 Age = "40"
)

// InteriorType is the kind of space the inquiry is about.
type InteriorType string

// Interior types.
const (
	InteriorResidential InteriorType = "residential"
	InteriorCommercial  InteriorType = "commercial"
)

// InquiryListItem is the public, non-sensitive view of an inquiry.
type InquiryListItem struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt Timestamp `json:"created_at"`
	HasReply  bool      `json:"has_reply"`
}

// InquiryDetail is the full inquiry, only returned after verification.
type InquiryDetail struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Age          Age          `json:"age,omitempty"`
	InteriorType InteriorType `json:"interior_type,omitempty"`
	Area         string       `json:"area,omitempty"`
	MoveInDate   string       `json:"move_in_date,omitempty"`
	WorkRequest  string       `json:"work_request,omitempty"`
	Content      string       `json:"content,omitempty"`
	CreatedAt    Timestamp    `json:"created_at"`
	Comments     []Comment    `json:"comments"`
}

// Comment is an admin reply attached to an inquiry.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

// InquiryCreateRequest is the body for creating an inquiry. Empty optional
// fields are omitted so the backend sees them as absent.
type InquiryCreateRequest struct {
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Password     string       `json:"password"`
	Age          Age          `json:"age,omitempty"`
	InteriorType InteriorType `json:"interior_type,omitempty"`
	Area         string       `json:"area,omitempty"`
	MoveInDate   string       `json:"move_in_date,omitempty"`
	WorkRequest  string       `json:"work_request,omitempty"`
	Content      string       `json:"content,omitempty"`
}

// InquiryPasswordRequest is the body for verifying an inquiry.
type InquiryPasswordRequest struct {
	Password string `json:"password,omitempty"`
}

// CommentRequest is the body for creating a comment.
type CommentRequest struct {
	Content string `json:"content"`
}
