package model

import (
	"encoding/json"
	"fmt"
)

// DashboardStats is the admin dashboard aggregate.
type DashboardStats struct {
	TotalInquiries   int `json:"total_inquiries"`
	PendingInquiries int `json:"pending_inquiries"`
	RepliedInquiries int `json:"replied_inquiries"`
	TotalPortfolio   int `json:"total_portfolio"`
}

// UnmarshalJSON rejects payloads that are missing any of the counters.
func (s *DashboardStats) UnmarshalJSON(data []byte) error {
	var raw struct {
		TotalInquiries   *int `json:"total_inquiries"`
		PendingInquiries *int `json:"pending_inquiries"`
		RepliedInquiries *int `json:"replied_inquiries"`
		TotalPortfolio   *int `json:"total_portfolio"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.TotalInquiries == nil || raw.PendingInquiries == nil ||
		raw.RepliedInquiries == nil || raw.TotalPortfolio == nil {
		return fmt.Errorf("dashboard stats: missing counters in %s", data)
	}

	*s = DashboardStats{
		TotalInquiries:   *raw.TotalInquiries,
		PendingInquiries: *raw.PendingInquiries,
		RepliedInquiries: *raw.RepliedInquiries,
		TotalPortfolio:   *raw.TotalPortfolio,
	}
	return nil
}
