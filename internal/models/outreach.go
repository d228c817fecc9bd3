package models

import (
	"time"
)

// Profile is the contact an icebreaker is written for. Name, Title and Company
// form its identity; Industry and Location are descriptive only.
type Profile struct {
	Name     string `json:"name" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Company  string `json:"company" validate:"required"`
	Industry string `json:"industry,omitempty"`
	Location string `json:"location,omitempty"`
}

// ProfileSnapshot is the minimal profile copy kept (encrypted) next to a cached icebreaker
type ProfileSnapshot struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

func (p Profile) Snapshot() ProfileSnapshot {
	return ProfileSnapshot{Name: p.Name, Title: p.Title, Company: p.Company}
}

// CachedIcebreaker is the persisted form of a generated icebreaker.
type CachedIcebreaker struct {
	ProfileID   string    `json:"profile_id"`
	Icebreaker  string    `json:"icebreaker"`   // ciphertext
	ProfileData string    `json:"profile_data"` // ciphertext of ProfileSnapshot
	TokensUsed  int       `json:"tokens_used"`
	Cost        float64   `json:"cost"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DailyCounter is the per-day message count. Date is YYYY-MM-DD in UTC.
type DailyCounter struct {
	Date         string    `json:"date"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type IcebreakerResult struct {
	ProfileID   string    `json:"profile_id"`
	Icebreaker  string    `json:"icebreaker"`
	TokensUsed  int       `json:"tokens_used"`
	Cost        float64   `json:"cost"`
	GeneratedAt time.Time `json:"generated_at"`
	Cached      bool      `json:"cached"`
}

type DeliveryAck struct {
	Success        bool      `json:"success"`
	MessageID      string    `json:"message_id"`
	Status         string    `json:"status"`
	Recipient      string    `json:"recipient"`
	SentAt         time.Time `json:"sent_at"`
	MessageContent string    `json:"message_content"`
}

// FailureReason classifies an unsuccessful outreach.
type FailureReason string

const (
	ReasonQuotaExceeded        FailureReason = "quota_exceeded"
	ReasonAdmissionUnavailable FailureReason = "admission_unavailable"
	ReasonGenerationFailed     FailureReason = "generation_failed"
	ReasonDeliveryFailed       FailureReason = "delivery_failed"
)

// QuotaStatus is attached to a quota decline.
type QuotaStatus struct {
	Limit        int `json:"limit"`
	CurrentCount int `json:"current_count"`
}

// OutreachResult is attached to a completed outreach.
type OutreachResult struct {
	ProfileID         string      `json:"profile_id"`
	Icebreaker        string      `json:"icebreaker"`
	Cost              float64     `json:"cost"`
	Cached            bool        `json:"cached"`
	TokensUsed        int         `json:"tokens_used"`
	UnipileResponse   DeliveryAck `json:"unipile_response"`
	MessageCount      int         `json:"message_count"`
	RemainingMessages int         `json:"remaining_messages"`
}

// OutreachOutcome is what process_outreach returns. Exactly one of the
// embedded pointers is set on success (OutreachResult) or on a quota decline
// (QuotaStatus); other failures carry only Reason and Error.
type OutreachOutcome struct {
	Success bool          `json:"success"`
	Reason  FailureReason `json:"reason,omitempty"`
	Error   string        `json:"error,omitempty"`
	*QuotaStatus
	*OutreachResult
}

type DailyStats struct {
	Date              string  `json:"date"`
	MessagesSent      int     `json:"messages_sent"`
	RemainingMessages int     `json:"remaining_messages"`
	EstimatedCost     float64 `json:"estimated_cost"`
	CostPerLead       float64 `json:"cost_per_lead"`
	WithinBudget      bool    `json:"within_budget"`
}
