package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Campaign statuses
const (
	CampaignStatusActive = "active"
	CampaignStatusClosed = "closed"
)

// Campaign application statuses
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

type Campaign struct {
	ID           uuid.UUID `json:"id"`
	AdvertiserID uuid.UUID `json:"advertiser_id"`
	Title        string    `json:"title"`
	BudgetTON    *string   `json:"budget_ton,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CampaignApplication is a channel owner's offer against a campaign. An
// accepted application becomes a campaign_request deal with inverted roles.
type CampaignApplication struct {
	ID               uuid.UUID       `json:"id"`
	CampaignID       uuid.UUID       `json:"campaign_id"`
	ChannelID        uuid.UUID       `json:"channel_id"`
	ApplicantID      uuid.UUID       `json:"applicant_id"`
	ProposedPriceTON decimal.Decimal `json:"proposed_price_ton"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}
