package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deal states
const (
	DealStatePending         = "pending"
	DealStateAccepted        = "accepted"
	DealStateAwaitingPayment = "awaiting_payment"
	DealStateDrafting        = "drafting"
	DealStateReviewing       = "reviewing"
	DealStateScheduled       = "scheduled"
	DealStatePublished       = "published"
	DealStateCompleted       = "completed"
	DealStateRejected        = "rejected"
	DealStateCancelled       = "cancelled"
	DealStateRefunded        = "refunded"
)

// Payment statuses
const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
	PaymentStatusReleased  = "released"
	PaymentStatusRefunded  = "refunded"
)

// Creative statuses
const (
	CreativeStatusDraft             = "draft"
	CreativeStatusSubmitted         = "submitted"
	CreativeStatusApproved          = "approved"
	CreativeStatusRevisionRequested = "revision_requested"
)

// Deal types
const (
	DealTypeChannelListing  = "channel_listing"
	DealTypeCampaignRequest = "campaign_request"
)

// Valid state transitions: from -> []to. The transition helper in the deal
// service consults this table on every mutation; handlers never set state
// directly.
var ValidDealTransitions = map[string][]string{
	DealStatePending:         {DealStateAccepted, DealStateRejected, DealStateCancelled},
	DealStateAccepted:        {DealStateAwaitingPayment, DealStateCancelled},
	DealStateAwaitingPayment: {DealStateDrafting, DealStateCancelled},
	DealStateDrafting:        {DealStateReviewing, DealStateCancelled},
	DealStateReviewing:       {DealStateScheduled, DealStateDrafting, DealStateCancelled},
	DealStateScheduled:       {DealStatePublished, DealStateCancelled},
	DealStatePublished:       {DealStateCompleted},
	DealStateCompleted:       {},
	DealStateRejected:        {},
	DealStateCancelled:       {DealStateRefunded},
	DealStateRefunded:        {},
}

func IsValidTransition(from, to string) bool {
	allowed, ok := ValidDealTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StaleCancellableStates are the states the timeout job may force-cancel.
var StaleCancellableStates = []string{DealStatePending, DealStateAccepted, DealStateAwaitingPayment}

type Deal struct {
	ID                    uuid.UUID       `json:"id"`
	ChannelID             uuid.UUID       `json:"channel_id"`
	AdvertiserID          uuid.UUID       `json:"advertiser_id"`
	OwnerID               uuid.UUID       `json:"owner_id"`     // the party who must approve the deal
	ApplicantID           uuid.UUID       `json:"applicant_id"` // the party who initiated it
	CampaignID            *uuid.UUID      `json:"campaign_id,omitempty"`
	AdFormatID            *uuid.UUID      `json:"ad_format_id,omitempty"`
	DealType              string          `json:"deal_type"`
	IsCampaignApplication bool            `json:"is_campaign_application"`
	PriceTON              decimal.Decimal `json:"price_ton"`
	State                 string          `json:"state"`
	PaymentStatus         string          `json:"payment_status"`
	CreativeStatus        string          `json:"creative_status"`
	PostContent           *string         `json:"post_content,omitempty"`
	PostLink              *string         `json:"post_link,omitempty"`
	ScheduledPostTime     *time.Time      `json:"scheduled_post_time,omitempty"`
	ActualPostTime        *time.Time      `json:"actual_post_time,omitempty"`
	PostVerifiedAt        *time.Time      `json:"post_verified_at,omitempty"`
	RejectionReason       *string         `json:"rejection_reason,omitempty"`
	EditRequestReason     *string         `json:"edit_request_reason,omitempty"`
	CreativeSubmittedAt   *time.Time      `json:"creative_submitted_at,omitempty"`
	CreativeApprovedAt    *time.Time      `json:"creative_approved_at,omitempty"`
	FundsReleasedAt       *time.Time      `json:"funds_released_at,omitempty"`
	TimeoutAt             *time.Time      `json:"timeout_at,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// IsParty reports whether the user belongs to either side of the deal.
func (d *Deal) IsParty(userID uuid.UUID) bool {
	return d.AdvertiserID == userID || d.OwnerID == userID || d.ApplicantID == userID
}

// ChannelPartyID is the user responsible for publishing to the channel.
// For listing deals that is the owner; for campaign applications the roles
// invert: the applicant is the channel side and the campaign's advertiser
// holds owner approval rights.
func (d *Deal) ChannelPartyID() uuid.UUID {
	if d.IsCampaignApplication {
		return d.ApplicantID
	}
	return d.OwnerID
}

// DealWithChannel embeds Deal and adds channel info to avoid N+1 queries.
type DealWithChannel struct {
	Deal
	ChannelTitle    *string `json:"channel_title,omitempty"`
	ChannelUsername *string `json:"channel_username,omitempty"`
}

// DealPatch carries the optional column updates applied together with a
// state transition. Nil pointer fields are not touched; the Clear* flags
// null the corresponding column. One-shot timestamps (creative_submitted_at,
// creative_approved_at, funds_released_at, cancelled_at) are only written
// when still unset.
type DealPatch struct {
	PaymentStatus          *string
	CreativeStatus         *string
	PostContent            *string
	PostLink               *string
	ScheduledPostTime      *time.Time
	ActualPostTime         *time.Time
	PostVerifiedAt         *time.Time
	RejectionReason        *string
	EditRequestReason      *string
	CreativeSubmittedAt    *time.Time
	CreativeApprovedAt     *time.Time
	FundsReleasedAt        *time.Time
	CancelledAt            *time.Time
	ClearRejectionReason   bool
	ClearEditRequestReason bool
}

// Apply mutates d in place. Repositories translate the same patch to SQL;
// this keeps in-memory stores and the database row in agreement.
func (p *DealPatch) Apply(d *Deal) {
	if p.PaymentStatus != nil {
		d.PaymentStatus = *p.PaymentStatus
	}
	if p.CreativeStatus != nil {
		d.CreativeStatus = *p.CreativeStatus
	}
	if p.PostContent != nil {
		d.PostContent = p.PostContent
	}
	if p.PostLink != nil {
		d.PostLink = p.PostLink
	}
	if p.ScheduledPostTime != nil {
		d.ScheduledPostTime = p.ScheduledPostTime
	}
	if p.ActualPostTime != nil {
		d.ActualPostTime = p.ActualPostTime
	}
	if p.PostVerifiedAt != nil {
		d.PostVerifiedAt = p.PostVerifiedAt
	}
	if p.RejectionReason != nil {
		d.RejectionReason = p.RejectionReason
	}
	if p.EditRequestReason != nil {
		d.EditRequestReason = p.EditRequestReason
	}
	if p.CreativeSubmittedAt != nil && d.CreativeSubmittedAt == nil {
		d.CreativeSubmittedAt = p.CreativeSubmittedAt
	}
	if p.CreativeApprovedAt != nil && d.CreativeApprovedAt == nil {
		d.CreativeApprovedAt = p.CreativeApprovedAt
	}
	if p.FundsReleasedAt != nil && d.FundsReleasedAt == nil {
		d.FundsReleasedAt = p.FundsReleasedAt
	}
	if p.CancelledAt != nil && d.CancelledAt == nil {
		d.CancelledAt = p.CancelledAt
	}
	if p.ClearRejectionReason {
		d.RejectionReason = nil
	}
	if p.ClearEditRequestReason {
		d.EditRequestReason = nil
	}
}
