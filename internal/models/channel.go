package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel statuses
const (
	ChannelStatusPending = "pending"
	ChannelStatusActive  = "active"
	ChannelStatusPaused  = "paused"
	ChannelStatusRemoved = "removed"
)

type Channel struct {
	ID                uuid.UUID `json:"id"`
	TelegramChannelID int64     `json:"telegram_channel_id"`
	Username          *string   `json:"username,omitempty"` // nil for private channels
	Title             *string   `json:"title,omitempty"`
	OwnerID           uuid.UUID `json:"owner_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AdFormat is an optional pricing template attached to a channel listing.
type AdFormat struct {
	ID          uuid.UUID `json:"id"`
	ChannelID   uuid.UUID `json:"channel_id"`
	Name        string    `json:"name"` // post / repost / story
	PriceTON    *string   `json:"price_ton,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
