package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TxTypePayment = "payment"
	TxTypeRelease = "release"
	TxTypeRefund  = "refund"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
)

// EscrowWallet is the per-deal custodial wallet. At most one exists per deal
// (deal_id is unique); it is created lazily when the deal first needs a
// payment and never re-keyed afterwards. PrivateKeyEncrypted holds the
// AES-GCM sealed seed phrase and must never appear in logs or API responses.
type EscrowWallet struct {
	ID                  uuid.UUID       `json:"id"`
	DealID              uuid.UUID       `json:"deal_id"`
	Address             string          `json:"address"`
	PrivateKeyEncrypted string          `json:"-"`
	BalanceTON          decimal.Decimal `json:"balance_ton"` // last observed on-chain balance, a cache
	CreatedAt           time.Time       `json:"created_at"`
}

// Transaction is an append-only record of a fund movement. Rows are only
// touched after insert to attach a hash and confirmation time.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	DealID      uuid.UUID       `json:"deal_id"`
	TxHash      *string         `json:"transaction_hash,omitempty"`
	TxType      string          `json:"transaction_type"` // payment / release / refund
	AmountTON   decimal.Decimal `json:"amount_ton"`
	FromAddress *string         `json:"from_address,omitempty"` // nil for deposits: the sender is not observed
	ToAddress   *string         `json:"to_address,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
}
