package escrow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/config"
)

// Bridge is the capability surface deal flows use to talk to the chain.
// Balances, deposit verification and payouts go through here; callers never
// touch lite-servers or raw cells directly.
type Bridge interface {
	// GetBalance returns the current on-chain balance of an escrow address.
	// Uninitialized accounts read as zero.
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)

	// VerifyPayment checks whether the deal's escrow wallet holds at least
	// the expected amount. On success it records a confirmed payment row and
	// caches the observed balance; on shortfall it changes nothing.
	VerifyPayment(ctx context.Context, dealID uuid.UUID, expected decimal.Decimal) (bool, error)

	// ReleaseFunds sends the escrow balance to the channel owner's payout
	// address and records a release transaction. Returns the tx hash.
	ReleaseFunds(ctx context.Context, dealID uuid.UUID, toAddress string) (string, error)

	// RefundFunds returns the escrow balance to the advertiser's address and
	// records a refund transaction. Returns the tx hash.
	RefundFunds(ctx context.Context, dealID uuid.UUID, toAddress string) (string, error)

	// GetTransactions lists recorded fund movements for a deal, oldest first.
	GetTransactions(ctx context.Context, dealID uuid.UUID) ([]Transaction, error)
}

// Transaction mirrors models.Transaction through the bridge boundary so the
// mock can serve it without a database.
type Transaction struct {
	ID          uuid.UUID
	DealID      uuid.UUID
	TxType      string
	AmountTON   decimal.Decimal
	TxHash      *string
	FromAddress *string
	ToAddress   *string
	Status      string
}

// NewBridge selects the chain backend by network name. "mock" runs a fully
// simulated chain, anything else dials real lite-servers.
func NewBridge(ctx context.Context, cfg *config.Config, vault *Vault, wallets WalletStore, txs TxStore, log *zap.Logger) (Bridge, error) {
	dust, err := decimal.NewFromString(cfg.EscrowDustThresholdTON)
	if err != nil {
		return nil, fmt.Errorf("bad ESCROW_DUST_THRESHOLD_TON %q: %w", cfg.EscrowDustThresholdTON, err)
	}

	switch cfg.TONNetwork {
	case "mock":
		log.Warn("escrow bridge running in mock mode, no real funds move")
		return NewMockBridge(wallets, txs, dust, log), nil
	case "testnet", "mainnet":
		return NewChainBridge(ctx, cfg, vault, wallets, txs, dust, log)
	default:
		return nil, fmt.Errorf("unknown TON network %q", cfg.TONNetwork)
	}
}
