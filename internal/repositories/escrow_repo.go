package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ton-deals/backend/internal/models"
)

// EscrowRepo persists per-deal escrow wallets and the append-only fund
// movement log. Implements escrow.WalletStore and escrow.TxStore.
type EscrowRepo struct {
	pool *pgxpool.Pool
}

func NewEscrowRepo(pool *pgxpool.Pool) *EscrowRepo {
	return &EscrowRepo{pool: pool}
}

func (r *EscrowRepo) Create(ctx context.Context, w *models.EscrowWallet) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO escrow_wallets (deal_id, address, private_key_encrypted, balance_ton)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, w.DealID, w.Address, w.PrivateKeyEncrypted, w.BalanceTON).Scan(&w.ID, &w.CreatedAt)
}

func (r *EscrowRepo) GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.EscrowWallet, error) {
	var w models.EscrowWallet
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, address, private_key_encrypted, balance_ton, created_at
		FROM escrow_wallets WHERE deal_id = $1
	`, dealID).Scan(&w.ID, &w.DealID, &w.Address, &w.PrivateKeyEncrypted, &w.BalanceTON, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *EscrowRepo) GetByAddress(ctx context.Context, address string) (*models.EscrowWallet, error) {
	var w models.EscrowWallet
	err := r.pool.QueryRow(ctx, `
		SELECT id, deal_id, address, private_key_encrypted, balance_ton, created_at
		FROM escrow_wallets WHERE address = $1
	`, address).Scan(&w.ID, &w.DealID, &w.Address, &w.PrivateKeyEncrypted, &w.BalanceTON, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *EscrowRepo) UpdateBalance(ctx context.Context, address string, balance decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE escrow_wallets SET balance_ton = $1 WHERE address = $2
	`, balance, address)
	return err
}

// ---- Transactions ----

func (r *EscrowRepo) Insert(ctx context.Context, tx *models.Transaction) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO transactions (deal_id, tx_type, amount_ton, tx_hash, from_address, to_address, status, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CASE WHEN $7 = 'confirmed' THEN now() END)
		RETURNING id, created_at
	`, tx.DealID, tx.TxType, tx.AmountTON, tx.TxHash, tx.FromAddress, tx.ToAddress, tx.Status).Scan(&tx.ID, &tx.CreatedAt)
}

func (r *EscrowRepo) ListByDealID(ctx context.Context, dealID uuid.UUID) ([]models.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, deal_id, tx_type, amount_ton, tx_hash, from_address, to_address, status, confirmed_at, created_at
		FROM transactions WHERE deal_id = $1 ORDER BY created_at
	`, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.DealID, &t.TxType, &t.AmountTON, &t.TxHash, &t.FromAddress, &t.ToAddress, &t.Status, &t.ConfirmedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
