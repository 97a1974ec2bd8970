package escrow

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/apperr"
	"github.com/ton-deals/backend/internal/config"
	"github.com/ton-deals/backend/internal/models"
)

// ChainBridge talks to real lite-servers. Each escrow wallet is a V4R2
// contract whose seed the vault holds; payouts sweep the whole contract
// balance to the destination.
type ChainBridge struct {
	api     ton.APIClientWrapped
	vault   *Vault
	wallets WalletStore
	txs     TxStore
	dust    decimal.Decimal
	log     *zap.Logger
}

// NewChainBridge connects to the TON network.
// If LITE_SERVER_HOST + LITE_SERVER_KEY are set, connects to a specific lite server.
// Otherwise, auto-discovers lite servers from the global TON config based on TON_NETWORK.
func NewChainBridge(ctx context.Context, cfg *config.Config, vault *Vault, wallets WalletStore, txs TxStore, dust decimal.Decimal, log *zap.Logger) (*ChainBridge, error) {
	client := liteclient.NewConnectionPool()

	if cfg.LiteServerHost != "" && cfg.LiteServerKey != "" {
		addr := fmt.Sprintf("%s:%d", cfg.LiteServerHost, cfg.LiteServerPort)
		log.Info("connecting to lite server", zap.String("addr", addr))
		if err := client.AddConnection(ctx, addr, cfg.LiteServerKey); err != nil {
			return nil, fmt.Errorf("connect to lite server %s: %w", addr, err)
		}
	} else {
		var configURL string
		switch strings.ToLower(cfg.TONNetwork) {
		case "mainnet":
			configURL = "https://ton.org/global.config.json"
		default:
			configURL = "https://ton.org/testnet-global.config.json"
		}
		log.Info("connecting via global config", zap.String("url", configURL), zap.String("network", cfg.TONNetwork))
		if err := client.AddConnectionsFromConfigUrl(ctx, configURL); err != nil {
			return nil, fmt.Errorf("connect via config %s: %w", configURL, err)
		}
	}

	proofPolicy := ton.ProofCheckPolicyFast
	if strings.ToLower(cfg.TONNetwork) == "mainnet" {
		proofPolicy = ton.ProofCheckPolicySecure
	}

	api := ton.NewAPIClient(client, proofPolicy).WithRetry()

	return &ChainBridge{
		api:     api,
		vault:   vault,
		wallets: wallets,
		txs:     txs,
		dust:    dust,
		log:     log,
	}, nil
}

func (b *ChainBridge) GetBalance(ctx context.Context, addrStr string) (decimal.Decimal, error) {
	addr, err := address.ParseAddr(addrStr)
	if err != nil {
		return decimal.Zero, apperr.Internal(err, "invalid escrow address")
	}

	block, err := b.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return decimal.Zero, apperr.Internal(err, "chain unavailable")
	}

	account, err := b.api.GetAccount(ctx, block, addr)
	if err != nil {
		return decimal.Zero, apperr.Internal(err, "chain unavailable")
	}

	// Fresh escrow wallets have no state on chain until the first deposit.
	if account == nil || !account.IsActive {
		return decimal.Zero, nil
	}

	return decimal.NewFromBigInt(account.State.Balance.Nano(), -9), nil
}

func (b *ChainBridge) VerifyPayment(ctx context.Context, dealID uuid.UUID, expected decimal.Decimal) (bool, error) {
	w, err := b.wallets.GetByDealID(ctx, dealID)
	if err != nil {
		return false, err
	}
	if w == nil {
		return false, apperr.NotFound("escrow wallet not found")
	}

	balance, err := b.GetBalance(ctx, w.Address)
	if err != nil {
		return false, err
	}
	if balance.LessThan(expected) {
		b.log.Info("escrow deposit below expected",
			zap.String("deal_id", dealID.String()),
			zap.String("balance", balance.String()),
			zap.String("expected", expected.String()),
		)
		return false, nil
	}

	if err := b.wallets.UpdateBalance(ctx, w.Address, balance); err != nil {
		return false, err
	}
	if err := b.txs.Insert(ctx, &models.Transaction{
		DealID:    dealID,
		TxType:    models.TxTypePayment,
		AmountTON: balance,
		ToAddress: &w.Address,
		Status:    models.TxStatusConfirmed,
	}); err != nil {
		return false, err
	}

	b.log.Info("escrow deposit confirmed",
		zap.String("deal_id", dealID.String()),
		zap.String("balance", balance.String()),
	)
	return true, nil
}

func (b *ChainBridge) ReleaseFunds(ctx context.Context, dealID uuid.UUID, toAddress string) (string, error) {
	return b.payOut(ctx, dealID, toAddress, models.TxTypeRelease)
}

func (b *ChainBridge) RefundFunds(ctx context.Context, dealID uuid.UUID, toAddress string) (string, error) {
	return b.payOut(ctx, dealID, toAddress, models.TxTypeRefund)
}

func (b *ChainBridge) payOut(ctx context.Context, dealID uuid.UUID, toAddress, txType string) (string, error) {
	ew, err := b.wallets.GetByDealID(ctx, dealID)
	if err != nil {
		return "", err
	}
	if ew == nil {
		return "", apperr.NotFound("escrow wallet not found")
	}

	balance, err := b.GetBalance(ctx, ew.Address)
	if err != nil {
		return "", err
	}
	if balance.LessThanOrEqual(b.dust) {
		return "", apperr.Conflict("escrow wallet holds no releasable funds")
	}

	dest, err := address.ParseAddr(toAddress)
	if err != nil {
		return "", apperr.BadRequest("invalid payout address")
	}

	seed, err := b.vault.DecryptSeed(ew.PrivateKeyEncrypted)
	if err != nil {
		return "", err
	}

	w, err := wallet.FromSeed(b.api, seed, wallet.V4R2)
	if err != nil {
		return "", apperr.Internal(err, "escrow wallet restore failed")
	}
	if w.WalletAddress().String() != ew.Address {
		return "", apperr.Internal(fmt.Errorf("derived address mismatch for deal %s", dealID), "escrow wallet restore failed")
	}

	msg, err := w.BuildTransfer(dest, tlb.FromNanoTON(balance.Shift(9).BigInt()), false, "")
	if err != nil {
		return "", apperr.Internal(err, "payout build failed")
	}
	// Mode 128 carries the whole remaining contract balance, so fees come
	// out of the swept amount rather than needing a separate reserve.
	msg.Mode = 128

	tx, _, err := w.SendWaitTransaction(ctx, msg)
	if err != nil {
		return "", apperr.Internal(err, "payout send failed")
	}
	hash := hex.EncodeToString(tx.Hash)

	if err := b.txs.Insert(ctx, &models.Transaction{
		DealID:      dealID,
		TxType:      txType,
		AmountTON:   balance,
		TxHash:      &hash,
		FromAddress: &ew.Address,
		ToAddress:   &toAddress,
		Status:      models.TxStatusConfirmed,
	}); err != nil {
		return "", err
	}
	if err := b.wallets.UpdateBalance(ctx, ew.Address, decimal.Zero); err != nil {
		return "", err
	}

	b.log.Info("escrow payout sent",
		zap.String("deal_id", dealID.String()),
		zap.String("type", txType),
		zap.String("to", toAddress),
		zap.String("amount", balance.String()),
		zap.String("tx_hash", hash),
	)
	return hash, nil
}

func (b *ChainBridge) GetTransactions(ctx context.Context, dealID uuid.UUID) ([]Transaction, error) {
	rows, err := b.txs.ListByDealID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, Transaction{
			ID:          r.ID,
			DealID:      r.DealID,
			TxType:      r.TxType,
			AmountTON:   r.AmountTON,
			TxHash:      r.TxHash,
			FromAddress: r.FromAddress,
			ToAddress:   r.ToAddress,
			Status:      r.Status,
		})
	}
	return out, nil
}
