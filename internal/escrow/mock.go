package escrow

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/apperr"
	"github.com/ton-deals/backend/internal/models"
)

// MockBridge simulates the chain in memory. Deposits are injected with
// SimulateDeposit, payouts just zero the simulated balance. Transaction rows
// still go through the real TxStore so the rest of the system behaves the
// same as against a live network.
type MockBridge struct {
	wallets WalletStore
	txs     TxStore
	dust    decimal.Decimal
	log     *zap.Logger

	mu    sync.Mutex
	chain map[string]decimal.Decimal // address -> simulated on-chain balance
}

func NewMockBridge(wallets WalletStore, txs TxStore, dust decimal.Decimal, log *zap.Logger) *MockBridge {
	return &MockBridge{
		wallets: wallets,
		txs:     txs,
		dust:    dust,
		log:     log,
		chain:   make(map[string]decimal.Decimal),
	}
}

// SimulateDeposit credits a simulated incoming transfer. Test and demo use
// only.
func (m *MockBridge) SimulateDeposit(address string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chain[address] = m.chain[address].Add(amount)
}

func (m *MockBridge) GetBalance(_ context.Context, address string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chain[address], nil
}

func (m *MockBridge) VerifyPayment(ctx context.Context, dealID uuid.UUID, expected decimal.Decimal) (bool, error) {
	w, err := m.wallets.GetByDealID(ctx, dealID)
	if err != nil {
		return false, err
	}
	if w == nil {
		return false, apperr.NotFound("escrow wallet not found")
	}

	balance, _ := m.GetBalance(ctx, w.Address)
	if balance.LessThan(expected) {
		return false, nil
	}

	if err := m.wallets.UpdateBalance(ctx, w.Address, balance); err != nil {
		return false, err
	}
	hash := mockTxHash()
	if err := m.txs.Insert(ctx, &models.Transaction{
		DealID:    dealID,
		TxType:    models.TxTypePayment,
		AmountTON: balance,
		TxHash:    &hash,
		ToAddress: &w.Address,
		Status:    models.TxStatusConfirmed,
	}); err != nil {
		return false, err
	}

	m.log.Info("mock payment verified",
		zap.String("deal_id", dealID.String()),
		zap.String("balance", balance.String()),
	)
	return true, nil
}

func (m *MockBridge) ReleaseFunds(ctx context.Context, dealID uuid.UUID, toAddress string) (string, error) {
	return m.payOut(ctx, dealID, toAddress, models.TxTypeRelease)
}

func (m *MockBridge) RefundFunds(ctx context.Context, dealID uuid.UUID, toAddress string) (string, error) {
	return m.payOut(ctx, dealID, toAddress, models.TxTypeRefund)
}

func (m *MockBridge) payOut(ctx context.Context, dealID uuid.UUID, toAddress, txType string) (string, error) {
	w, err := m.wallets.GetByDealID(ctx, dealID)
	if err != nil {
		return "", err
	}
	if w == nil {
		return "", apperr.NotFound("escrow wallet not found")
	}

	m.mu.Lock()
	amount := m.chain[w.Address]
	if amount.LessThanOrEqual(m.dust) {
		m.mu.Unlock()
		return "", apperr.Conflict("escrow wallet holds no releasable funds")
	}
	m.chain[w.Address] = decimal.Zero
	m.chain[toAddress] = m.chain[toAddress].Add(amount)
	m.mu.Unlock()

	hash := mockTxHash()
	if err := m.txs.Insert(ctx, &models.Transaction{
		DealID:      dealID,
		TxType:      txType,
		AmountTON:   amount,
		TxHash:      &hash,
		FromAddress: &w.Address,
		ToAddress:   &toAddress,
		Status:      models.TxStatusConfirmed,
	}); err != nil {
		return "", err
	}
	if err := m.wallets.UpdateBalance(ctx, w.Address, decimal.Zero); err != nil {
		return "", err
	}

	m.log.Info("mock payout sent",
		zap.String("deal_id", dealID.String()),
		zap.String("type", txType),
		zap.String("to", toAddress),
		zap.String("amount", amount.String()),
	)
	return hash, nil
}

func (m *MockBridge) GetTransactions(ctx context.Context, dealID uuid.UUID) ([]Transaction, error) {
	rows, err := m.txs.ListByDealID(ctx, dealID)
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

func mockTxHash() string {
	return "mock_tx_" + uuid.New().String()
}
