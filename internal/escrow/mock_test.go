package escrow

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/models"
)

func newTestMock(t *testing.T) (*MockBridge, *memWalletStore, *memTxStore, uuid.UUID, string) {
	t.Helper()
	wallets := newMemWalletStore()
	txs := &memTxStore{}
	bridge := NewMockBridge(wallets, txs, decimal.RequireFromString("0.01"), zap.NewNop())

	dealID := uuid.New()
	addr := "EQtest_" + dealID.String()
	if err := wallets.Create(context.Background(), &models.EscrowWallet{
		DealID:     dealID,
		Address:    addr,
		BalanceTON: decimal.Zero,
	}); err != nil {
		t.Fatal(err)
	}
	return bridge, wallets, txs, dealID, addr
}

func TestMockBalanceStartsAtZero(t *testing.T) {
	bridge, _, _, _, addr := newTestMock(t)

	balance, err := bridge.GetBalance(context.Background(), addr)
	if err != nil {
		t.Fatal(err)
	}
	if !balance.IsZero() {
		t.Errorf("fresh address balance = %s, want 0", balance)
	}
}

func TestMockVerifyPaymentShortfall(t *testing.T) {
	bridge, wallets, txs, dealID, addr := newTestMock(t)
	bridge.SimulateDeposit(addr, decimal.RequireFromString("5"))

	ok, err := bridge.VerifyPayment(context.Background(), dealID, decimal.RequireFromString("10.5"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("verification passed with 5 < 10.5")
	}

	// Shortfall must not mutate anything.
	w, _ := wallets.GetByDealID(context.Background(), dealID)
	if !w.BalanceTON.IsZero() {
		t.Errorf("cached balance mutated on failed verify: %s", w.BalanceTON)
	}
	rows, _ := txs.ListByDealID(context.Background(), dealID)
	if len(rows) != 0 {
		t.Errorf("failed verify recorded %d transactions", len(rows))
	}
}

func TestMockVerifyPaymentSuccess(t *testing.T) {
	bridge, wallets, txs, dealID, addr := newTestMock(t)
	bridge.SimulateDeposit(addr, decimal.RequireFromString("10.5"))

	ok, err := bridge.VerifyPayment(context.Background(), dealID, decimal.RequireFromString("10.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("exact deposit not accepted")
	}

	w, _ := wallets.GetByDealID(context.Background(), dealID)
	if !w.BalanceTON.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("cached balance = %s, want 10.5", w.BalanceTON)
	}

	rows, _ := txs.ListByDealID(context.Background(), dealID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(rows))
	}
	if rows[0].TxType != models.TxTypePayment {
		t.Errorf("tx type = %s, want %s", rows[0].TxType, models.TxTypePayment)
	}
	if rows[0].Status != models.TxStatusConfirmed {
		t.Errorf("tx status = %s, want %s", rows[0].Status, models.TxStatusConfirmed)
	}
	if rows[0].TxHash == nil || !strings.HasPrefix(*rows[0].TxHash, "mock_tx_") {
		t.Error("expected mock tx hash")
	}
	// Deposits record where the money landed. The sender is unknown.
	if rows[0].ToAddress == nil || *rows[0].ToAddress != addr {
		t.Errorf("payment to_address = %v, want escrow address", rows[0].ToAddress)
	}
	if rows[0].FromAddress != nil {
		t.Errorf("payment from_address = %v, want nil", *rows[0].FromAddress)
	}
}

func TestMockOverpaymentAccepted(t *testing.T) {
	bridge, _, _, dealID, addr := newTestMock(t)
	bridge.SimulateDeposit(addr, decimal.RequireFromString("11"))

	ok, err := bridge.VerifyPayment(context.Background(), dealID, decimal.RequireFromString("10.5"))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("overpayment rejected")
	}
}

func TestMockReleaseFunds(t *testing.T) {
	bridge, wallets, txs, dealID, addr := newTestMock(t)
	bridge.SimulateDeposit(addr, decimal.RequireFromString("10.5"))

	hash, err := bridge.ReleaseFunds(context.Background(), dealID, "EQowner_payout")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "mock_tx_") {
		t.Errorf("hash = %q, want mock_tx_ prefix", hash)
	}

	escrowBal, _ := bridge.GetBalance(context.Background(), addr)
	if !escrowBal.IsZero() {
		t.Errorf("escrow balance after release = %s, want 0", escrowBal)
	}
	destBal, _ := bridge.GetBalance(context.Background(), "EQowner_payout")
	if !destBal.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("destination balance = %s, want 10.5", destBal)
	}

	w, _ := wallets.GetByDealID(context.Background(), dealID)
	if !w.BalanceTON.IsZero() {
		t.Errorf("cached balance after release = %s, want 0", w.BalanceTON)
	}

	rows, _ := txs.ListByDealID(context.Background(), dealID)
	if len(rows) != 1 || rows[0].TxType != models.TxTypeRelease {
		t.Fatalf("expected a single release transaction, got %+v", rows)
	}
	if !rows[0].AmountTON.Equal(decimal.RequireFromString("10.5")) {
		t.Errorf("release amount = %s, want 10.5", rows[0].AmountTON)
	}
	if rows[0].FromAddress == nil || *rows[0].FromAddress != addr {
		t.Errorf("release from_address = %v, want escrow address", rows[0].FromAddress)
	}
	if rows[0].ToAddress == nil || *rows[0].ToAddress != "EQowner_payout" {
		t.Errorf("release to_address = %v, want payout address", rows[0].ToAddress)
	}
}

func TestMockRefundFunds(t *testing.T) {
	bridge, _, txs, dealID, addr := newTestMock(t)
	bridge.SimulateDeposit(addr, decimal.RequireFromString("3"))

	if _, err := bridge.RefundFunds(context.Background(), dealID, "EQadvertiser"); err != nil {
		t.Fatal(err)
	}

	rows, _ := txs.ListByDealID(context.Background(), dealID)
	if len(rows) != 1 || rows[0].TxType != models.TxTypeRefund {
		t.Fatalf("expected a single refund transaction, got %+v", rows)
	}

	destBal, _ := bridge.GetBalance(context.Background(), "EQadvertiser")
	if !destBal.Equal(decimal.RequireFromString("3")) {
		t.Errorf("refund destination balance = %s, want 3", destBal)
	}
}

func TestMockPayoutRejectsDustBalance(t *testing.T) {
	bridge, _, _, dealID, addr := newTestMock(t)
	bridge.SimulateDeposit(addr, decimal.RequireFromString("0.005"))

	if _, err := bridge.ReleaseFunds(context.Background(), dealID, "EQowner_payout"); err == nil {
		t.Error("release of dust-level balance should fail")
	}
	if _, err := bridge.RefundFunds(context.Background(), dealID, "EQadvertiser"); err == nil {
		t.Error("refund of dust-level balance should fail")
	}
}

func TestMockVerifyUnknownDeal(t *testing.T) {
	bridge, _, _, _, _ := newTestMock(t)

	_, err := bridge.VerifyPayment(context.Background(), uuid.New(), decimal.RequireFromString("1"))
	if err == nil {
		t.Error("verify for a deal without a wallet should fail")
	}
}
