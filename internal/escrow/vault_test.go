package escrow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/models"
)

type memWalletStore struct {
	mu      sync.Mutex
	byDeal  map[uuid.UUID]*models.EscrowWallet
	byAddr  map[string]*models.EscrowWallet
	creates int
}

func newMemWalletStore() *memWalletStore {
	return &memWalletStore{
		byDeal: make(map[uuid.UUID]*models.EscrowWallet),
		byAddr: make(map[string]*models.EscrowWallet),
	}
}

func (s *memWalletStore) GetByDealID(_ context.Context, dealID uuid.UUID) (*models.EscrowWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byDeal[dealID], nil
}

func (s *memWalletStore) GetByAddress(_ context.Context, address string) (*models.EscrowWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byAddr[address], nil
}

func (s *memWalletStore) Create(_ context.Context, w *models.EscrowWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byDeal[w.DealID]; exists {
		return fmt.Errorf("duplicate key on deal_id %s", w.DealID)
	}
	s.creates++
	cp := *w
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	s.byDeal[w.DealID] = &cp
	s.byAddr[w.Address] = &cp
	return nil
}

func (s *memWalletStore) UpdateBalance(_ context.Context, address string, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byAddr[address]
	if !ok {
		return fmt.Errorf("no wallet at %s", address)
	}
	w.BalanceTON = balance
	return nil
}

type memTxStore struct {
	mu   sync.Mutex
	rows []models.Transaction
}

func (s *memTxStore) Insert(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	s.rows = append(s.rows, cp)
	return nil
}

func (s *memTxStore) ListByDealID(_ context.Context, dealID uuid.UUID) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, r := range s.rows {
		if r.DealID == dealID {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestCreateOrGetWalletIdempotent(t *testing.T) {
	store := newMemWalletStore()
	v := NewVault(store, "test-secret", zap.NewNop())
	dealID := uuid.New()

	first, err := v.CreateOrGetWallet(context.Background(), dealID)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Address == "" {
		t.Fatal("expected non-empty address")
	}
	if first.PrivateKeyEncrypted == "" {
		t.Fatal("expected encrypted key material")
	}

	second, err := v.CreateOrGetWallet(context.Background(), dealID)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Address != first.Address {
		t.Errorf("address changed between calls: %s vs %s", first.Address, second.Address)
	}
	if second.PrivateKeyEncrypted != first.PrivateKeyEncrypted {
		t.Error("key material changed between calls")
	}
	if store.creates != 1 {
		t.Errorf("expected exactly 1 create, got %d", store.creates)
	}
}

func TestWalletsAreDistinctPerDeal(t *testing.T) {
	store := newMemWalletStore()
	v := NewVault(store, "test-secret", zap.NewNop())

	a, err := v.CreateOrGetWallet(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	b, err := v.CreateOrGetWallet(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if a.Address == b.Address {
		t.Error("two deals received the same escrow address")
	}
}

func TestSeedRoundTrip(t *testing.T) {
	store := newMemWalletStore()
	v := NewVault(store, "test-secret", zap.NewNop())

	w, err := v.CreateOrGetWallet(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	words, err := v.DecryptSeed(w.PrivateKeyEncrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if len(words) != 24 {
		t.Fatalf("expected 24 mnemonic words, got %d", len(words))
	}
	for i, word := range words {
		if strings.TrimSpace(word) == "" {
			t.Fatalf("word %d is empty", i)
		}
	}
}

func TestCiphertextDiffersFromPlaintext(t *testing.T) {
	v := NewVault(newMemWalletStore(), "test-secret", zap.NewNop())

	encrypted, err := v.encrypt("abandon ability able about")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(encrypted, "abandon") {
		t.Error("ciphertext leaks plaintext words")
	}

	// Same plaintext, fresh nonce, different ciphertext.
	again, err := v.encrypt("abandon ability able about")
	if err != nil {
		t.Fatal(err)
	}
	if encrypted == again {
		t.Error("nonce reuse: identical ciphertexts for same plaintext")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	v := NewVault(newMemWalletStore(), "test-secret", zap.NewNop())

	encrypted, err := v.encrypt("abandon ability able about")
	if err != nil {
		t.Fatal(err)
	}

	// Flip one hex digit in the ciphertext body.
	tampered := []byte(encrypted)
	last := len(tampered) - 1
	if tampered[last] == '0' {
		tampered[last] = '1'
	} else {
		tampered[last] = '0'
	}

	if _, err := v.decrypt(string(tampered)); err == nil {
		t.Error("tampered ciphertext was accepted")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	v1 := NewVault(newMemWalletStore(), "secret-one", zap.NewNop())
	v2 := NewVault(newMemWalletStore(), "secret-two", zap.NewNop())

	encrypted, err := v1.encrypt("abandon ability able about")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v2.decrypt(encrypted); err == nil {
		t.Error("ciphertext opened with a different secret")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	v := NewVault(newMemWalletStore(), "test-secret", zap.NewNop())

	for _, in := range []string{"", "zz", "deadbeef", "00112233445566"} {
		if _, err := v.decrypt(in); err == nil {
			t.Errorf("decrypt(%q) should fail", in)
		}
	}
}
