package escrow

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/apperr"
	"github.com/ton-deals/backend/internal/models"
)

const nonceSize = 12

// WalletStore is the persistence contract the vault and bridges need.
// The pgx repository implements it; tests use an in-memory fake. The store
// must enforce uniqueness on deal_id so create-or-get is race safe.
type WalletStore interface {
	GetByDealID(ctx context.Context, dealID uuid.UUID) (*models.EscrowWallet, error)
	GetByAddress(ctx context.Context, address string) (*models.EscrowWallet, error)
	Create(ctx context.Context, w *models.EscrowWallet) error
	UpdateBalance(ctx context.Context, address string, balance decimal.Decimal) error
}

// TxStore records fund movements. Append-only; rows are never rewritten.
type TxStore interface {
	Insert(ctx context.Context, tx *models.Transaction) error
	ListByDealID(ctx context.Context, dealID uuid.UUID) ([]models.Transaction, error)
}

// Vault generates per-deal custodial wallets and seals their seed phrases.
// The cipher key is derived once per process from the server-held secret,
// never from the phrase itself.
type Vault struct {
	wallets   WalletStore
	cipherKey [32]byte
	log       *zap.Logger
}

func NewVault(wallets WalletStore, serverSecret string, log *zap.Logger) *Vault {
	return &Vault{
		wallets:   wallets,
		cipherKey: sha256.Sum256([]byte(serverSecret)),
		log:       log,
	}
}

// CreateOrGetWallet returns the deal's escrow wallet, minting one on first
// call. An existing wallet is returned unchanged: keys are never re-derived
// for a deal. Concurrent first calls race on the deal_id unique constraint;
// the loser re-reads the winner's row.
func (v *Vault) CreateOrGetWallet(ctx context.Context, dealID uuid.UUID) (*models.EscrowWallet, error) {
	if existing, err := v.wallets.GetByDealID(ctx, dealID); err == nil && existing != nil {
		return existing, nil
	}

	seed := wallet.NewSeed()
	w, err := wallet.FromSeed(nil, seed, wallet.V4R2)
	if err != nil {
		return nil, apperr.Internal(err, "escrow keypair derivation failed")
	}

	phrase := strings.Join(seed, " ")
	encrypted, err := v.encrypt(phrase)
	if err != nil {
		return nil, err
	}

	ew := &models.EscrowWallet{
		DealID:              dealID,
		Address:             w.WalletAddress().String(),
		PrivateKeyEncrypted: encrypted,
		BalanceTON:          decimal.Zero,
	}

	if err := v.wallets.Create(ctx, ew); err != nil {
		// Lost a create race: the unique constraint on deal_id guarantees
		// a row now exists.
		if existing, getErr := v.wallets.GetByDealID(ctx, dealID); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, apperr.Internal(err, "failed to save escrow wallet")
	}

	v.log.Info("escrow wallet created",
		zap.String("deal_id", dealID.String()),
		zap.String("address", ew.Address),
	)
	return ew, nil
}

// GetWallet returns the deal's escrow wallet without minting one. Callers
// that only report state use this so a wallet never appears before the deal
// reaches its first payment step.
func (v *Vault) GetWallet(ctx context.Context, dealID uuid.UUID) (*models.EscrowWallet, error) {
	w, err := v.wallets.GetByDealID(ctx, dealID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load escrow wallet")
	}
	return w, nil
}

// DecryptSeed opens a sealed phrase and returns the mnemonic words.
// Tampered ciphertext fails authentication and is rejected.
func (v *Vault) DecryptSeed(encryptedHex string) ([]string, error) {
	phrase, err := v.decrypt(encryptedHex)
	if err != nil {
		return nil, err
	}
	return strings.Split(phrase, " "), nil
}

func (v *Vault) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.cipherKey[:])
	if err != nil {
		return "", apperr.Internal(err, "encryption failed")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.Internal(err, "encryption failed")
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", apperr.Internal(err, "encryption failed")
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(append(nonce, sealed...)), nil
}

func (v *Vault) decrypt(encryptedHex string) (string, error) {
	combined, err := hex.DecodeString(encryptedHex)
	if err != nil {
		return "", apperr.Internal(err, "decryption failed")
	}
	if len(combined) < nonceSize {
		return "", apperr.Internal(errors.New("ciphertext shorter than nonce"), "decryption failed")
	}

	block, err := aes.NewCipher(v.cipherKey[:])
	if err != nil {
		return "", apperr.Internal(err, "decryption failed")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", apperr.Internal(err, "decryption failed")
	}

	plaintext, err := aead.Open(nil, combined[:nonceSize], combined[nonceSize:], nil)
	if err != nil {
		return "", apperr.Internal(err, "decryption failed")
	}
	return string(plaintext), nil
}
