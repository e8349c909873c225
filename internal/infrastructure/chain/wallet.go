package chain

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"marketmaker-backend/internal/domain"
)

// WalletFactory generates custody keypairs. Each bot owns exactly one;
// the key never leaves the bot record, so signers are never shared
// across bots.
type WalletFactory struct{}

func NewWalletFactory() *WalletFactory { return &WalletFactory{} }

func (f *WalletFactory) GenerateWallet() (domain.Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("generating keypair: %w", err)
	}
	return domain.Wallet{
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(key)),
	}, nil
}

var _ domain.WalletFactory = (*WalletFactory)(nil)

// parseKey decodes a hex private key, with or without the 0x prefix.
func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}

func keyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
