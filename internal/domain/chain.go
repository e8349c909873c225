package domain

import (
	"context"
	"errors"
)

// ErrWalletNotFound is returned when an owner has no custodial wallet.
var ErrWalletNotFound = errors.New("owner wallet not found")

// Balances holds a wallet's live holdings: the native quote currency
// (USDT-denominated on this chain) and the bonding-curve token.
type Balances struct {
	USDT  float64
	Token float64
}

// PriceOracle reads live prices and balances from the chain. Stored bot
// balances exist only for display; every trading decision reads through
// this interface.
type PriceOracle interface {
	GetPrice(ctx context.Context, tokenAddress string) (float64, error)
	GetBalances(ctx context.Context, walletAddress, tokenAddress string) (Balances, error)
}

// TokenRegistry answers whether a bonding-curve token is known.
type TokenRegistry interface {
	Exists(ctx context.Context, tokenAddress string) (bool, error)
}

// Exchange submits trades and transfers through the retrying
// transaction-submission layer. All methods block until the transaction
// is confirmed or classified as failed, and return the transaction hash.
type Exchange interface {
	// Buy spends usdtAmount of the quote currency on the curve.
	Buy(ctx context.Context, signerKey, tokenAddress string, usdtAmount float64) (string, error)
	// Sell sells tokenAmount tokens back to the curve.
	Sell(ctx context.Context, signerKey, tokenAddress string, tokenAmount float64) (string, error)
	// TransferUSDT moves quote currency between wallets (plain transfer,
	// never auto-funded on insufficient balance).
	TransferUSDT(ctx context.Context, fromKey, toAddress string, amount float64) (string, error)
	// TransferToken moves curve tokens between wallets.
	TransferToken(ctx context.Context, fromKey, toAddress, tokenAddress string, amount float64) (string, error)
}

// Wallet is a generated keypair.
type Wallet struct {
	Address    string
	PrivateKey string // hex
}

// WalletFactory generates fresh custody keypairs.
type WalletFactory interface {
	GenerateWallet() (Wallet, error)
}

// OwnerWalletStore resolves an owner's custodial wallet, used to fund a
// bot at creation and to receive refunds on deletion.
type OwnerWalletStore interface {
	Get(ctx context.Context, owner string) (Wallet, error)
}
