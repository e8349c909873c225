package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"marketmaker-backend/internal/domain"
)

// Minimal ABIs for the bonding-curve market and ERC-20 tokens. The
// curve prices tokens algorithmically from reserves; buys are payable
// in the native quote currency.
const curveABIJSON = `[
	{"name":"getPrice","type":"function","stateMutability":"view","inputs":[{"name":"token","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"buy","type":"function","stateMutability":"payable","inputs":[{"name":"token","type":"address"}],"outputs":[]},
	{"name":"sell","type":"function","stateMutability":"nonpayable","inputs":[{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const erc20ABIJSON = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Client reads prices and balances from the chain and submits trades
// through the retrying submission layer. It implements the oracle and
// exchange interfaces consumed by the usecases.
type Client struct {
	eth   Backend
	sub   *Submitter
	curve common.Address

	curveABI abi.ABI
	erc20ABI abi.ABI
}

// Dial connects to the RPC endpoint and builds the client plus its
// submission layer.
func Dial(rpcURL string, chainID int64, curveAddress, operatorKeyHex string, topUpAmount float64) (*Client, error) {
	eth, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to RPC %s: %w", rpcURL, err)
	}

	operatorKey, err := parseKey(operatorKeyHex)
	if err != nil {
		return nil, fmt.Errorf("operator key: %w", err)
	}

	sub := NewSubmitter(eth, chainID, operatorKey, topUpAmount)
	return newClient(eth, sub, curveAddress)
}

func newClient(eth Backend, sub *Submitter, curveAddress string) (*Client, error) {
	curveABI, err := abi.JSON(strings.NewReader(curveABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing curve ABI: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing erc20 ABI: %w", err)
	}

	return &Client{
		eth:      eth,
		sub:      sub,
		curve:    common.HexToAddress(curveAddress),
		curveABI: curveABI,
		erc20ABI: erc20ABI,
	}, nil
}

// GetPrice reads the current curve price for a token, in USDT per token.
func (c *Client) GetPrice(ctx context.Context, tokenAddress string) (float64, error) {
	data, err := c.curveABI.Pack("getPrice", common.HexToAddress(tokenAddress))
	if err != nil {
		return 0, err
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.curve, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("reading price of %s: %w", tokenAddress, err)
	}

	vals, err := c.curveABI.Unpack("getPrice", out)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("decoding price of %s: %w", tokenAddress, err)
	}
	wei, ok := vals[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("unexpected price type %T", vals[0])
	}
	return FromWei(wei), nil
}

// GetBalances reads a wallet's native USDT balance and its token
// balance in one shot.
func (c *Client) GetBalances(ctx context.Context, walletAddress, tokenAddress string) (domain.Balances, error) {
	wallet := common.HexToAddress(walletAddress)

	native, err := c.eth.BalanceAt(ctx, wallet, nil)
	if err != nil {
		return domain.Balances{}, fmt.Errorf("reading balance of %s: %w", walletAddress, err)
	}

	data, err := c.erc20ABI.Pack("balanceOf", wallet)
	if err != nil {
		return domain.Balances{}, err
	}
	token := common.HexToAddress(tokenAddress)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return domain.Balances{}, fmt.Errorf("reading token balance of %s: %w", walletAddress, err)
	}
	vals, err := c.erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(vals) == 0 {
		return domain.Balances{}, fmt.Errorf("decoding token balance: %w", err)
	}
	tokenWei, ok := vals[0].(*big.Int)
	if !ok {
		return domain.Balances{}, fmt.Errorf("unexpected balance type %T", vals[0])
	}

	return domain.Balances{USDT: FromWei(native), Token: FromWei(tokenWei)}, nil
}

// Buy spends usdtAmount on the curve for the given token.
func (c *Client) Buy(ctx context.Context, signerKey, tokenAddress string, usdtAmount float64) (string, error) {
	key, err := parseKey(signerKey)
	if err != nil {
		return "", err
	}
	data, err := c.curveABI.Pack("buy", common.HexToAddress(tokenAddress))
	if err != nil {
		return "", err
	}

	hash, err := c.sub.Submit(ctx, TxRequest{
		Key:   key,
		To:    c.curve,
		Value: ToWei(usdtAmount),
		Data:  data,
	})
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// Sell sells tokenAmount tokens back to the curve.
func (c *Client) Sell(ctx context.Context, signerKey, tokenAddress string, tokenAmount float64) (string, error) {
	key, err := parseKey(signerKey)
	if err != nil {
		return "", err
	}
	data, err := c.curveABI.Pack("sell", common.HexToAddress(tokenAddress), ToWei(tokenAmount))
	if err != nil {
		return "", err
	}

	hash, err := c.sub.Submit(ctx, TxRequest{
		Key:   key,
		To:    c.curve,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// TransferUSDT moves native quote currency as a plain value transfer.
// Plain transfers are never auto-funded on insufficient balance.
func (c *Client) TransferUSDT(ctx context.Context, fromKey, toAddress string, amount float64) (string, error) {
	key, err := parseKey(fromKey)
	if err != nil {
		return "", err
	}

	hash, err := c.sub.Submit(ctx, TxRequest{
		Key:   key,
		To:    common.HexToAddress(toAddress),
		Value: ToWei(amount),
	})
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

// TransferToken moves curve tokens via the ERC-20 transfer function.
func (c *Client) TransferToken(ctx context.Context, fromKey, toAddress, tokenAddress string, amount float64) (string, error) {
	key, err := parseKey(fromKey)
	if err != nil {
		return "", err
	}
	data, err := c.erc20ABI.Pack("transfer", common.HexToAddress(toAddress), ToWei(amount))
	if err != nil {
		return "", err
	}

	token := common.HexToAddress(tokenAddress)
	hash, err := c.sub.Submit(ctx, TxRequest{
		Key:   key,
		To:    token,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

var (
	_ domain.PriceOracle = (*Client)(nil)
	_ domain.Exchange    = (*Client)(nil)
)
