package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the subset of the Ethereum RPC client the submission layer
// needs. *ethclient.Client satisfies it; tests substitute a fake.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Retry policy. Classification is by inspecting the error text, since
// the RPC client surfaces all node-side failures as generic errors.
const (
	maxFundingRetries = 2
	maxFeeRetries     = 3
	maxNonceRetries   = 3

	gasBufferPct     = 120 // estimate + 20%
	feeEscalationPct = 25  // +25% per escalated retry

	defaultTransferGas = uint64(21000)
	defaultCallGas     = uint64(300000)

	underpricedDelay = 3 * time.Second
	nonceBackoffStep = 2 * time.Second

	receiptTimeout = 60 * time.Second
	receiptPoll    = 2 * time.Second
)

// 5 gwei, used when fee estimation fails entirely.
var defaultGasPrice = big.NewInt(5_000_000_000)

type errClass int

const (
	classOther errClass = iota
	classInsufficientFunds
	classUnderpriced
	classNonce
)

func classifyError(err error) errClass {
	if err == nil {
		return classOther
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return classInsufficientFunds
	case strings.Contains(msg, "replacement transaction underpriced"),
		strings.Contains(msg, "transaction underpriced"):
		return classUnderpriced
	case strings.Contains(msg, "nonce too low"),
		strings.Contains(msg, "nonce too high"),
		strings.Contains(msg, "already known"),
		strings.Contains(msg, "known transaction"):
		return classNonce
	default:
		return classOther
	}
}

// TxRequest describes one contract call or plain value transfer.
type TxRequest struct {
	Key   *ecdsa.PrivateKey
	To    common.Address
	Value *big.Int
	Data  []byte
}

func (r TxRequest) plainTransfer() bool { return len(r.Data) == 0 }

// Submitter submits transactions and retries them according to a fixed
// error taxonomy: auto-funding on insufficient gas (contract calls
// only), fee escalation on underpriced replacements, linear backoff on
// nonce races. Everything else propagates immediately.
type Submitter struct {
	eth     Backend
	chainID *big.Int

	// Operator wallet used to top up a bot wallet that ran out of gas.
	operatorKey *ecdsa.PrivateKey
	topUpWei    *big.Int

	sleep func(time.Duration)
}

func NewSubmitter(eth Backend, chainID int64, operatorKey *ecdsa.PrivateKey, topUpAmount float64) *Submitter {
	return &Submitter{
		eth:         eth,
		chainID:     big.NewInt(chainID),
		operatorKey: operatorKey,
		topUpWei:    ToWei(topUpAmount),
		sleep:       time.Sleep,
	}
}

// Submit runs the bounded retry loop around single attempts. It blocks
// until a confirmation receipt is observed or the request is classified
// as failed, and returns the confirmed transaction hash.
func (s *Submitter) Submit(ctx context.Context, req TxRequest) (common.Hash, error) {
	var fundings, feeRetries, nonceRetries int

	for {
		hash, err := s.attempt(ctx, req, feeRetries+nonceRetries)
		if err == nil {
			return hash, nil
		}

		switch classifyError(err) {
		case classInsufficientFunds:
			if req.plainTransfer() {
				// A transfer that cannot afford itself has no remedy.
				return common.Hash{}, fmt.Errorf("insufficient funds for transfer: %w", err)
			}
			if fundings >= maxFundingRetries || s.operatorKey == nil {
				return common.Hash{}, err
			}
			fundings++
			payer := keyAddress(req.Key)
			log.Printf("Wallet %s out of gas, auto-funding (attempt %d/%d)", payer.Hex(), fundings, maxFundingRetries)
			if ferr := s.fundWallet(ctx, payer); ferr != nil {
				return common.Hash{}, fmt.Errorf("auto-funding wallet %s: %w", payer.Hex(), ferr)
			}

		case classUnderpriced:
			if feeRetries >= maxFeeRetries {
				return common.Hash{}, err
			}
			feeRetries++
			s.sleep(underpricedDelay)

		case classNonce:
			if nonceRetries >= maxNonceRetries {
				return common.Hash{}, err
			}
			nonceRetries++
			s.sleep(time.Duration(nonceRetries) * nonceBackoffStep)

		default:
			return common.Hash{}, err
		}
	}
}

// attempt runs one full submission: estimate gas, estimate fees with
// the escalation multiplier, simulate, send, wait for the receipt.
func (s *Submitter) attempt(ctx context.Context, req TxRequest, escalations int) (common.Hash, error) {
	from := keyAddress(req.Key)

	nonce, err := s.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("fetching nonce: %w", err)
	}

	msg := ethereum.CallMsg{From: from, To: &req.To, Value: req.Value, Data: req.Data}

	gasLimit := s.estimateGas(ctx, msg, req.plainTransfer())

	// Simulate against current state before spending gas; a rejected
	// call fails fast here.
	if !req.plainTransfer() {
		if _, err := s.eth.CallContract(ctx, msg, nil); err != nil {
			return common.Hash{}, fmt.Errorf("simulation rejected: %w", err)
		}
	}

	tx := s.buildTx(ctx, req, nonce, gasLimit, escalations)

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), req.Key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}
	if err := s.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	if err := s.waitConfirmed(ctx, signed.Hash()); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

func (s *Submitter) estimateGas(ctx context.Context, msg ethereum.CallMsg, plainTransfer bool) uint64 {
	gas, err := s.eth.EstimateGas(ctx, msg)
	if err != nil {
		if plainTransfer {
			return defaultTransferGas
		}
		return defaultCallGas
	}
	return gas * gasBufferPct / 100
}

// buildTx prefers a dynamic (EIP-1559) fee model and falls back to a
// legacy gas price when the chain exposes no base fee. Escalated
// retries bump the fee by feeEscalationPct each.
func (s *Submitter) buildTx(ctx context.Context, req TxRequest, nonce, gasLimit uint64, escalations int) *types.Transaction {
	multiplier := int64(100 + feeEscalationPct*escalations)

	tip, tipErr := s.eth.SuggestGasTipCap(ctx)
	head, headErr := s.eth.HeaderByNumber(ctx, nil)

	if tipErr == nil && headErr == nil && head.BaseFee != nil {
		tip = mulPct(tip, multiplier)
		feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   s.chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &req.To,
			Value:     req.Value,
			Data:      req.Data,
		})
	}

	gasPrice, err := s.eth.SuggestGasPrice(ctx)
	if err != nil {
		gasPrice = new(big.Int).Set(defaultGasPrice)
	}
	gasPrice = mulPct(gasPrice, multiplier)
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &req.To,
		Value:    req.Value,
		Data:     req.Data,
	})
}

// waitConfirmed polls for the receipt until the timeout. A receipt with
// a non-success status is a failure, never a silent success.
func (s *Submitter) waitConfirmed(ctx context.Context, hash common.Hash) error {
	ctx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()

	for {
		receipt, err := s.eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("transaction %s reverted", hash.Hex())
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for confirmation of %s", hash.Hex())
		case <-time.After(receiptPoll):
		}
	}
}

// fundWallet sends a fixed top-up from the operator wallet and waits
// for it to confirm. The funding itself is a plain transfer, so it can
// never recurse into another auto-funding.
func (s *Submitter) fundWallet(ctx context.Context, wallet common.Address) error {
	_, err := s.Submit(ctx, TxRequest{
		Key:   s.operatorKey,
		To:    wallet,
		Value: new(big.Int).Set(s.topUpWei),
	})
	return err
}

func mulPct(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(pct))
	return out.Div(out, big.NewInt(100))
}
