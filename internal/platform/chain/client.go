// Package chain signs and submits medicine NFT mints to an EVM network and
// reads back their receipts.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the JSON-RPC surface used here. *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Wallet is a server-held signing key.
type Wallet struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

func WalletFromHex(hexKey string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	return &Wallet{key: key, Address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

type Config struct {
	Network      Network
	PollInterval time.Duration
	// GasMarginPercent is added on top of the node's gas estimate.
	GasMarginPercent uint64
}

type Client struct {
	backend  Backend
	contract *Contract
	wallet   *Wallet
	cfg      Config
}

// Dial connects to rpcURL. wallet may be nil, in which case only receipt
// lookups are possible.
func Dial(ctx context.Context, rpcURL string, contract *Contract, wallet *Wallet, cfg Config) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return NewClient(ec, contract, wallet, cfg), nil
}

func NewClient(backend Backend, contract *Contract, wallet *Wallet, cfg Config) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.GasMarginPercent == 0 {
		cfg.GasMarginPercent = 20
	}
	return &Client{backend: backend, contract: contract, wallet: wallet, cfg: cfg}
}

func (c *Client) ContractAddress() common.Address { return c.contract.Address }

func (c *Client) Network() Network { return c.cfg.Network }

// WalletAddress returns ErrWalletNotConnected when no key is configured.
func (c *Client) WalletAddress() (common.Address, error) {
	if c.wallet == nil {
		return common.Address{}, ErrWalletNotConnected
	}
	return c.wallet.Address, nil
}

// CheckNetwork compares the node's chain id with the configured network.
func (c *Client) CheckNetwork(ctx context.Context) error {
	got, err := c.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if got.Cmp(c.cfg.Network.ChainID) != 0 {
		return &WrongNetworkError{Got: got, Want: c.cfg.Network}
	}
	return nil
}

// SubmitMint signs a mintMedicine transaction with the wallet and sends it.
func (c *Client) SubmitMint(ctx context.Context, call MintCall) (common.Hash, error) {
	from, err := c.WalletAddress()
	if err != nil {
		return common.Hash{}, err
	}

	data, err := c.contract.PackMint(call)
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}
	to := c.contract.Address
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas * c.cfg.GasMarginPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.cfg.Network.ChainID), c.wallet.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}
	return signed.Hash(), nil
}

// WaitReceipt polls until the transaction is mined or ctx ends. A failed
// receipt is returned together with ErrReverted.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, ErrReverted
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			lastErr = nil
		default:
			// Transient RPC failures are retried until the deadline.
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("wait for receipt %s: %w (last error: %v)", hash.Hex(), ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("wait for receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Minted parses the mint out of a receipt.
func (c *Client) Minted(receipt *types.Receipt) (*Minted, error) {
	return c.contract.MintedFromReceipt(receipt)
}
