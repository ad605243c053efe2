package chain

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testContract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type fakeBackend struct {
	mu        sync.Mutex
	chainID   *big.Int
	sent      []*types.Transaction
	receipts  map[common.Hash]*types.Receipt
	pending   int // receipt lookups that return NotFound before the receipt appears
	lookups   int
	estimated ethereum.CallMsg
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{chainID: big.NewInt(80002), receipts: map[common.Hash]*types.Receipt{}}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }
func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}
func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}
func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.estimated = msg
	return 100_000, nil
}
func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookups <= f.pending {
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func newTestClient(t *testing.T, backend Backend, withWallet bool) *Client {
	t.Helper()
	contract, err := NewContract(testContract)
	if err != nil {
		t.Fatalf("contract: %v", err)
	}
	var wallet *Wallet
	if withWallet {
		if wallet, err = WalletFromHex("0x" + testKey); err != nil {
			t.Fatalf("wallet: %v", err)
		}
	}
	return NewClient(backend, contract, wallet, Config{Network: PolygonAmoy, PollInterval: time.Millisecond})
}

func TestWalletAddress_NotConnected(t *testing.T) {
	c := newTestClient(t, newFakeBackend(), false)
	if _, err := c.WalletAddress(); !errors.Is(err, ErrWalletNotConnected) {
		t.Fatalf("expected ErrWalletNotConnected, got %v", err)
	}
	if _, err := c.SubmitMint(context.Background(), MintCall{}); !errors.Is(err, ErrWalletNotConnected) {
		t.Fatalf("expected ErrWalletNotConnected from SubmitMint, got %v", err)
	}
}

func TestCheckNetwork(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend, true)
	if err := c.CheckNetwork(context.Background()); err != nil {
		t.Fatalf("expected amoy to pass, got %v", err)
	}

	backend.chainID = big.NewInt(1)
	err := c.CheckNetwork(context.Background())
	if !errors.Is(err, ErrWrongNetwork) {
		t.Fatalf("expected ErrWrongNetwork, got %v", err)
	}
	var wn *WrongNetworkError
	if !errors.As(err, &wn) {
		t.Fatalf("expected *WrongNetworkError, got %T", err)
	}
	if wn.Want.ChainIDHex != "0x13882" || wn.Want.Name != "Polygon Amoy Testnet" {
		t.Errorf("unexpected add-network params %+v", wn.Want)
	}
	if wn.Want.RPCURLs[0] != "https://rpc-amoy.polygon.technology/" {
		t.Errorf("unexpected rpc url %v", wn.Want.RPCURLs)
	}
}

func TestSubmitMint_SignsForChain(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend, true)
	from, _ := c.WalletAddress()

	hash, err := c.SubmitMint(context.Background(), MintCall{
		To:                from,
		TokenURI:          "data:application/json;base64,e30=",
		MedicineID:        "6f1c",
		BatchNumber:       "B100",
		ManufacturerName:  "Acme",
		ExpiryDate:        "2030-01-01",
		ManufacturingDate: "2025-01-01",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one tx, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Hash() != hash {
		t.Errorf("returned hash does not match sent tx")
	}
	if *tx.To() != testContract {
		t.Errorf("expected tx to contract, got %s", tx.To().Hex())
	}
	if tx.Nonce() != 7 {
		t.Errorf("expected nonce 7, got %d", tx.Nonce())
	}
	if tx.Gas() != 120_000 {
		t.Errorf("expected gas with 20%% margin, got %d", tx.Gas())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(80002)), tx)
	if err != nil || sender != from {
		t.Errorf("expected tx signed by %s, got %s (%v)", from.Hex(), sender.Hex(), err)
	}
	if backend.estimated.From != from {
		t.Errorf("expected gas estimate from wallet")
	}
}

func TestWaitReceipt_PollsUntilMined(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend, true)
	h := common.HexToHash("0x01")
	backend.receipts[h] = &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: h}
	backend.pending = 3

	r, err := c.WaitReceipt(context.Background(), h)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if r.TxHash != h {
		t.Errorf("unexpected receipt")
	}
	if backend.lookups != 4 {
		t.Errorf("expected 4 lookups, got %d", backend.lookups)
	}
}

func TestWaitReceipt_Reverted(t *testing.T) {
	backend := newFakeBackend()
	c := newTestClient(t, backend, true)
	h := common.HexToHash("0x02")
	backend.receipts[h] = &types.Receipt{Status: types.ReceiptStatusFailed}

	if _, err := c.WaitReceipt(context.Background(), h); !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
}

func TestWaitReceipt_Timeout(t *testing.T) {
	c := newTestClient(t, newFakeBackend(), true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WaitReceipt(ctx, common.HexToHash("0x03"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func topicFor(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}

func mintedData(t *testing.T, c *Contract, medicineID, batch string) []byte {
	t.Helper()
	data, err := c.PackMinted(medicineID, batch)
	if err != nil {
		t.Fatalf("pack minted: %v", err)
	}
	return data
}

func TestMintedFromReceipt(t *testing.T) {
	contract, _ := NewContract(testContract)
	minted := contract.EventID("MedicineMinted")
	transfer := contract.EventID("Transfer")
	zero := common.Hash{}
	mfr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	someone := common.BytesToHash(mfr.Bytes())
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	data := mintedData(t, contract, "6f1c2d3e-0000-4000-8000-000000000001", "B100")

	tests := []struct {
		name    string
		logs    []*types.Log
		want    Minted
		wantErr bool
	}{
		{
			name: "medicine minted wins over transfer",
			logs: []*types.Log{
				{Address: testContract, Topics: []common.Hash{transfer, zero, someone, topicFor(41)}},
				{Address: testContract, Topics: []common.Hash{minted, topicFor(42), someone}, Data: data},
			},
			want: Minted{
				TokenID: "42", Manufacturer: mfr, FromEvent: true,
				MedicineID: "6f1c2d3e-0000-4000-8000-000000000001", BatchNumber: "B100",
			},
		},
		{
			name: "undecodable minted event falls back to transfer",
			logs: []*types.Log{
				{Address: testContract, Topics: []common.Hash{minted, topicFor(42), someone}, Data: []byte{1, 2}},
				{Address: testContract, Topics: []common.Hash{transfer, zero, someone, topicFor(43)}},
			},
			want: Minted{TokenID: "43"},
		},
		{
			name: "transfer from zero preferred",
			logs: []*types.Log{
				{Address: testContract, Topics: []common.Hash{transfer, someone, someone, topicFor(5)}},
				{Address: testContract, Topics: []common.Hash{transfer, zero, someone, topicFor(6)}},
			},
			want: Minted{TokenID: "6"},
		},
		{
			name: "any transfer as last resort",
			logs: []*types.Log{
				{Address: testContract, Topics: []common.Hash{transfer, someone, someone, topicFor(9)}},
			},
			want: Minted{TokenID: "9"},
		},
		{
			name: "logs from other contracts ignored",
			logs: []*types.Log{
				{Address: other, Topics: []common.Hash{minted, topicFor(1), someone}, Data: data},
			},
			wantErr: true,
		},
		{
			name:    "no logs",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := contract.MintedFromReceipt(&types.Receipt{Logs: tt.logs})
			if tt.wantErr {
				if !errors.Is(err, ErrTokenIDNotFound) {
					t.Fatalf("expected ErrTokenIDNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, *got)
			}
		})
	}
}

func TestPersonalSignature(t *testing.T) {
	wallet, err := WalletFromHex(testKey)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	msg := "bind wallet to account 42"
	sig, err := wallet.SignPersonal(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	signer, err := RecoverPersonalSigner(msg, sig)
	if err != nil || signer != wallet.Address {
		t.Fatalf("expected signer %s, got %s (%v)", wallet.Address.Hex(), signer.Hex(), err)
	}
	if err := VerifyPersonalSignature(wallet.Address, msg, sig); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := VerifyPersonalSignature(wallet.Address, "another message", sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature for other message, got %v", err)
	}
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	if err := VerifyPersonalSignature(other, msg, sig); !errors.Is(err, ErrBadSignature) {
		t.Errorf("expected ErrBadSignature for other address, got %v", err)
	}
	if _, err := RecoverPersonalSigner(msg, "0x1234"); err == nil {
		t.Error("expected short signature rejected")
	}
}

func TestNetworkFor(t *testing.T) {
	n := NetworkFor(big.NewInt(80002), "http://localhost:8545")
	if n.Name != "Polygon Amoy Testnet" || n.RPCURLs[0] != "http://localhost:8545" {
		t.Errorf("unexpected amoy network %+v", n)
	}
	if got := n.TxURL("0xabc"); got != "https://amoy.polygonscan.com/tx/0xabc" {
		t.Errorf("unexpected tx url %s", got)
	}

	local := NetworkFor(big.NewInt(31337), "http://localhost:8545")
	if local.ChainIDHex != "0x7a69" {
		t.Errorf("expected 0x7a69, got %s", local.ChainIDHex)
	}
	if local.TxURL("0xabc") != "" {
		t.Error("expected no explorer for unknown chain")
	}
}
